package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/boltdb/bolt"
	"github.com/example/bookhub/internal/domain/booking"
	"github.com/example/bookhub/internal/domain/registry"
	"github.com/example/bookhub/internal/domain/venue"
	"github.com/example/bookhub/internal/internaltypes"
)

// Store implements registry.Store on top of bolt. Bolt serialises write
// transactions, so the existence check and the put in each Create run
// atomically.
type Store struct {
	db  *DB
	now func() time.Time
}

var _ registry.Store = (*Store)(nil)

func NewStore(db *DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Close() error { return s.db.Close() }

// linkKey orders links by venue so a prefix scan lists one venue's links.
func linkKey(venueID, provider string) []byte {
	return []byte(venueID + "\x00" + provider)
}

func (s *Store) CreateVenue(_ context.Context, v venue.Venue) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = s.now()
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = v.CreatedAt
	}
	return s.db.Bolt().Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketVenues)
		if b.Get([]byte(v.ID)) != nil {
			return internaltypes.Conflict("venue %q already exists", v.ID)
		}
		return putJSON(b, []byte(v.ID), v)
	})
}

func (s *Store) UpdateVenueStatus(_ context.Context, id string, status venue.Status) error {
	return s.db.Bolt().Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketVenues)
		var v venue.Venue
		if err := getJSON(b, []byte(id), &v); err != nil {
			return err
		}
		v.Status = status
		v.UpdatedAt = s.now()
		return putJSON(b, []byte(id), v)
	})
}

func (s *Store) GetVenue(_ context.Context, id string) (venue.Venue, error) {
	var v venue.Venue
	err := s.db.Bolt().View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketVenues), []byte(id), &v)
	})
	if err != nil {
		return venue.Venue{}, fmt.Errorf("get venue %q: %w", id, err)
	}
	return v, nil
}

func (s *Store) ListVenues(_ context.Context, f registry.VenueFilter) ([]venue.Venue, error) {
	var out []venue.Venue
	err := s.db.Bolt().View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketVenues).ForEach(func(_, data []byte) error {
			var v venue.Venue
			if err := json.Unmarshal(data, &v); err != nil {
				return fmt.Errorf("unmarshal venue: %w", err)
			}
			if f.Match(v) {
				out = append(out, v)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	// bolt iterates in key order, which is already id order.
	return out, nil
}

func (s *Store) FindVenueByDomain(_ context.Context, domain string) (venue.Venue, error) {
	want := venue.NormalizeDomain(domain)
	var (
		found venue.Venue
		ok    bool
	)
	err := s.db.Bolt().View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketVenues).ForEach(func(_, data []byte) error {
			if ok {
				return nil
			}
			var v venue.Venue
			if err := json.Unmarshal(data, &v); err != nil {
				return fmt.Errorf("unmarshal venue: %w", err)
			}
			if want != "" && venue.NormalizeDomain(v.Domain) == want {
				found, ok = v, true
			}
			return nil
		})
	})
	if err != nil {
		return venue.Venue{}, err
	}
	if !ok {
		return venue.Venue{}, internaltypes.NotFound("no venue for domain %q", domain)
	}
	return found, nil
}

func (s *Store) CreateLink(_ context.Context, l venue.ProviderLink) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now()
	}
	if l.SyncStatus == "" {
		l.SyncStatus = venue.SyncActive
	}
	return s.db.Bolt().Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketVenues).Get([]byte(l.VenueID)) == nil {
			return internaltypes.NotFound("venue %q not found", l.VenueID)
		}
		b := tx.Bucket(bucketLinks)
		k := linkKey(l.VenueID, l.Provider)
		if b.Get(k) != nil {
			return internaltypes.Conflict("venue %q is already linked to %s", l.VenueID, l.Provider)
		}
		return putJSON(b, k, l)
	})
}

func (s *Store) ListLinks(_ context.Context, venueID string) ([]venue.ProviderLink, error) {
	var out []venue.ProviderLink
	prefix := []byte(venueID + "\x00")
	err := s.db.Bolt().View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketLinks).Cursor()
		for k, data := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, data = c.Next() {
			var l venue.ProviderLink
			if err := json.Unmarshal(data, &l); err != nil {
				return fmt.Errorf("unmarshal link: %w", err)
			}
			out = append(out, l)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list links for %q: %w", venueID, err)
	}
	sortLinks(out)
	return out, nil
}

func (s *Store) ListLinksByProvider(_ context.Context, provider string) ([]venue.ProviderLink, error) {
	out, err := s.scanLinks(func(l venue.ProviderLink) bool { return l.Provider == provider })
	if err != nil {
		return nil, fmt.Errorf("list %s links: %w", provider, err)
	}
	sortLinks(out)
	return out, nil
}

func (s *Store) FindLinkByExternal(_ context.Context, provider, externalID string) (venue.ProviderLink, error) {
	out, err := s.scanLinks(func(l venue.ProviderLink) bool {
		return l.Provider == provider && l.ExternalID == externalID
	})
	if err != nil {
		return venue.ProviderLink{}, err
	}
	if len(out) == 0 {
		return venue.ProviderLink{}, internaltypes.NotFound("no %s link for external id %q", provider, externalID)
	}
	return out[0], nil
}

func (s *Store) scanLinks(keep func(venue.ProviderLink) bool) ([]venue.ProviderLink, error) {
	var out []venue.ProviderLink
	err := s.db.Bolt().View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLinks).ForEach(func(_, data []byte) error {
			var l venue.ProviderLink
			if err := json.Unmarshal(data, &l); err != nil {
				return fmt.Errorf("unmarshal link: %w", err)
			}
			if keep(l) {
				out = append(out, l)
			}
			return nil
		})
	})
	return out, err
}

func (s *Store) UpdateLinkSync(_ context.Context, venueID, provider string, sync registry.LinkSync) error {
	return s.db.Bolt().Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLinks)
		k := linkKey(venueID, provider)
		var l venue.ProviderLink
		if err := getJSON(b, k, &l); err != nil {
			return err
		}
		l.SyncStatus = sync.Status
		if sync.Status == venue.SyncActive {
			at := sync.At
			l.LastSyncAt = &at
		}
		return putJSON(b, k, l)
	})
}

func (s *Store) CreateBooking(_ context.Context, bk booking.Booking) error {
	return s.db.Bolt().Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBookings)
		if b.Get([]byte(bk.ID)) != nil {
			return internaltypes.Conflict("booking %q already exists", bk.ID)
		}
		return putJSON(b, []byte(bk.ID), bk)
	})
}

func (s *Store) GetBooking(_ context.Context, id string) (booking.Booking, error) {
	var bk booking.Booking
	err := s.db.Bolt().View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketBookings), []byte(id), &bk)
	})
	if err != nil {
		return booking.Booking{}, fmt.Errorf("get booking %q: %w", id, err)
	}
	return bk, nil
}

func (s *Store) UpdateBookingStatus(_ context.Context, id string, status booking.Status) error {
	return s.db.Bolt().Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBookings)
		var bk booking.Booking
		if err := getJSON(b, []byte(id), &bk); err != nil {
			return err
		}
		bk.Status = status
		bk.UpdatedAt = s.now()
		return putJSON(b, []byte(id), bk)
	})
}

func (s *Store) PutCredential(_ context.Context, c registry.Credential) error {
	now := s.now()
	return s.db.Bolt().Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCredentials)
		var prev registry.Credential
		switch err := getJSON(b, []byte(c.Ref), &prev); {
		case err == nil:
			c.CreatedAt = prev.CreatedAt
		default:
			c.CreatedAt = now
		}
		c.UpdatedAt = now
		return putJSON(b, []byte(c.Ref), c)
	})
}

func (s *Store) GetCredential(_ context.Context, ref string) (registry.Credential, error) {
	var c registry.Credential
	err := s.db.Bolt().View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketCredentials), []byte(ref), &c)
	})
	if err != nil {
		return registry.Credential{}, fmt.Errorf("get credential %q: %w", ref, err)
	}
	return c, nil
}

func putJSON(b *bolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	return b.Put(key, data)
}

func getJSON(b *bolt.Bucket, key []byte, v any) error {
	data := b.Get(key)
	if data == nil {
		return internaltypes.NotFound("%q not found", key)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func sortLinks(ls []venue.ProviderLink) {
	sort.SliceStable(ls, func(i, j int) bool {
		if !ls[i].CreatedAt.Equal(ls[j].CreatedAt) {
			return ls[i].CreatedAt.Before(ls[j].CreatedAt)
		}
		return ls[i].Provider < ls[j].Provider
	})
}
