package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/example/bookhub/internal/domain/booking"
	"github.com/example/bookhub/internal/domain/category"
	"github.com/example/bookhub/internal/domain/registry"
	"github.com/example/bookhub/internal/domain/venue"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements registry.Store. Uniqueness comes from primary keys, so
// concurrent writers get a unique violation rather than an overwrite.
type Store struct{ pool *pgxpool.Pool }

var _ registry.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const venueColumns = `id, name, category, address, city, country, domain, metadata, status, created_at, updated_at`

func (s *Store) CreateVenue(ctx context.Context, v venue.Venue) error {
	meta, err := json.Marshal(nonNilStrings(v.Metadata))
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = v.CreatedAt
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO venues (`+venueColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, v.ID, v.Name, string(v.Category), v.Address, v.City, v.Country, venue.NormalizeDomain(v.Domain), meta, string(v.Status), v.CreatedAt, v.UpdatedAt)
	return mapErr(err, "venue %q", v.ID)
}

func (s *Store) UpdateVenueStatus(ctx context.Context, id string, status venue.Status) error {
	tag, err := s.pool.Exec(ctx, `UPDATE venues SET status=$2, updated_at=$3 WHERE id=$1`, id, string(status), time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "venue %q", id)
	}
	return nil
}

func (s *Store) GetVenue(ctx context.Context, id string) (venue.Venue, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+venueColumns+` FROM venues WHERE id=$1`, id)
	v, err := scanVenue(row)
	return v, mapErr(err, "venue %q", id)
}

func (s *Store) ListVenues(ctx context.Context, f registry.VenueFilter) ([]venue.Venue, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+venueColumns+` FROM venues
		WHERE ($1 = '' OR category = $1)
		  AND ($2 = '' OR lower(trim(city)) = lower(trim($2)))
		  AND ($3 = '' OR status = $3)
		ORDER BY id
	`, string(f.Category), f.City, string(f.Status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []venue.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) FindVenueByDomain(ctx context.Context, domain string) (venue.Venue, error) {
	d := venue.NormalizeDomain(domain)
	if d == "" {
		return venue.Venue{}, mapErr(pgx.ErrNoRows, "venue for domain %q", domain)
	}
	row := s.pool.QueryRow(ctx, `SELECT `+venueColumns+` FROM venues WHERE domain=$1 ORDER BY id LIMIT 1`, d)
	v, err := scanVenue(row)
	return v, mapErr(err, "venue for domain %q", domain)
}

func scanVenue(row pgx.Row) (venue.Venue, error) {
	var (
		v        venue.Venue
		cat, st  string
		metadata []byte
	)
	if err := row.Scan(&v.ID, &v.Name, &cat, &v.Address, &v.City, &v.Country, &v.Domain, &metadata, &st, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return venue.Venue{}, err
	}
	v.Category = category.Category(cat)
	v.Status = venue.Status(st)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &v.Metadata); err != nil {
			return venue.Venue{}, err
		}
	}
	if len(v.Metadata) == 0 {
		v.Metadata = nil
	}
	return v, nil
}

const linkColumns = `venue_id, provider, external_id, credential_ref, sync_status, last_sync_at, created_at`

func (s *Store) CreateLink(ctx context.Context, l venue.ProviderLink) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	if l.SyncStatus == "" {
		l.SyncStatus = venue.SyncActive
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM venues WHERE id=$1)`, l.VenueID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return mapErr(pgx.ErrNoRows, "venue %q", l.VenueID)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO provider_links (`+linkColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, l.VenueID, l.Provider, l.ExternalID, l.CredentialRef, string(l.SyncStatus), l.LastSyncAt, l.CreatedAt)
	return mapErr(err, "%s link for venue %q", l.Provider, l.VenueID)
}

func (s *Store) ListLinks(ctx context.Context, venueID string) ([]venue.ProviderLink, error) {
	return s.queryLinks(ctx, `SELECT `+linkColumns+` FROM provider_links WHERE venue_id=$1 ORDER BY created_at, provider`, venueID)
}

func (s *Store) ListLinksByProvider(ctx context.Context, provider string) ([]venue.ProviderLink, error) {
	return s.queryLinks(ctx, `SELECT `+linkColumns+` FROM provider_links WHERE provider=$1 ORDER BY created_at, venue_id`, provider)
}

func (s *Store) FindLinkByExternal(ctx context.Context, provider, externalID string) (venue.ProviderLink, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM provider_links WHERE provider=$1 AND external_id=$2 ORDER BY created_at LIMIT 1`, provider, externalID)
	l, err := scanLink(row)
	return l, mapErr(err, "%s link for external id %q", provider, externalID)
}

func (s *Store) UpdateLinkSync(ctx context.Context, venueID, provider string, sync registry.LinkSync) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE provider_links
		SET sync_status=$3,
		    last_sync_at = CASE WHEN $3 = 'active' THEN $4 ELSE last_sync_at END
		WHERE venue_id=$1 AND provider=$2
	`, venueID, provider, string(sync.Status), sync.At)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "%s link for venue %q", provider, venueID)
	}
	return nil
}

func (s *Store) queryLinks(ctx context.Context, sql string, arg string) ([]venue.ProviderLink, error) {
	rows, err := s.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []venue.ProviderLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLink(row pgx.Row) (venue.ProviderLink, error) {
	var (
		l  venue.ProviderLink
		st string
	)
	if err := row.Scan(&l.VenueID, &l.Provider, &l.ExternalID, &l.CredentialRef, &st, &l.LastSyncAt, &l.CreatedAt); err != nil {
		return venue.ProviderLink{}, err
	}
	l.SyncStatus = venue.SyncStatus(st)
	return l, nil
}

const bookingColumns = `id, venue_id, venue_name, provider, provider_booking_id, category, params,
	customer_name, customer_email, customer_phone, status, created_at, updated_at`

func (s *Store) CreateBooking(ctx context.Context, b booking.Booking) error {
	params, err := json.Marshal(b.Params)
	if err != nil {
		return err
	}
	var providerID *string
	if b.ProviderBookingID != "" {
		providerID = &b.ProviderBookingID
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, b.ID, b.VenueID, b.VenueName, b.Provider, providerID, string(b.Category), params,
		b.Customer.Name, b.Customer.Email, b.Customer.Phone, string(b.Status), b.CreatedAt, b.UpdatedAt)
	return mapErr(err, "booking %q", b.ID)
}

func (s *Store) GetBooking(ctx context.Context, id string) (booking.Booking, error) {
	var (
		b          booking.Booking
		providerID *string
		cat, st    string
		params     []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id).Scan(
		&b.ID, &b.VenueID, &b.VenueName, &b.Provider, &providerID, &cat, &params,
		&b.Customer.Name, &b.Customer.Email, &b.Customer.Phone, &st, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return booking.Booking{}, mapErr(err, "booking %q", id)
	}
	if providerID != nil {
		b.ProviderBookingID = *providerID
	}
	b.Category = category.Category(cat)
	b.Status = booking.Status(st)

	dec := json.NewDecoder(bytes.NewReader(params))
	dec.UseNumber()
	if err := dec.Decode(&b.Params); err != nil {
		return booking.Booking{}, err
	}
	return b, nil
}

func (s *Store) UpdateBookingStatus(ctx context.Context, id string, status booking.Status) error {
	tag, err := s.pool.Exec(ctx, `UPDATE bookings SET status=$2, updated_at=$3 WHERE id=$1`, id, string(status), time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "booking %q", id)
	}
	return nil
}

func (s *Store) PutCredential(ctx context.Context, c registry.Credential) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO provider_credentials (ref, provider, sealed, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$4)
		ON CONFLICT (ref) DO UPDATE SET provider=EXCLUDED.provider, sealed=EXCLUDED.sealed, updated_at=EXCLUDED.updated_at
	`, c.Ref, c.Provider, c.Sealed, now)
	return err
}

func (s *Store) GetCredential(ctx context.Context, ref string) (registry.Credential, error) {
	var c registry.Credential
	err := s.pool.QueryRow(ctx, `
		SELECT ref, provider, sealed, created_at, updated_at FROM provider_credentials WHERE ref=$1
	`, ref).Scan(&c.Ref, &c.Provider, &c.Sealed, &c.CreatedAt, &c.UpdatedAt)
	return c, mapErr(err, "credential %q", ref)
}

func nonNilStrings(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
