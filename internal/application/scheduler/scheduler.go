// Package scheduler keeps provider link sync status current. A link whose
// provider stops recognising the venue moves to error, which takes it out of
// routing; a link that checks out again moves back to active.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/example/bookhub/internal/application/providers"
	"github.com/example/bookhub/internal/domain/registry"
	"github.com/example/bookhub/internal/domain/venue"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// LinkChecker is implemented by adapters that can verify a single listing.
// Adapters without it are judged by Ping.
type LinkChecker interface {
	CheckLink(ctx context.Context, externalID string) error
}

// Report summarises one sync pass.
type Report struct {
	Checked   int `json:"checked"`
	Active    int `json:"active"`
	Errored   int `json:"errored"`
	Skipped   int `json:"skipped"`
	Providers int `json:"providers"`
}

// LinkSyncer re-checks every provider link on an interval.
type LinkSyncer struct {
	Store     registry.Store
	Providers *providers.Registry
	Interval  time.Duration
	// PerSecond caps link checks per provider.
	PerSecond float64
	Timeout   time.Duration
	Log       zerolog.Logger
	Now       func() time.Time
}

func (s *LinkSyncer) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	// kick immediately
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *LinkSyncer) tick(ctx context.Context) {
	rep, err := s.Sync(ctx)
	if err != nil {
		s.Log.Error().Err(err).Msg("link sync failed")
		return
	}
	s.Log.Info().Int("checked", rep.Checked).Int("active", rep.Active).Int("errored", rep.Errored).Msg("link sync done")
}

// Sync runs one pass over all registered providers, one goroutine per
// provider. Paused links are left alone.
func (s *LinkSyncer) Sync(ctx context.Context) (Report, error) {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		rep Report
	)
	errs := make(chan error, 1)
	for _, name := range s.Providers.Names() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := s.syncProvider(ctx, name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				select {
				case errs <- err:
				default:
				}
				return
			}
			rep.Providers++
			rep.Checked += r.Checked
			rep.Active += r.Active
			rep.Errored += r.Errored
			rep.Skipped += r.Skipped
		}()
	}
	wg.Wait()
	select {
	case err := <-errs:
		return rep, err
	default:
		return rep, nil
	}
}

func (s *LinkSyncer) syncProvider(ctx context.Context, name string) (Report, error) {
	var rep Report
	links, err := s.Store.ListLinksByProvider(ctx, name)
	if err != nil {
		return rep, err
	}
	log := s.Log.With().Str("provider", name).Logger()

	lim := rate.NewLimiter(s.limit(), 1)
	accounts := map[string]account{}
	for _, l := range links {
		if l.SyncStatus == venue.SyncPaused {
			rep.Skipped++
			continue
		}
		acct, ok := accounts[l.CredentialRef]
		if !ok {
			acct = s.account(ctx, log, name, l.CredentialRef)
			accounts[l.CredentialRef] = acct
		}
		checkErr := acct.err
		if checkErr == nil && acct.checker != nil {
			if werr := lim.Wait(ctx); werr != nil {
				return rep, werr
			}
			cctx, cancel := context.WithTimeout(ctx, s.timeout())
			checkErr = acct.checker.CheckLink(cctx, l.ExternalID)
			cancel()
		}

		status := venue.SyncActive
		if checkErr != nil {
			status = venue.SyncError
			rep.Errored++
			log.Debug().Err(checkErr).Str("venue_id", l.VenueID).Str("external_id", l.ExternalID).Msg("link check failed")
		} else {
			rep.Active++
		}
		rep.Checked++
		if err := s.Store.UpdateLinkSync(ctx, l.VenueID, l.Provider, registry.LinkSync{Status: status, At: s.now().UTC()}); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// account is the adapter serving one credential reference of a provider.
// err is set when the adapter could not be built or, lacking per-link
// checks, failed its ping; it then decides every link of the account.
type account struct {
	checker LinkChecker
	err     error
}

func (s *LinkSyncer) account(ctx context.Context, log zerolog.Logger, name, ref string) account {
	a, err := s.Providers.ResolveFor(name, ref)
	if err != nil {
		log.Warn().Err(err).Str("credential_ref", ref).Msg("provider unavailable; marking links errored")
		return account{err: err}
	}
	if checker, ok := a.(LinkChecker); ok {
		return account{checker: checker}
	}
	pctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()
	return account{err: a.Ping(pctx)}
}

func (s *LinkSyncer) timeout() time.Duration {
	if s.Timeout <= 0 {
		return 10 * time.Second
	}
	return s.Timeout
}

func (s *LinkSyncer) limit() rate.Limit {
	if s.PerSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(s.PerSecond)
}

func (s *LinkSyncer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
