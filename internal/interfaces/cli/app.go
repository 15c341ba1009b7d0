package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/bookhub/internal/application/providers"
	"github.com/example/bookhub/internal/application/usecases"
	"github.com/example/bookhub/internal/domain/registry"
	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/infrastructure/boltdb"
	"github.com/example/bookhub/internal/infrastructure/config"
	"github.com/example/bookhub/internal/infrastructure/crypto"
	"github.com/example/bookhub/internal/infrastructure/events"
	"github.com/example/bookhub/internal/infrastructure/logx"
	"github.com/example/bookhub/internal/infrastructure/memory"
	"github.com/example/bookhub/internal/infrastructure/mock"
	"github.com/example/bookhub/internal/infrastructure/opentable"
	"github.com/example/bookhub/internal/infrastructure/postgres"
	"github.com/example/bookhub/internal/infrastructure/resy"
	"github.com/example/bookhub/internal/infrastructure/seed"
	"github.com/example/bookhub/internal/infrastructure/upstream"
	"github.com/example/bookhub/internal/infrastructure/zenchef"
	"github.com/example/bookhub/internal/internaltypes"
	"github.com/rs/zerolog"
)

type eventSink interface {
	usecases.EventPublisher
	Close() error
}

// app is the wired process: configuration, store, providers and events.
type app struct {
	cfg       config.Config
	log       zerolog.Logger
	store     registry.Store
	providers *providers.Registry
	creds     usecases.CredentialsService
	events    eventSink
}

func openApp(ctx context.Context, envFile string) (*app, error) {
	cfg, err := config.FromEnv(envFile)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: logx.Init(cfg.Log), events: events.Nop{}}

	a.store, err = openStore(ctx, cfg, a.log)
	if err != nil {
		return nil, err
	}

	a.creds = usecases.CredentialsService{Store: a.store}
	if key := strings.TrimSpace(cfg.CredEncKey); key != "" {
		aead, err := crypto.NewFromBase64(key)
		if err != nil {
			_ = a.store.Close()
			return nil, fmt.Errorf("%s_CRED_ENC_KEY: %w", config.Prefix, err)
		}
		a.creds.AEAD = aead
	}

	if cfg.AMQPURL != "" {
		pub, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			_ = a.store.Close()
			return nil, fmt.Errorf("connect amqp: %w", err)
		}
		a.events = pub
	}

	a.providers = a.registry()
	return a, nil
}

func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (registry.Store, error) {
	switch cfg.Store {
	case config.StoreBolt:
		db, err := boltdb.Open(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return boltdb.NewStore(db), nil
	case config.StorePostgres:
		pool, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, err
		}
		return postgres.NewStore(pool), nil
	default:
		return memory.New(), nil
	}
}

func (a *app) Close() error {
	return errors.Join(a.events.Close(), a.store.Close())
}

func (a *app) upstream() upstream.Config {
	return upstream.Config{
		Timeout:    a.cfg.Provider.Timeout,
		MaxRetries: a.cfg.Provider.MaxRetries,
		RateLimit:  a.cfg.Provider.RateLimit,
		Log:        a.log,
	}
}

// callTimeout bounds one adapter call with room for every upstream retry,
// not just the first attempt.
func (a *app) callTimeout() time.Duration {
	return upstream.Budget(a.upstream())
}

// account returns the stored credentials for one provider account and a
// filter for environment values. Only the default account takes environment
// values, which win over stored ones. A named account that cannot be opened
// is an error rather than a fallback to another account.
func (a *app) account(provider, ref string) (map[string]string, func(string) string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	def := ref == "" || ref == usecases.DefaultRef(provider)
	vals, err := a.creds.ForRef(ctx, provider, ref)
	if err != nil {
		if !def {
			return nil, nil, internaltypes.ProviderUnavailable(provider, err)
		}
		a.log.Warn().Err(err).Str("provider", provider).Msg("stored credentials unusable")
		vals = map[string]string{}
	}
	env := func(v string) string {
		if def {
			return v
		}
		return ""
	}
	return vals, env, nil
}

// first returns the first non-blank value.
func first(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// registry wires every provider. Credentialed providers build one adapter
// per credential reference; one without credentials runs in mock mode.
func (a *app) registry() *providers.Registry {
	r := providers.NewRegistry()
	r.MustRegister(reservation.ProviderDemo, func() (reservation.Adapter, error) {
		return mock.New(reservation.ProviderDemo, seed.Catalog(reservation.ProviderDemo)), nil
	})
	r.MustRegisterScoped(reservation.ProviderZenchef, func(ref string) (reservation.Adapter, error) {
		s, env, err := a.account(reservation.ProviderZenchef, ref)
		if err != nil {
			return nil, err
		}
		uc := a.upstream()
		uc.BaseURL = first(env(a.cfg.Zenchef.BaseURL), s["base_url"])
		return zenchef.New(zenchef.Config{
			APIKey:   first(env(a.cfg.Zenchef.APIKey), s["api_key"]),
			Upstream: uc,
		}, seed.Catalog(reservation.ProviderZenchef)), nil
	})
	r.MustRegisterScoped(reservation.ProviderOpenTable, func(ref string) (reservation.Adapter, error) {
		s, env, err := a.account(reservation.ProviderOpenTable, ref)
		if err != nil {
			return nil, err
		}
		return opentable.New(opentable.Config{
			Token:                first(env(a.cfg.OpenTable.Token), s["token"]),
			PersistedQuerySHA256: first(env(a.cfg.OpenTable.PQHash), s["pq_hash"]),
			Upstream:             a.upstream(),
		}, seed.Catalog(reservation.ProviderOpenTable)), nil
	})
	r.MustRegisterScoped(reservation.ProviderResy, func(ref string) (reservation.Adapter, error) {
		s, env, err := a.account(reservation.ProviderResy, ref)
		if err != nil {
			return nil, err
		}
		return resy.New(resy.Config{
			Credentials: resy.Credentials{
				APIKey:    first(env(a.cfg.Resy.APIKey), s["api_key"]),
				AuthToken: first(env(a.cfg.Resy.AuthToken), s["auth_token"]),
			},
			ReservationTypes: a.cfg.Resy.ReservationTypes,
			Upstream:         a.upstream(),
		}, seed.Catalog(reservation.ProviderResy)), nil
	})
	return r
}

func (a *app) dispatcher() *usecases.Dispatcher {
	return usecases.NewDispatcher(usecases.Deps{
		Store:     a.store,
		Providers: a.providers,
		Events:    a.events,
		Timeout:   a.callTimeout(),
		Log:       a.log,
	})
}

// seedIfEmpty loads the demo directory into an empty in-memory store so a
// fresh process is usable without setup.
func (a *app) seedIfEmpty(ctx context.Context) error {
	if a.cfg.Store != config.StoreMemory {
		return nil
	}
	n, err := seed.Load(ctx, a.store)
	if err != nil {
		return err
	}
	a.log.Info().Int("venues", n).Msg("seeded in-memory directory")
	return nil
}
