// Package usecases runs the tool operations: it validates parameters against
// the category schema, resolves the venue and its provider, invokes the
// adapter and persists bookings.
package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/bookhub/internal/application/directory"
	"github.com/example/bookhub/internal/application/providers"
	"github.com/example/bookhub/internal/domain/booking"
	"github.com/example/bookhub/internal/domain/category"
	"github.com/example/bookhub/internal/domain/registry"
	"github.com/example/bookhub/internal/domain/reservation"
	"github.com/example/bookhub/internal/domain/venue"
	"github.com/example/bookhub/internal/internaltypes"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is a step of the dispatch state machine.
type State string

const (
	StateReceived        State = "RECEIVED"
	StateSchemaValidated State = "SCHEMA_VALIDATED"
	StateVenueResolved   State = "VENUE_RESOLVED"
	StateAdapterInvoked  State = "ADAPTER_INVOKED"
	StatePersisted       State = "PERSISTED"
	StateFailed          State = "FAILED"
)

// Failure is returned by every dispatcher operation that ends in FAILED.
// State is the last state the call reached before failing.
type Failure struct {
	Op        string
	RequestID string
	State     State
	Err       error
}

func (f *Failure) Error() string { return f.Err.Error() }
func (f *Failure) Unwrap() error { return f.Err }

// StateOf returns the state a failed call stopped at.
func StateOf(err error) (State, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.State, true
	}
	return "", false
}

// EventPublisher receives booking lifecycle events.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Deps struct {
	Store     registry.Store
	Directory *directory.Directory
	Providers *providers.Registry
	Schema    *category.Table
	Events    EventPublisher
	// Timeout bounds every adapter call.
	Timeout time.Duration
	Log     zerolog.Logger
	Now     func() time.Time
}

type Dispatcher struct {
	store     registry.Store
	dir       *directory.Directory
	providers *providers.Registry
	schema    *category.Table
	customers *booking.CustomerValidator
	events    EventPublisher
	timeout   time.Duration
	log       zerolog.Logger
	now       func() time.Time

	// bookingLocks serialises cancels of the same booking.
	bookingLocks keyedMutex
}

func NewDispatcher(d Deps) *Dispatcher {
	if d.Schema == nil {
		d.Schema = category.DefaultTable()
	}
	if d.Directory == nil {
		d.Directory = directory.New(d.Store, d.Schema)
	}
	if d.Timeout <= 0 {
		d.Timeout = 10 * time.Second
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Dispatcher{
		store:     d.Store,
		dir:       d.Directory,
		providers: d.Providers,
		schema:    d.Schema,
		customers: booking.NewCustomerValidator(),
		events:    d.Events,
		timeout:   d.Timeout,
		log:       d.Log.With().Str("component", "dispatcher").Logger(),
		now:       d.Now,
	}
}

func (d *Dispatcher) Schema() *category.Table { return d.schema }

// call tracks one operation through the state machine.
type call struct {
	op    string
	id    string
	state State
	log   zerolog.Logger
}

func (d *Dispatcher) begin(ctx context.Context, op string) *call {
	id := RequestIDFrom(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	c := &call{op: op, id: id, state: StateReceived, log: d.log.With().Str("op", op).Str("request_id", id).Logger()}
	c.log.Debug().Str("state", string(c.state)).Msg("dispatch")
	return c
}

func (c *call) advance(s State) {
	c.state = s
	c.log.Debug().Str("state", string(s)).Msg("dispatch")
}

func (c *call) fail(err error) error {
	kind := internaltypes.KindOf(err)
	ev := c.log.Warn()
	if kind == internaltypes.KindInternal || kind == internaltypes.KindPersistenceInconsistency {
		ev = c.log.Error()
	}
	ev.Err(err).Str("state", string(StateFailed)).Str("failed_at", string(c.state)).Str("kind", string(kind)).Msg("dispatch failed")
	return &Failure{Op: c.op, RequestID: c.id, State: c.state, Err: err}
}

type requestIDKey struct{}

// WithRequestID attaches a caller-supplied request id used in logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// adapterCall bounds fn by the provider timeout and makes sure a deadline
// surfaces as ProviderTimeout even if the adapter returned the bare context
// error.
func adapterCall[T any](ctx context.Context, d *Dispatcher, provider string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	out, err := fn(ctx)
	if err == nil {
		return out, nil
	}
	var classified interface{ ErrorKind() internaltypes.Kind }
	switch {
	case errors.As(err, &classified):
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		err = internaltypes.ProviderTimeout(provider, err)
	default:
		err = internaltypes.ProviderUnavailable(provider, err)
	}
	return out, err
}

// adapter returns the provider adapter bound to the link's credentials.
func (d *Dispatcher) adapter(link venue.ProviderLink) (reservation.Adapter, error) {
	return d.providers.ResolveFor(link.Provider, link.CredentialRef)
}

func (d *Dispatcher) publish(ctx context.Context, c *call, typ string, b booking.Booking) {
	if d.events == nil {
		return
	}
	if err := d.events.PublishJSON(ctx, typ, booking.NewEvent(typ, b, d.now())); err != nil {
		c.log.Warn().Err(err).Str("event", typ).Str("booking_id", b.ID).Msg("publish booking event")
	}
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// Lock locks key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*keyedEntry{}
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
