package internaltypes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind is the stable error classification reported to tool callers.
type Kind string

const (
	KindValidation               Kind = "validation"
	KindVenueNotFound            Kind = "venue_not_found"
	KindNoProviderLinked         Kind = "no_provider_linked"
	KindUnknownProvider          Kind = "unknown_provider"
	KindUnknownCategory          Kind = "unknown_category"
	KindProviderUnavailable      Kind = "provider_unavailable"
	KindProviderTimeout          Kind = "provider_timeout"
	KindPersistenceInconsistency Kind = "persistence_inconsistency"
	KindBookingNotFound          Kind = "booking_not_found"
	KindConflict                 Kind = "conflict"
	KindNotFound                 Kind = "not_found"
	KindForbidden                Kind = "forbidden"
	KindInternal                 Kind = "internal"
)

// Error is a classified error. Two *Error values match under errors.Is when
// their codes are equal, so the package-level sentinels can be used as targets.
type Error struct {
	Code    Kind
	Detail  string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = strings.ReplaceAll(string(e.Code), "_", " ")
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func (e *Error) ErrorKind() Kind { return e.Code }

var (
	ErrVenueNotFound       = &Error{Code: KindVenueNotFound}
	ErrNoProviderLinked    = &Error{Code: KindNoProviderLinked}
	ErrUnknownProvider     = &Error{Code: KindUnknownProvider}
	ErrUnknownCategory     = &Error{Code: KindUnknownCategory}
	ErrProviderUnavailable = &Error{Code: KindProviderUnavailable}
	ErrProviderTimeout     = &Error{Code: KindProviderTimeout}
	ErrBookingNotFound     = &Error{Code: KindBookingNotFound}
	ErrConflict            = &Error{Code: KindConflict}
	ErrNotFound            = &Error{Code: KindNotFound}
	ErrForbidden           = &Error{Code: KindForbidden}
)

func newf(code Kind, err error, format string, args ...any) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...), Err: err}
}

func VenueNotFound(venueID string) error {
	return &Error{Code: KindVenueNotFound, Detail: fmt.Sprintf("venue %q not found", venueID), Details: map[string]any{"venue_id": venueID}}
}

func NoProviderLinked(venueID string) error {
	return &Error{Code: KindNoProviderLinked, Detail: fmt.Sprintf("venue %q has no active provider link", venueID), Details: map[string]any{"venue_id": venueID}}
}

func UnknownProvider(name string, known []string) error {
	return &Error{
		Code:    KindUnknownProvider,
		Detail:  fmt.Sprintf("unknown provider %q", name),
		Details: map[string]any{"provider": name, "available_providers": known},
	}
}

func UnknownCategory(category string, known []string) error {
	return &Error{
		Code:    KindUnknownCategory,
		Detail:  fmt.Sprintf("unknown category %q", category),
		Details: map[string]any{"category": category, "available_categories": known},
	}
}

func ProviderUnavailable(provider string, err error) error {
	return newf(KindProviderUnavailable, err, "provider %s unavailable", provider)
}

func ProviderTimeout(provider string, err error) error {
	return newf(KindProviderTimeout, err, "provider %s timed out; upstream state unknown", provider)
}

func BookingNotFound(bookingID string) error {
	return &Error{Code: KindBookingNotFound, Detail: fmt.Sprintf("booking %q not found", bookingID), Details: map[string]any{"booking_id": bookingID}}
}

func Conflict(format string, args ...any) error {
	return newf(KindConflict, nil, format, args...)
}

func NotFound(format string, args ...any) error {
	return newf(KindNotFound, nil, format, args...)
}

func Forbidden(format string, args ...any) error {
	return newf(KindForbidden, nil, format, args...)
}

// Violation is one failed parameter check.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string { return v.Field + ": " + v.Message }

// ValidationError aggregates every violation found in one request.
type ValidationError struct {
	Violations []Violation
}

func NewValidationError(vs ...Violation) *ValidationError {
	out := make([]Violation, len(vs))
	copy(out, vs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return &ValidationError{Violations: out}
}

func Invalid(field, format string, args ...any) *ValidationError {
	return NewValidationError(Violation{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.String())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(e.Violations), strings.Join(msgs, "; "))
}

func (e *ValidationError) ErrorKind() Kind { return KindValidation }

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// ErrValidation is an errors.Is target for any *ValidationError.
var ErrValidation = &ValidationError{}

type kinded interface {
	ErrorKind() Kind
}

// KindOf classifies err. Context deadlines are reported as provider timeouts
// because the only blocking calls are upstream adapter calls.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k kinded
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindProviderTimeout
	}
	return KindInternal
}

// DetailsOf returns the structured details attached to err, if any.
func DetailsOf(err error) map[string]any {
	var d interface{ ErrorDetails() map[string]any }
	if errors.As(err, &d) {
		return d.ErrorDetails()
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return map[string]any{"violations": ve.Violations}
	}
	var e *Error
	if errors.As(err, &e) && len(e.Details) > 0 {
		return e.Details
	}
	return nil
}
