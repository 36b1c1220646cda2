package certificate

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound         = errors.New("not found")
	ErrViewClosed       = errors.New("certificate view closed")
	ErrNoRecipient      = errors.New("certificate owner has no email address")
	ErrDocumentCreation = errors.New("could not create the certificate document")
)

// Resources fetched to render a certificate.
const (
	ResourceCertificate = "certificate"
	ResourceCourse      = "course"
	ResourceStudent     = "student"
	ResourceInstructor  = "instructor"
	ResourceTemplate    = "template"
	ResourceScene       = "scene"
)

// FatalError is returned when a record the render cannot do without failed to load.
type FatalError struct {
	Resource string
	Err      error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Resource, e.Err)
}

func (e *FatalError) Cause() error  { return e.Err }
func (e *FatalError) Unwrap() error { return e.Err }

// NotFound reports whether the missing record is the reason for the failure.
func (e *FatalError) NotFound() bool {
	return errors.Cause(e.Err) == ErrNotFound
}

// ExportError is returned when a rendered certificate could not be exported.
type ExportError struct {
	Format string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("exporting %s: %v", e.Format, e.Err)
}

func (e *ExportError) Cause() error  { return e.Err }
func (e *ExportError) Unwrap() error { return e.Err }

// Degradation records a best-effort input the render went without.
type Degradation struct {
	Resource string `json:"resource"`
	Reason   string `json:"reason"`
}

type Outcome int

const (
	OK Outcome = iota
	Degraded
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Degraded:
		return "degraded"
	default:
		return "fatal"
	}
}

// Result is the outcome of one fetch: a value, a fallback with the reason, or a fatal error.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
}

func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v, Outcome: OK}
}

// Degrade returns a result carrying fallback in place of the value that failed to load.
func Degrade[T any](fallback T, err error) Result[T] {
	return Result[T]{Value: fallback, Outcome: Degraded, Err: err}
}

func Fail[T any](resource string, err error) Result[T] {
	return Result[T]{Outcome: Fatal, Err: &FatalError{Resource: resource, Err: err}}
}

func (r Result[T]) IsOK() bool { return r.Outcome == OK }

// Required turns a failed fetch into a fatal result.
func Required[T any](resource string, v T, err error) Result[T] {
	if err != nil {
		return Fail[T](resource, err)
	}
	return Ok(v)
}

// BestEffort turns a failed fetch into a degraded result holding fallback.
func BestEffort[T any](v T, err error, fallback T) Result[T] {
	if err != nil {
		return Degrade(fallback, err)
	}
	return Ok(v)
}

// Degradation describes a degraded result, if it is one.
func (r Result[T]) Degradation(resource string) (Degradation, bool) {
	if r.Outcome != Degraded {
		return Degradation{}, false
	}
	reason := "unavailable"
	if r.Err != nil {
		reason = r.Err.Error()
	}
	return Degradation{Resource: resource, Reason: reason}, true
}
