package failure

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/edekker/vigil/pkg/models"
)

// ErrCircuitOpen is returned when a circuit breaker rejects a call while
// open. Callers can tell "blocked by breaker" apart from "operation failed"
// with errors.Is.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ClassifiedError attaches an explicit name, category, and severity to an
// error so the handler can select a strategy without guessing.
type ClassifiedError struct {
	// Name is the error name matched against retryable/non-retryable lists,
	// e.g. "TimeoutError".
	Name string
	// Category is the functional area of the failure.
	Category models.Category
	// Severity ranks the failure.
	Severity models.Severity
	// Message is the human-readable description.
	Message string

	cause error
}

// NewError creates a classified error with no underlying cause.
func NewError(name string, category models.Category, severity models.Severity, message string) *ClassifiedError {
	return &ClassifiedError{
		Name:     name,
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap classifies an existing error, keeping it available via Unwrap.
func Wrap(err error, name string, category models.Category, severity models.Severity) *ClassifiedError {
	var message string
	if err != nil {
		message = err.Error()
	}
	return &ClassifiedError{
		Name:     name,
		Category: category,
		Severity: severity,
		Message:  message,
		cause:    err,
	}
}

// Error returns the message, falling back to the name.
func (e *ClassifiedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Name
}

// Unwrap returns the underlying cause, if any.
func (e *ClassifiedError) Unwrap() error {
	return e.cause
}

// classification is the handler's interpretation of one error.
type classification struct {
	Name     string
	Category models.Category
	Severity models.Severity
}

// classify extracts name, category, and severity from an error. Errors
// without explicit classification default to functional/error.
func classify(err error) classification {
	cls := classification{
		Name:     errorName(err),
		Category: models.CategoryFunctional,
		Severity: models.SeverityError,
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		if ce.Category != "" {
			cls.Category = ce.Category
		}
		if ce.Severity != "" {
			cls.Severity = ce.Severity
		}
	}
	return cls
}

// errorName derives the name used for retryability matching. Explicitly
// classified errors win; otherwise common timeout/connection/network shapes
// are recognized from the error chain and message, and anything else falls
// back to the concrete Go type name.
func errorName(err error) string {
	if err == nil {
		return ""
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) && ce.Name != "" {
		return ce.Name
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "TimeoutError"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") || strings.Contains(msg, "deadline exceeded"):
		return "TimeoutError"
	case strings.Contains(msg, "connection"):
		return "ConnectionError"
	case strings.Contains(msg, "network") || strings.Contains(msg, "unreachable") || strings.Contains(msg, "no such host"):
		return "NetworkError"
	}

	return typeName(err)
}

func typeName(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "Error"
	}
	return t.Name()
}
