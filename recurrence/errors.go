package recurrence

import "fmt"

// ErrorKind classifies recurrence errors
type ErrorKind string

const (
	// KindInvalidRule is returned when a rule cannot be normalized into a valid one
	KindInvalidRule ErrorKind = "invalid_rule"
	// KindUnsupportedType is returned when generation meets a frequency it does not know
	KindUnsupportedType ErrorKind = "unsupported_type"
	// KindClockInput is returned when the reference instants passed to the generator are unusable
	KindClockInput ErrorKind = "clock_input"
)

// Error represents a recurrence-related error
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidRule     = &Error{Kind: KindInvalidRule, Message: "invalid recurrence rule"}
	ErrUnsupportedType = &Error{Kind: KindUnsupportedType, Message: "unsupported recurrence type"}
	ErrClockInput      = &Error{Kind: KindClockInput, Message: "invalid clock input"}
)

func invalidRule(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidRule, Message: fmt.Sprintf(format, args...)}
}
