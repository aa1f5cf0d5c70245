package kering

import (
	"errors"
	"fmt"
)

// Error is one occurrence of a Kind, raised where a fault is detected and
// carried up the call chain unchanged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New creates an occurrence of kind. It panics on a kind outside the tree.
func New(kind Kind, msg string) *Error {
	if !kind.Valid() {
		panic(fmt.Sprintf("kering: new occurrence of invalid kind %d", uint8(kind)))
	}
	return &Error{Kind: kind, Message: msg}
}

// Newf creates an occurrence of kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap creates an occurrence of kind that keeps cause reachable through
// errors.Is and errors.As.
func Wrap(kind Kind, cause error, msg string) *Error {
	e := New(kind, msg)
	e.Err = cause
	return e
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return e.Kind.String() + ": " + e.Message
	case e.Message == "":
		return e.Kind.String() + ": " + e.Err.Error()
	default:
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a Kind target by ancestry.
func (e *Error) Is(target error) bool {
	t, ok := target.(Kind)
	return ok && e.Kind.IsA(t)
}

// KindOf returns the kind of the outermost occurrence in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return kindInvalid, false
	}
	return e.Kind, true
}

// IsKind reports whether any occurrence in err's chain is-a kind.
func IsKind(err error, kind Kind) bool {
	return kind.Valid() && errors.Is(err, kind)
}

// Ancestry returns the names from the occurrence's kind up to the root.
// It is empty when err carries no occurrence.
func Ancestry(err error) []string {
	k, ok := KindOf(err)
	if !ok {
		return nil
	}
	out := []string{k.String()}
	for _, a := range k.Ancestors() {
		out = append(out, a.String())
	}
	return out
}
