package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	domainerrors "github.com/punkouter26/podropsquare-server/internal/errors"
)

// Kind classifies a store failure.
type Kind int

// Store failure kinds.
const (
	KindUnavailable Kind = iota
	KindTimeout
	KindConflict
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not found"
	default:
		return "unavailable"
	}
}

// Error is a store failure tagged with the operation and key involved.
type Error struct {
	Kind Kind
	Op   string // e.g. "append", "query_top_n"
	Key  string // entry id or player initials, when there is one
	Err  error
}

func (e *Error) Error() string {
	msg := "store " + e.Op
	if e.Key != "" {
		msg += " " + e.Key
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same Kind, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) && t.Op == "" {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is. They carry no Op.
var (
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrConflict    = &Error{Kind: KindConflict}
	ErrTimeout     = &Error{Kind: KindTimeout}
	ErrUnavailable = &Error{Kind: KindUnavailable}
)

// errIDExists marks an append whose row key is already taken.
var errIDExists = errors.New("id already exists")

// Wrap classifies err and tags it with op and key. It returns nil for nil and
// passes an existing *Error through unchanged.
func Wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}

	kind := KindUnavailable
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = KindTimeout
	case errors.Is(err, errIDExists), errors.Is(err, badger.ErrConflict):
		kind = KindConflict
	case errors.Is(err, badger.ErrKeyNotFound):
		kind = KindNotFound
	}
	return &Error{Kind: kind, Op: op, Key: key, Err: err}
}

// NotFound builds a KindNotFound error.
func NotFound(op, key string) error {
	return &Error{Kind: KindNotFound, Op: op, Key: key}
}

// Conflict builds a KindConflict error.
func Conflict(op, key string, cause error) error {
	return &Error{Kind: KindConflict, Op: op, Key: key, Err: cause}
}

// ToDomain converts a store error into the server's error taxonomy.
// Timeouts and outages become retryable 503s with a generic message; details
// stay in the wrapped cause for logs.
func ToDomain(err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if !errors.As(err, &se) {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "internal error")
	}
	switch se.Kind {
	case KindNotFound:
		return domainerrors.Wrap(err, domainerrors.CodeNotFound, "score not found")
	case KindTimeout:
		return domainerrors.Wrap(err, domainerrors.CodeStoreTimeout, "score store timed out, try again")
	case KindConflict:
		return domainerrors.Wrap(err, domainerrors.CodeConflict, "score id collision")
	default:
		return domainerrors.Wrap(err, domainerrors.CodeStoreUnavailable, "score store unavailable, try again")
	}
}

func opErr(op, key string, format string, args ...any) error {
	return &Error{Kind: KindUnavailable, Op: op, Key: key, Err: fmt.Errorf(format, args...)}
}
