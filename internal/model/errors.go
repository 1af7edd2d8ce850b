package model

import (
	"errors"
	"strings"
)

// Kind classifies an error. The set is closed; callers switch on it to decide
// how a failure is reported.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindSerialization
	KindStorage
	KindHasher
	KindVerify
	KindAuthFailure
	KindInvalidIdentifier
	KindExpired
	KindInvalidToken
	KindNotMember
	KindInvalidState
	KindValidation
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	KindNotFound:          "not found",
	KindConflict:          "conflict",
	KindSerialization:     "serialization error",
	KindStorage:           "storage error",
	KindHasher:            "hasher error",
	KindVerify:            "verify error",
	KindAuthFailure:       "auth failure",
	KindInvalidIdentifier: "invalid identifier",
	KindExpired:           "expired",
	KindInvalidToken:      "invalid token",
	KindNotMember:         "not a member",
	KindInvalidState:      "invalid state",
	KindValidation:        "validation error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error is the structured error emitted by the engine. Op names the operation
// that failed and Context carries free-form detail captured where it failed.
type Error struct {
	Kind    Kind
	Op      string
	Context string
	Err     error

	sentinel bool
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Context != "" {
		b.WriteString(": ")
		b.WriteString(e.Context)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind sentinel for this error's kind, so
// errors.Is(err, ErrNotFound) matches every not-found failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || !t.sentinel {
		return false
	}
	return t.Kind == e.Kind
}

func kindSentinel(k Kind) *Error {
	return &Error{Kind: k, sentinel: true}
}

// Kind sentinels
var (
	ErrNotFound          = kindSentinel(KindNotFound)
	ErrConflict          = kindSentinel(KindConflict)
	ErrSerialization     = kindSentinel(KindSerialization)
	ErrStorage           = kindSentinel(KindStorage)
	ErrHasher            = kindSentinel(KindHasher)
	ErrVerify            = kindSentinel(KindVerify)
	ErrAuthFailure       = kindSentinel(KindAuthFailure)
	ErrInvalidIdentifier = kindSentinel(KindInvalidIdentifier)
	ErrExpired           = kindSentinel(KindExpired)
	ErrInvalidToken      = kindSentinel(KindInvalidToken)
	ErrNotMember         = kindSentinel(KindNotMember)
	ErrInvalidState      = kindSentinel(KindInvalidState)
	ErrValidation        = kindSentinel(KindValidation)
)

// Domain errors, always wrapped in an *Error of the matching kind
var (
	// User errors
	ErrUserNotFound  = errors.New("user does not exist")
	ErrUsernameTaken = errors.New("username already registered")

	// Group errors
	ErrGroupNotExist  = errors.New("group does not exist")
	ErrUserNotInGroup = errors.New("user is not in group")

	// Watch-state errors
	ErrMovieAlreadyAdded = errors.New("movie already added")
	ErrNoMovies          = errors.New("no movies to vote on")
)

// E builds an *Error of the given kind.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Ef builds an *Error with a context string.
func Ef(kind Kind, op, context string, err error) *Error {
	return &Error{Kind: kind, Op: op, Context: context, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
