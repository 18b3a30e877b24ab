// Package errors carries the typed error used across layers: a Kind for
// classification, the failing Op, and a client-safe Message.
package errors

import (
	"errors"
	"strings"
)

type Kind string

const (
	KindConfig    Kind = "config"
	KindDomain    Kind = "domain"
	KindTransport Kind = "transport"
	KindPlatform  Kind = "platform"
	KindBootstrap Kind = "bootstrap"
	KindStorage   Kind = "storage"
	KindEnvelope  Kind = "envelope"
	KindDecode    Kind = "decode"
	KindSettings  Kind = "settings"
	KindEngine    Kind = "engine"
	KindRegistry  Kind = "registry"
	KindUnknown   Kind = "unknown"
)

type Error struct {
	Kind Kind
	Op   string
	// Message is safe to return to clients.
	Message string
	Cause   error
}

// Error renders "kind op: message: cause".
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteByte(' ')
		b.WriteString(e.Op)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by Kind, and by Op when the target sets one, so
// errors.Is(err, &Error{Kind: KindEngine}) tests the class of a chain.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// Wrap attaches kind, op and message to err. A nil err stays nil and an
// already typed chain is returned as is, keeping the innermost classification.
func Wrap(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := asTyped(err); ok {
		return err
	}
	return &Error{Kind: kind, Op: op, Message: message, Cause: err}
}

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func asTyped(err error) (*Error, bool) {
	var typed *Error
	ok := errors.As(err, &typed)
	return typed, ok
}

// IsKind 判断错误链中第一个类型化错误的种类
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func KindOf(err error) Kind {
	if typed, ok := asTyped(err); ok {
		return typed.Kind
	}
	return KindUnknown
}

// MessageOf returns the client-facing message of the first typed error, or
// err.Error() when the chain has none.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	if typed, ok := asTyped(err); ok && typed.Message != "" {
		return typed.Message
	}
	return err.Error()
}
