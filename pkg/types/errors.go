package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the mining loop can hit
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindDiscovery means the pool locator could not produce an address.
	KindDiscovery
	// KindConnect means the resolved address could not be reached.
	KindConnect
	// KindSessionIO is any read or write failure on an open connection.
	KindSessionIO
	// KindMalformedJob is a job line that does not split into exactly three fields.
	KindMalformedJob
	// KindFieldDecode is a hex or integer field that failed to decode and was defaulted.
	KindFieldDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindDiscovery:
		return "discovery"
	case KindConnect:
		return "connect"
	case KindSessionIO:
		return "session-io"
	case KindMalformedJob:
		return "malformed-job"
	case KindFieldDecode:
		return "field-decode"
	default:
		return "unknown"
	}
}

// Error carries the failure category together with the operation that failed
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError wraps err with a kind and operation name
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
