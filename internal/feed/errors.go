package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindUnreachable ErrorKind = "unreachable"
	KindMalformed   ErrorKind = "malformed-content"
	KindOther       ErrorKind = "other"
)

// ErrHTTPStatus is wrapped when the server answers with a non-2xx status.
var ErrHTTPStatus = errors.New("unexpected http status")

// FetchError is returned by Fetcher.Fetch for every failure.
type FetchError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a fetch error, or KindOther when err is not a *FetchError.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindOther
}

// classifyTransport maps a request or body read error to an ErrorKind.
func classifyTransport(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindUnreachable
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return KindUnreachable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindUnreachable
	}
	return KindOther
}
