package client

import "errors"

var ErrUnavailable = errors.New("server unavailable")

// remoteError keeps the server's message while matching a local sentinel.
type remoteError struct {
	kind error
	msg  string
}

func (e *remoteError) Error() string { return e.msg }

func (e *remoteError) Unwrap() error { return e.kind }
