// Package client is the seccli side of the gRPC transport.
//
// GRPCClient wraps a connection to the secledger server and turns gRPC
// statuses back into the sentinel errors from internal/common, so callers
// match failures with errors.Is exactly as the server does. A server that
// cannot be reached is reported as ErrUnavailable.
package client
