package common

// RequestIDHeaderName is the gRPC metadata key / HTTP header carrying the
// request id assigned by the transports.
const RequestIDHeaderName = "x-request-id"

// Buddy response actions. Any action other than ActionAccept declines.
const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
)

// AppName is used as the default TOTP issuer and in log records.
const AppName = "ChatApp"
