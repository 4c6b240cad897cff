// Package common defines shared constants and sentinel errors used across
// the secledger server and CLI. Callers should use errors.Is to match these
// values; services wrap them with context via fmt.Errorf("%w: ...").
package common

import "errors"

var (
	// Validation errors (missing or malformed required fields).
	ErrorInvalidArgument = errors.New("invalid argument")

	// Referenced entity is absent (e.g. a pending buddy request).
	ErrorNotFound = errors.New("not found")

	// A 2FA operation attempted in the wrong lifecycle state.
	ErrorFailedPrecondition = errors.New("failed precondition")

	// Service-level errors.
	ErrorInternal    = errors.New("internal error")
	ErrorRateLimited = errors.New("too many attempts")

	// One-time code and assertion errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
