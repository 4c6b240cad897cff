// Package otpengine generates and checks RFC 6238 time-based one-time codes
// compatible with standard authenticator apps: HMAC-SHA1, 30 second steps,
// six digits.
package otpengine

import (
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	Period     = 30
	SecretSize = 20
)

// Key is a freshly issued shared secret and its otpauth:// enrollment URI.
type Key struct {
	Secret string
	URL    string
}

type Engine struct {
	issuer string
	now    func() time.Time
}

func New(issuer string) *Engine {
	return &Engine{issuer: issuer, now: time.Now}
}

// WithClock returns a copy of the engine that reads time from now.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	c := *e
	c.now = now
	return &c
}

// Generate issues a 160-bit base32 secret for account.
func (e *Engine) Generate(account string) (*Key, error) {
	k, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: account,
		Period:      Period,
		SecretSize:  SecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp key: %w", err)
	}
	return &Key{Secret: k.Secret(), URL: k.URL()}, nil
}

// Validate reports whether code matches secret in the current step or in
// any of the skew steps on either side of it. A code of the wrong length is
// simply a mismatch.
func (e *Engine) Validate(secret, code string, skew uint) (bool, error) {
	ok, err := totp.ValidateCustom(code, secret, e.now().UTC(), opts(skew))
	if errors.Is(err, otp.ErrValidateInputInvalidLength) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("validate totp code: %w", err)
	}
	return ok, nil
}

// CodeAt returns the code for secret at t.
func (e *Engine) CodeAt(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t.UTC(), opts(0))
}

func opts(skew uint) totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    Period,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}
