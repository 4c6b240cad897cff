// Package services contains server-side business logic. This file implements
// SecurityService: the device registry, Face ID enrollment, the buddy pairing
// handshake and the TOTP two-factor lifecycle.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/secledger/internal/common"
	"github.com/dmitrijs2005/secledger/internal/logging"
	"github.com/dmitrijs2005/secledger/internal/server/auth"
	"github.com/dmitrijs2005/secledger/internal/server/config"
	"github.com/dmitrijs2005/secledger/internal/server/events"
	"github.com/dmitrijs2005/secledger/internal/server/metrics"
	"github.com/dmitrijs2005/secledger/internal/server/models"
	"github.com/dmitrijs2005/secledger/internal/server/otpengine"
	"github.com/dmitrijs2005/secledger/internal/server/ratelimit"
	"github.com/dmitrijs2005/secledger/internal/server/repositories/security"
)

// Confirmation messages returned by operations that do not return a record.
const (
	MsgFaceIDEnrolled   = "Face ID enrolled"
	MsgFaceIDRemoved    = "Face ID removed"
	MsgBuddyRequested   = "Buddy request sent"
	MsgTwoFactorEnabled = "2FA enabled"
	MsgTwoFactorOff     = "2FA disabled"
	MsgTwoFactorOK      = "2FA verified"
)

const (
	enrollSkew = 0
	loginSkew  = 1
)

// OTP is the one-time code engine used for 2FA.
type OTP interface {
	Generate(account string) (*otpengine.Key, error)
	Validate(secret, code string, skew uint) (bool, error)
}

// QRRenderer turns the enrollment URI into an image.
type QRRenderer interface {
	Render(content string) ([]byte, error)
}

// Dependencies are the collaborators of SecurityService. Limiter, Publisher
// and Metrics are optional.
type Dependencies struct {
	Store     security.Store
	OTP       OTP
	QR        QRRenderer
	Limiter   ratelimit.Limiter
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    logging.Logger
}

// TwoFactorSetup is the result of SetupTwoFactor. QRCode is a PNG image of
// OTPAuthURL.
type TwoFactorSetup struct {
	Secret     string
	OTPAuthURL string
	QRCode     []byte
}

// LoginResult is returned by a successful LoginVerify. Assertion is a signed
// token proving the second factor was checked.
type LoginResult struct {
	Message   string
	Assertion string
}

type SecurityService struct {
	store     security.Store
	otp       OTP
	qr        QRRenderer
	limiter   ratelimit.Limiter
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    logging.Logger

	assertionKey     []byte
	assertionTTL     time.Duration
	symmetricPairing bool
	resetOnSetup     bool
	now              func() time.Time
}

// NewSecurityService constructs a SecurityService from its collaborators and
// the server config.
func NewSecurityService(deps Dependencies, cfg *config.Config) *SecurityService {
	return &SecurityService{
		store:            deps.Store,
		otp:              deps.OTP,
		qr:               deps.QR,
		limiter:          deps.Limiter,
		publisher:        deps.Publisher,
		metrics:          deps.Metrics,
		logger:           deps.Logger.With("module", "security_service"),
		assertionKey:     []byte(cfg.SecretKey),
		assertionTTL:     cfg.AssertionTTL,
		symmetricPairing: cfg.SymmetricPairing,
		resetOnSetup:     cfg.ResetOnSetup,
		now:              time.Now,
	}
}

// GetSecurity returns the record for username, creating an empty one on
// first reference.
func (s *SecurityService) GetSecurity(ctx context.Context, username string) (rec *models.UserSecurity, err error) {
	defer s.finish(ctx, "GetSecurity", username, &err)

	if username == "" {
		return nil, errMissing("username")
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx security.Tx) error {
		rec, err = tx.GetOrCreate(ctx, username)
		return err
	})
	return rec, err
}

// RegisterDevice adds a device unless one with the same id is already
// registered, and returns the updated record.
func (s *SecurityService) RegisterDevice(ctx context.Context, username, id, name string) (rec *models.UserSecurity, err error) {
	defer s.finish(ctx, "RegisterDevice", username, &err)

	if username == "" {
		return nil, errMissing("username")
	}
	if id == "" || name == "" {
		return nil, errMissing("device id and name")
	}

	added := false
	err = s.store.WithTx(ctx, func(ctx context.Context, tx security.Tx) error {
		rec, err = tx.GetOrCreate(ctx, username)
		if err != nil {
			return err
		}
		if rec.HasDevice(id) {
			return nil
		}
		rec.Devices = append(rec.Devices, models.Device{ID: id, Name: name, AddedAt: s.now().UTC()})
		added = true
		return tx.Put(ctx, username, rec)
	})
	if err != nil {
		return nil, err
	}

	if added {
		s.logger.Info(ctx, "device registered", "username", username, "device_id", id)
		s.publish(ctx, events.Event{Type: events.DeviceRegistered, Username: username})
	}
	return rec, nil
}

// EnrollFaceID stores an opaque biometric template, replacing any previous one.
func (s *SecurityService) EnrollFaceID(ctx context.Context, username, template string) (msg string, err error) {
	defer s.finish(ctx, "EnrollFaceID", username, &err)

	if username == "" {
		return "", errMissing("username")
	}
	if template == "" {
		return "", errMissing("faceId")
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx security.Tx) error {
		rec, err := tx.GetOrCreate(ctx, username)
		if err != nil {
			return err
		}
		rec.FaceID = template
		return tx.Put(ctx, username, rec)
	})
	if err != nil {
		return "", err
	}

	s.logger.Info(ctx, "face id enrolled", "username", username)
	s.publish(ctx, events.Event{Type: events.FaceIDEnrolled, Username: username})
	return MsgFaceIDEnrolled, nil
}

// RemoveFaceID clears the biometric template. Removing an absent template
// succeeds.
func (s *SecurityService) RemoveFaceID(ctx context.Context, username string) (msg string, err error) {
	defer s.finish(ctx, "RemoveFaceID", username, &err)

	if username == "" {
		return "", errMissing("username")
	}

	removed := false
	err = s.store.WithTx(ctx, func(ctx context.Context, tx security.Tx) error {
		rec, err := tx.GetOrCreate(ctx, username)
		if err != nil || rec.FaceID == "" {
			return err
		}
		rec.FaceID = ""
		removed = true
		return tx.Put(ctx, username, rec)
	})
	if err != nil {
		return "", err
	}

	if removed {
		s.logger.Info(ctx, "face id removed", "username", username)
		s.publish(ctx, events.Event{Type: events.FaceIDRemoved, Username: username})
	}
	return MsgFaceIDRemoved, nil
}

// RequestBuddy queues a pairing request from one user to another. Both
// records are created if needed; a repeated request is a no-op.
func (s *SecurityService) RequestBuddy(ctx context.Context, from, to string) (msg string, err error) {
	defer s.finish(ctx, "RequestBuddy", from, &err)

	if from == "" || to == "" {
		return "", errMissing("from and to")
	}
	if from == to {
		return "", fmt.Errorf("%w: cannot add yourself as a buddy", common.ErrorInvalidArgument)
	}

	queued := false
	err = s.store.WithTx(ctx, func(ctx context.Context, tx security.Tx) error {
		if _, err := tx.GetOrCreate(ctx, from); err != nil {
			return err
		}
		target, err := tx.GetOrCreate(ctx, to)
		if err != nil {
			return err
		}
		if target.PendingRequestIndex(from) >= 0 {
			return nil
		}
		target.BuddyRequests = append(target.BuddyRequests, models.BuddyRequest{From: from, RequestedAt: s.now().UTC()})
		queued = true
		return tx.Put(ctx, to, target)
	})
	if err != nil {
		return "", err
	}

	if queued {
		s.logger.Info(ctx, "buddy requested", "from", from, "to", to)
		s.publish(ctx, events.Event{Type: events.BuddyRequested, Username: to, Peer: from})
	}
	return MsgBuddyRequested, nil
}

// RespondToBuddy consumes the pending request from "from" in the queue of
// "to". The "accept" action pairs the two users; any other action only drops
// the request. Returns the updated record of "to".
//
// With symmetric pairing enabled, a previous partner of either user whose
// buddy still points back at them is unpaired in the same transaction.
func (s *SecurityService) RespondToBuddy(ctx context.Context, to, from, action string) (rec *models.UserSecurity, err error) {
	defer s.finish(ctx, "RespondToBuddy", to, &err)

	if to == "" || from == "" || action == "" {
		return nil, errMissing("to, from and action")
	}
	if to == from {
		return nil, fmt.Errorf("%w: cannot pair a user with themselves", common.ErrorInvalidArgument)
	}

	accepted := action == common.ActionAccept
	var unpaired []events.Event

	err = s.store.WithTx(ctx, func(ctx context.Context, tx security.Tx) error {
		target, err := tx.GetOrCreate(ctx, to)
		if err != nil {
			return err
		}
		idx := target.PendingRequestIndex(from)
		if idx < 0 {
			return fmt.Errorf("%w: no pending buddy request from %q", common.ErrorNotFound, from)
		}
		target.BuddyRequests = slices.Delete(target.BuddyRequests, idx, idx+1)

		if !accepted {
			rec = target
			return tx.Put(ctx, to, target)
		}

		requester, err := tx.GetOrCreate(ctx, from)
		if err != nil {
			return err
		}

		if s.symmetricPairing {
			for _, side := range []struct{ self, old, next string }{
				{to, target.Buddy, from},
				{from, requester.Buddy, to},
			} {
				ev, err := s.unpair(ctx, tx, side.self, side.old, side.next)
				if err != nil {
					return err
				}
				if ev != nil {
					unpaired = append(unpaired, *ev)
				}
			}
		}

		target.Buddy = from
		requester.Buddy = to
		if err := tx.Put(ctx, to, target); err != nil {
			return err
		}
		rec = target
		return tx.Put(ctx, from, requester)
	})
	if err != nil {
		return nil, err
	}

	if accepted {
		s.logger.Info(ctx, "buddy paired", "username", to, "peer", from)
		s.publish(ctx, events.Event{Type: events.BuddyPaired, Username: to, Peer: from})
		s.publish(ctx, unpaired...)
	} else {
		s.logger.Info(ctx, "buddy request declined", "username", to, "peer", from, "action", action)
		s.publish(ctx, events.Event{Type: events.BuddyDeclined, Username: to, Peer: from})
	}
	return rec, nil
}

// unpair clears the buddy link of old when it still points at self and old
// is not the user self is about to pair with.
func (s *SecurityService) unpair(ctx context.Context, tx security.Tx, self, old, next string) (*events.Event, error) {
	if old == "" || old == next {
		return nil, nil
	}
	prev, err := tx.GetOrCreate(ctx, old)
	if err != nil {
		return nil, err
	}
	if prev.Buddy != self {
		return nil, nil
	}
	prev.Buddy = ""
	if err := tx.Put(ctx, old, prev); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "buddy unpaired", "username", old, "peer", self)
	return &events.Event{Type: events.BuddyUnpaired, Username: old, Peer: self}, nil
}

// SetupTwoFactor issues a new TOTP secret and its enrollment QR code. The
// image is rendered before anything is stored, so a rendering failure leaves
// the record untouched.
func (s *SecurityService) SetupTwoFactor(ctx context.Context, username string) (setup *TwoFactorSetup, err error) {
	defer s.finish(ctx, "SetupTwoFactor", username, &err)

	if username == "" {
		return nil, errMissing("username")
	}

	key, err := s.otp.Generate(username)
	if err != nil {
		return nil, err
	}
	png, err := s.qr.Render(key.URL)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx security.Tx) error {
		rec, err := tx.GetOrCreate(ctx, username)
		if err != nil {
			return err
		}
		rec.TwoFactorSecret = key.Secret
		if s.resetOnSetup {
			rec.TwoFactorEnabled = false
		}
		return tx.Put(ctx, username, rec)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "2fa secret issued", "username", username)
	s.publish(ctx, events.Event{Type: events.TwoFactorSetup, Username: username})
	return &TwoFactorSetup{Secret: key.Secret, OTPAuthURL: key.URL, QRCode: png}, nil
}

// VerifyAndEnable confirms enrollment with a code from the current time step
// and switches 2FA on.
func (s *SecurityService) VerifyAndEnable(ctx context.Context, username, token string) (msg string, err error) {
	defer s.finish(ctx, "VerifyAndEnable", username, &err)

	if username == "" {
		return "", errMissing("username")
	}
	if err := s.allow(ctx, username); err != nil {
		return "", err
	}

	enabled := false
	err = s.store.WithTx(ctx, func(ctx context.Context, tx security.Tx) error {
		rec, err := tx.GetOrCreate(ctx, username)
		if err != nil {
			return err
		}
		if rec.TwoFactorSecret == "" {
			return fmt.Errorf("%w: 2FA setup has not been started", common.ErrorFailedPrecondition)
		}
		ok, err := s.otp.Validate(rec.TwoFactorSecret, token, enrollSkew)
		if err != nil {
			return err
		}
		s.metrics.ObserveTOTPCheck("enroll", ok)
		if !ok {
			return common.ErrInvalidToken
		}
		if rec.TwoFactorEnabled {
			return nil
		}
		rec.TwoFactorEnabled = true
		enabled = true
		return tx.Put(ctx, username, rec)
	})
	if err != nil {
		return "", err
	}

	if enabled {
		s.logger.Info(ctx, "2fa enabled", "username", username)
		s.publish(ctx, events.Event{Type: events.TwoFactorEnabled, Username: username})
	}
	return MsgTwoFactorEnabled, nil
}

// DisableTwoFactor clears the secret and the enabled flag whatever the
// current state.
func (s *SecurityService) DisableTwoFactor(ctx context.Context, username string) (msg string, err error) {
	defer s.finish(ctx, "DisableTwoFactor", username, &err)

	if username == "" {
		return "", errMissing("username")
	}

	changed := false
	err = s.store.WithTx(ctx, func(ctx context.Context, tx security.Tx) error {
		rec, err := tx.GetOrCreate(ctx, username)
		if err != nil {
			return err
		}
		if rec.TwoFactorSecret == "" && !rec.TwoFactorEnabled {
			return nil
		}
		rec.TwoFactorSecret = ""
		rec.TwoFactorEnabled = false
		changed = true
		return tx.Put(ctx, username, rec)
	})
	if err != nil {
		return "", err
	}

	if changed {
		s.logger.Info(ctx, "2fa disabled", "username", username)
		s.publish(ctx, events.Event{Type: events.TwoFactorOff, Username: username})
	}
	return MsgTwoFactorOff, nil
}

// LoginVerify checks a login-time code, accepting one time step of clock
// skew either way. It never changes the record. On success it returns a
// signed assertion for the username.
func (s *SecurityService) LoginVerify(ctx context.Context, username, token string) (res *LoginResult, err error) {
	defer s.finish(ctx, "LoginVerify", username, &err)

	if username == "" {
		return nil, errMissing("username")
	}
	if err := s.allow(ctx, username); err != nil {
		return nil, err
	}

	var secret string
	err = s.store.WithTx(ctx, func(ctx context.Context, tx security.Tx) error {
		rec, err := tx.GetOrCreate(ctx, username)
		if err != nil {
			return err
		}
		if !rec.TwoFactorEnabled || rec.TwoFactorSecret == "" {
			return fmt.Errorf("%w: 2FA is not enabled", common.ErrorFailedPrecondition)
		}
		secret = rec.TwoFactorSecret
		return nil
	})
	if err != nil {
		return nil, err
	}

	ok, err := s.otp.Validate(secret, token, loginSkew)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTOTPCheck("login", ok)
	if !ok {
		return nil, common.ErrInvalidToken
	}

	assertion, err := auth.GenerateAssertion(username, s.assertionKey, s.assertionTTL, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "2fa login verified", "username", username)
	return &LoginResult{Message: MsgTwoFactorOK, Assertion: assertion}, nil
}

// CheckAssertion validates an assertion issued by LoginVerify and returns
// the username it was issued for.
func (s *SecurityService) CheckAssertion(ctx context.Context, assertion string) (username string, err error) {
	defer s.finish(ctx, "CheckAssertion", "", &err)

	if assertion == "" {
		return "", common.ErrInvalidToken
	}
	return auth.ParseAssertion(assertion, s.assertionKey)
}

func (s *SecurityService) allow(ctx context.Context, username string) error {
	if s.limiter == nil {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, username)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Warn(ctx, "verification attempts exhausted", "username", username)
		return common.ErrorRateLimited
	}
	s.logger.Debug(ctx, "verification attempt allowed", "username", username)
	return nil
}

func (s *SecurityService) publish(ctx context.Context, evs ...events.Event) {
	if s.publisher == nil {
		return
	}
	for _, e := range evs {
		if e.OccurredAt.IsZero() {
			e.OccurredAt = s.now().UTC()
		}
		if err := s.publisher.Publish(ctx, e); err != nil {
			s.logger.Warn(ctx, "event publish failed", "type", e.Type, "username", e.Username, "error", err)
		}
	}
}

// finish normalizes *errp to the common sentinel taxonomy, logs unexpected
// failures and records the outcome.
func (s *SecurityService) finish(ctx context.Context, op, username string, errp *error) {
	if err := *errp; err != nil && !isKnown(err) {
		s.logger.Error(ctx, "operation failed", "operation", op, "username", username, "error", err)
		*errp = fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	s.metrics.ObserveOperation(op, *errp)
}

func isKnown(err error) bool {
	for _, target := range []error{
		common.ErrorInvalidArgument,
		common.ErrorNotFound,
		common.ErrorFailedPrecondition,
		common.ErrInvalidToken,
		common.ErrTokenExpired,
		common.ErrorRateLimited,
		common.ErrorInternal,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func errMissing(what string) error {
	return fmt.Errorf("%w: %s required", common.ErrorInvalidArgument, what)
}
