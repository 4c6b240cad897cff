package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/secledger/internal/common"
	"github.com/dmitrijs2005/secledger/internal/logging"
	"github.com/dmitrijs2005/secledger/internal/server/auth"
	"github.com/dmitrijs2005/secledger/internal/server/config"
	"github.com/dmitrijs2005/secledger/internal/server/events"
	"github.com/dmitrijs2005/secledger/internal/server/metrics"
	"github.com/dmitrijs2005/secledger/internal/server/models"
	"github.com/dmitrijs2005/secledger/internal/server/otpengine"
	"github.com/dmitrijs2005/secledger/internal/server/qr"
	"github.com/dmitrijs2005/secledger/internal/server/ratelimit"
	"github.com/dmitrijs2005/secledger/internal/server/repositories/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type failingQR struct{}

func (failingQR) Render(string) ([]byte, error) { return nil, errors.New("renderer down") }

type denyLimiter struct{ err error }

func (l denyLimiter) Allow(context.Context, string) (bool, error) { return false, l.err }

type failingStore struct{ err error }

func (s failingStore) WithTx(context.Context, func(context.Context, security.Tx) error) error {
	return s.err
}
func (s failingStore) Close() error { return nil }

type fixture struct {
	svc       *SecurityService
	store     *security.DocumentStore
	engine    *otpengine.Engine
	publisher *recordingPublisher
	metrics   *metrics.Metrics
	now       time.Time
}

func newFixture(t *testing.T, mutate ...func(*config.Config, *Dependencies)) *fixture {
	t.Helper()

	f := &fixture{
		store:     security.NewDocumentStore(security.NewMemoryBackend(), ""),
		publisher: &recordingPublisher{},
		metrics:   metrics.New(),
		now:       time.Now().UTC().Truncate(otpengine.Period * time.Second).Add(-20 * time.Second),
	}
	clock := func() time.Time { return f.now }
	f.engine = otpengine.New("ChatApp").WithClock(clock)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	deps := Dependencies{
		Store:     f.store,
		OTP:       f.engine,
		QR:        qr.NewRenderer(64),
		Publisher: f.publisher,
		Metrics:   f.metrics,
		Logger:    logging.NewDiscardLogger(),
	}
	for _, m := range mutate {
		m(cfg, &deps)
	}

	f.svc = NewSecurityService(deps, cfg)
	f.svc.now = clock
	return f
}

func (f *fixture) code(t *testing.T, secret string, steps int) string {
	t.Helper()
	c, err := f.engine.CodeAt(secret, f.now.Add(time.Duration(steps)*otpengine.Period*time.Second))
	require.NoError(t, err)
	return c
}

func (f *fixture) get(t *testing.T, username string) *models.UserSecurity {
	t.Helper()
	rec, err := f.svc.GetSecurity(context.Background(), username)
	require.NoError(t, err)
	return rec
}

func (f *fixture) enable(t *testing.T, username string) string {
	t.Helper()
	setup, err := f.svc.SetupTwoFactor(context.Background(), username)
	require.NoError(t, err)
	_, err = f.svc.VerifyAndEnable(context.Background(), username, f.code(t, setup.Secret, 0))
	require.NoError(t, err)
	return setup.Secret
}

// --- device registry ---

func TestGetSecurity_UnseenUserIsEmpty(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "newbie")
	assert.Empty(t, rec.Devices)
	assert.Empty(t, rec.Buddy)
	assert.Empty(t, rec.BuddyRequests)
	assert.Empty(t, rec.FaceID)
	assert.Empty(t, rec.TwoFactorSecret)
	assert.False(t, rec.TwoFactorEnabled)

	_, err := f.svc.GetSecurity(context.Background(), "")
	assert.ErrorIs(t, err, common.ErrorInvalidArgument)
}

func TestRegisterDevice_IdempotentByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.svc.RegisterDevice(ctx, "alice", "d1", "phone")
	require.NoError(t, err)
	require.Len(t, rec.Devices, 1)
	assert.Equal(t, models.Device{ID: "d1", Name: "phone", AddedAt: f.now}, rec.Devices[0])

	rec, err = f.svc.RegisterDevice(ctx, "alice", "d1", "renamed")
	require.NoError(t, err)
	require.Len(t, rec.Devices, 1)
	assert.Equal(t, "phone", rec.Devices[0].Name)

	rec, err = f.svc.RegisterDevice(ctx, "alice", "d2", "laptop")
	require.NoError(t, err)
	assert.Len(t, rec.Devices, 2)

	assert.Equal(t, []string{events.DeviceRegistered, events.DeviceRegistered}, f.publisher.types())
}

func TestRegisterDevice_Validation(t *testing.T) {
	f := newFixture(t)

	for _, tc := range [][3]string{{"alice", "", "phone"}, {"alice", "d1", ""}, {"", "d1", "phone"}} {
		_, err := f.svc.RegisterDevice(context.Background(), tc[0], tc[1], tc[2])
		assert.ErrorIs(t, err, common.ErrorInvalidArgument, "%v", tc)
	}
	assert.Empty(t, f.get(t, "alice").Devices)
}

func TestRegisterDevice_ConcurrentUsersAllSurvive(t *testing.T) {
	f := newFixture(t)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.RegisterDevice(context.Background(), fmt.Sprintf("user%d", i), "d", "phone")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.Len(t, f.get(t, fmt.Sprintf("user%d", i)).Devices, 1)
	}
}

// --- face id ---

func TestFaceID_EnrollAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.EnrollFaceID(ctx, "alice", "")
	assert.ErrorIs(t, err, common.ErrorInvalidArgument)

	msg, err := f.svc.EnrollFaceID(ctx, "alice", "dGVtcGxhdGU=")
	require.NoError(t, err)
	assert.Equal(t, MsgFaceIDEnrolled, msg)
	assert.Equal(t, "dGVtcGxhdGU=", f.get(t, "alice").FaceID)

	for i := 0; i < 2; i++ {
		msg, err = f.svc.RemoveFaceID(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, MsgFaceIDRemoved, msg)
	}
	assert.Empty(t, f.get(t, "alice").FaceID)
	assert.Equal(t, []string{events.FaceIDEnrolled, events.FaceIDRemoved}, f.publisher.types())
}

// --- buddy pairing ---

func TestRequestBuddy_Deduplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		msg, err := f.svc.RequestBuddy(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, MsgBuddyRequested, msg)
	}

	bob := f.get(t, "bob")
	require.Len(t, bob.BuddyRequests, 1)
	assert.Equal(t, models.BuddyRequest{From: "alice", RequestedAt: f.now}, bob.BuddyRequests[0])
	assert.Equal(t, []string{events.BuddyRequested}, f.publisher.types())
}

func TestRequestBuddy_Validation(t *testing.T) {
	f := newFixture(t)
	for _, tc := range [][2]string{{"", "bob"}, {"alice", ""}, {"alice", "alice"}} {
		_, err := f.svc.RequestBuddy(context.Background(), tc[0], tc[1])
		assert.ErrorIs(t, err, common.ErrorInvalidArgument, "%v", tc)
	}
}

func TestRequestBuddy_MultipleOutgoingAllowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestBuddy(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = f.svc.RequestBuddy(ctx, "alice", "carol")
	require.NoError(t, err)
	_, err = f.svc.RequestBuddy(ctx, "bob", "alice")
	require.NoError(t, err)

	assert.Len(t, f.get(t, "bob").BuddyRequests, 1)
	assert.Len(t, f.get(t, "carol").BuddyRequests, 1)
	assert.Len(t, f.get(t, "alice").BuddyRequests, 1)
}

func TestRespondToBuddy_Accept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestBuddy(ctx, "alice", "bob")
	require.NoError(t, err)

	bob, err := f.svc.RespondToBuddy(ctx, "bob", "alice", common.ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, "alice", bob.Buddy)
	assert.Empty(t, bob.BuddyRequests)

	assert.Equal(t, "alice", f.get(t, "bob").Buddy)
	assert.Equal(t, "bob", f.get(t, "alice").Buddy)

	_, err = f.svc.RespondToBuddy(ctx, "bob", "alice", common.ActionAccept)
	assert.ErrorIs(t, err, common.ErrorNotFound, "request is consumed exactly once")
}

func TestRespondToBuddy_Decline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestBuddy(ctx, "alice", "bob")
	require.NoError(t, err)

	bob, err := f.svc.RespondToBuddy(ctx, "bob", "alice", "whatever")
	require.NoError(t, err)
	assert.Empty(t, bob.Buddy)
	assert.Empty(t, bob.BuddyRequests)
	assert.Empty(t, f.get(t, "alice").Buddy)
	assert.Equal(t, []string{events.BuddyRequested, events.BuddyDeclined}, f.publisher.types())
}

func TestRespondToBuddy_NotFoundMutatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.RequestBuddy(ctx, "carol", "bob")
	require.NoError(t, err)

	_, err = f.svc.RespondToBuddy(ctx, "bob", "alice", common.ActionAccept)
	require.ErrorIs(t, err, common.ErrorNotFound)

	bob := f.get(t, "bob")
	assert.Len(t, bob.BuddyRequests, 1)
	assert.Empty(t, bob.Buddy)

	_, err = f.svc.RespondToBuddy(ctx, "ghost", "alice", common.ActionAccept)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRespondToBuddy_Validation(t *testing.T) {
	f := newFixture(t)
	for _, tc := range [][3]string{{"", "a", "accept"}, {"b", "", "accept"}, {"b", "a", ""}, {"b", "b", "accept"}} {
		_, err := f.svc.RespondToBuddy(context.Background(), tc[0], tc[1], tc[2])
		assert.ErrorIs(t, err, common.ErrorInvalidArgument, "%v", tc)
	}
}

func pair(t *testing.T, f *fixture, a, b string) {
	t.Helper()
	_, err := f.svc.RequestBuddy(context.Background(), a, b)
	require.NoError(t, err)
	_, err = f.svc.RespondToBuddy(context.Background(), b, a, common.ActionAccept)
	require.NoError(t, err)
}

func TestRespondToBuddy_SymmetricClearsDisplacedPartners(t *testing.T) {
	f := newFixture(t)
	pair(t, f, "alice", "bob")
	pair(t, f, "carol", "dave")

	pair(t, f, "alice", "carol")

	assert.Equal(t, "carol", f.get(t, "alice").Buddy)
	assert.Equal(t, "alice", f.get(t, "carol").Buddy)
	assert.Empty(t, f.get(t, "bob").Buddy)
	assert.Empty(t, f.get(t, "dave").Buddy)

	var unpaired []events.Event
	for _, e := range f.publisher.events {
		if e.Type == events.BuddyUnpaired {
			unpaired = append(unpaired, e)
		}
	}
	require.Len(t, unpaired, 2)
	assert.ElementsMatch(t, []string{"bob", "dave"}, []string{unpaired[0].Username, unpaired[1].Username})
}

func TestRespondToBuddy_LegacyOverwriteLeavesStaleLinks(t *testing.T) {
	f := newFixture(t, func(c *config.Config, _ *Dependencies) { c.SymmetricPairing = false })
	pair(t, f, "alice", "bob")
	pair(t, f, "alice", "carol")

	assert.Equal(t, "carol", f.get(t, "alice").Buddy)
	assert.Equal(t, "alice", f.get(t, "bob").Buddy, "old partner keeps a stale link")
}

func TestRespondToBuddy_RepairingSamePairKeepsLinks(t *testing.T) {
	f := newFixture(t)
	pair(t, f, "alice", "bob")
	pair(t, f, "bob", "alice")

	assert.Equal(t, "bob", f.get(t, "alice").Buddy)
	assert.Equal(t, "alice", f.get(t, "bob").Buddy)
}

// --- two-factor lifecycle ---

func TestSetupTwoFactor(t *testing.T) {
	f := newFixture(t)

	setup, err := f.svc.SetupTwoFactor(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, setup.Secret, 32)
	assert.Contains(t, setup.OTPAuthURL, "otpauth://totp/ChatApp:alice")
	assert.Equal(t, []byte("\x89PNG"), setup.QRCode[:4])

	rec := f.get(t, "alice")
	assert.Equal(t, setup.Secret, rec.TwoFactorSecret)
	assert.False(t, rec.TwoFactorEnabled)
}

func TestSetupTwoFactor_RenderFailureLeavesNoSecret(t *testing.T) {
	f := newFixture(t, func(_ *config.Config, d *Dependencies) { d.QR = failingQR{} })

	_, err := f.svc.SetupTwoFactor(context.Background(), "alice")
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.Empty(t, f.get(t, "alice").TwoFactorSecret)
	assert.Empty(t, f.publisher.types())
}

func TestSetupTwoFactor_ResetOnSetup(t *testing.T) {
	f := newFixture(t)
	f.enable(t, "alice")

	_, err := f.svc.SetupTwoFactor(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, f.get(t, "alice").TwoFactorEnabled)

	legacy := newFixture(t, func(c *config.Config, _ *Dependencies) { c.ResetOnSetup = false })
	legacy.enable(t, "alice")
	_, err = legacy.svc.SetupTwoFactor(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, legacy.get(t, "alice").TwoFactorEnabled)
}

func TestVerifyAndEnable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.VerifyAndEnable(ctx, "alice", "123456")
	require.ErrorIs(t, err, common.ErrorFailedPrecondition)

	setup, err := f.svc.SetupTwoFactor(ctx, "alice")
	require.NoError(t, err)

	_, err = f.svc.VerifyAndEnable(ctx, "alice", "000000")
	if f.code(t, setup.Secret, 0) != "000000" {
		require.ErrorIs(t, err, common.ErrInvalidToken)
		assert.False(t, f.get(t, "alice").TwoFactorEnabled)
	}

	_, err = f.svc.VerifyAndEnable(ctx, "alice", f.code(t, setup.Secret, -1))
	require.ErrorIs(t, err, common.ErrInvalidToken, "no skew while enrolling")

	msg, err := f.svc.VerifyAndEnable(ctx, "alice", f.code(t, setup.Secret, 0))
	require.NoError(t, err)
	assert.Equal(t, MsgTwoFactorEnabled, msg)
	assert.True(t, f.get(t, "alice").TwoFactorEnabled)
	assert.Contains(t, f.publisher.types(), events.TwoFactorEnabled)
}

func TestDisableTwoFactor_ThenLoginFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	secret := f.enable(t, "alice")

	for i := 0; i < 2; i++ {
		msg, err := f.svc.DisableTwoFactor(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, MsgTwoFactorOff, msg)
	}

	rec := f.get(t, "alice")
	assert.Empty(t, rec.TwoFactorSecret)
	assert.False(t, rec.TwoFactorEnabled)

	_, err := f.svc.LoginVerify(ctx, "alice", f.code(t, secret, 0))
	assert.ErrorIs(t, err, common.ErrorFailedPrecondition)
}

func TestLoginVerify_SkewWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	secret := f.enable(t, "alice")

	for _, steps := range []int{-1, 0, 1} {
		res, err := f.svc.LoginVerify(ctx, "alice", f.code(t, secret, steps))
		require.NoError(t, err, "steps=%d", steps)
		assert.Equal(t, MsgTwoFactorOK, res.Message)

		username, err := auth.ParseAssertion(res.Assertion, []byte("secretKey"))
		require.NoError(t, err)
		assert.Equal(t, "alice", username)
	}

	for _, steps := range []int{-2, 2} {
		_, err := f.svc.LoginVerify(ctx, "alice", f.code(t, secret, steps))
		assert.ErrorIs(t, err, common.ErrInvalidToken, "steps=%d", steps)
	}

	assert.True(t, f.get(t, "alice").TwoFactorEnabled, "login verification never mutates state")
}

func TestLoginVerify_NotEnabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.LoginVerify(ctx, "alice", "123456")
	require.ErrorIs(t, err, common.ErrorFailedPrecondition)

	_, err = f.svc.SetupTwoFactor(ctx, "alice")
	require.NoError(t, err)
	_, err = f.svc.LoginVerify(ctx, "alice", "123456")
	require.ErrorIs(t, err, common.ErrorFailedPrecondition, "secret issued but not confirmed")
}

func TestVerifyAttempts_AreLimited(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(2)
	f := newFixture(t, func(_ *config.Config, d *Dependencies) { d.Limiter = limiter })
	ctx := context.Background()

	_, err := f.svc.SetupTwoFactor(ctx, "alice")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = f.svc.VerifyAndEnable(ctx, "alice", "abc")
		require.ErrorIs(t, err, common.ErrInvalidToken)
	}
	_, err = f.svc.VerifyAndEnable(ctx, "alice", "abc")
	require.ErrorIs(t, err, common.ErrorRateLimited)

	_, err = f.svc.LoginVerify(ctx, "alice", "abc")
	require.ErrorIs(t, err, common.ErrorRateLimited, "login shares the per-user budget")

	_, err = f.svc.VerifyAndEnable(ctx, "bob", "abc")
	require.ErrorIs(t, err, common.ErrorFailedPrecondition, "other users are unaffected")
}

func TestVerifyAttempts_DecisionsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewJSONLogger(&buf, slog.LevelDebug)
	f := newFixture(t, func(_ *config.Config, d *Dependencies) {
		d.Limiter = ratelimit.NewMemoryLimiter(1)
		d.Logger = logger
	})
	ctx := context.Background()

	_, err := f.svc.SetupTwoFactor(ctx, "alice")
	require.NoError(t, err)
	_, _ = f.svc.VerifyAndEnable(ctx, "alice", "abc")
	_, _ = f.svc.VerifyAndEnable(ctx, "alice", "abc")

	out := buf.String()
	assert.Contains(t, out, `"level":"DEBUG"`)
	assert.Contains(t, out, "verification attempt allowed")
	assert.Contains(t, out, "verification attempts exhausted")
	assert.NotContains(t, out, `"abc"`, "codes are never logged")
}

func TestVerify_LimiterErrorIsInternal(t *testing.T) {
	f := newFixture(t, func(_ *config.Config, d *Dependencies) { d.Limiter = denyLimiter{err: errors.New("redis down")} })

	_, err := f.svc.LoginVerify(context.Background(), "alice", "123456")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestCheckAssertion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	secret := f.enable(t, "alice")

	res, err := f.svc.LoginVerify(ctx, "alice", f.code(t, secret, 0))
	require.NoError(t, err)

	username, err := f.svc.CheckAssertion(ctx, res.Assertion)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	_, err = f.svc.CheckAssertion(ctx, "")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	_, err = f.svc.CheckAssertion(ctx, "garbage")
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	f.svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, err := f.svc.LoginVerify(ctx, "alice", f.code(t, secret, 0))
	require.NoError(t, err)
	_, err = f.svc.CheckAssertion(ctx, old.Assertion)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

// --- ambient behaviour ---

func TestStoreFailuresBecomeInternal(t *testing.T) {
	f := newFixture(t, func(_ *config.Config, d *Dependencies) { d.Store = failingStore{err: errors.New("disk full")} })

	_, err := f.svc.RegisterDevice(context.Background(), "alice", "d1", "phone")
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.Contains(t, err.Error(), "disk full")

	f = newFixture(t, func(_ *config.Config, d *Dependencies) { d.Store = failingStore{err: context.Canceled} })
	_, err = f.svc.GetSecurity(context.Background(), "alice")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, common.ErrorInternal)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	_, err := f.svc.RegisterDevice(context.Background(), "alice", "d1", "phone")
	require.NoError(t, err)
	assert.Len(t, f.get(t, "alice").Devices, 1)
}

func TestOptionalCollaboratorsMayBeNil(t *testing.T) {
	f := newFixture(t, func(_ *config.Config, d *Dependencies) {
		d.Publisher = nil
		d.Metrics = nil
		d.Limiter = nil
	})
	secret := f.enable(t, "alice")
	_, err := f.svc.LoginVerify(context.Background(), "alice", f.code(t, secret, 0))
	require.NoError(t, err)
}
