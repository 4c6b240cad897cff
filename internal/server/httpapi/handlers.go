package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/secledger/internal/common"
	"github.com/dmitrijs2005/secledger/internal/logging"
	"github.com/dmitrijs2005/secledger/internal/server/models"
	"github.com/dmitrijs2005/secledger/internal/server/qr"
	"github.com/dmitrijs2005/secledger/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type securitySvc interface {
	GetSecurity(ctx context.Context, username string) (*models.UserSecurity, error)
	RegisterDevice(ctx context.Context, username, id, name string) (*models.UserSecurity, error)
	EnrollFaceID(ctx context.Context, username, template string) (string, error)
	RemoveFaceID(ctx context.Context, username string) (string, error)
	RequestBuddy(ctx context.Context, from, to string) (string, error)
	RespondToBuddy(ctx context.Context, to, from, action string) (*models.UserSecurity, error)
	SetupTwoFactor(ctx context.Context, username string) (*services.TwoFactorSetup, error)
	VerifyAndEnable(ctx context.Context, username, token string) (string, error)
	DisableTwoFactor(ctx context.Context, username string) (string, error)
	LoginVerify(ctx context.Context, username, token string) (*services.LoginResult, error)
	CheckAssertion(ctx context.Context, assertion string) (string, error)
}

type handler struct {
	security securitySvc
	logger   logging.Logger
}

type deviceRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type faceIDRequest struct {
	FaceID string `json:"faceId"`
}

type buddyRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type buddyResponse struct {
	To     string `json:"to"`
	From   string `json:"from"`
	Action string `json:"action"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type assertionRequest struct {
	Assertion string `json:"assertion"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type setupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
	QRCode     string `json:"qrCode"`
}

type loginResponse struct {
	Message   string `json:"message"`
	Assertion string `json:"assertion"`
}

func (h *handler) getSecurity(w http.ResponseWriter, r *http.Request) {
	rec, err := h.security.GetSecurity(r.Context(), chi.URLParam(r, "username"))
	h.respond(w, r, rec, err, statusFor)
}

func (h *handler) registerDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := h.security.RegisterDevice(r.Context(), chi.URLParam(r, "username"), req.ID, req.Name)
	h.respond(w, r, rec, err, statusFor)
}

func (h *handler) enrollFaceID(w http.ResponseWriter, r *http.Request) {
	var req faceIDRequest
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.security.EnrollFaceID(r.Context(), chi.URLParam(r, "username"), req.FaceID)
	h.respond(w, r, messageResponse{Message: msg}, err, statusFor)
}

func (h *handler) removeFaceID(w http.ResponseWriter, r *http.Request) {
	msg, err := h.security.RemoveFaceID(r.Context(), chi.URLParam(r, "username"))
	h.respond(w, r, messageResponse{Message: msg}, err, statusFor)
}

func (h *handler) requestBuddy(w http.ResponseWriter, r *http.Request) {
	var req buddyRequest
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.security.RequestBuddy(r.Context(), req.From, req.To)
	h.respond(w, r, messageResponse{Message: msg}, err, statusFor)
}

func (h *handler) respondToBuddy(w http.ResponseWriter, r *http.Request) {
	var req buddyResponse
	if !decode(w, r, &req) {
		return
	}
	rec, err := h.security.RespondToBuddy(r.Context(), req.To, req.From, req.Action)
	h.respond(w, r, rec, err, statusFor)
}

func (h *handler) setupTwoFactor(w http.ResponseWriter, r *http.Request) {
	setup, err := h.security.SetupTwoFactor(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.respond(w, r, nil, err, statusFor)
		return
	}
	writeJSON(w, http.StatusOK, setupResponse{
		Secret:     setup.Secret,
		OTPAuthURL: setup.OTPAuthURL,
		QRCode:     qr.DataURI(setup.QRCode),
	})
}

func (h *handler) verifyAndEnable(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.security.VerifyAndEnable(r.Context(), chi.URLParam(r, "username"), req.Token)
	h.respond(w, r, messageResponse{Message: msg}, err, verifyStatus)
}

func (h *handler) disableTwoFactor(w http.ResponseWriter, r *http.Request) {
	msg, err := h.security.DisableTwoFactor(r.Context(), chi.URLParam(r, "username"))
	h.respond(w, r, messageResponse{Message: msg}, err, statusFor)
}

func (h *handler) loginVerify(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.security.LoginVerify(r.Context(), chi.URLParam(r, "username"), req.Token)
	if err != nil {
		h.respond(w, r, nil, err, statusFor)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Message: res.Message, Assertion: res.Assertion})
}

func (h *handler) checkAssertion(w http.ResponseWriter, r *http.Request) {
	var req assertionRequest
	if !decode(w, r, &req) {
		return
	}
	username, err := h.security.CheckAssertion(r.Context(), req.Assertion)
	h.respond(w, r, map[string]string{"username": username}, err, statusFor)
}

func (h *handler) respond(w http.ResponseWriter, r *http.Request, body any, err error, status func(error) int) {
	if err == nil {
		writeJSON(w, http.StatusOK, body)
		return
	}

	code := status(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeJSON(w, code, messageResponse{Message: msg})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorInvalidArgument), errors.Is(err, common.ErrorFailedPrecondition):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// verifyStatus reports a wrong enrollment code as a bad request rather than
// an authentication failure.
func verifyStatus(err error) int {
	if errors.Is(err, common.ErrInvalidToken) {
		return http.StatusBadRequest
	}
	return statusFor(err)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
