package api

import "github.com/dmitrijs2005/secledger/internal/server/models"

type UsernameRequest struct {
	Username string `json:"username"`
}

type SecurityResponse struct {
	Security *models.UserSecurity `json:"security"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type RegisterDeviceRequest struct {
	Username string `json:"username"`
	ID       string `json:"id"`
	Name     string `json:"name"`
}

type EnrollFaceIDRequest struct {
	Username string `json:"username"`
	FaceID   string `json:"faceId"`
}

type RequestBuddyRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type RespondToBuddyRequest struct {
	To     string `json:"to"`
	From   string `json:"from"`
	Action string `json:"action"`
}

// SetupTwoFactorResponse carries the new secret, its otpauth:// URI and the
// enrollment QR code as a PNG.
type SetupTwoFactorResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
	QRCode     []byte `json:"qrCode"`
}

type TokenRequest struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

type LoginVerifyResponse struct {
	Message   string `json:"message"`
	Assertion string `json:"assertion"`
}

type CheckAssertionRequest struct {
	Assertion string `json:"assertion"`
}

type CheckAssertionResponse struct {
	Username string `json:"username"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}
