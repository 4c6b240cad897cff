package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/secledger/internal/api"
	"github.com/dmitrijs2005/secledger/internal/common"
	"github.com/dmitrijs2005/secledger/internal/server/models"
	"github.com/dmitrijs2005/secledger/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
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

// mapError converts service errors into gRPC statuses. Internal details are
// not sent to the caller.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrorInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrorFailedPrecondition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, common.ErrorRateLimited):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *GRPCServer) Ping(ctx context.Context, req *api.PingRequest) (*api.PingResponse, error) {
	return &api.PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) GetSecurity(ctx context.Context, req *api.UsernameRequest) (*api.SecurityResponse, error) {
	rec, err := s.security.GetSecurity(ctx, req.Username)
	if err != nil {
		return nil, mapError(err)
	}
	return &api.SecurityResponse{Security: rec}, nil
}

func (s *GRPCServer) RegisterDevice(ctx context.Context, req *api.RegisterDeviceRequest) (*api.SecurityResponse, error) {
	rec, err := s.security.RegisterDevice(ctx, req.Username, req.ID, req.Name)
	if err != nil {
		return nil, mapError(err)
	}
	return &api.SecurityResponse{Security: rec}, nil
}

func (s *GRPCServer) EnrollFaceID(ctx context.Context, req *api.EnrollFaceIDRequest) (*api.MessageResponse, error) {
	return message(s.security.EnrollFaceID(ctx, req.Username, req.FaceID))
}

func (s *GRPCServer) RemoveFaceID(ctx context.Context, req *api.UsernameRequest) (*api.MessageResponse, error) {
	return message(s.security.RemoveFaceID(ctx, req.Username))
}

func (s *GRPCServer) RequestBuddy(ctx context.Context, req *api.RequestBuddyRequest) (*api.MessageResponse, error) {
	return message(s.security.RequestBuddy(ctx, req.From, req.To))
}

func (s *GRPCServer) RespondToBuddy(ctx context.Context, req *api.RespondToBuddyRequest) (*api.SecurityResponse, error) {
	rec, err := s.security.RespondToBuddy(ctx, req.To, req.From, req.Action)
	if err != nil {
		return nil, mapError(err)
	}
	return &api.SecurityResponse{Security: rec}, nil
}

func (s *GRPCServer) SetupTwoFactor(ctx context.Context, req *api.UsernameRequest) (*api.SetupTwoFactorResponse, error) {
	setup, err := s.security.SetupTwoFactor(ctx, req.Username)
	if err != nil {
		return nil, mapError(err)
	}
	return &api.SetupTwoFactorResponse{Secret: setup.Secret, OTPAuthURL: setup.OTPAuthURL, QRCode: setup.QRCode}, nil
}

func (s *GRPCServer) VerifyAndEnable(ctx context.Context, req *api.TokenRequest) (*api.MessageResponse, error) {
	return message(s.security.VerifyAndEnable(ctx, req.Username, req.Token))
}

func (s *GRPCServer) DisableTwoFactor(ctx context.Context, req *api.UsernameRequest) (*api.MessageResponse, error) {
	return message(s.security.DisableTwoFactor(ctx, req.Username))
}

func (s *GRPCServer) LoginVerify(ctx context.Context, req *api.TokenRequest) (*api.LoginVerifyResponse, error) {
	res, err := s.security.LoginVerify(ctx, req.Username, req.Token)
	if err != nil {
		return nil, mapError(err)
	}
	return &api.LoginVerifyResponse{Message: res.Message, Assertion: res.Assertion}, nil
}

func (s *GRPCServer) CheckAssertion(ctx context.Context, req *api.CheckAssertionRequest) (*api.CheckAssertionResponse, error) {
	username, err := s.security.CheckAssertion(ctx, req.Assertion)
	if err != nil {
		return nil, mapError(err)
	}
	return &api.CheckAssertionResponse{Username: username}, nil
}

func message(msg string, err error) (*api.MessageResponse, error) {
	if err != nil {
		return nil, mapError(err)
	}
	return &api.MessageResponse{Message: msg}, nil
}
