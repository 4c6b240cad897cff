package client

import (
	"context"

	"github.com/dmitrijs2005/secledger/internal/api"
	"github.com/dmitrijs2005/secledger/internal/common"
	"github.com/dmitrijs2005/secledger/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      *api.SecurityServiceClient
}

// NewGRPCClient prepares a connection to endpointURL. The connection is
// established lazily on the first call. Extra options are appended to the
// defaults.
func NewGRPCClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)

	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPCClient{
		endpointURL: endpointURL,
		conn:        conn,
		client:      api.NewSecurityServiceClient(conn),
	}, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	_, err := s.client.Ping(ctx, &api.PingRequest{})
	return s.mapError(err)
}

func (s *GRPCClient) GetSecurity(ctx context.Context, username string) (*models.UserSecurity, error) {
	resp, err := s.client.GetSecurity(ctx, &api.UsernameRequest{Username: username})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Security, nil
}

func (s *GRPCClient) RegisterDevice(ctx context.Context, username, id, name string) (*models.UserSecurity, error) {
	resp, err := s.client.RegisterDevice(ctx, &api.RegisterDeviceRequest{Username: username, ID: id, Name: name})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Security, nil
}

func (s *GRPCClient) EnrollFaceID(ctx context.Context, username, faceID string) (string, error) {
	resp, err := s.client.EnrollFaceID(ctx, &api.EnrollFaceIDRequest{Username: username, FaceID: faceID})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.Message, nil
}

func (s *GRPCClient) RemoveFaceID(ctx context.Context, username string) (string, error) {
	resp, err := s.client.RemoveFaceID(ctx, &api.UsernameRequest{Username: username})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.Message, nil
}

func (s *GRPCClient) RequestBuddy(ctx context.Context, from, to string) (string, error) {
	resp, err := s.client.RequestBuddy(ctx, &api.RequestBuddyRequest{From: from, To: to})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.Message, nil
}

func (s *GRPCClient) RespondToBuddy(ctx context.Context, to, from, action string) (*models.UserSecurity, error) {
	resp, err := s.client.RespondToBuddy(ctx, &api.RespondToBuddyRequest{To: to, From: from, Action: action})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Security, nil
}

func (s *GRPCClient) SetupTwoFactor(ctx context.Context, username string) (*api.SetupTwoFactorResponse, error) {
	resp, err := s.client.SetupTwoFactor(ctx, &api.UsernameRequest{Username: username})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) VerifyAndEnable(ctx context.Context, username, token string) (string, error) {
	resp, err := s.client.VerifyAndEnable(ctx, &api.TokenRequest{Username: username, Token: token})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.Message, nil
}

func (s *GRPCClient) DisableTwoFactor(ctx context.Context, username string) (string, error) {
	resp, err := s.client.DisableTwoFactor(ctx, &api.UsernameRequest{Username: username})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.Message, nil
}

func (s *GRPCClient) LoginVerify(ctx context.Context, username, token string) (*api.LoginVerifyResponse, error) {
	resp, err := s.client.LoginVerify(ctx, &api.TokenRequest{Username: username, Token: token})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) CheckAssertion(ctx context.Context, assertion string) (string, error) {
	resp, err := s.client.CheckAssertion(ctx, &api.CheckAssertionRequest{Assertion: assertion})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.Username, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	var kind error
	switch st.Code() {
	case codes.Unavailable:
		kind = ErrUnavailable
	case codes.InvalidArgument:
		kind = common.ErrorInvalidArgument
	case codes.NotFound:
		kind = common.ErrorNotFound
	case codes.FailedPrecondition:
		kind = common.ErrorFailedPrecondition
	case codes.Unauthenticated:
		kind = common.ErrInvalidToken
		if st.Message() == common.ErrTokenExpired.Error() {
			kind = common.ErrTokenExpired
		}
	case codes.ResourceExhausted:
		kind = common.ErrorRateLimited
	case codes.DeadlineExceeded:
		kind = context.DeadlineExceeded
	case codes.Canceled:
		kind = context.Canceled
	default:
		kind = common.ErrorInternal
	}
	return &remoteError{kind: kind, msg: st.Message()}
}
