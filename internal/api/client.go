package api

import (
	"context"

	"google.golang.org/grpc"
)

// SecurityServiceClient is the client side of SecurityServiceServer. Every
// call is sent with the JSON content-subtype.
type SecurityServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSecurityServiceClient(cc grpc.ClientConnInterface) *SecurityServiceClient {
	return &SecurityServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SecurityServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, MethodPing, in, opts)
}

func (c *SecurityServiceClient) GetSecurity(ctx context.Context, in *UsernameRequest, opts ...grpc.CallOption) (*SecurityResponse, error) {
	return invoke[SecurityResponse](ctx, c.cc, MethodGetSecurity, in, opts)
}

func (c *SecurityServiceClient) RegisterDevice(ctx context.Context, in *RegisterDeviceRequest, opts ...grpc.CallOption) (*SecurityResponse, error) {
	return invoke[SecurityResponse](ctx, c.cc, MethodRegisterDevice, in, opts)
}

func (c *SecurityServiceClient) EnrollFaceID(ctx context.Context, in *EnrollFaceIDRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	return invoke[MessageResponse](ctx, c.cc, MethodEnrollFaceID, in, opts)
}

func (c *SecurityServiceClient) RemoveFaceID(ctx context.Context, in *UsernameRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	return invoke[MessageResponse](ctx, c.cc, MethodRemoveFaceID, in, opts)
}

func (c *SecurityServiceClient) RequestBuddy(ctx context.Context, in *RequestBuddyRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	return invoke[MessageResponse](ctx, c.cc, MethodRequestBuddy, in, opts)
}

func (c *SecurityServiceClient) RespondToBuddy(ctx context.Context, in *RespondToBuddyRequest, opts ...grpc.CallOption) (*SecurityResponse, error) {
	return invoke[SecurityResponse](ctx, c.cc, MethodRespondToBuddy, in, opts)
}

func (c *SecurityServiceClient) SetupTwoFactor(ctx context.Context, in *UsernameRequest, opts ...grpc.CallOption) (*SetupTwoFactorResponse, error) {
	return invoke[SetupTwoFactorResponse](ctx, c.cc, MethodSetupTwoFactor, in, opts)
}

func (c *SecurityServiceClient) VerifyAndEnable(ctx context.Context, in *TokenRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	return invoke[MessageResponse](ctx, c.cc, MethodVerifyAndEnable, in, opts)
}

func (c *SecurityServiceClient) DisableTwoFactor(ctx context.Context, in *UsernameRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	return invoke[MessageResponse](ctx, c.cc, MethodDisableTwoFactor, in, opts)
}

func (c *SecurityServiceClient) LoginVerify(ctx context.Context, in *TokenRequest, opts ...grpc.CallOption) (*LoginVerifyResponse, error) {
	return invoke[LoginVerifyResponse](ctx, c.cc, MethodLoginVerify, in, opts)
}

func (c *SecurityServiceClient) CheckAssertion(ctx context.Context, in *CheckAssertionRequest, opts ...grpc.CallOption) (*CheckAssertionResponse, error) {
	return invoke[CheckAssertionResponse](ctx, c.cc, MethodCheckAssertion, in, opts)
}
