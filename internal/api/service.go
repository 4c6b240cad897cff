package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "secledger.SecurityService"

// Full method names, as seen by interceptors.
const (
	MethodPing             = "/" + ServiceName + "/Ping"
	MethodGetSecurity      = "/" + ServiceName + "/GetSecurity"
	MethodRegisterDevice   = "/" + ServiceName + "/RegisterDevice"
	MethodEnrollFaceID     = "/" + ServiceName + "/EnrollFaceID"
	MethodRemoveFaceID     = "/" + ServiceName + "/RemoveFaceID"
	MethodRequestBuddy     = "/" + ServiceName + "/RequestBuddy"
	MethodRespondToBuddy   = "/" + ServiceName + "/RespondToBuddy"
	MethodSetupTwoFactor   = "/" + ServiceName + "/SetupTwoFactor"
	MethodVerifyAndEnable  = "/" + ServiceName + "/VerifyAndEnable"
	MethodDisableTwoFactor = "/" + ServiceName + "/DisableTwoFactor"
	MethodLoginVerify      = "/" + ServiceName + "/LoginVerify"
	MethodCheckAssertion   = "/" + ServiceName + "/CheckAssertion"
)

// SecurityServiceServer is implemented by the gRPC transport.
type SecurityServiceServer interface {
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	GetSecurity(context.Context, *UsernameRequest) (*SecurityResponse, error)
	RegisterDevice(context.Context, *RegisterDeviceRequest) (*SecurityResponse, error)
	EnrollFaceID(context.Context, *EnrollFaceIDRequest) (*MessageResponse, error)
	RemoveFaceID(context.Context, *UsernameRequest) (*MessageResponse, error)
	RequestBuddy(context.Context, *RequestBuddyRequest) (*MessageResponse, error)
	RespondToBuddy(context.Context, *RespondToBuddyRequest) (*SecurityResponse, error)
	SetupTwoFactor(context.Context, *UsernameRequest) (*SetupTwoFactorResponse, error)
	VerifyAndEnable(context.Context, *TokenRequest) (*MessageResponse, error)
	DisableTwoFactor(context.Context, *UsernameRequest) (*MessageResponse, error)
	LoginVerify(context.Context, *TokenRequest) (*LoginVerifyResponse, error)
	CheckAssertion(context.Context, *CheckAssertionRequest) (*CheckAssertionResponse, error)
}

// UnimplementedSecurityServiceServer can be embedded to satisfy
// SecurityServiceServer partially.
type UnimplementedSecurityServiceServer struct{}

func (UnimplementedSecurityServiceServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}
func (UnimplementedSecurityServiceServer) GetSecurity(context.Context, *UsernameRequest) (*SecurityResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetSecurity not implemented")
}
func (UnimplementedSecurityServiceServer) RegisterDevice(context.Context, *RegisterDeviceRequest) (*SecurityResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RegisterDevice not implemented")
}
func (UnimplementedSecurityServiceServer) EnrollFaceID(context.Context, *EnrollFaceIDRequest) (*MessageResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method EnrollFaceID not implemented")
}
func (UnimplementedSecurityServiceServer) RemoveFaceID(context.Context, *UsernameRequest) (*MessageResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RemoveFaceID not implemented")
}
func (UnimplementedSecurityServiceServer) RequestBuddy(context.Context, *RequestBuddyRequest) (*MessageResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RequestBuddy not implemented")
}
func (UnimplementedSecurityServiceServer) RespondToBuddy(context.Context, *RespondToBuddyRequest) (*SecurityResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RespondToBuddy not implemented")
}
func (UnimplementedSecurityServiceServer) SetupTwoFactor(context.Context, *UsernameRequest) (*SetupTwoFactorResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SetupTwoFactor not implemented")
}
func (UnimplementedSecurityServiceServer) VerifyAndEnable(context.Context, *TokenRequest) (*MessageResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method VerifyAndEnable not implemented")
}
func (UnimplementedSecurityServiceServer) DisableTwoFactor(context.Context, *UsernameRequest) (*MessageResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DisableTwoFactor not implemented")
}
func (UnimplementedSecurityServiceServer) LoginVerify(context.Context, *TokenRequest) (*LoginVerifyResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method LoginVerify not implemented")
}
func (UnimplementedSecurityServiceServer) CheckAssertion(context.Context, *CheckAssertionRequest) (*CheckAssertionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CheckAssertion not implemented")
}

// unary adapts a typed server method into a grpc.MethodDesc handler.
func unary[Req, Resp any](fullMethod string, call func(SecurityServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(SecurityServiceServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*Req))
		})
	}
}

func method[Req, Resp any](fullMethod string, call func(SecurityServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: fullMethod[len(ServiceName)+2:],
		Handler:    unary(fullMethod, call),
	}
}

var SecurityServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SecurityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		method(MethodPing, SecurityServiceServer.Ping),
		method(MethodGetSecurity, SecurityServiceServer.GetSecurity),
		method(MethodRegisterDevice, SecurityServiceServer.RegisterDevice),
		method(MethodEnrollFaceID, SecurityServiceServer.EnrollFaceID),
		method(MethodRemoveFaceID, SecurityServiceServer.RemoveFaceID),
		method(MethodRequestBuddy, SecurityServiceServer.RequestBuddy),
		method(MethodRespondToBuddy, SecurityServiceServer.RespondToBuddy),
		method(MethodSetupTwoFactor, SecurityServiceServer.SetupTwoFactor),
		method(MethodVerifyAndEnable, SecurityServiceServer.VerifyAndEnable),
		method(MethodDisableTwoFactor, SecurityServiceServer.DisableTwoFactor),
		method(MethodLoginVerify, SecurityServiceServer.LoginVerify),
		method(MethodCheckAssertion, SecurityServiceServer.CheckAssertion),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "secledger/security",
}

func RegisterSecurityServiceServer(s grpc.ServiceRegistrar, srv SecurityServiceServer) {
	s.RegisterService(&SecurityServiceDesc, srv)
}
