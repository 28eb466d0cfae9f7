// Package devv1 is the development-only DevService. It exposes reset tokens that would
// otherwise only be delivered out of band, and is never registered outside development.
package devv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	authv1 "auth-service/api/auth/v1"
)

const DevService_GetResetToken_FullMethodName = "/dev.v1.DevService/GetResetToken"

type GetResetTokenRequest struct {
	Email string `json:"email"`
}

type GetResetTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	Note      string `json:"note"`
}

// DevServiceServer is the server API for DevService.
type DevServiceServer interface {
	GetResetToken(context.Context, *GetResetTokenRequest) (*GetResetTokenResponse, error)
}

type UnimplementedDevServiceServer struct{}

func (UnimplementedDevServiceServer) GetResetToken(context.Context, *GetResetTokenRequest) (*GetResetTokenResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetResetToken not implemented")
}

func RegisterDevServiceServer(s grpc.ServiceRegistrar, srv DevServiceServer) {
	s.RegisterService(&DevService_ServiceDesc, srv)
}

func _DevService_GetResetToken_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetResetTokenRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DevServiceServer).GetResetToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DevService_GetResetToken_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DevServiceServer).GetResetToken(ctx, req.(*GetResetTokenRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var DevService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "dev.v1.DevService",
	HandlerType: (*DevServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetResetToken", Handler: _DevService_GetResetToken_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dev/v1/dev.proto",
}

// DevServiceClient is the client API for DevService.
type DevServiceClient interface {
	GetResetToken(ctx context.Context, in *GetResetTokenRequest, opts ...grpc.CallOption) (*GetResetTokenResponse, error)
}

type devServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewDevServiceClient(cc grpc.ClientConnInterface) DevServiceClient {
	return &devServiceClient{cc: cc}
}

func (c *devServiceClient) GetResetToken(ctx context.Context, in *GetResetTokenRequest, opts ...grpc.CallOption) (*GetResetTokenResponse, error) {
	out := new(GetResetTokenResponse)
	opts = append([]grpc.CallOption{authv1.WithJSON()}, opts...)
	if err := c.cc.Invoke(ctx, DevService_GetResetToken_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
