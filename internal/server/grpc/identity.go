package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/dmitrijs2005/leafline/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	identityServiceName       = "leafline.v1.Identity"
	identityCurrentUserMethod = "/" + identityServiceName + "/CurrentUser"
	identityLogoutMethod      = "/" + identityServiceName + "/Logout"
)

// IdentityService is the session surface exposed over gRPC. Both calls act
// on the identity the access-token interceptor put in the context.
type IdentityService interface {
	CurrentUser(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Logout(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

type identityServer struct {
	users Users
}

func (s *identityServer) CurrentUser(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, common.ErrUnauthenticated.Error())
	}

	u, err := s.users.CurrentUser(ctx, id.ID)
	if err != nil {
		return nil, status.Error(CodeFor(err), statusMessage(err))
	}

	out, err := userStruct(u)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func (s *identityServer) Logout(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, common.ErrUnauthenticated.Error())
	}

	if err := s.users.Logout(ctx, id.ID); err != nil {
		return nil, status.Error(CodeFor(err), statusMessage(err))
	}
	return &emptypb.Empty{}, nil
}

// userStruct carries the public profile with the same field names the HTTP
// API uses.
func userStruct(u *models.PublicUser) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":          u.ID,
		"username":    u.Username,
		"email":       u.Email,
		"avatar":      u.Avatar,
		"description": u.Description,
		"createdAt":   u.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func identityCurrentUserHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityService).CurrentUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: identityCurrentUserMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IdentityService).CurrentUser(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func identityLogoutHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityService).Logout(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: identityLogoutMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(IdentityService).Logout(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// identityServiceDesc is written out by hand; the messages are well-known
// types so no generated code is needed.
var identityServiceDesc = grpc.ServiceDesc{
	ServiceName: identityServiceName,
	HandlerType: (*IdentityService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CurrentUser",
			Handler:    identityCurrentUserHandler,
		},
		{
			MethodName: "Logout",
			Handler:    identityLogoutHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "leafline/v1/identity.proto",
}
