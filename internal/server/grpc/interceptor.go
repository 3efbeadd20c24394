package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/dmitrijs2005/leafline/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const identityKey ctxKey = "identity"

// publicPrefixes lists services callable without an access token.
var publicPrefixes = []string{
	"/grpc.health.v1.Health/",
}

// IdentityFromContext returns the identity the interceptor resolved, if any.
func IdentityFromContext(ctx context.Context) (*models.PublicUser, bool) {
	u, ok := ctx.Value(identityKey).(*models.PublicUser)
	return u, ok
}

func isPublic(method string) bool {
	for _, p := range publicPrefixes {
		if strings.HasPrefix(method, p) {
			return true
		}
	}
	return false
}

// accessToken reads the access_token metadata key, falling back to an
// "authorization: Bearer ..." entry.
func accessToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(common.AccessTokenHeaderName); len(v) > 0 && v[0] != "" {
		return v[0]
	}
	if v := md.Get("authorization"); len(v) > 0 {
		if len(v[0]) > 7 && strings.EqualFold(v[0][:7], "Bearer ") {
			return strings.TrimSpace(v[0][7:])
		}
	}
	return ""
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if isPublic(info.FullMethod) {
		return handler(ctx, req)
	}

	user, err := s.users.Authenticate(ctx, accessToken(ctx))
	if err != nil {
		return nil, status.Error(CodeFor(err), statusMessage(err))
	}

	ctx = context.WithValue(ctx, identityKey, user)
	return handler(ctx, req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	if code == codes.Unavailable || code == codes.Internal {
		s.logger.Error(ctx, "rpc failed", "method", info.FullMethod, "code", code.String(), "error", err.Error())
	} else {
		s.logger.Info(ctx, "rpc", "method", info.FullMethod, "code", code.String(), "duration", time.Since(start))
	}
	return resp, err
}

// CodeFor maps an error kind to a gRPC status code.
func CodeFor(err error) codes.Code {
	switch common.KindOf(err) {
	case common.ErrValidation:
		return codes.InvalidArgument
	case common.ErrInvalidCredentials, common.ErrUnauthenticated, common.ErrInvalidToken,
		common.ErrTokenExpired, common.ErrUnknownIdentity:
		return codes.Unauthenticated
	case common.ErrAlreadyExists:
		return codes.AlreadyExists
	case common.ErrForbidden:
		return codes.PermissionDenied
	case common.ErrorNotFound:
		return codes.NotFound
	case common.ErrInfrastructure:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// statusMessage keeps causes out of the reply; only the kind is sent.
func statusMessage(err error) string {
	if k := common.KindOf(err); k != nil {
		return k.Error()
	}
	return "internal error"
}
