// Package common contains shared constants and error kinds used across
// Leafline components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the access
// token on inbound requests.
const AccessTokenHeaderName = "access_token"

// Cookie names set by the HTTP transport on login and refresh.
const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)
