// Package common contains shared constants and sentinel errors used across
// gophauth components.
package common

// AuthorizationHeaderName is the HTTP header (and lower-cased gRPC metadata
// key) carrying the bearer access token.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the only authorization scheme accepted on protected calls.
const BearerScheme = "Bearer"

// TokenTypeBearer is reported to clients alongside issued access tokens.
const TokenTypeBearer = "bearer"
