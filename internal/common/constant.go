package common

// AuthorizationHeaderName is the gRPC metadata key carrying the bearer
// credential issued by the identity provider.
const AuthorizationHeaderName = "authorization"

// BearerPrefix precedes the token in AuthorizationHeaderName values.
const BearerPrefix = "Bearer "
