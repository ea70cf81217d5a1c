package common

// AccessTokenHeaderName is the gRPC metadata key carrying the signed access
// token on inbound requests.
const AccessTokenHeaderName = "access_token"

// LowerAlphanumeric is the alphabet handles are built from.
const LowerAlphanumeric = "abcdefghijklmnopqrstuvwxyz0123456789"
