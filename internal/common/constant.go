// Package common contains shared constants and sentinel errors used across
// gatekeeper components.
package common

// AuthorizationHeaderName is the HTTP header carrying the bearer access token.
const AuthorizationHeaderName = "Authorization"

// BackupCodeBatchSize is the number of single-use backup codes issued when a
// user enables the second factor or regenerates their codes.
const BackupCodeBatchSize = 8
