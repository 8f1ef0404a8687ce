// Package totp generates second-factor secrets and validates RFC 6238 codes.
//
// Secrets are base32 without padding. Provisioning URIs follow the otpauth:// key-uri format so
// any authenticator app can import them, and [Engine.QRImage] renders the URI as a PNG data URL.
//
// # What this package must NOT do
//
//   - Persist secrets. Callers decide when an enrollment becomes durable.
//   - Track replay. A code stays valid for its whole window.
package totp
