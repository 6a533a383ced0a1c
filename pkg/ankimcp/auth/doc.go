// Package auth implements the OAuth 2.0 device authorization grant (RFC 8628)
// used by the ankimcp CLI to obtain tunnel credentials, together with the
// unverified claims decoding applied to the tokens it receives.
package auth
