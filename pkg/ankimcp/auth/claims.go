package auth

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

const defaultTier = "free"

// Claims holds the identity attributes read from an access token payload.
type Claims struct {
	jwt.RegisteredClaims
	Email             string `json:"email,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Tier              string `json:"tier,omitempty"`
}

// DisplayEmail returns the email claim, falling back to the username.
func (c *Claims) DisplayEmail() string {
	if c.Email != "" {
		return c.Email
	}
	return c.PreferredUsername
}

// TierOrDefault returns the tier claim or "free" when the provider omits it.
func (c *Claims) TierOrDefault() string {
	if c.Tier != "" {
		return c.Tier
	}
	return defaultTier
}

// DecodeClaims reads the payload segment of token without verifying its
// signature. Only use it on tokens this process just received from the
// identity provider over its own TLS connection.
func DecodeClaims(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, &DecodeError{Reason: "token has fewer than two segments"}
	}
	payload, err := jwt.DecodeSegment(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, &DecodeError{Reason: "payload is not valid base64url", Err: err}
	}
	if !bytes.HasPrefix(bytes.TrimSpace(payload), []byte("{")) {
		return nil, &DecodeError{Reason: "payload is not a JSON object"}
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, &DecodeError{Reason: "payload is not a JSON object", Err: err}
	}
	return &claims, nil
}
