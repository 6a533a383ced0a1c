package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"k8s.io/utils/clock"

	"github.com/ankimcp/anki-mcp-server/pkg/version"
)

const (
	deviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"

	// DefaultPollInterval applies when the server omits the interval field.
	DefaultPollInterval = 5 * time.Second
	// SlowDownIncrement is added to the poll interval on every slow_down response.
	SlowDownIncrement = 5 * time.Second
)

// DeviceCodeGrant is the device authorization response.
type DeviceCodeGrant struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`

	// ReceivedAt is when the grant arrived; the polling deadline is measured from it.
	ReceivedAt time.Time `json:"-"`
}

// Deadline is the absolute time after which polling gives up.
func (g *DeviceCodeGrant) Deadline() time.Time {
	return g.ReceivedAt.Add(time.Duration(g.ExpiresIn) * time.Second)
}

// VerificationURL prefers the complete URI, which embeds the user code.
func (g *DeviceCodeGrant) VerificationURL() string {
	if g.VerificationURIComplete != "" {
		return g.VerificationURIComplete
	}
	return g.VerificationURI
}

// TokenGrant is a successful token endpoint response.
type TokenGrant struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Token converts the grant into an oauth2 token expiring relative to now.
func (t *TokenGrant) Token(now time.Time) *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}
	if t.ExpiresIn > 0 {
		token.Expiry = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	if t.IDToken != "" {
		token = token.WithExtra(map[string]any{"id_token": t.IDToken})
	}
	return token
}

type tokenResponse struct {
	TokenGrant
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func (e oauthError) message() string {
	if e.ErrorDescription != "" {
		return fmt.Sprintf("%s: %s", e.Error, e.ErrorDescription)
	}
	return e.Error
}

func parseOAuthError(body []byte) (oauthError, bool) {
	var payload oauthError
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == "" {
		return oauthError{}, false
	}
	return payload, true
}

var (
	errAuthorizationPending = errors.New("authorization pending")
	errSlowDown             = errors.New("slow down")
)

// DeviceFlowClient drives the device authorization grant against one
// authorization server.
type DeviceFlowClient struct {
	endpoint  oauth2.Endpoint
	clientID  string
	scopes    []string
	requestID string
	http      *resty.Client
	clock     clock.Clock
	log       *zap.SugaredLogger
}

type Option func(*DeviceFlowClient) error

// NewDeviceFlowClient returns a client for the given endpoints.
func NewDeviceFlowClient(endpoint oauth2.Endpoint, clientID string, opts ...Option) (*DeviceFlowClient, error) {
	if endpoint.DeviceAuthURL == "" || endpoint.TokenURL == "" {
		return nil, errors.New("device authorization and token endpoints are required")
	}
	if clientID == "" {
		return nil, errors.New("client-id is required")
	}
	c := &DeviceFlowClient{
		endpoint: endpoint,
		clientID: clientID,
		http:     resty.NewWithClient(&http.Client{Timeout: defaultHTTPTimeout}),
		clock:    clock.RealClock{},
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.http.
		SetLogger(c.log).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", version.UserAgent())
	if c.requestID != "" {
		c.http.SetHeader("X-Request-ID", c.requestID)
	}
	return c, nil
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *DeviceFlowClient) error {
		if client == nil {
			return errors.New("http client is nil")
		}
		c.http = resty.NewWithClient(client)
		return nil
	}
}

func WithScopes(scopes ...string) Option {
	return func(c *DeviceFlowClient) error {
		c.scopes = scopes
		return nil
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *DeviceFlowClient) error {
		if clk == nil {
			return errors.New("clock is nil")
		}
		c.clock = clk
		return nil
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *DeviceFlowClient) error {
		if log != nil {
			c.log = log
		}
		return nil
	}
}

// WithRequestID tags every request with an X-Request-ID header.
func WithRequestID(id string) Option {
	return func(c *DeviceFlowClient) error {
		c.requestID = id
		return nil
	}
}

// RequestDeviceCode asks the authorization server for a device and user code.
func (c *DeviceFlowClient) RequestDeviceCode(ctx context.Context) (*DeviceCodeGrant, error) {
	form := map[string]string{"client_id": c.clientID}
	if len(c.scopes) > 0 {
		form["scope"] = strings.Join(c.scopes, " ")
	}
	resp, err := c.http.R().SetContext(ctx).SetFormData(form).Post(c.endpoint.DeviceAuthURL)
	if err != nil {
		return nil, newFlowError(KindNetworkError, "device authorization request failed", err)
	}
	body := resp.Body()
	if !resp.IsSuccess() {
		if oerr, ok := parseOAuthError(body); ok {
			return nil, newFlowError(KindUnknown, "device authorization rejected: "+oerr.message(), nil)
		}
		return nil, newFlowError(KindNetworkError, fmt.Sprintf("device authorization failed with status %d", resp.StatusCode()), nil)
	}

	var grant DeviceCodeGrant
	if err := json.Unmarshal(body, &grant); err != nil {
		return nil, newFlowError(KindUnknown, "malformed device authorization response", err)
	}
	if grant.DeviceCode == "" || grant.UserCode == "" || grant.VerificationURI == "" {
		return nil, newFlowError(KindUnknown, "incomplete device authorization response", nil)
	}
	if grant.ExpiresIn <= 0 {
		return nil, newFlowError(KindUnknown, fmt.Sprintf("invalid expires_in %d in device authorization response", grant.ExpiresIn), nil)
	}
	if grant.Interval <= 0 {
		grant.Interval = int(DefaultPollInterval / time.Second)
	}
	grant.ReceivedAt = c.clock.Now()
	c.log.Debugw("Received device code", "expiresIn", grant.ExpiresIn, "interval", grant.Interval)
	return &grant, nil
}

// PollForToken polls the token endpoint until the user approves, denies, the
// server expires the code, or the grant's deadline passes. It waits one
// interval before every request.
func (c *DeviceFlowClient) PollForToken(ctx context.Context, grant *DeviceCodeGrant) (*TokenGrant, error) {
	if grant == nil || grant.DeviceCode == "" {
		return nil, newFlowError(KindUnknown, "device code is required", nil)
	}
	interval := time.Duration(grant.Interval) * time.Second
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	deadline := grant.Deadline()
	if grant.ReceivedAt.IsZero() {
		deadline = c.clock.Now().Add(time.Duration(grant.ExpiresIn) * time.Second)
	}

	var lastNetErr error
	for attempt := 1; ; attempt++ {
		if !c.clock.Now().Before(deadline) {
			return nil, timeoutError(lastNetErr)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.clock.After(interval):
		}
		if !c.clock.Now().Before(deadline) {
			return nil, timeoutError(lastNetErr)
		}

		token, err := c.pollOnce(ctx, grant.DeviceCode)
		switch {
		case err == nil:
			c.log.Debugw("Device authorization complete", "attempt", attempt)
			return token, nil
		case errors.Is(err, errAuthorizationPending):
			c.log.Debugw("Authorization pending", "attempt", attempt)
		case errors.Is(err, errSlowDown):
			interval += SlowDownIncrement
			c.log.Debugw("Server asked to slow down", "attempt", attempt, "interval", interval)
		case errors.Is(err, ErrNetwork):
			lastNetErr = err
			c.log.Warnw("Token poll failed, retrying", "attempt", attempt, "error", err)
		default:
			return nil, err
		}
	}
}

func timeoutError(lastNetErr error) *FlowError {
	msg := "timed out waiting for device authorization"
	if lastNetErr != nil {
		msg += fmt.Sprintf(" (last error: %v)", lastNetErr)
	}
	return newFlowError(KindTimeout, msg, nil)
}

func (c *DeviceFlowClient) pollOnce(ctx context.Context, deviceCode string) (*TokenGrant, error) {
	resp, err := c.http.R().SetContext(ctx).SetFormData(map[string]string{
		"grant_type":  deviceGrantType,
		"device_code": deviceCode,
		"client_id":   c.clientID,
	}).Post(c.endpoint.TokenURL)
	if err != nil {
		return nil, newFlowError(KindNetworkError, "token request failed", err)
	}

	var payload tokenResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		if !resp.IsSuccess() {
			return nil, newFlowError(KindNetworkError, fmt.Sprintf("token endpoint returned status %d", resp.StatusCode()), nil)
		}
		return nil, newFlowError(KindNetworkError, "token endpoint returned a non-JSON body", err)
	}
	if payload.Error != "" {
		switch payload.Error {
		case "authorization_pending":
			return nil, errAuthorizationPending
		case "slow_down":
			return nil, errSlowDown
		case "expired_token":
			return nil, newFlowError(KindExpiredToken, "device code expired", nil)
		case "access_denied":
			return nil, newFlowError(KindAccessDenied, "authorization denied by user", nil)
		default:
			oerr := oauthError{Error: payload.Error, ErrorDescription: payload.ErrorDescription}
			return nil, newFlowError(KindUnknown, "device token error: "+oerr.message(), nil)
		}
	}
	if !resp.IsSuccess() {
		return nil, newFlowError(KindNetworkError, fmt.Sprintf("token endpoint returned status %d", resp.StatusCode()), nil)
	}
	if payload.AccessToken == "" {
		return nil, newFlowError(KindUnknown, "token response is missing access_token", nil)
	}
	return &payload.TokenGrant, nil
}
