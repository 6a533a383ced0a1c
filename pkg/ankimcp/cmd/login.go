package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ankimcp/anki-mcp-server/pkg/ankimcp/auth"
	"github.com/ankimcp/anki-mcp-server/pkg/ankimcp/credentials"
	"github.com/ankimcp/anki-mcp-server/pkg/ankimcp/spinner"
)

// commandError pairs a user-facing message with the failure behind it.
type commandError struct {
	msg string
	err error
}

func (e *commandError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *commandError) Unwrap() error {
	return e.err
}

func NewLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Login via the device authorization flow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			attemptID := uuid.NewString()
			log := rt.Logger().With("attempt", attemptID)

			store, err := rt.Store()
			if err != nil {
				return err
			}
			client, err := rt.DeviceFlowClient(cmd.Context(), log, attemptID)
			if err != nil {
				return &commandError{msg: "failed to set up login", err: err}
			}
			return runLogin(cmd.Context(), rt, log, client, store)
		},
	}
}

func runLogin(ctx context.Context, rt *runtimeState, log *zap.SugaredLogger, client *auth.DeviceFlowClient, store credentials.Store) error {
	grant, err := client.RequestDeviceCode(ctx)
	if err != nil {
		return loginError(err)
	}

	w := rt.Writer()
	_, _ = fmt.Fprintf(w, "To sign in, open %s\n", grant.VerificationURI)
	_, _ = fmt.Fprintf(w, "and enter the code: %s\n", grant.UserCode)

	if !rt.noBrowser {
		url := grant.VerificationURL()
		go func() {
			if err := openBrowser(url); err != nil {
				log.Debugw("Could not open browser", "error", err)
			}
		}()
	}

	tokens, err := waitForAuthorization(ctx, rt, client, grant)
	if err != nil {
		return loginError(err)
	}

	claims, err := auth.DecodeClaims(tokens.AccessToken)
	if err != nil {
		return &commandError{msg: "received an unreadable access token", err: err}
	}
	cred, err := buildCredential(tokens, claims, time.Now().UTC().Round(0))
	if err != nil {
		return err
	}

	if _, err := store.Load(); errors.Is(err, credentials.ErrCorrupt) {
		log.Warnw("Replacing corrupt credentials", "path", store.Path())
	}
	if err := store.Save(cred); err != nil {
		return fmt.Errorf("failed to save credentials to %s: %w", store.Path(), err)
	}
	log.Debugw("Saved credentials", "path", store.Path(), "expiresAt", cred.ExpiresAt)

	_, _ = fmt.Fprintf(w, "Logged in as %s (%s tier)\n", cred.User.Email, cred.User.Tier)
	_, _ = fmt.Fprintf(w, "Credentials saved to %s\n", store.Path())
	return nil
}

// waitForAuthorization polls for tokens behind a spinner. The spinner is
// stopped on every return path.
func waitForAuthorization(ctx context.Context, rt *runtimeState, client *auth.DeviceFlowClient, grant *auth.DeviceCodeGrant) (*auth.TokenGrant, error) {
	sp := spinner.New(rt.ErrWriter(), "Waiting for authorization...", spinnerOptions...)
	sp.Start()
	defer sp.Stop()
	return client.PollForToken(ctx, grant)
}

func buildCredential(tokens *auth.TokenGrant, claims *auth.Claims, now time.Time) (credentials.Credential, error) {
	expiresAt := tokens.Token(now).Expiry
	if expiresAt.IsZero() && claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if !expiresAt.After(now) {
		return credentials.Credential{}, errors.New("identity provider returned an access token without a future expiry")
	}
	// Stored records compare equal after a round trip only without a
	// monotonic reading or local zone.
	expiresAt = expiresAt.UTC().Round(0)
	return credentials.Credential{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    expiresAt,
		User: credentials.User{
			ID:    claims.Subject,
			Email: claims.DisplayEmail(),
			Tier:  claims.TierOrDefault(),
		},
	}, nil
}

// loginError maps device flow failures onto one message per kind.
func loginError(err error) error {
	var msg string
	switch auth.KindOf(err) {
	case auth.KindExpiredToken:
		msg = "the device code expired before authorization completed, run 'ankimcp login' again"
	case auth.KindAccessDenied:
		msg = "authorization was denied"
	case auth.KindNetworkError:
		msg = "could not reach the identity provider"
	case auth.KindTimeout:
		msg = "timed out waiting for authorization, run 'ankimcp login' again"
	case auth.KindUnknown:
		msg = "login failed"
	default:
		return err
	}
	return &commandError{msg: msg, err: err}
}
