package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankimcp/anki-mcp-server/pkg/ankimcp/auth"
	"github.com/ankimcp/anki-mcp-server/pkg/ankimcp/credentials"
	"github.com/ankimcp/anki-mcp-server/pkg/ankimcp/spinner"
)

func stubBrowser(t *testing.T, fn func(string) error) {
	t.Helper()
	previous := openBrowser
	openBrowser = fn
	t.Cleanup(func() { openBrowser = previous })
}

func TestLoginStopsSpinnerOnFailure(t *testing.T) {
	clearEnv(t)
	previous := spinnerOptions
	spinnerOptions = []spinner.Option{spinner.WithEnabled(true)}
	t.Cleanup(func() { spinnerOptions = previous })
	server := newProvider(t, rejectWith("access_denied"))

	_, errOut, err := execute(t, writeConfig(t, server.URL, filepath.Join(t.TempDir(), "credentials.json")), "login", "--no-browser")
	require.ErrorIs(t, err, auth.ErrAccessDenied)
	assert.Contains(t, errOut, "Waiting for authorization...")
	assert.Contains(t, errOut, "\r\033[K", "spinner line must be cleared before the command returns")
}

func TestLoginCredentialSurvivesRoundTrip(t *testing.T) {
	claims := &auth.Claims{Email: "user@example.com"}
	claims.Subject = "user-1"
	cred, err := buildCredential(&auth.TokenGrant{AccessToken: "a", RefreshToken: "r", ExpiresIn: 3600}, claims, time.Now())
	require.NoError(t, err)

	store := credentials.NewFileStore(filepath.Join(t.TempDir(), "credentials.json"))
	require.NoError(t, store.Save(cred))
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, cred, *loaded)
}

func TestLoginCommandStructure(t *testing.T) {
	cmd := NewLoginCommand()
	assert.Equal(t, "login", cmd.Use)
	assert.Contains(t, cmd.Short, "device authorization")
}

func TestLoginSavesCredentials(t *testing.T) {
	clearEnv(t)
	stubBrowser(t, func(string) error {
		t.Error("browser must not be opened with --no-browser")
		return nil
	})
	accessToken := signedToken(t, jwt.MapClaims{"sub": "user-1", "email": "user@example.com", "tier": "pro"})
	server := newProvider(t, issueToken(accessToken))
	credsPath := filepath.Join(t.TempDir(), "ankimcp", "credentials.json")
	configPath := writeConfig(t, server.URL, credsPath)

	before := time.Now()
	out, _, err := execute(t, configPath, "login", "--no-browser")
	require.NoError(t, err)

	assert.Contains(t, out, "/realms/ankimcp/device")
	assert.Contains(t, out, testUserCode)
	assert.Contains(t, out, "Logged in as user@example.com (pro tier)")
	assert.Contains(t, out, "Credentials saved to "+credsPath)

	cred, err := credentials.NewFileStore(credsPath).Load()
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, accessToken, cred.AccessToken)
	assert.Equal(t, "refresh-1", cred.RefreshToken)
	assert.Equal(t, credentials.User{ID: "user-1", Email: "user@example.com", Tier: "pro"}, cred.User)
	assert.True(t, cred.ExpiresAt.After(before.Add(59*time.Minute)))
	assert.True(t, cred.ExpiresAt.Before(time.Now().Add(time.Hour+time.Second)))
}

func TestLoginOpensBrowserAndIgnoresFailure(t *testing.T) {
	clearEnv(t)
	opened := make(chan string, 1)
	stubBrowser(t, func(url string) error {
		opened <- url
		return errors.New("no browser available")
	})
	server := newProvider(t, issueToken(signedToken(t, jwt.MapClaims{"sub": "user-1", "preferred_username": "user"})))
	credsPath := filepath.Join(t.TempDir(), "credentials.json")

	out, _, err := execute(t, writeConfig(t, server.URL, credsPath), "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as user (free tier)")

	select {
	case url := <-opened:
		assert.Contains(t, url, "user_code="+testUserCode)
	case <-time.After(5 * time.Second):
		t.Fatal("browser was not opened")
	}
}

func TestLoginAccessDenied(t *testing.T) {
	clearEnv(t)
	server := newProvider(t, rejectWith("access_denied"))
	credsPath := filepath.Join(t.TempDir(), "credentials.json")

	_, _, err := execute(t, writeConfig(t, server.URL, credsPath), "login", "--no-browser")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrAccessDenied)
	assert.Contains(t, err.Error(), "authorization was denied")
	assert.NoFileExists(t, credsPath)
}

func TestLoginExpiredDeviceCode(t *testing.T) {
	clearEnv(t)
	server := newProvider(t, rejectWith("expired_token"))
	credsPath := filepath.Join(t.TempDir(), "credentials.json")

	_, _, err := execute(t, writeConfig(t, server.URL, credsPath), "login", "--no-browser")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrExpiredToken)
	assert.Contains(t, err.Error(), "run 'ankimcp login' again")
}

func TestLoginProviderUnreachable(t *testing.T) {
	clearEnv(t)
	server := newProvider(t, rejectWith("access_denied"))
	baseURL := server.URL
	server.Close()

	_, _, err := execute(t, writeConfig(t, baseURL, filepath.Join(t.TempDir(), "credentials.json")), "login", "--no-browser")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrNetwork)
	assert.Contains(t, err.Error(), "could not reach the identity provider")
}

func TestLoginSaveFailure(t *testing.T) {
	clearEnv(t)
	server := newProvider(t, issueToken(signedToken(t, jwt.MapClaims{"sub": "user-1", "email": "user@example.com"})))
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	credsPath := filepath.Join(blocker, "credentials.json")

	_, _, err := execute(t, writeConfig(t, server.URL, credsPath), "login", "--no-browser")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save credentials to "+credsPath)
}

func TestLoginUndecodableToken(t *testing.T) {
	clearEnv(t)
	server := newProvider(t, issueToken("opaque-token"))

	_, _, err := execute(t, writeConfig(t, server.URL, filepath.Join(t.TempDir(), "credentials.json")), "login", "--no-browser")
	require.Error(t, err)
	var decodeErr *auth.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestLoginErrorMessages(t *testing.T) {
	kinds := []auth.ErrorKind{auth.KindExpiredToken, auth.KindAccessDenied, auth.KindNetworkError, auth.KindTimeout, auth.KindUnknown}
	seen := map[string]auth.ErrorKind{}
	for _, kind := range kinds {
		err := loginError(&auth.FlowError{Kind: kind})
		var cmdErr *commandError
		require.ErrorAs(t, err, &cmdErr)
		_, dup := seen[cmdErr.msg]
		assert.False(t, dup, "kind %s reuses the message of %s", kind, seen[cmdErr.msg])
		seen[cmdErr.msg] = kind
	}

	plain := errors.New("plain")
	assert.Equal(t, plain, loginError(plain))
}

func TestBuildCredential(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	claims := &auth.Claims{Email: "user@example.com"}
	claims.Subject = "user-1"

	cred, err := buildCredential(&auth.TokenGrant{AccessToken: "a", ExpiresIn: 300}, claims, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(5*time.Minute), cred.ExpiresAt)
	assert.Equal(t, "free", cred.User.Tier)

	claims.ExpiresAt = jwt.NewNumericDate(now.Add(time.Hour))
	cred, err = buildCredential(&auth.TokenGrant{AccessToken: "a"}, claims, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), cred.ExpiresAt)

	claims.ExpiresAt = nil
	_, err = buildCredential(&auth.TokenGrant{AccessToken: "a"}, claims, now)
	require.Error(t, err)
}
