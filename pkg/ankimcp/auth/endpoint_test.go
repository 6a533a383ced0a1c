package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestKeycloakEndpoint(t *testing.T) {
	assert.Equal(t, "https://id.example.com/realms/ankimcp", RealmIssuer("https://id.example.com/", "ankimcp"))

	endpoint := KeycloakEndpoint("https://id.example.com", "ankimcp")
	assert.Equal(t, "https://id.example.com/realms/ankimcp/protocol/openid-connect/auth/device", endpoint.DeviceAuthURL)
	assert.Equal(t, "https://id.example.com/realms/ankimcp/protocol/openid-connect/token", endpoint.TokenURL)
	assert.Equal(t, oauth2.AuthStyleInParams, endpoint.AuthStyle)
}

// newDiscoveryServer serves an openid-configuration document for /realms/test.
func newDiscoveryServer(t *testing.T, withDevice bool) (*httptest.Server, string) {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realms/test/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		issuer := server.URL + "/realms/test"
		doc := map[string]any{
			"issuer":                 issuer,
			"authorization_endpoint": issuer + "/protocol/openid-connect/auth",
			"token_endpoint":         issuer + "/protocol/openid-connect/token",
			"jwks_uri":               issuer + "/protocol/openid-connect/certs",
		}
		if withDevice {
			doc["device_authorization_endpoint"] = issuer + "/protocol/openid-connect/auth/device"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(server.Close)
	return server, server.URL + "/realms/test"
}

func TestDiscoverEndpoint(t *testing.T) {
	server, issuer := newDiscoveryServer(t, true)

	endpoint, err := DiscoverEndpoint(context.Background(), server.Client(), issuer)
	require.NoError(t, err)
	assert.Equal(t, issuer+"/protocol/openid-connect/auth/device", endpoint.DeviceAuthURL)
	assert.Equal(t, issuer+"/protocol/openid-connect/token", endpoint.TokenURL)
	assert.Equal(t, oauth2.AuthStyleInParams, endpoint.AuthStyle)
}

func TestDiscoverEndpointWithoutDeviceEndpoint(t *testing.T) {
	server, issuer := newDiscoveryServer(t, false)

	_, err := DiscoverEndpoint(context.Background(), server.Client(), issuer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device authorization endpoint not advertised")
}

func TestDiscoverEndpointUnknownIssuer(t *testing.T) {
	server, _ := newDiscoveryServer(t, true)

	_, err := DiscoverEndpoint(context.Background(), server.Client(), server.URL+"/realms/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to discover OIDC provider")
}
