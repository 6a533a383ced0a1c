package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	keycloakDevicePath = "/protocol/openid-connect/auth/device"
	keycloakTokenPath  = "/protocol/openid-connect/token"
)

// RealmIssuer returns the issuer URL of a Keycloak realm.
func RealmIssuer(baseURL, realm string) string {
	return strings.TrimRight(baseURL, "/") + "/realms/" + url.PathEscape(realm)
}

// KeycloakEndpoint builds the device and token endpoints of a realm from the
// fixed Keycloak URL layout.
func KeycloakEndpoint(baseURL, realm string) oauth2.Endpoint {
	issuer := RealmIssuer(baseURL, realm)
	return oauth2.Endpoint{
		DeviceAuthURL: issuer + keycloakDevicePath,
		TokenURL:      issuer + keycloakTokenPath,
		AuthStyle:     oauth2.AuthStyleInParams,
	}
}

// DiscoverEndpoint resolves the endpoints advertised in the provider's
// openid-configuration document.
func DiscoverEndpoint(ctx context.Context, client *http.Client, issuer string) (oauth2.Endpoint, error) {
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return oauth2.Endpoint{}, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	endpoint := provider.Endpoint()
	if endpoint.DeviceAuthURL == "" {
		return oauth2.Endpoint{}, errors.New("device authorization endpoint not advertised")
	}
	if endpoint.TokenURL == "" {
		return oauth2.Endpoint{}, errors.New("token endpoint not advertised")
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	return endpoint, nil
}
