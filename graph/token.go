package graph

import (
	"context"
	"fmt"
	"regexp"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// tenantIDPattern matches Azure AD tenant IDs (UUID format)
var tenantIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// validateTenantID checks that the tenant ID is a valid UUID
func validateTenantID(tenantID string) error {
	if !tenantIDPattern.MatchString(tenantID) {
		return fmt.Errorf("invalid tenant_id '%s': must be a valid UUID", tenantID)
	}
	return nil
}

// TokenProvider obtains a bearer credential for calling the directory service.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// ClientCredentialsProvider runs the OAuth2 client-credential grant against
// Azure AD and caches the resulting token until shortly before expiry, so
// every directory call sees a currently valid token without a grant per call.
type ClientCredentialsProvider struct {
	source oauth2.TokenSource
}

// NewClientCredentialsProvider builds a provider for the given tenant,
// requesting the directory service's default scope.
func NewClientCredentialsProvider(tenantID, clientID, clientSecret string) (*ClientCredentialsProvider, error) {
	if err := validateTenantID(tenantID); err != nil {
		return nil, err
	}
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("client_id and client_secret are required")
	}

	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}

	return &ClientCredentialsProvider{
		source: cfg.TokenSource(context.Background()),
	}, nil
}

// Token returns a currently valid access token, acquiring a fresh one if the
// cached token has expired.
func (p *ClientCredentialsProvider) Token(ctx context.Context) (string, error) {
	tok, err := p.source.Token()
	if err != nil {
		return "", &AuthenticationError{Err: err}
	}
	if tok.AccessToken == "" {
		return "", &AuthenticationError{}
	}
	return tok.AccessToken, nil
}

// StaticTokenProvider returns a fixed token on every call. Useful for tests
// and for callers that manage token acquisition themselves.
type StaticTokenProvider string

func (p StaticTokenProvider) Token(ctx context.Context) (string, error) {
	if p == "" {
		return "", &AuthenticationError{}
	}
	return string(p), nil
}
