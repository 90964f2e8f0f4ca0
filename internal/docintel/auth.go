package docintel

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"
	cognitiveScope        = "https://cognitiveservices.azure.com/.default"
	entraTokenURLFormat   = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
)

// Authorizer attaches credentials to an outgoing request.
type Authorizer interface {
	Authorize(ctx context.Context, req *http.Request) error
}

// KeyAuth authenticates with a resource subscription key.
type KeyAuth struct {
	Key string
}

func (a KeyAuth) Authorize(_ context.Context, req *http.Request) error {
	if a.Key == "" {
		return errors.New("subscription key is empty")
	}
	req.Header.Set(subscriptionKeyHeader, a.Key)
	return nil
}

// TokenAuth authenticates with a bearer token from an OAuth2 token source.
type TokenAuth struct {
	Source oauth2.TokenSource
}

// NewEntraAuth builds a client-credentials token source against Microsoft Entra ID.
func NewEntraAuth(tenantID, clientID, clientSecret string) *TokenAuth {
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     fmt.Sprintf(entraTokenURLFormat, tenantID),
		Scopes:       []string{cognitiveScope},
	}
	return &TokenAuth{Source: cfg.TokenSource(context.Background())}
}

func (a *TokenAuth) Authorize(_ context.Context, req *http.Request) error {
	if a == nil || a.Source == nil {
		return errors.New("token source is not configured")
	}
	tok, err := a.Source.Token()
	if err != nil {
		return fmt.Errorf("fetch access token: %w", err)
	}
	tok.SetAuthHeader(req)
	return nil
}
