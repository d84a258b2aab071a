package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenURL is the Bitbucket Cloud OAuth2 token endpoint.
const DefaultTokenURL = "https://bitbucket.org/site/oauth2/access_token"

// expiresAtLayout is the second-precision UTC form stored in auth_info.
const expiresAtLayout = "2006-01-02T15:04:05Z"

// Config configures the client-credentials grant.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// TokenBundle is the auth material embedded into a repository record. The
// provider returns a relative expires_in; ExpiresAt is the derived absolute
// UTC timestamp.
type TokenBundle struct {
	AccessToken   string   `json:"access_token"`
	ExpiresAt     string   `json:"expires_at"`
	RefreshToken  string   `json:"refresh_token"`
	WorkspaceSlug []string `json:"workspace_slug"`
}

// Acquire performs the client-credentials grant (HTTP Basic auth, form body)
// and derives the absolute expiry from the provider's relative expires_in.
// Any transport error or non-success status is returned as-is; there is no
// retry.
func Acquire(ctx context.Context, cfg Config, workspaceSlugs []string) (TokenBundle, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return TokenBundle{}, errors.New("oauth client id and secret are required")
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	grant := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	token, err := grant.Token(ctx)
	if err != nil {
		return TokenBundle{}, err
	}
	if token.AccessToken == "" {
		return TokenBundle{}, errors.New("access token missing from provider response")
	}

	expiresAt := ""
	if !token.Expiry.IsZero() {
		expiresAt = token.Expiry.UTC().Format(expiresAtLayout)
	}
	return TokenBundle{
		AccessToken:   token.AccessToken,
		ExpiresAt:     expiresAt,
		RefreshToken:  token.RefreshToken,
		WorkspaceSlug: workspaceSlugs,
	}, nil
}

// AuthInfoJSON renders the bundle as stored in the repos auth_info column.
func (b TokenBundle) AuthInfoJSON() (string, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ParseExpiresAt parses the second-precision UTC timestamp produced by
// Acquire.
func ParseExpiresAt(value string) (time.Time, error) {
	return time.Parse(expiresAtLayout, value)
}
