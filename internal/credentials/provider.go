package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrNotAuthenticated is returned when no usable token is available.
var ErrNotAuthenticated = errors.New("not authenticated with google")

// Provider owns the process-wide token and refreshes it on demand.
type Provider struct {
	config *oauth2.Config
	store  Store
	logger *zap.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

// NewOAuthConfig builds the Google OAuth client configuration.
func NewOAuthConfig(clientID, clientSecret, redirectURL string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}
}

// NewProvider creates a Provider. Call Load to restore a saved token.
func NewProvider(config *oauth2.Config, store Store, logger *zap.Logger) *Provider {
	return &Provider{config: config, store: store, logger: logger}
}

// Load restores the persisted token, if any.
func (p *Provider) Load() error {
	tok, err := p.store.Load()
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.token = tok
	p.mu.Unlock()
	if tok != nil {
		p.logger.Info("restored google credentials", zap.Time("expiry", tok.Expiry))
	}
	return nil
}

// Save replaces the current token and persists it.
func (p *Provider) Save(tok *oauth2.Token) error {
	if err := p.store.Save(tok); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	p.mu.Lock()
	p.token = tok
	p.mu.Unlock()
	return nil
}

// IsAuthenticated reports whether an access or refresh token is present.
// The access token may still be expired.
func (p *Provider) IsAuthenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token != nil && (p.token.AccessToken != "" || p.token.RefreshToken != "")
}

// AuthCodeURL returns the consent page URL. Offline access with forced consent
// makes Google issue a refresh token every time.
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens and saves them.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	prev := p.token
	p.mu.Unlock()
	// Google omits the refresh token on some re-consents; keep the previous one.
	if tok.RefreshToken == "" && prev != nil {
		tok.RefreshToken = prev.RefreshToken
	}
	if err := p.Save(tok); err != nil {
		return nil, err
	}
	p.logger.Info("google credentials saved", zap.Bool("refresh_token", tok.RefreshToken != ""))
	return tok, nil
}

// RefreshIfNeeded refreshes the access token through the refresh token when it
// is absent or stale, persisting the result.
func (p *Provider) RefreshIfNeeded(ctx context.Context) error {
	_, err := p.validToken(ctx)
	return err
}

// AccessToken returns a currently valid access token.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	tok, err := p.validToken(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func (p *Provider) validToken(ctx context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token == nil {
		return nil, ErrNotAuthenticated
	}
	if p.token.Valid() {
		return p.token, nil
	}
	if p.token.RefreshToken == "" {
		return nil, ErrNotAuthenticated
	}

	// Without an access token the token source always goes to the token endpoint.
	stale := *p.token
	stale.AccessToken = ""
	fresh, err := p.config.TokenSource(ctx, &stale).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = p.token.RefreshToken
	}
	if err := p.store.Save(fresh); err != nil {
		return nil, fmt.Errorf("save refreshed token: %w", err)
	}
	p.token = fresh
	p.logger.Debug("refreshed google access token", zap.Time("expiry", fresh.Expiry))
	return fresh, nil
}
