// Package credentials supplies short-lived access tokens for vendor and
// remote-cluster calls. The core only ever asks a Provider for the current
// token and for a refresh-if-expired check; acquisition flows live behind
// the Provider implementations.
package credentials

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Provider hands out short-lived bearer tokens.
type Provider interface {
	// Token returns the current access token, refreshing it first if it
	// has expired.
	Token(ctx context.Context) (string, error)
	// RefreshIfExpired replaces the cached token when it is no longer
	// valid. A valid cached token is left untouched.
	RefreshIfExpired(ctx context.Context) error
}

// expirySkew refreshes tokens slightly before their reported expiry so a
// token handed to a caller stays valid for the duration of one call.
const expirySkew = 2 * time.Minute

// OAuthProvider adapts an oauth2.TokenSource to the Provider interface,
// caching the minted token until it nears expiry.
type OAuthProvider struct {
	mu  sync.Mutex
	src oauth2.TokenSource
	tok *oauth2.Token
}

// NewOAuthProvider wraps src. Use golang.org/x/oauth2/google helpers or a
// service-account JWT config to build the source.
func NewOAuthProvider(src oauth2.TokenSource) *OAuthProvider {
	return &OAuthProvider{src: src}
}

func (p *OAuthProvider) Token(ctx context.Context) (string, error) {
	if err := p.RefreshIfExpired(ctx); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tok.AccessToken, nil
}

func (p *OAuthProvider) RefreshIfExpired(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tok != nil && p.tok.Valid() && time.Until(p.tok.Expiry) > expirySkew {
		return nil
	}
	tok, err := p.src.Token()
	if err != nil {
		return fmt.Errorf("minting access token: %w", err)
	}
	p.tok = tok
	return nil
}

// StaticProvider returns a fixed token and never refreshes. Intended for
// tests and for environments where token rotation happens externally.
type StaticProvider struct {
	token string
}

func NewStaticProvider(token string) *StaticProvider {
	return &StaticProvider{token: token}
}

func (p *StaticProvider) Token(context.Context) (string, error) {
	if p.token == "" {
		return "", fmt.Errorf("static provider has no token configured")
	}
	return p.token, nil
}

func (p *StaticProvider) RefreshIfExpired(context.Context) error { return nil }
