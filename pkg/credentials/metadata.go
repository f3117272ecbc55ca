package credentials

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	// DefaultMetadataBaseURL is the well-known instance metadata server.
	DefaultMetadataBaseURL = "http://metadata.google.internal"

	metadataTokenPath = "/computeMetadata/v1/instance/service-accounts/default/token"
)

// metadataTokenResponse mirrors the metadata server's token payload.
type metadataTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// MetadataProvider mints tokens from the instance metadata server. It is the
// zero-configuration provider for workloads running on the vendor's compute
// platform.
type MetadataProvider struct {
	client *resty.Client
	log    *zap.SugaredLogger

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewMetadataProvider builds a provider against baseURL; an empty baseURL
// targets the well-known metadata host.
func NewMetadataProvider(baseURL string, log *zap.SugaredLogger) *MetadataProvider {
	if baseURL == "" {
		baseURL = DefaultMetadataBaseURL
	}
	if log == nil {
		log = zap.S()
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Metadata-Flavor", "Google").
		SetTimeout(10 * time.Second)
	return &MetadataProvider{
		client: client,
		log:    log.With("component", "MetadataProvider"),
	}
}

func (p *MetadataProvider) Token(ctx context.Context) (string, error) {
	if err := p.RefreshIfExpired(ctx); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token, nil
}

func (p *MetadataProvider) RefreshIfExpired(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && time.Until(p.expiry) > expirySkew {
		return nil
	}

	var tok metadataTokenResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&tok).
		Get(metadataTokenPath)
	if err != nil {
		return fmt.Errorf("querying metadata server: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("metadata server returned %s", resp.Status())
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("metadata server returned an empty token")
	}

	p.token = tok.AccessToken
	p.expiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	p.log.Debugw("refreshed metadata token", "expiresIn", tok.ExpiresIn)
	return nil
}
