package kube

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/telekom/gcloud-clients/pkg/credentials"
	"github.com/telekom/gcloud-clients/pkg/metrics"
)

// CacheConfig bounds the lifetime of cached cluster clients. The zero value
// is usable.
type CacheConfig struct {
	// TTL expires an entry a fixed duration after it was created. Access
	// never extends it: long-lived entries are deliberately forced to
	// rebuild so they pick up endpoint and certificate changes.
	TTL time.Duration
	// SweepInterval is how often expired entries are physically removed.
	SweepInterval time.Duration
}

// DefaultCacheConfig rebuilds each cluster client every 30 minutes.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:           30 * time.Minute,
		SweepInterval: 5 * time.Minute,
	}
}

func (c *CacheConfig) applyDefaults() {
	def := DefaultCacheConfig()
	if c.TTL == 0 {
		c.TTL = def.TTL
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = def.SweepInterval
	}
}

// ClientCache hands out shared ClusterClients keyed by cluster identity.
// Loads are single-flight per key, entries expire a fixed duration after
// creation, and every access rewrites the handle's bearer token in place
// after a refresh-if-expired check against the credential provider.
//
// An in-flight caller holding a handle whose entry expires keeps using its
// handle; it simply is not served to the next caller.
type ClientCache struct {
	cfg     CacheConfig
	store   *gocache.Cache
	group   singleflight.Group
	factory Factory
	creds   credentials.Provider
	log     *zap.SugaredLogger
}

// NewClientCache creates a cache loading clients through factory and keeping
// their tokens fresh through creds.
func NewClientCache(factory Factory, creds credentials.Provider, cfg CacheConfig, log *zap.SugaredLogger) *ClientCache {
	cfg.applyDefaults()
	if log == nil {
		log = zap.S()
	}

	store := gocache.New(cfg.TTL, cfg.SweepInterval)
	store.OnEvicted(func(key string, _ interface{}) {
		metrics.ClientCacheEvictions.WithLabelValues(key).Inc()
	})

	return &ClientCache{
		cfg:     cfg,
		store:   store,
		factory: factory,
		creds:   creds,
		log:     log.With("component", "ClientCache"),
	}
}

// Get returns the shared client for key, loading it on first access. It only
// fails when the factory load or the token refresh fails.
func (cc *ClientCache) Get(ctx context.Context, key ClusterKey) (*ClusterClient, error) {
	id := key.String()

	if v, found := cc.store.Get(id); found {
		metrics.ClientCacheHits.WithLabelValues(id).Inc()
		client := v.(*ClusterClient)
		if err := cc.refreshToken(ctx, client); err != nil {
			return nil, err
		}
		return client, nil
	}

	metrics.ClientCacheMisses.WithLabelValues(id).Inc()
	v, err, _ := cc.group.Do(id, func() (interface{}, error) {
		// A racing caller may have finished the load between our miss
		// and joining the flight.
		if v, found := cc.store.Get(id); found {
			return v, nil
		}
		cc.log.Infow("loading cluster client", "cluster", id)
		client, err := cc.factory.Build(ctx, key)
		if err != nil {
			metrics.ClientCacheLoadFailures.WithLabelValues(id).Inc()
			return nil, err
		}
		cc.store.Set(id, client, gocache.DefaultExpiration)
		return client, nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading client for cluster %s: %w", id, err)
	}

	client := v.(*ClusterClient)
	if err := cc.refreshToken(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// Size returns the number of cached clients, expired entries included until
// the next sweep.
func (cc *ClientCache) Size() int {
	return cc.store.ItemCount()
}

// refreshToken forces the per-access credential check and rewrites the token
// on the shared handle. The entry's expiry is deliberately left untouched.
func (cc *ClientCache) refreshToken(ctx context.Context, client *ClusterClient) error {
	if err := cc.creds.RefreshIfExpired(ctx); err != nil {
		return fmt.Errorf("refreshing credentials for cluster %s: %w", client.Key(), err)
	}
	tok, err := cc.creds.Token(ctx)
	if err != nil {
		return fmt.Errorf("reading token for cluster %s: %w", client.Key(), err)
	}
	client.SetToken(tok)
	metrics.TokenRefreshes.WithLabelValues(client.Key().String()).Inc()
	return nil
}
