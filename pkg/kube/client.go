// Package kube provides cached, token-refreshing API clients for remote
// clusters. Building a client is expensive (a control-plane lookup plus
// certificate and token provisioning), so clients are shared per cluster
// identity and rebuilt only when their cache entry expires.
package kube

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"k8s.io/client-go/kubernetes"
)

// ClusterKey identifies one remote cluster.
type ClusterKey struct {
	Project  string
	Location string
	Name     string
}

func (k ClusterKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Project, k.Location, k.Name)
}

// ResourceName renders the key in the vendor's resource-name form.
func (k ClusterKey) ResourceName() string {
	return fmt.Sprintf("projects/%s/locations/%s/clusters/%s", k.Project, k.Location, k.Name)
}

// ClusterClient is a shared handle to one remote cluster. The embedded
// bearer token is rewritten in place on every cache access, so a refresh is
// visible to every holder of the handle at once; per-holder token copies
// would leave long-lived holders with stale credentials.
type ClusterClient struct {
	key       ClusterKey
	createdAt time.Time
	clientset kubernetes.Interface

	mu    sync.RWMutex
	token string
}

// NewClusterClient wraps an already-built clientset. Production clients come
// out of a Factory; this constructor also serves tests using fake clientsets.
func NewClusterClient(key ClusterKey, cs kubernetes.Interface) *ClusterClient {
	return &ClusterClient{
		key:       key,
		createdAt: time.Now(),
		clientset: cs,
	}
}

// Key returns the cluster identity this client talks to.
func (c *ClusterClient) Key() ClusterKey { return c.key }

// Clientset returns the shared API client.
func (c *ClusterClient) Clientset() kubernetes.Interface { return c.clientset }

// CreatedAt returns when this handle was provisioned. The cache expires
// entries a fixed duration after this instant regardless of later accesses.
func (c *ClusterClient) CreatedAt() time.Time { return c.createdAt }

// SetToken rewrites the embedded bearer token.
func (c *ClusterClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// CurrentToken returns the bearer token used for the next request.
func (c *ClusterClient) CurrentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// tokenTransport injects the handle's current bearer token into every
// request, reading it at request time so in-place refreshes take effect
// without rebuilding the transport.
type tokenTransport struct {
	base   http.RoundTripper
	source *ClusterClient
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.source.CurrentToken())
	return t.base.RoundTrip(clone)
}
