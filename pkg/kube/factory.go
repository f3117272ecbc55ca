package kube

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/telekom/gcloud-clients/pkg/credentials"
)

// ClusterInfo is the connection material looked up from the control plane:
// the master endpoint and the cluster CA certificate (PEM).
type ClusterInfo struct {
	Endpoint string
	CACert   []byte
}

// Lookup resolves a cluster identity to its connection material. The managed
// cluster wrapper implements this against the vendor's control-plane API and
// already runs the remote call through the retry executor.
type Lookup interface {
	LookupCluster(ctx context.Context, key ClusterKey) (*ClusterInfo, error)
}

// Factory builds a ready-to-use ClusterClient for a cluster identity.
type Factory interface {
	Build(ctx context.Context, key ClusterKey) (*ClusterClient, error)
}

// ManagedClusterFactory provisions clients for vendor-managed clusters:
// control-plane lookup for endpoint and CA, then a clientset whose transport
// reads the handle's refreshable bearer token.
type ManagedClusterFactory struct {
	lookup Lookup
	creds  credentials.Provider
	log    *zap.SugaredLogger
}

func NewManagedClusterFactory(lookup Lookup, creds credentials.Provider, log *zap.SugaredLogger) *ManagedClusterFactory {
	if log == nil {
		log = zap.S()
	}
	return &ManagedClusterFactory{
		lookup: lookup,
		creds:  creds,
		log:    log.With("component", "ManagedClusterFactory"),
	}
}

func (f *ManagedClusterFactory) Build(ctx context.Context, key ClusterKey) (*ClusterClient, error) {
	info, err := f.lookup.LookupCluster(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "looking up cluster %s", key)
	}

	tok, err := f.creds.Token(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "minting token for cluster %s", key)
	}

	client := &ClusterClient{key: key}
	cfg := &rest.Config{
		Host: "https://" + info.Endpoint,
		TLSClientConfig: rest.TLSClientConfig{
			CAData: info.CACert,
		},
		WrapTransport: func(rt http.RoundTripper) http.RoundTripper {
			return &tokenTransport{base: rt, source: client}
		},
	}
	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("building clientset for cluster %s: %w", key, err)
	}

	client.clientset = cs
	client.createdAt = time.Now()
	client.SetToken(tok)
	f.log.Infow("provisioned cluster client", "cluster", key.String(), "endpoint", info.Endpoint)
	return client, nil
}
