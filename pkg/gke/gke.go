// Package gke wraps the managed-cluster API. Request construction and
// response unwrapping stay mechanical; retries, admission and operation
// polling are delegated to the execution core.
package gke

import (
	"context"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"
	container "google.golang.org/api/container/v1"
	"google.golang.org/api/option"

	"github.com/telekom/gcloud-clients/pkg/kube"
	"github.com/telekom/gcloud-clients/pkg/retry"
)

// Client wraps the vendor's managed-cluster service.
type Client struct {
	svc  *container.Service
	exec *retry.Executor
	log  *zap.SugaredLogger
}

// New builds a Client on top of the vendor SDK.
func New(ctx context.Context, exec *retry.Executor, log *zap.SugaredLogger, opts ...option.ClientOption) (*Client, error) {
	svc, err := container.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating container service: %w", err)
	}
	if log == nil {
		log = zap.S()
	}
	return &Client{
		svc:  svc,
		exec: exec,
		log:  log.With("component", "GKEClient"),
	}, nil
}

// GetCluster fetches a cluster description. An absent cluster is reported as
// ok == false.
func (c *Client) GetCluster(ctx context.Context, key kube.ClusterKey) (*container.Cluster, bool, error) {
	desc := key.ResourceName() + "/get"
	cluster, err := retry.Do(ctx, c.exec, desc, func(ctx context.Context) (*container.Cluster, error) {
		return c.svc.Projects.Locations.Clusters.Get(key.ResourceName()).Context(ctx).Do()
	})
	if retry.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return cluster, true, nil
}

// CreateCluster submits a cluster creation and returns the handle of the
// resulting long-running operation. An already existing cluster is surfaced
// via retry.ErrAlreadyExists.
func (c *Client) CreateCluster(ctx context.Context, key kube.ClusterKey, cluster *container.Cluster) (retry.Operation, error) {
	parent := fmt.Sprintf("projects/%s/locations/%s", key.Project, key.Location)
	desc := key.ResourceName() + "/create"

	op, err := retry.Do(ctx, c.exec, desc, func(ctx context.Context) (*container.Operation, error) {
		req := &container.CreateClusterRequest{Cluster: cluster}
		return c.svc.Projects.Locations.Clusters.Create(parent, req).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}
	return c.operation(key, op.Name, desc), nil
}

// DeleteCluster submits a cluster deletion. Deleting an absent cluster
// returns found == false and no operation.
func (c *Client) DeleteCluster(ctx context.Context, key kube.ClusterKey) (retry.Operation, bool, error) {
	desc := key.ResourceName() + "/delete"
	op, err := retry.Do(ctx, c.exec, desc, func(ctx context.Context) (*container.Operation, error) {
		return c.svc.Projects.Locations.Clusters.Delete(key.ResourceName()).Context(ctx).Do()
	})
	if retry.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return c.operation(key, op.Name, desc), true, nil
}

// LookupCluster implements kube.Lookup: it resolves a cluster identity to
// the connection material the client factory needs.
func (c *Client) LookupCluster(ctx context.Context, key kube.ClusterKey) (*kube.ClusterInfo, error) {
	cluster, found, err := c.GetCluster(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("cluster %s: %w", key, retry.ErrNotFound)
	}
	if cluster.MasterAuth == nil || cluster.MasterAuth.ClusterCaCertificate == "" {
		return nil, fmt.Errorf("cluster %s exposes no CA certificate", key)
	}
	ca, err := base64.StdEncoding.DecodeString(cluster.MasterAuth.ClusterCaCertificate)
	if err != nil {
		return nil, fmt.Errorf("decoding CA certificate of cluster %s: %w", key, err)
	}
	return &kube.ClusterInfo{
		Endpoint: cluster.Endpoint,
		CACert:   ca,
	}, nil
}

func (c *Client) operation(key kube.ClusterKey, name, desc string) retry.Operation {
	return &clusterOperation{
		svc:  c.svc,
		name: fmt.Sprintf("projects/%s/locations/%s/operations/%s", key.Project, key.Location, name),
		desc: desc,
	}
}

// clusterOperation adapts a managed-cluster operation to the poller.
type clusterOperation struct {
	svc  *container.Service
	name string
	desc string
}

func (o *clusterOperation) Describe() string { return o.desc }

func (o *clusterOperation) Poll(ctx context.Context) (retry.OperationStatus, error) {
	op, err := o.svc.Projects.Locations.Operations.Get(o.name).Context(ctx).Do()
	if err != nil {
		return retry.OperationStatus{}, err
	}
	if op.Status != "DONE" {
		return retry.OperationStatus{}, nil
	}
	if op.Error != nil {
		return retry.OperationStatus{Done: true, Err: fmt.Errorf("operation %s failed: %s", op.Name, op.Error.Message)}, nil
	}
	return retry.OperationStatus{Done: true}, nil
}
