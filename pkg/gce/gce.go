// Package gce wraps the compute-instance API. Mutations return long-running
// operation handles for the poller; all calls run under the execution core.
package gce

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"
	compute "google.golang.org/api/compute/v1"
	"google.golang.org/api/option"

	"github.com/telekom/gcloud-clients/pkg/retry"
)

// Client wraps the vendor's compute service for one project.
type Client struct {
	svc     *compute.Service
	exec    *retry.Executor
	project string
	log     *zap.SugaredLogger
}

// New builds a Client for project on top of the vendor SDK.
func New(ctx context.Context, project string, exec *retry.Executor, log *zap.SugaredLogger, opts ...option.ClientOption) (*Client, error) {
	svc, err := compute.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating compute service: %w", err)
	}
	if log == nil {
		log = zap.S()
	}
	return &Client{
		svc:     svc,
		exec:    exec,
		project: project,
		log:     log.With("component", "GCEClient"),
	}, nil
}

// GetInstance fetches an instance. An absent instance is reported as
// ok == false.
func (c *Client) GetInstance(ctx context.Context, zone, name string) (*compute.Instance, bool, error) {
	desc := c.describe(zone, name, "get")
	inst, err := retry.Do(ctx, c.exec, desc, func(ctx context.Context) (*compute.Instance, error) {
		return c.svc.Instances.Get(c.project, zone, name).Context(ctx).Do()
	})
	if retry.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return inst, true, nil
}

// InsertInstance submits an instance creation and returns its operation
// handle. An already existing instance is surfaced via
// retry.ErrAlreadyExists.
func (c *Client) InsertInstance(ctx context.Context, zone string, instance *compute.Instance) (retry.Operation, error) {
	desc := c.describe(zone, instance.Name, "insert")
	op, err := retry.Do(ctx, c.exec, desc, func(ctx context.Context) (*compute.Operation, error) {
		return c.svc.Instances.Insert(c.project, zone, instance).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}
	return c.operation(op, desc), nil
}

// DeleteInstance submits an instance deletion. Deleting an absent instance
// returns found == false and no operation.
func (c *Client) DeleteInstance(ctx context.Context, zone, name string) (retry.Operation, bool, error) {
	desc := c.describe(zone, name, "delete")
	op, err := retry.Do(ctx, c.exec, desc, func(ctx context.Context) (*compute.Operation, error) {
		return c.svc.Instances.Delete(c.project, zone, name).Context(ctx).Do()
	})
	if retry.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return c.operation(op, desc), true, nil
}

func (c *Client) describe(zone, name, verb string) string {
	return fmt.Sprintf("projects/%s/zones/%s/instances/%s/%s", c.project, zone, name, verb)
}

// operation adapts a compute operation to the poller, dispatching to the
// zone or global operations endpoint depending on the operation's scope.
func (c *Client) operation(op *compute.Operation, desc string) retry.Operation {
	return &computeOperation{
		svc:     c.svc,
		project: c.project,
		zone:    zoneOf(op),
		name:    op.Name,
		desc:    desc,
	}
}

// zoneOf extracts the short zone name from an operation's zone URL; global
// operations carry none.
func zoneOf(op *compute.Operation) string {
	if op.Zone == "" {
		return ""
	}
	return path.Base(op.Zone)
}

type computeOperation struct {
	svc     *compute.Service
	project string
	zone    string
	name    string
	desc    string
}

func (o *computeOperation) Describe() string { return o.desc }

func (o *computeOperation) Poll(ctx context.Context) (retry.OperationStatus, error) {
	var op *compute.Operation
	var err error
	if o.zone != "" {
		op, err = o.svc.ZoneOperations.Get(o.project, o.zone, o.name).Context(ctx).Do()
	} else {
		op, err = o.svc.GlobalOperations.Get(o.project, o.name).Context(ctx).Do()
	}
	if err != nil {
		return retry.OperationStatus{}, err
	}
	if op.Status != "DONE" {
		return retry.OperationStatus{}, nil
	}
	return retry.OperationStatus{Done: true, Err: operationError(op)}, nil
}

// operationError folds an operation's error list into one error, nil when
// the operation succeeded.
func operationError(op *compute.Operation) error {
	if op.Error == nil || len(op.Error.Errors) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(op.Error.Errors))
	for _, e := range op.Error.Errors {
		msgs = append(msgs, e.Message)
	}
	return fmt.Errorf("operation %s failed: %s", op.Name, strings.Join(msgs, "; "))
}
