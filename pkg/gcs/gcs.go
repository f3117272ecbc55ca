// Package gcs wraps the object-storage API behind the execution core.
package gcs

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/telekom/gcloud-clients/pkg/retry"
)

// Client wraps the vendor's object-storage client.
type Client struct {
	c    *storage.Client
	exec *retry.Executor
	log  *zap.SugaredLogger
}

// New builds a Client on top of the vendor SDK.
func New(ctx context.Context, exec *retry.Executor, log *zap.SugaredLogger, opts ...option.ClientOption) (*Client, error) {
	c, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	if log == nil {
		log = zap.S()
	}
	return &Client{
		c:    c,
		exec: exec,
		log:  log.With("component", "GCSClient"),
	}, nil
}

// Close releases the underlying connections.
func (c *Client) Close() error {
	return c.c.Close()
}

// EnsureBucket creates a bucket in project, treating an already existing one
// as success.
func (c *Client) EnsureBucket(ctx context.Context, project, bucket string) error {
	desc := fmt.Sprintf("buckets/%s/create", bucket)
	err := c.exec.Do(ctx, desc, func(ctx context.Context) error {
		return c.c.Bucket(bucket).Create(ctx, project, nil)
	})
	if retry.IsAlreadyExists(err) {
		c.log.Debugw("bucket already present", "bucket", bucket)
		return nil
	}
	return err
}

// ReadObject fetches an object's content. An absent object (or bucket) is
// reported as ok == false.
func (c *Client) ReadObject(ctx context.Context, bucket, object string) ([]byte, bool, error) {
	desc := fmt.Sprintf("buckets/%s/objects/%s/get", bucket, object)
	data, err := retry.Do(ctx, c.exec, desc, func(ctx context.Context) ([]byte, error) {
		rc, err := c.c.Bucket(bucket).Object(object).NewReader(ctx)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	})
	if retry.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// WriteObject stores data under bucket/object, overwriting any previous
// content.
func (c *Client) WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error {
	desc := fmt.Sprintf("buckets/%s/objects/%s/write", bucket, object)
	return c.exec.Do(ctx, desc, func(ctx context.Context) error {
		w := c.c.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		if _, err := w.Write(data); err != nil {
			_ = w.Close()
			return err
		}
		// The upload is committed at Close; errors surface here.
		return w.Close()
	})
}

// DeleteObject removes an object. Deleting an absent object returns
// found == false and no error.
func (c *Client) DeleteObject(ctx context.Context, bucket, object string) (bool, error) {
	desc := fmt.Sprintf("buckets/%s/objects/%s/delete", bucket, object)
	err := c.exec.Do(ctx, desc, func(ctx context.Context) error {
		return c.c.Bucket(bucket).Object(object).Delete(ctx)
	})
	if retry.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListObjects returns the names of all objects under prefix.
func (c *Client) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	desc := fmt.Sprintf("buckets/%s/objects/list", bucket)
	return retry.Do(ctx, c.exec, desc, func(ctx context.Context) ([]string, error) {
		var names []string
		it := c.c.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
		for {
			attrs, err := it.Next()
			if err == iterator.Done {
				return names, nil
			}
			if err != nil {
				return nil, err
			}
			names = append(names, attrs.Name)
		}
	})
}
