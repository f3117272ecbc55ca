// Package pubsub wraps the messaging API behind the execution core. Message
// payloads travel base64-encoded on the wire; Publish and DecodeData handle
// the codec so callers deal in raw bytes.
package pubsub

import (
	"context"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	pubsubapi "google.golang.org/api/pubsub/v1"

	"github.com/telekom/gcloud-clients/pkg/retry"
)

// Client wraps the vendor's messaging service for one project.
type Client struct {
	svc     *pubsubapi.Service
	exec    *retry.Executor
	project string
	log     *zap.SugaredLogger
}

// New builds a Client for project on top of the vendor SDK.
func New(ctx context.Context, project string, exec *retry.Executor, log *zap.SugaredLogger, opts ...option.ClientOption) (*Client, error) {
	svc, err := pubsubapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub service: %w", err)
	}
	if log == nil {
		log = zap.S()
	}
	return &Client{
		svc:     svc,
		exec:    exec,
		project: project,
		log:     log.With("component", "PubSubClient"),
	}, nil
}

// TopicName renders the fully qualified topic resource name.
func (c *Client) TopicName(topic string) string {
	return fmt.Sprintf("projects/%s/topics/%s", c.project, topic)
}

// SubscriptionName renders the fully qualified subscription resource name.
func (c *Client) SubscriptionName(sub string) string {
	return fmt.Sprintf("projects/%s/subscriptions/%s", c.project, sub)
}

// EnsureTopic creates a topic, treating an already existing one as success.
func (c *Client) EnsureTopic(ctx context.Context, topic string) error {
	name := c.TopicName(topic)
	err := c.exec.Do(ctx, name+"/create", func(ctx context.Context) error {
		_, err := c.svc.Projects.Topics.Create(name, &pubsubapi.Topic{}).Context(ctx).Do()
		return err
	})
	if retry.IsAlreadyExists(err) {
		c.log.Debugw("topic already present", "topic", name)
		return nil
	}
	return err
}

// DeleteTopic removes a topic. Deleting an absent topic returns
// found == false and no error.
func (c *Client) DeleteTopic(ctx context.Context, topic string) (bool, error) {
	name := c.TopicName(topic)
	err := c.exec.Do(ctx, name+"/delete", func(ctx context.Context) error {
		_, err := c.svc.Projects.Topics.Delete(name).Context(ctx).Do()
		return err
	})
	if retry.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Publish sends the given payloads to a topic and returns the assigned
// message IDs.
func (c *Client) Publish(ctx context.Context, topic string, payloads ...[]byte) ([]string, error) {
	name := c.TopicName(topic)
	msgs := make([]*pubsubapi.PubsubMessage, 0, len(payloads))
	for _, p := range payloads {
		msgs = append(msgs, &pubsubapi.PubsubMessage{
			Data: base64.StdEncoding.EncodeToString(p),
		})
	}

	resp, err := retry.Do(ctx, c.exec, name+"/publish", func(ctx context.Context) (*pubsubapi.PublishResponse, error) {
		req := &pubsubapi.PublishRequest{Messages: msgs}
		return c.svc.Projects.Topics.Publish(name, req).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}
	return resp.MessageIds, nil
}

// Pull fetches up to max messages from a subscription.
func (c *Client) Pull(ctx context.Context, sub string, max int64) ([]*pubsubapi.ReceivedMessage, error) {
	name := c.SubscriptionName(sub)
	resp, err := retry.Do(ctx, c.exec, name+"/pull", func(ctx context.Context) (*pubsubapi.PullResponse, error) {
		req := &pubsubapi.PullRequest{MaxMessages: max}
		return c.svc.Projects.Subscriptions.Pull(name, req).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}
	return resp.ReceivedMessages, nil
}

// Acknowledge confirms processing of pulled messages.
func (c *Client) Acknowledge(ctx context.Context, sub string, ackIDs []string) error {
	if len(ackIDs) == 0 {
		return nil
	}
	name := c.SubscriptionName(sub)
	return c.exec.Do(ctx, name+"/ack", func(ctx context.Context) error {
		req := &pubsubapi.AcknowledgeRequest{AckIds: ackIDs}
		_, err := c.svc.Projects.Subscriptions.Acknowledge(name, req).Context(ctx).Do()
		return err
	})
}

// DecodeData decodes a received message's payload back to raw bytes.
func DecodeData(msg *pubsubapi.PubsubMessage) ([]byte, error) {
	if msg == nil || msg.Data == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding message payload: %w", err)
	}
	return data, nil
}
