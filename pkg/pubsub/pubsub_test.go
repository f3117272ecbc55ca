package pubsub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	pubsubapi "google.golang.org/api/pubsub/v1"

	"github.com/telekom/gcloud-clients/pkg/gate"
	"github.com/telekom/gcloud-clients/pkg/retry"
)

const testProject = "demo-project"

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	exec, err := retry.NewExecutor(gate.New(4), retry.Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		Multiplier:     1.5,
		MaxBackoff:     5 * time.Millisecond,
	}, zap.NewNop().Sugar())
	require.NoError(t, err)

	client, err := New(context.Background(), testProject, exec, zap.NewNop().Sugar(),
		option.WithEndpoint(srv.URL),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func writeAPIError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	body := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	}
	_ = json.NewEncoder(w).Encode(body)
}

func TestNames(t *testing.T) {
	client := &Client{project: testProject}

	assert.Equal(t, "projects/demo-project/topics/events", client.TopicName("events"))
	assert.Equal(t, "projects/demo-project/subscriptions/events-sub", client.SubscriptionName("events-sub"))
}

func TestEnsureTopic(t *testing.T) {
	t.Run("creates the topic", func(t *testing.T) {
		var created int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPut, r.Method)
			require.True(t, strings.HasSuffix(r.URL.Path, "/topics/events"))
			atomic.AddInt32(&created, 1)
			writeJSON(t, w, &pubsubapi.Topic{Name: "projects/demo-project/topics/events"})
		}))

		require.NoError(t, client.EnsureTopic(context.Background(), "events"))
		assert.Equal(t, int32(1), atomic.LoadInt32(&created))
	})

	t.Run("treats an existing topic as success", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeAPIError(w, http.StatusConflict, "topic exists")
		}))

		assert.NoError(t, client.EnsureTopic(context.Background(), "events"))
	})

	t.Run("propagates fatal failures", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeAPIError(w, http.StatusForbidden, "permission denied")
		}))

		assert.Error(t, client.EnsureTopic(context.Background(), "events"))
	})
}

func TestDeleteTopic(t *testing.T) {
	t.Run("deletes an existing topic", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodDelete, r.Method)
			writeJSON(t, w, &pubsubapi.Empty{})
		}))

		found, err := client.DeleteTopic(context.Background(), "events")
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("treats an absent topic as not found", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeAPIError(w, http.StatusNotFound, "no such topic")
		}))

		found, err := client.DeleteTopic(context.Background(), "events")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestPublish(t *testing.T) {
	t.Run("encodes payloads and returns the assigned ids", func(t *testing.T) {
		var got pubsubapi.PublishRequest
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.True(t, strings.HasSuffix(r.URL.Path, "/topics/events:publish"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			writeJSON(t, w, &pubsubapi.PublishResponse{MessageIds: []string{"1", "2"}})
		}))

		ids, err := client.Publish(context.Background(), "events", []byte("hello"), []byte("world"))
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "2"}, ids)

		require.Len(t, got.Messages, 2)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello")), got.Messages[0].Data)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("world")), got.Messages[1].Data)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var hits int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&hits, 1) == 1 {
				writeAPIError(w, http.StatusTooManyRequests, "throttled")
				return
			}
			writeJSON(t, w, &pubsubapi.PublishResponse{MessageIds: []string{"1"}})
		}))

		ids, err := client.Publish(context.Background(), "events", []byte("hello"))
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, ids)
		assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	})
}

func TestPullAndAcknowledge(t *testing.T) {
	t.Run("round-trips a message through pull, decode and ack", func(t *testing.T) {
		var acked pubsubapi.AcknowledgeRequest
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.HasSuffix(r.URL.Path, ":pull"):
				writeJSON(t, w, &pubsubapi.PullResponse{ReceivedMessages: []*pubsubapi.ReceivedMessage{
					{
						AckId: "ack-1",
						Message: &pubsubapi.PubsubMessage{
							MessageId: "1",
							Data:      base64.StdEncoding.EncodeToString([]byte("payload")),
						},
					},
				}})
			case strings.HasSuffix(r.URL.Path, ":acknowledge"):
				require.NoError(t, json.NewDecoder(r.Body).Decode(&acked))
				writeJSON(t, w, &pubsubapi.Empty{})
			default:
				http.NotFound(w, r)
			}
		}))

		msgs, err := client.Pull(context.Background(), "events-sub", 10)
		require.NoError(t, err)
		require.Len(t, msgs, 1)

		data, err := DecodeData(msgs[0].Message)
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), data)

		require.NoError(t, client.Acknowledge(context.Background(), "events-sub", []string{msgs[0].AckId}))
		assert.Equal(t, []string{"ack-1"}, acked.AckIds)
	})

	t.Run("acknowledging nothing is a no-op", func(t *testing.T) {
		var hits int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
		}))

		assert.NoError(t, client.Acknowledge(context.Background(), "events-sub", nil))
		assert.Zero(t, atomic.LoadInt32(&hits))
	})
}

func TestDecodeData(t *testing.T) {
	t.Run("nil and empty payloads decode to nil", func(t *testing.T) {
		data, err := DecodeData(nil)
		require.NoError(t, err)
		assert.Nil(t, data)

		data, err = DecodeData(&pubsubapi.PubsubMessage{})
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		_, err := DecodeData(&pubsubapi.PubsubMessage{Data: "not base64!!"})
		assert.Error(t, err)
	})
}
