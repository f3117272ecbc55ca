package gce

import (
	"context"
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
	compute "google.golang.org/api/compute/v1"
	"google.golang.org/api/option"

	"github.com/telekom/gcloud-clients/pkg/gate"
	"github.com/telekom/gcloud-clients/pkg/retry"
)

const (
	testProject = "demo-project"
	testZone    = "europe-west3-a"
)

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

func TestGetInstance(t *testing.T) {
	t.Run("returns an existing instance", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.True(t, strings.HasSuffix(r.URL.Path, "/instances/worker-0"))
			writeJSON(t, w, &compute.Instance{Name: "worker-0", Status: "RUNNING"})
		}))

		inst, found, err := client.GetInstance(context.Background(), testZone, "worker-0")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "RUNNING", inst.Status)
	})

	t.Run("reports absence without an error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeAPIError(w, http.StatusNotFound, "instance not found")
		}))

		inst, found, err := client.GetInstance(context.Background(), testZone, "missing")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, inst)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var hits int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&hits, 1) == 1 {
				writeAPIError(w, http.StatusBadGateway, "backend flapped")
				return
			}
			writeJSON(t, w, &compute.Instance{Name: "worker-0"})
		}))

		_, found, err := client.GetInstance(context.Background(), testZone, "worker-0")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	})
}

func TestInsertInstance(t *testing.T) {
	t.Run("returns a zonal operation that completes under the poller", func(t *testing.T) {
		var polls int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/instances"):
				writeJSON(t, w, &compute.Operation{
					Name:   "op-insert-1",
					Status: "RUNNING",
					Zone:   "https://www.googleapis.com/compute/v1/projects/demo-project/zones/" + testZone,
				})
			case strings.Contains(r.URL.Path, "/zones/"+testZone+"/operations/op-insert-1"):
				status := "RUNNING"
				if atomic.AddInt32(&polls, 1) >= 2 {
					status = "DONE"
				}
				writeJSON(t, w, &compute.Operation{Name: "op-insert-1", Status: status})
			default:
				http.NotFound(w, r)
			}
		}))

		op, err := client.InsertInstance(context.Background(), testZone, &compute.Instance{Name: "worker-0"})
		require.NoError(t, err)

		poller := retry.NewPoller(client.exec, retry.PollConfig{
			Interval: time.Millisecond,
			MaxPolls: 20,
			Deadline: time.Second,
		}, zap.NewNop().Sugar())
		require.NoError(t, poller.Wait(context.Background(), op))
		assert.Equal(t, int32(2), atomic.LoadInt32(&polls))
	})

	t.Run("surfaces an existing instance as a typed conflict", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeAPIError(w, http.StatusConflict, "already exists")
		}))

		_, err := client.InsertInstance(context.Background(), testZone, &compute.Instance{Name: "worker-0"})
		assert.True(t, retry.IsAlreadyExists(err))
	})

	t.Run("propagates the operation's error list", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/instances"):
				writeJSON(t, w, &compute.Operation{
					Name:   "op-insert-2",
					Status: "RUNNING",
					Zone:   "https://www.googleapis.com/compute/v1/projects/demo-project/zones/" + testZone,
				})
			default:
				writeJSON(t, w, &compute.Operation{
					Name:   "op-insert-2",
					Status: "DONE",
					Error: &compute.OperationError{Errors: []*compute.OperationErrorErrors{
						{Message: "quota exceeded"},
						{Message: "zone exhausted"},
					}},
				})
			}
		}))

		op, err := client.InsertInstance(context.Background(), testZone, &compute.Instance{Name: "worker-0"})
		require.NoError(t, err)

		poller := retry.NewPoller(client.exec, retry.PollConfig{
			Interval: time.Millisecond,
			MaxPolls: 20,
			Deadline: time.Second,
		}, zap.NewNop().Sugar())
		err = poller.Wait(context.Background(), op)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded; zone exhausted")
	})
}

func TestDeleteInstance(t *testing.T) {
	t.Run("returns the deletion operation", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodDelete, r.Method)
			writeJSON(t, w, &compute.Operation{Name: "op-delete-1", Status: "RUNNING"})
		}))

		op, found, err := client.DeleteInstance(context.Background(), testZone, "worker-0")
		require.NoError(t, err)
		assert.True(t, found)
		assert.NotNil(t, op)
	})

	t.Run("treats an absent instance as not found", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeAPIError(w, http.StatusNotFound, "instance not found")
		}))

		op, found, err := client.DeleteInstance(context.Background(), testZone, "missing")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, op)
	})
}

func TestZoneOf(t *testing.T) {
	t.Run("extracts the short zone name from the zone URL", func(t *testing.T) {
		op := &compute.Operation{Zone: "https://www.googleapis.com/compute/v1/projects/demo-project/zones/europe-west3-a"}
		assert.Equal(t, "europe-west3-a", zoneOf(op))
	})

	t.Run("global operations carry no zone", func(t *testing.T) {
		assert.Empty(t, zoneOf(&compute.Operation{}))
	})
}

func TestOperationError(t *testing.T) {
	t.Run("nil for a clean operation", func(t *testing.T) {
		assert.NoError(t, operationError(&compute.Operation{Name: "op"}))
		assert.NoError(t, operationError(&compute.Operation{Name: "op", Error: &compute.OperationError{}}))
	})

	t.Run("joins all reported messages", func(t *testing.T) {
		err := operationError(&compute.Operation{
			Name: "op",
			Error: &compute.OperationError{Errors: []*compute.OperationErrorErrors{
				{Message: "first"},
				{Message: "second"},
			}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "first; second")
	})
}
