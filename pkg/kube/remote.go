package kube

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/telekom/gcloud-clients/pkg/retry"
)

// RemoteClusters exposes API access to remote clusters through the client
// cache, with every call running under the retry executor.
type RemoteClusters struct {
	cache *ClientCache
	exec  *retry.Executor
	log   *zap.SugaredLogger
}

func NewRemoteClusters(cache *ClientCache, exec *retry.Executor, log *zap.SugaredLogger) *RemoteClusters {
	if log == nil {
		log = zap.S()
	}
	return &RemoteClusters{
		cache: cache,
		exec:  exec,
		log:   log.With("component", "RemoteClusters"),
	}
}

// GetNamespace fetches a namespace from the target cluster. An absent
// namespace is reported as ok == false, not as an error.
func (r *RemoteClusters) GetNamespace(ctx context.Context, key ClusterKey, name string) (*corev1.Namespace, bool, error) {
	client, err := r.cache.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}

	desc := fmt.Sprintf("clusters/%s/namespaces/%s/get", key, name)
	ns, err := retry.Do(ctx, r.exec, desc, func(ctx context.Context) (*corev1.Namespace, error) {
		return client.Clientset().CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
	})
	if retry.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return ns, true, nil
}

// EnsureNamespace creates a namespace on the target cluster, treating an
// already existing one as success.
func (r *RemoteClusters) EnsureNamespace(ctx context.Context, key ClusterKey, name string) error {
	client, err := r.cache.Get(ctx, key)
	if err != nil {
		return err
	}

	desc := fmt.Sprintf("clusters/%s/namespaces/%s/create", key, name)
	err = r.exec.Do(ctx, desc, func(ctx context.Context) error {
		ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
		_, err := client.Clientset().CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
		return err
	})
	if retry.IsAlreadyExists(err) {
		r.log.Debugw("namespace already present", "cluster", key.String(), "namespace", name)
		return nil
	}
	return err
}

// ListPods lists pods in one namespace of the target cluster.
func (r *RemoteClusters) ListPods(ctx context.Context, key ClusterKey, namespace string) (*corev1.PodList, error) {
	client, err := r.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("clusters/%s/pods/list", key)
	return retry.Do(ctx, r.exec, desc, func(ctx context.Context) (*corev1.PodList, error) {
		return client.Clientset().CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	})
}
