// Package metrics defines Prometheus metrics for the gcloud client core,
// covering vendor call attempts, retries, long-running operation polling,
// and the per-cluster client cache.
package metrics
