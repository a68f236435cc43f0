package fetch

// Package fetch wraps an HTTP client with bounded retry and backoff for
// transient failures. Retries are invisible to callers except as latency.
