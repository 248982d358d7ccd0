package models

import "errors"

// Sentinel errors shared between the store, the mutation queue and the
// orchestrator. The queue classifies store failures against these:
// ErrRateLimited means "requeue and back off", ErrNotFound on a delete
// means "already gone, count as success".
var (
	ErrNotFound    = errors.New("record not found")
	ErrRateLimited = errors.New("store rate limit exceeded")
)
