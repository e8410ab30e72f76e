// Package perr names the error kinds shared across the pipeline runtime
// so every layer reports failures the same way: sentinel errors checked
// with errors.Is, wrapped with fmt.Errorf("...: %w").
package perr

import "errors"

var (
	// ErrConfigInvalid is fatal at init: the affected pipeline does not start.
	ErrConfigInvalid = errors.New("loongcollector: config invalid")
	// ErrResourceUnavailable is transient; the caller is expected to retry.
	ErrResourceUnavailable = errors.New("loongcollector: resource unavailable")
	// ErrQueueFull is a non-fatal admission denial.
	ErrQueueFull = errors.New("loongcollector: queue full")
	// ErrQueueNotFound indicates a routing bug: the caller is logged and the
	// item is dropped, never retried against a key that does not exist.
	ErrQueueNotFound = errors.New("loongcollector: queue not found")
	// ErrFlusherSendFailed is retried by the flusher itself with backoff.
	ErrFlusherSendFailed = errors.New("loongcollector: flusher send failed")
	// ErrInternal marks a programmer error: logged, the process continues.
	ErrInternal = errors.New("loongcollector: internal error")
)
