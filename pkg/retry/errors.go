// Package retry implements the RetryPolicy interface (spec.md §4.7) and the
// error taxonomy of spec.md §7. The default policy is exponential backoff
// with a cap, grounded on github.com/cenkalti/backoff/v4's curve as used by
// the Snowpipe Streaming channel in the retrieval pack's
// fearfates-connect/internal/impl/snowflake/streaming package.
package retry

import "fmt"

// Kind classifies the failure a worker encountered, per spec.md §7.
type Kind int

const (
	// KindTransientNetwork covers broker or ingest I/O blips, server-side
	// throttling, and handle-renewal-needed conditions.
	KindTransientNetwork Kind = iota
	// KindIngestDurabilityTimeout is a durable-ack wait that exceeded its
	// deadline without an error response.
	KindIngestDurabilityTimeout
	// KindCheckpointPersist is a SQL error while saving a checkpoint.
	KindCheckpointPersist
	// KindPermanent covers schema mismatch, auth revoked, PIPE deleted —
	// never retryable.
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindTransientNetwork:
		return "transient-network"
	case KindIngestDurabilityTimeout:
		return "ingest-durability-timeout"
	case KindCheckpointPersist:
		return "checkpoint-persist"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with the Kind the core uses to drive
// retry decisions. Components raise *Error rather than bare errors so a
// RetryPolicy never has to guess at classification from error text.
type Error struct {
	Kind      Kind
	Partition string
	Mapping   string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s [mapping=%s partition=%s]: %v", e.Kind, e.Mapping, e.Partition, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// TransientNetworkFailure builds a KindTransientNetwork error.
func TransientNetworkFailure(mapping, partition string, err error) *Error {
	return &Error{Kind: KindTransientNetwork, Mapping: mapping, Partition: partition, Err: err}
}

// IngestDurabilityTimeout builds a KindIngestDurabilityTimeout error.
func IngestDurabilityTimeout(mapping, partition string, err error) *Error {
	return &Error{Kind: KindIngestDurabilityTimeout, Mapping: mapping, Partition: partition, Err: err}
}

// CheckpointPersistFailure builds a KindCheckpointPersist error.
func CheckpointPersistFailure(mapping, partition string, err error) *Error {
	return &Error{Kind: KindCheckpointPersist, Mapping: mapping, Partition: partition, Err: err}
}

// PermanentIngestFailure builds a KindPermanent error.
func PermanentIngestFailure(mapping, partition string, err error) *Error {
	return &Error{Kind: KindPermanent, Mapping: mapping, Partition: partition, Err: err}
}

// ControlTableMissing is returned by CheckpointStore.LoadAll when the
// control table was dropped mid-run (spec.md §4.1) — always fatal.
type ControlTableMissing struct {
	Table string
	Err   error
}

func (e *ControlTableMissing) Error() string {
	return fmt.Sprintf("control table %s missing: %v", e.Table, e.Err)
}

func (e *ControlTableMissing) Unwrap() error { return e.Err }

// ConfigurationError is raised at startup by the external loader, not
// during the steady-state loop (spec.md §7).
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error (%s): %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
