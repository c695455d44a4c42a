// Package audit records every gateway decision. Writes are asynchronous
// and best-effort: an unreachable audit store logs a local warning and
// never alters the caller-visible response.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/assistdeck/gateway/internal/logging"
	"github.com/assistdeck/gateway/internal/worker"
)

// Outcome classifies how a request terminated.
type Outcome string

const (
	OutcomeCompleted        Outcome = "completed"
	OutcomeUnauthorized     Outcome = "unauthorized"
	OutcomeRateLimited      Outcome = "rate_limited"
	OutcomeSchemaProtection Outcome = "schema_protection"
	OutcomeSchemaRejected   Outcome = "schema_validation_failed"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeDownstreamError  Outcome = "downstream_error"
	OutcomeError            Outcome = "error"
)

// Entry is the human-readable activity record, one per request. It is
// created once by the gateway core and never mutated afterwards.
type Entry struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	Target       string    `json:"target"`
	Action       string    `json:"action"`
	StartedAt    time.Time `json:"started_at"`
	DurationMs   int64     `json:"duration_ms"`
	Outcome      Outcome   `json:"outcome"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// CallRecord is the structured call-log record: payload shape and timing
// for the dispatched call.
type CallRecord struct {
	EntryID     string    `json:"entry_id"`
	Target      string    `json:"target"`
	Action      string    `json:"action"`
	PayloadSize int       `json:"payload_size"`
	StartedAt   time.Time `json:"started_at"`
	DurationMs  int64     `json:"duration_ms"`
	Success     bool      `json:"success"`
}

// NewEntryID returns a fresh audit entry ID.
func NewEntryID() string { return uuid.NewString() }

// Store persists audit records. Implementations are expected to be slow
// (remote) and fallible; the Logger isolates them from the request path.
type Store interface {
	WriteActivity(ctx context.Context, entry Entry) error
	WriteCallLog(ctx context.Context, record CallRecord) error
}

// writeTimeout bounds each background store write.
const writeTimeout = 10 * time.Second

// Logger dispatches audit records to a Store through the background
// worker pool. Record never blocks the caller and never returns an error.
type Logger struct {
	store  Store
	pool   *worker.Pool
	logger *logging.Logger
}

// NewLogger creates an audit logger over the given store.
func NewLogger(store Store, pool *worker.Pool, logger *logging.Logger) *Logger {
	return &Logger{store: store, pool: pool, logger: logger}
}

// Record writes the activity entry and, when record is non-nil, the call
// log. Failures are logged locally; the response already computed by the
// pipeline is never delayed or replaced. The return value reports whether
// the write was enqueued (false when the background queue was full).
func (l *Logger) Record(entry Entry, record *CallRecord) bool {
	return l.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		if err := l.store.WriteActivity(ctx, entry); err != nil {
			l.logger.WithError(err).WithFields(map[string]interface{}{
				"entry_id": entry.ID,
			}).Warn("audit activity write failed")
		}

		if record != nil {
			if err := l.store.WriteCallLog(ctx, *record); err != nil {
				l.logger.WithError(err).WithFields(map[string]interface{}{
					"entry_id": record.EntryID,
				}).Warn("audit call log write failed")
			}
		}
	})
}
