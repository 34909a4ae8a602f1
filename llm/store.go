package llm

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// defaultRingSize bounds the in-memory call history.
const defaultRingSize = 128

// CallRecord represents a single generation call with full context for the
// run archive.
type CallRecord struct {
	// RequestID uniquely identifies this call.
	RequestID string `json:"request_id"`

	// Capability is the semantic capability requested (drafting, review, etc.).
	Capability string `json:"capability"`

	// Model is the actual model that was used for this call.
	Model string `json:"model"`

	// Provider is the model provider (anthropic, ollama, openai).
	Provider string `json:"provider"`

	// Messages is the input message history sent to the model.
	Messages []Message `json:"messages"`

	// Response is the generated content.
	Response string `json:"response,omitempty"`

	// PromptTokens is the number of input tokens consumed.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of output tokens generated.
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total tokens consumed (prompt + completion).
	TotalTokens int `json:"total_tokens"`

	// FinishReason indicates why generation stopped.
	FinishReason string `json:"finish_reason,omitempty"`

	// StartedAt is when the call began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the call finished (success or failure).
	CompletedAt time.Time `json:"completed_at"`

	// DurationMs is the call duration in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// Error holds the failure message for unsuccessful calls.
	Error string `json:"error,omitempty"`

	// Retries counts retry attempts beyond the first try.
	Retries int `json:"retries"`

	// FallbacksUsed lists models that failed before this call resolved.
	FallbacksUsed []string `json:"fallbacks_used,omitempty"`
}

// Succeeded reports whether the call produced a response.
func (r *CallRecord) Succeeded() bool {
	return r.Error == ""
}

// Archiver persists call records outside the process. The archive
// package's store satisfies it; a nil Archiver keeps records in memory
// only.
type Archiver interface {
	PutCall(ctx context.Context, record *CallRecord) error
}

// CallStore records generation calls in a bounded in-memory ring and,
// when an archiver is configured, hands each record off for persistence.
// Archive failures are logged and do not fail the call.
type CallStore struct {
	mu    sync.Mutex
	ring  []*CallRecord
	next  int
	count int

	archiver Archiver
	logger   *slog.Logger
}

// CallStoreOption configures a CallStore.
type CallStoreOption func(*CallStore)

// WithCallStoreLogger sets the logger.
func WithCallStoreLogger(logger *slog.Logger) CallStoreOption {
	return func(s *CallStore) {
		s.logger = logger
	}
}

// WithRingSize overrides the in-memory history size.
func WithRingSize(n int) CallStoreOption {
	return func(s *CallStore) {
		if n > 0 {
			s.ring = make([]*CallRecord, n)
		}
	}
}

// NewCallStore creates a call store. archiver may be nil.
func NewCallStore(archiver Archiver, opts ...CallStoreOption) *CallStore {
	s := &CallStore{
		ring:     make([]*CallRecord, defaultRingSize),
		archiver: archiver,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Store records one call. The in-memory ring always succeeds; an archive
// failure is logged, not returned, so a flaky archive cannot fail
// generation.
func (s *CallStore) Store(ctx context.Context, record *CallRecord) error {
	s.mu.Lock()
	s.ring[s.next] = record
	s.next = (s.next + 1) % len(s.ring)
	if s.count < len(s.ring) {
		s.count++
	}
	s.mu.Unlock()

	if s.archiver != nil {
		if err := s.archiver.PutCall(ctx, record); err != nil {
			s.logger.Warn("Failed to archive call record",
				"request_id", record.RequestID,
				"error", err)
		}
	}

	return nil
}

// Recent returns up to n of the most recent records, newest first.
func (s *CallStore) Recent(n int) []*CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || s.count == 0 {
		return nil
	}
	if n > s.count {
		n = s.count
	}

	out := make([]*CallRecord, 0, n)
	idx := s.next - 1
	for len(out) < n {
		if idx < 0 {
			idx += len(s.ring)
		}
		out = append(out, s.ring[idx])
		idx--
	}
	return out
}

// Len returns the number of records currently held in memory.
func (s *CallStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
