// Package archive persists pipeline run summaries and generation call
// records in NATS KV. It gives operators an audit trail of what each
// build did and what every model call cost, independent of the project
// state on disk.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semdraft/llm"
)

// EntityType represents the type of entity stored in KV.
type EntityType string

const (
	EntityTypeRun  EntityType = "run"
	EntityTypeCall EntityType = "call"
)

// Bucket names for each entity type.
const (
	BucketRuns  = "SEMDRAFT_RUNS"
	BucketCalls = "SEMDRAFT_CALLS"
)

// EntityID represents a typed entity identifier.
type EntityID struct {
	Type EntityType
	ID   string
}

// String returns the string representation of the entity ID.
func (e EntityID) String() string {
	return fmt.Sprintf("%s:%s", e.Type, e.ID)
}

// ParseEntityID parses an entity ID string into its components.
func ParseEntityID(s string) (EntityID, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return EntityID{}, fmt.Errorf("invalid entity ID format: %s", s)
	}
	entityType := EntityType(parts[0])
	switch entityType {
	case EntityTypeRun, EntityTypeCall:
		return EntityID{Type: entityType, ID: parts[1]}, nil
	default:
		return EntityID{}, fmt.Errorf("unknown entity type: %s", parts[0])
	}
}

// NewEntityID generates a new unique entity ID for the given type.
func NewEntityID(t EntityType) EntityID {
	return EntityID{
		Type: t,
		ID:   uuid.New().String(),
	}
}

// UnitOutcome records how one generation unit fared within a run.
type UnitOutcome struct {
	Index    int    `json:"index"`
	Title    string `json:"title"`
	Status   string `json:"status"` // passed, failed
	Score    int    `json:"score"`
	Attempts int    `json:"attempts"`

	// RequestIDs correlates the outcome with archived call records.
	RequestIDs []string `json:"request_ids,omitempty"`
}

// RunSummary is the audit record for one pipeline run.
type RunSummary struct {
	ID         string     `json:"id"`
	Slug       string     `json:"slug"`
	DepthMode  string     `json:"depth_mode,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Units holds per-unit outcomes in build order.
	Units []UnitOutcome `json:"units,omitempty"`

	// DocumentScore and DocumentBucket hold the document-level review
	// result when the run reached the quality gates.
	DocumentScore  *int   `json:"document_score,omitempty"`
	DocumentBucket string `json:"document_bucket,omitempty"`

	// Halted marks a run that stopped before finishing its plan, with
	// the reason the pipeline gave.
	Halted     bool   `json:"halted"`
	HaltReason string `json:"halt_reason,omitempty"`
}

// Store provides archive operations backed by NATS KV.
type Store struct {
	runs  jetstream.KeyValue
	calls jetstream.KeyValue
}

// NewStore creates a new Store with the given JetStream context.
// It creates the necessary KV buckets if they don't exist.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	runs, err := getOrCreateBucket(ctx, js, BucketRuns, "Semdraft run summaries")
	if err != nil {
		return nil, fmt.Errorf("create runs bucket: %w", err)
	}

	calls, err := getOrCreateBucket(ctx, js, BucketCalls, "Semdraft generation call records")
	if err != nil {
		return nil, fmt.Errorf("create calls bucket: %w", err)
	}

	return &Store{
		runs:  runs,
		calls: calls,
	}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name, description string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: description,
		History:     5, // Keep last 5 revisions
	})
}

// CreateRun stores a new run summary and returns its ID. The summary's
// ID and StartedAt are set here.
func (s *Store) CreateRun(ctx context.Context, r *RunSummary) (EntityID, error) {
	id := NewEntityID(EntityTypeRun)
	r.ID = id.String()
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}

	data, err := json.Marshal(r)
	if err != nil {
		return EntityID{}, fmt.Errorf("marshal run: %w", err)
	}

	if _, err := s.runs.Create(ctx, id.ID, data); err != nil {
		return EntityID{}, fmt.Errorf("store run: %w", err)
	}

	return id, nil
}

// UpdateRun overwrites an existing run summary. The orchestrator calls
// this as units complete so a crash leaves a usable partial record.
func (s *Store) UpdateRun(ctx context.Context, r *RunSummary) error {
	id, err := ParseEntityID(r.ID)
	if err != nil {
		return fmt.Errorf("parse run ID: %w", err)
	}
	if id.Type != EntityTypeRun {
		return fmt.Errorf("invalid entity type: expected run, got %s", id.Type)
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	if _, err := s.runs.Put(ctx, id.ID, data); err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	return nil
}

// GetRun retrieves a run summary by ID.
func (s *Store) GetRun(ctx context.Context, id EntityID) (*RunSummary, error) {
	if id.Type != EntityTypeRun {
		return nil, fmt.Errorf("invalid entity type: expected run, got %s", id.Type)
	}

	entry, err := s.runs.Get(ctx, id.ID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}

	var r RunSummary
	if err := json.Unmarshal(entry.Value(), &r); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}

	return &r, nil
}

// ListRunsBySlug returns all runs for a project, newest first.
func (s *Store) ListRunsBySlug(ctx context.Context, slug string) ([]*RunSummary, error) {
	keys, err := s.runs.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list run keys: %w", err)
	}

	runs := make([]*RunSummary, 0)
	for _, key := range keys {
		entry, err := s.runs.Get(ctx, key)
		if err != nil {
			continue // Skip entries that fail to load
		}
		var r RunSummary
		if err := json.Unmarshal(entry.Value(), &r); err != nil {
			continue
		}
		if r.Slug == slug {
			runs = append(runs, &r)
		}
	}

	sortRunsByStart(runs)
	return runs, nil
}

// sortRunsByStart orders runs newest first.
func sortRunsByStart(runs []*RunSummary) {
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
}

// PutCall archives a generation call record keyed by its request ID.
// It satisfies llm.Archiver so a CallStore can hand records off here.
func (s *Store) PutCall(ctx context.Context, record *llm.CallRecord) error {
	if record.RequestID == "" {
		return fmt.Errorf("call record has no request ID")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal call: %w", err)
	}

	if _, err := s.calls.Put(ctx, record.RequestID, data); err != nil {
		return fmt.Errorf("store call: %w", err)
	}

	return nil
}

// GetCall retrieves a call record by request ID.
func (s *Store) GetCall(ctx context.Context, requestID string) (*llm.CallRecord, error) {
	entry, err := s.calls.Get(ctx, requestID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get call: %w", err)
	}

	var record llm.CallRecord
	if err := json.Unmarshal(entry.Value(), &record); err != nil {
		return nil, fmt.Errorf("unmarshal call: %w", err)
	}

	return &record, nil
}

// isNotFound checks if an error indicates a key was not found.
func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound)
}
