// Package notify broadcasts pipeline progress to in-process subscribers
// and, optionally, onto NATS. Delivery is fire-and-forget: there is no
// replay, and a slow subscriber misses events rather than stalling the
// publisher.
package notify

import "time"

// EventType identifies what happened.
type EventType string

const (
	EventUnitStarted    EventType = "unit_started"
	EventUnitScored     EventType = "unit_scored"
	EventUnitRetry      EventType = "unit_retry"
	EventUnitPassed     EventType = "unit_passed"
	EventUnitFailed     EventType = "unit_failed"
	EventPhaseAdvanced  EventType = "phase_advanced"
	EventPipelineHalted EventType = "pipeline_halted"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// IsValid returns true if the event type is known.
func (t EventType) IsValid() bool {
	switch t {
	case EventUnitStarted, EventUnitScored, EventUnitRetry, EventUnitPassed,
		EventUnitFailed, EventPhaseAdvanced, EventPipelineHalted:
		return true
	default:
		return false
	}
}

// SubjectPrefix is the NATS subject root for pipeline events.
const SubjectPrefix = "draft.events"

// Subject returns the NATS subject an event type is published on.
func Subject(t EventType) string {
	return SubjectPrefix + "." + string(t)
}

// Event is one progress notification. Unit and Score are pointers so that
// zero values stay distinguishable from absent ones.
type Event struct {
	ID      string    `json:"id"`
	Type    EventType `json:"type"`
	Slug    string    `json:"slug"`
	Unit    *int      `json:"unit,omitempty"`
	Phase   string    `json:"phase,omitempty"`
	Attempt int       `json:"attempt,omitempty"`
	Score   *int      `json:"score,omitempty"`
	Bucket  string    `json:"bucket,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}
