// Package project owns all durable state for semdraft projects: the
// per-project JSON document, the phase state machine, outline integrity
// locking, feature selection, and the drift watcher. One schema-validated
// document per project is the single source of truth; every write is
// atomic and fail-closed.
package project

import (
	"fmt"
	"time"

	"github.com/c360studio/semdraft/scoring"
)

// Project is the root document, persisted as .semdraft/{slug}/project.json.
type Project struct {
	// Slug is the unique identifier used in file paths.
	Slug string `json:"slug"`

	// Title is the human-readable display name.
	Title string `json:"title"`

	// Idea is the raw idea text the document is built from.
	Idea string `json:"idea,omitempty"`

	// IdeaSource records the URL the idea was captured from, if any.
	IdeaSource string `json:"idea_source,omitempty"`

	// Phase is the current lifecycle phase.
	Phase Phase `json:"phase"`

	// DepthMode selects the generation targets for chapter builds.
	DepthMode scoring.DepthMode `json:"depth_mode"`

	// Catalog is the feature catalog presented during feature discovery.
	Catalog *Catalog `json:"catalog,omitempty"`

	// Features are the operator's selections from the catalog.
	Features []SelectedFeature `json:"features,omitempty"`

	// Outline is the document outline, nil until generated.
	Outline *Outline `json:"outline,omitempty"`

	// Chapters hold one entry per outline section, ordered by Index.
	// Created when the outline is locked.
	Chapters []Chapter `json:"chapters,omitempty"`

	// Review is the document-level quality result, nil until quality gates
	// have run.
	Review *QualityReview `json:"review,omitempty"`

	// AssembledPath is where final assembly wrote the document.
	AssembledPath string `json:"assembled_path,omitempty"`

	// Version starts at 1 and increments only on outline unlock.
	Version int `json:"version"`

	// VersionHistory records every unlock, newest last.
	VersionHistory []VersionEntry `json:"version_history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Outline is the approved structure of the document.
type Outline struct {
	Sections []Section `json:"sections"`

	// Approved is set by the operator during outline approval.
	Approved   bool       `json:"approved"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`

	// LockedHash is the SHA-256 over the canonical section tuples,
	// empty while unlocked.
	LockedHash string `json:"locked_hash,omitempty"`

	// GeneratedBy records the model that produced the outline, or
	// "fallback" for the built-in default.
	GeneratedBy string `json:"generated_by,omitempty"`
}

// Section is one outline entry. Index is zero-based and dense.
type Section struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Section type tags.
const (
	SectionTypeOverview = "overview"
	SectionTypeStandard = "standard"
)

// ChapterStatus tracks a chapter through drafting and revision.
type ChapterStatus string

const (
	ChapterPending   ChapterStatus = "pending"
	ChapterDraft     ChapterStatus = "draft"
	ChapterRevision1 ChapterStatus = "revision_1"
	ChapterRevision2 ChapterStatus = "revision_2"
	ChapterApproved  ChapterStatus = "approved"
)

// String returns the string representation of the status.
func (s ChapterStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is known.
func (s ChapterStatus) IsValid() bool {
	switch s {
	case ChapterPending, ChapterDraft, ChapterRevision1, ChapterRevision2, ChapterApproved:
		return true
	default:
		return false
	}
}

// StatusForAttempt maps a generation attempt number (1-based) to the
// status recorded for its output.
func StatusForAttempt(attempt int) ChapterStatus {
	switch {
	case attempt <= 1:
		return ChapterDraft
	case attempt == 2:
		return ChapterRevision1
	default:
		return ChapterRevision2
	}
}

// Chapter is one generated unit, keyed by its outline section index.
type Chapter struct {
	Index  int             `json:"index"`
	Title  string          `json:"title"`
	Status ChapterStatus   `json:"status"`
	Body   string          `json:"body,omitempty"`
	Score  *scoring.Result `json:"score,omitempty"`

	// Attempts counts generation attempts across the chapter's lifetime,
	// reset on outline unlock.
	Attempts  int       `json:"attempts,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VersionEntry records one outline unlock.
type VersionEntry struct {
	Version    int       `json:"version"`
	Reason     string    `json:"reason"`
	PriorHash  string    `json:"prior_hash"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// QualityReview is the document-level evaluation recorded after all
// chapters pass.
type QualityReview struct {
	Score    int                  `json:"score"`
	Bucket   scoring.Bucket       `json:"bucket"`
	Gates    []scoring.GateResult `json:"gates,omitempty"`
	Feedback string               `json:"feedback,omitempty"`

	// RegenUsed marks the single document-level regeneration budget as
	// spent for this pipeline run.
	RegenUsed bool `json:"regen_used,omitempty"`

	// Approved is set by the operator to accept a document the gates
	// flagged for review.
	Approved   bool      `json:"approved,omitempty"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// Validate checks the document's structural invariants. It is called
// before every write and after every read; a document that fails here is
// never persisted and never returned to callers.
func (p *Project) Validate() error {
	if p.Slug == "" {
		return &ValidationError{Field: "slug", Reason: "must not be empty"}
	}
	if p.Title == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if !p.Phase.IsValid() {
		return &ValidationError{Field: "phase", Reason: fmt.Sprintf("unknown phase %q", p.Phase)}
	}
	if !p.DepthMode.IsValid() {
		return &ValidationError{Field: "depth_mode", Reason: fmt.Sprintf("unknown depth mode %q", p.DepthMode)}
	}
	if p.Version < 1 {
		return &ValidationError{Field: "version", Reason: "must be at least 1"}
	}
	if len(p.VersionHistory) != p.Version-1 {
		return &ValidationError{
			Field:  "version_history",
			Reason: fmt.Sprintf("has %d entries, want %d for version %d", len(p.VersionHistory), p.Version-1, p.Version),
		}
	}

	if p.Outline != nil {
		if err := validateSections(p.Outline.Sections); err != nil {
			return err
		}
	}

	if len(p.Chapters) > 0 {
		if p.Outline == nil {
			return &ValidationError{Field: "chapters", Reason: "present without an outline"}
		}
		if len(p.Chapters) != len(p.Outline.Sections) {
			return &ValidationError{
				Field:  "chapters",
				Reason: fmt.Sprintf("count %d does not match %d outline sections", len(p.Chapters), len(p.Outline.Sections)),
			}
		}
		for i, ch := range p.Chapters {
			if ch.Index != i {
				return &ValidationError{Field: "chapters", Reason: fmt.Sprintf("index %d at position %d", ch.Index, i)}
			}
			if !ch.Status.IsValid() {
				return &ValidationError{Field: "chapters", Reason: fmt.Sprintf("unknown status %q at index %d", ch.Status, i)}
			}
		}
	}

	return nil
}

func validateSections(sections []Section) error {
	if len(sections) == 0 {
		return &ValidationError{Field: "outline", Reason: "must have at least one section"}
	}
	for i, s := range sections {
		if s.Index != i {
			return &ValidationError{Field: "outline", Reason: fmt.Sprintf("section index %d at position %d", s.Index, i)}
		}
		if s.Title == "" {
			return &ValidationError{Field: "outline", Reason: fmt.Sprintf("section %d has an empty title", i)}
		}
	}
	return nil
}

// Locked reports whether the outline is integrity-locked.
func (p *Project) Locked() bool {
	return p.Outline != nil && p.Outline.LockedHash != ""
}

// ChapterByIndex returns the chapter with the given index, or nil.
func (p *Project) ChapterByIndex(index int) *Chapter {
	for i := range p.Chapters {
		if p.Chapters[i].Index == index {
			return &p.Chapters[i]
		}
	}
	return nil
}
