package project

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/c360studio/semdraft/scoring"
)

// outlineTuple is the canonical form hashed for integrity locking. The
// field order is part of the canonical serialization.
type outlineTuple struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// OutlineHash computes the SHA-256 over the canonical section tuples:
// sections sorted by index, reduced to (index, title, type), marshaled as
// a JSON array, hex-encoded. Input slice order does not matter; any change
// to an index, title, or type changes the hash.
func OutlineHash(sections []Section) string {
	tuples := make([]outlineTuple, len(sections))
	for i, s := range sections {
		tuples[i] = outlineTuple{Index: s.Index, Title: s.Title, Type: s.Type}
	}
	sort.Slice(tuples, func(i, j int) bool { return tuples[i].Index < tuples[j].Index })

	// Marshal of a plain struct slice cannot fail.
	data, _ := json.Marshal(tuples)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyOutline recomputes the hash over the current sections and compares
// it to the locked hash. Pure; called before every chapter build and
// before final assembly.
func VerifyOutline(p *Project) error {
	if !p.Locked() {
		return &PreconditionError{Phase: p.Phase, Requirement: "outline is not locked"}
	}
	actual := OutlineHash(p.Outline.Sections)
	if actual != p.Outline.LockedHash {
		return &IntegrityError{Slug: p.Slug, Expected: p.Outline.LockedHash, Actual: actual}
	}
	return nil
}

// SetOutline replaces the outline. Rejected while the outline is locked.
// Any existing chapters are discarded; they are recreated at lock time.
func (m *Manager) SetOutline(ctx context.Context, slug string, sections []Section, generatedBy string) (*Project, error) {
	if err := validateSections(sections); err != nil {
		return nil, err
	}
	return m.Update(ctx, slug, func(p *Project) error {
		if p.Locked() {
			return &PreconditionError{Phase: p.Phase, Requirement: "outline is locked; unlock before editing"}
		}
		p.Outline = &Outline{Sections: sections, GeneratedBy: generatedBy}
		p.Chapters = nil
		return nil
	})
}

// ApproveOutline records operator approval of the current outline.
func (m *Manager) ApproveOutline(ctx context.Context, slug string) (*Project, error) {
	return m.Update(ctx, slug, func(p *Project) error {
		if p.Outline == nil || len(p.Outline.Sections) == 0 {
			return &PreconditionError{Phase: p.Phase, Requirement: "no outline to approve"}
		}
		if p.Locked() {
			return &PreconditionError{Phase: p.Phase, Requirement: "outline already locked"}
		}
		now := time.Now()
		p.Outline.Approved = true
		p.Outline.ApprovedAt = &now
		return nil
	})
}

// LockOutline hashes the approved outline and creates one pending chapter
// per section. Requires prior approval.
func (m *Manager) LockOutline(ctx context.Context, slug string) (*Project, error) {
	return m.Update(ctx, slug, func(p *Project) error {
		if p.Outline == nil || len(p.Outline.Sections) == 0 {
			return &PreconditionError{Phase: p.Phase, Requirement: "no outline to lock"}
		}
		if !p.Outline.Approved {
			return &PreconditionError{Phase: p.Phase, Requirement: "outline must be approved before locking"}
		}
		if p.Locked() {
			return &PreconditionError{Phase: p.Phase, Requirement: "outline already locked"}
		}

		p.Outline.LockedHash = OutlineHash(p.Outline.Sections)

		now := time.Now()
		p.Chapters = make([]Chapter, len(p.Outline.Sections))
		for i, s := range p.Outline.Sections {
			p.Chapters[i] = Chapter{
				Index:     s.Index,
				Title:     s.Title,
				Status:    ChapterPending,
				UpdatedAt: now,
			}
		}
		return nil
	})
}

// UnlockOutline releases the integrity lock so the outline can change.
// The reason is mandatory and recorded, together with the prior hash, in
// the version history; downstream approvals are cleared and the phase
// rolls back to outline_generation.
func (m *Manager) UnlockOutline(ctx context.Context, slug, reason string) (*Project, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &ValidationError{Field: "reason", Reason: "unlock requires a non-empty reason"}
	}
	return m.Update(ctx, slug, func(p *Project) error {
		if !p.Locked() {
			return &PreconditionError{Phase: p.Phase, Requirement: "outline is not locked"}
		}

		now := time.Now()
		prior := p.Outline.LockedHash
		p.Outline.LockedHash = ""
		p.Outline.Approved = false
		p.Outline.ApprovedAt = nil

		for i := range p.Chapters {
			p.Chapters[i].Status = ChapterPending
			p.Chapters[i].Body = ""
			p.Chapters[i].Score = nil
			p.Chapters[i].Attempts = 0
			p.Chapters[i].UpdatedAt = now
		}
		p.Review = nil
		p.AssembledPath = ""

		if p.Phase.After(PhaseOutlineGen) {
			p.Phase = PhaseOutlineGen
		}

		p.Version++
		p.VersionHistory = append(p.VersionHistory, VersionEntry{
			Version:    p.Version,
			Reason:     reason,
			PriorHash:  prior,
			UnlockedAt: now,
		})
		return nil
	})
}

// ApproveReview records operator acceptance of a document the gates
// flagged for review, allowing the advance to final assembly.
func (m *Manager) ApproveReview(ctx context.Context, slug string) (*Project, error) {
	return m.Update(ctx, slug, func(p *Project) error {
		if p.Review == nil {
			return &PreconditionError{Phase: p.Phase, Requirement: "no document review to approve"}
		}
		p.Review.Approved = true
		return nil
	})
}

// SetDepthMode changes the generation targets. Rejected while the outline
// is locked so targets cannot move mid-build.
func (m *Manager) SetDepthMode(ctx context.Context, slug string, mode scoring.DepthMode) (*Project, error) {
	if !mode.IsValid() {
		return nil, &ValidationError{Field: "depth_mode", Reason: "unknown depth mode " + string(mode)}
	}
	return m.Update(ctx, slug, func(p *Project) error {
		if p.Locked() {
			return &PreconditionError{Phase: p.Phase, Requirement: "outline is locked; unlock before changing depth"}
		}
		p.DepthMode = mode
		return nil
	})
}

// SetIdea replaces the idea text. Only allowed during idea intake.
func (m *Manager) SetIdea(ctx context.Context, slug, idea, source string) (*Project, error) {
	if strings.TrimSpace(idea) == "" {
		return nil, &ValidationError{Field: "idea", Reason: "idea text must not be empty"}
	}
	return m.Update(ctx, slug, func(p *Project) error {
		if p.Phase != PhaseIdeaIntake {
			return &PreconditionError{Phase: p.Phase, Requirement: "idea can only change during idea_intake"}
		}
		p.Idea = idea
		p.IdeaSource = source
		return nil
	})
}
