package project

import (
	"context"
	"fmt"
	"strings"

	"github.com/c360studio/semdraft/scoring"
)

// Phase is a project's position in the fixed forward lifecycle.
type Phase string

const (
	PhaseIdeaIntake       Phase = "idea_intake"
	PhaseFeatureDiscovery Phase = "feature_discovery"
	PhaseOutlineGen       Phase = "outline_generation"
	PhaseOutlineApproval  Phase = "outline_approval"
	PhaseChapterBuild     Phase = "chapter_build"
	PhaseQualityGates     Phase = "quality_gates"
	PhaseFinalAssembly    Phase = "final_assembly"
	PhaseComplete         Phase = "complete"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// IsValid returns true if the phase is known.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseIdeaIntake, PhaseFeatureDiscovery, PhaseOutlineGen, PhaseOutlineApproval,
		PhaseChapterBuild, PhaseQualityGates, PhaseFinalAssembly, PhaseComplete:
		return true
	default:
		return false
	}
}

// Next returns the immediate successor phase. ok is false for the terminal
// phase and for unknown phases.
func (p Phase) Next() (next Phase, ok bool) {
	switch p {
	case PhaseIdeaIntake:
		return PhaseFeatureDiscovery, true
	case PhaseFeatureDiscovery:
		return PhaseOutlineGen, true
	case PhaseOutlineGen:
		return PhaseOutlineApproval, true
	case PhaseOutlineApproval:
		return PhaseChapterBuild, true
	case PhaseChapterBuild:
		return PhaseQualityGates, true
	case PhaseQualityGates:
		return PhaseFinalAssembly, true
	case PhaseFinalAssembly:
		return PhaseComplete, true
	default:
		return "", false
	}
}

// CanTransitionTo returns true only for the immediate successor. Backward
// movement happens exclusively through UnlockOutline.
func (p Phase) CanTransitionTo(target Phase) bool {
	next, ok := p.Next()
	return ok && target == next
}

// ordinal gives the position of a phase in the lifecycle, for "is past"
// comparisons. Unknown phases sort first.
func (p Phase) ordinal() int {
	switch p {
	case PhaseIdeaIntake:
		return 0
	case PhaseFeatureDiscovery:
		return 1
	case PhaseOutlineGen:
		return 2
	case PhaseOutlineApproval:
		return 3
	case PhaseChapterBuild:
		return 4
	case PhaseQualityGates:
		return 5
	case PhaseFinalAssembly:
		return 6
	case PhaseComplete:
		return 7
	default:
		return -1
	}
}

// After reports whether p comes later in the lifecycle than other.
func (p Phase) After(other Phase) bool {
	return p.ordinal() > other.ordinal()
}

// checkAdvance verifies the precondition for moving from the project's
// current phase to its immediate successor. Nil means the advance may
// proceed.
func checkAdvance(p *Project, next Phase) error {
	switch next {
	case PhaseFeatureDiscovery:
		if strings.TrimSpace(p.Idea) == "" {
			return &PreconditionError{Phase: p.Phase, Requirement: "idea text must not be empty"}
		}
	case PhaseOutlineGen:
		if len(p.Features) == 0 {
			return &PreconditionError{Phase: p.Phase, Requirement: "at least one feature must be selected"}
		}
	case PhaseOutlineApproval:
		if p.Outline == nil || len(p.Outline.Sections) == 0 {
			return &PreconditionError{Phase: p.Phase, Requirement: "outline with at least one section required"}
		}
	case PhaseChapterBuild:
		if p.Outline == nil || !p.Outline.Approved {
			return &PreconditionError{Phase: p.Phase, Requirement: "outline must be approved"}
		}
		if p.Outline.LockedHash == "" {
			return &PreconditionError{Phase: p.Phase, Requirement: "outline must be locked"}
		}
	case PhaseQualityGates:
		if len(p.Chapters) == 0 {
			return &PreconditionError{Phase: p.Phase, Requirement: "no chapters to review"}
		}
		for _, ch := range p.Chapters {
			if ch.Status != ChapterApproved {
				return &PreconditionError{
					Phase:       p.Phase,
					Requirement: fmt.Sprintf("chapter %d (%s) is %s, want approved", ch.Index, ch.Title, ch.Status),
				}
			}
		}
	case PhaseFinalAssembly:
		if p.Review == nil {
			return &PreconditionError{Phase: p.Phase, Requirement: "document review has not run"}
		}
		if p.Review.Bucket != scoring.BucketComplete && !p.Review.Approved {
			return &PreconditionError{Phase: p.Phase, Requirement: "document review must be complete or operator-approved"}
		}
	case PhaseComplete:
		if p.AssembledPath == "" {
			return &PreconditionError{Phase: p.Phase, Requirement: "document has not been assembled"}
		}
	}
	return nil
}

// Advance moves the project to the immediate successor phase after its
// precondition holds. A failed precondition returns a PreconditionError
// and leaves the document untouched.
func (m *Manager) Advance(ctx context.Context, slug string) (*Project, error) {
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lock := slugLock(slug)
	lock.Lock()
	defer lock.Unlock()

	p, err := m.load(ctx, slug)
	if err != nil {
		return nil, err
	}

	next, ok := p.Phase.Next()
	if !ok {
		return nil, &PreconditionError{Phase: p.Phase, Requirement: "no further phase"}
	}
	if err := checkAdvance(p, next); err != nil {
		return nil, err
	}

	p.Phase = next
	if err := m.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
