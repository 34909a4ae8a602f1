package project

import (
	"context"
	"testing"
	"time"

	"github.com/c360studio/semdraft/scoring"
)

func testSections() []Section {
	return []Section{
		{Index: 0, Title: "Executive Summary", Type: SectionTypeOverview},
		{Index: 1, Title: "Architecture Overview", Type: SectionTypeStandard},
		{Index: 2, Title: "Data Model", Type: SectionTypeStandard},
	}
}

// seedOutlineApproval walks a fresh project to the outline_approval phase
// using the fallback catalog.
func seedOutlineApproval(t *testing.T, m *Manager, slug string) {
	t.Helper()
	ctx := context.Background()

	if _, err := m.Create(ctx, slug, "Seeded Project", "an app that tracks reading lists"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := m.Advance(ctx, slug); err != nil {
		t.Fatalf("Advance() to feature_discovery error = %v", err)
	}
	if _, err := m.EnsureCatalog(ctx, slug, nil); err != nil {
		t.Fatalf("EnsureCatalog() error = %v", err)
	}
	if _, err := m.SelectFeatures(ctx, slug, []string{"dashboard", "api_access"}); err != nil {
		t.Fatalf("SelectFeatures() error = %v", err)
	}
	if _, err := m.Advance(ctx, slug); err != nil {
		t.Fatalf("Advance() to outline_generation error = %v", err)
	}
	if _, err := m.SetOutline(ctx, slug, testSections(), "test"); err != nil {
		t.Fatalf("SetOutline() error = %v", err)
	}
	if _, err := m.Advance(ctx, slug); err != nil {
		t.Fatalf("Advance() to outline_approval error = %v", err)
	}
}

// seedChapterBuild continues from outline_approval into chapter_build with
// a locked outline.
func seedChapterBuild(t *testing.T, m *Manager, slug string) {
	t.Helper()
	ctx := context.Background()

	seedOutlineApproval(t, m, slug)
	if _, err := m.ApproveOutline(ctx, slug); err != nil {
		t.Fatalf("ApproveOutline() error = %v", err)
	}
	if _, err := m.LockOutline(ctx, slug); err != nil {
		t.Fatalf("LockOutline() error = %v", err)
	}
	if _, err := m.Advance(ctx, slug); err != nil {
		t.Fatalf("Advance() to chapter_build error = %v", err)
	}
}

func TestPhase_Next(t *testing.T) {
	tests := []struct {
		phase Phase
		next  Phase
		ok    bool
	}{
		{PhaseIdeaIntake, PhaseFeatureDiscovery, true},
		{PhaseFeatureDiscovery, PhaseOutlineGen, true},
		{PhaseOutlineGen, PhaseOutlineApproval, true},
		{PhaseOutlineApproval, PhaseChapterBuild, true},
		{PhaseChapterBuild, PhaseQualityGates, true},
		{PhaseQualityGates, PhaseFinalAssembly, true},
		{PhaseFinalAssembly, PhaseComplete, true},
		{PhaseComplete, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			next, ok := tt.phase.Next()
			if ok != tt.ok {
				t.Fatalf("Next() ok = %v, want %v", ok, tt.ok)
			}
			if ok && next != tt.next {
				t.Errorf("Next() = %q, want %q", next, tt.next)
			}
		})
	}
}

func TestPhase_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    Phase
		to      Phase
		allowed bool
	}{
		{"immediate successor", PhaseIdeaIntake, PhaseFeatureDiscovery, true},
		{"skip a phase", PhaseIdeaIntake, PhaseOutlineGen, false},
		{"backward", PhaseChapterBuild, PhaseOutlineGen, false},
		{"self", PhaseChapterBuild, PhaseChapterBuild, false},
		{"terminal", PhaseComplete, PhaseIdeaIntake, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
				t.Errorf("CanTransitionTo(%q → %q) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestPhase_After(t *testing.T) {
	if !PhaseChapterBuild.After(PhaseOutlineGen) {
		t.Error("chapter_build should be after outline_generation")
	}
	if PhaseOutlineGen.After(PhaseChapterBuild) {
		t.Error("outline_generation should not be after chapter_build")
	}
	if PhaseOutlineGen.After(PhaseOutlineGen) {
		t.Error("a phase is not after itself")
	}
}

func TestPhase_IsValid(t *testing.T) {
	valid := []Phase{
		PhaseIdeaIntake, PhaseFeatureDiscovery, PhaseOutlineGen, PhaseOutlineApproval,
		PhaseChapterBuild, PhaseQualityGates, PhaseFinalAssembly, PhaseComplete,
	}
	for _, p := range valid {
		if !p.IsValid() {
			t.Errorf("IsValid(%q) = false, want true", p)
		}
	}
	if Phase("bogus").IsValid() {
		t.Error(`IsValid("bogus") = true, want false`)
	}
	if Phase("").IsValid() {
		t.Error(`IsValid("") = true, want false`)
	}
}

func TestManager_Advance_FullLifecycle(t *testing.T) {
	m := NewManager(t.TempDir())
	ctx := context.Background()

	seedChapterBuild(t, m, "lifecycle")

	p, err := m.Load(ctx, "lifecycle")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p.Phase != PhaseChapterBuild {
		t.Fatalf("Phase = %q, want %q", p.Phase, PhaseChapterBuild)
	}

	// Chapters approved → quality_gates.
	_, err = m.Update(ctx, "lifecycle", func(p *Project) error {
		for i := range p.Chapters {
			p.Chapters[i].Status = ChapterApproved
			p.Chapters[i].Body = "chapter body"
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	p, err = m.Advance(ctx, "lifecycle")
	if err != nil {
		t.Fatalf("Advance() to quality_gates error = %v", err)
	}
	if p.Phase != PhaseQualityGates {
		t.Fatalf("Phase = %q, want %q", p.Phase, PhaseQualityGates)
	}

	// Review complete → final_assembly.
	_, err = m.Update(ctx, "lifecycle", func(p *Project) error {
		p.Review = &QualityReview{
			Score:      90,
			Bucket:     scoring.BucketComplete,
			ReviewedAt: time.Now(),
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	p, err = m.Advance(ctx, "lifecycle")
	if err != nil {
		t.Fatalf("Advance() to final_assembly error = %v", err)
	}
	if p.Phase != PhaseFinalAssembly {
		t.Fatalf("Phase = %q, want %q", p.Phase, PhaseFinalAssembly)
	}

	// Assembled → complete.
	_, err = m.Update(ctx, "lifecycle", func(p *Project) error {
		p.AssembledPath = ".semdraft/lifecycle/document.md"
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	p, err = m.Advance(ctx, "lifecycle")
	if err != nil {
		t.Fatalf("Advance() to complete error = %v", err)
	}
	if p.Phase != PhaseComplete {
		t.Fatalf("Phase = %q, want %q", p.Phase, PhaseComplete)
	}

	// Terminal phase has no successor.
	_, err = m.Advance(ctx, "lifecycle")
	if !IsPrecondition(err) {
		t.Errorf("Advance() past complete error = %v, want PreconditionError", err)
	}
}

func TestManager_Advance_RequiresApprovedLockedOutline(t *testing.T) {
	m := NewManager(t.TempDir())
	ctx := context.Background()

	seedOutlineApproval(t, m, "gated")

	t.Run("unapproved outline blocks the advance", func(t *testing.T) {
		_, err := m.Advance(ctx, "gated")
		if !IsPrecondition(err) {
			t.Fatalf("Advance() error = %v, want PreconditionError", err)
		}

		p, err := m.Load(ctx, "gated")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if p.Phase != PhaseOutlineApproval {
			t.Errorf("Phase = %q, want %q after rejected advance", p.Phase, PhaseOutlineApproval)
		}
	})

	t.Run("approved but unlocked still blocks", func(t *testing.T) {
		if _, err := m.ApproveOutline(ctx, "gated"); err != nil {
			t.Fatalf("ApproveOutline() error = %v", err)
		}

		_, err := m.Advance(ctx, "gated")
		if !IsPrecondition(err) {
			t.Fatalf("Advance() error = %v, want PreconditionError", err)
		}
	})

	t.Run("approved and locked advances", func(t *testing.T) {
		if _, err := m.LockOutline(ctx, "gated"); err != nil {
			t.Fatalf("LockOutline() error = %v", err)
		}

		p, err := m.Advance(ctx, "gated")
		if err != nil {
			t.Fatalf("Advance() error = %v", err)
		}
		if p.Phase != PhaseChapterBuild {
			t.Errorf("Phase = %q, want %q", p.Phase, PhaseChapterBuild)
		}
	})
}

func TestManager_Advance_RequiresIdea(t *testing.T) {
	m := NewManager(t.TempDir())
	ctx := context.Background()

	_, err := m.Create(ctx, "no-idea", "No Idea Yet", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = m.Advance(ctx, "no-idea")
	if !IsPrecondition(err) {
		t.Fatalf("Advance() error = %v, want PreconditionError", err)
	}

	if _, err := m.SetIdea(ctx, "no-idea", "a habit tracker", "inline"); err != nil {
		t.Fatalf("SetIdea() error = %v", err)
	}
	p, err := m.Advance(ctx, "no-idea")
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if p.Phase != PhaseFeatureDiscovery {
		t.Errorf("Phase = %q, want %q", p.Phase, PhaseFeatureDiscovery)
	}
}

func TestManager_Advance_RequiresFeatures(t *testing.T) {
	m := NewManager(t.TempDir())
	ctx := context.Background()

	_, err := m.Create(ctx, "no-features", "No Features", "some idea")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := m.Advance(ctx, "no-features"); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	_, err = m.Advance(ctx, "no-features")
	if !IsPrecondition(err) {
		t.Errorf("Advance() error = %v, want PreconditionError", err)
	}
}

func TestManager_Advance_RequiresAllChaptersApproved(t *testing.T) {
	m := NewManager(t.TempDir())
	ctx := context.Background()

	seedChapterBuild(t, m, "partial-chapters")

	_, err := m.Update(ctx, "partial-chapters", func(p *Project) error {
		p.Chapters[0].Status = ChapterApproved
		p.Chapters[0].Body = "done"
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	_, err = m.Advance(ctx, "partial-chapters")
	if !IsPrecondition(err) {
		t.Errorf("Advance() error = %v, want PreconditionError", err)
	}
}

func TestManager_Advance_ReviewGate(t *testing.T) {
	m := NewManager(t.TempDir())
	ctx := context.Background()

	seedChapterBuild(t, m, "review-gate")
	_, err := m.Update(ctx, "review-gate", func(p *Project) error {
		for i := range p.Chapters {
			p.Chapters[i].Status = ChapterApproved
			p.Chapters[i].Body = "chapter body"
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := m.Advance(ctx, "review-gate"); err != nil {
		t.Fatalf("Advance() to quality_gates error = %v", err)
	}

	t.Run("no review blocks", func(t *testing.T) {
		_, err := m.Advance(ctx, "review-gate")
		if !IsPrecondition(err) {
			t.Errorf("Advance() error = %v, want PreconditionError", err)
		}
	})

	t.Run("flagged review blocks until operator approval", func(t *testing.T) {
		_, err := m.Update(ctx, "review-gate", func(p *Project) error {
			p.Review = &QualityReview{
				Score:      55,
				Bucket:     scoring.BucketNeedsExpansion,
				ReviewedAt: time.Now(),
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		_, err = m.Advance(ctx, "review-gate")
		if !IsPrecondition(err) {
			t.Fatalf("Advance() error = %v, want PreconditionError", err)
		}

		if _, err := m.ApproveReview(ctx, "review-gate"); err != nil {
			t.Fatalf("ApproveReview() error = %v", err)
		}
		p, err := m.Advance(ctx, "review-gate")
		if err != nil {
			t.Fatalf("Advance() after approval error = %v", err)
		}
		if p.Phase != PhaseFinalAssembly {
			t.Errorf("Phase = %q, want %q", p.Phase, PhaseFinalAssembly)
		}
	})
}
