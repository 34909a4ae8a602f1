// Package build drives chapter generation. The orchestrator runs units
// strictly sequentially with bounded retries, scores every draft, and
// walks the project through quality gates and final assembly. A scoring
// deficiency settles as a value; only generation transport exhaustion is
// an error.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360studio/semdraft/archive"
	"github.com/c360studio/semdraft/metrics"
	"github.com/c360studio/semdraft/notify"
	"github.com/c360studio/semdraft/project"
	"github.com/c360studio/semdraft/scoring"
)

// MaxAttempts is the default per-unit generation attempt budget for one
// run.
const MaxAttempts = 2

// Assembler writes the final document for a project whose review passed.
// The export package implements it.
type Assembler interface {
	Assemble(ctx context.Context, p *project.Project) (path string, err error)
}

// Orchestrator coordinates generation, scoring, persistence, and progress
// notifications for the projects of one repository.
type Orchestrator struct {
	manager     *project.Manager
	generator   Generator
	assembler   Assembler
	hub         *notify.Hub
	store       *archive.Store
	metrics     *metrics.Metrics
	logger      *slog.Logger
	maxAttempts int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHub publishes progress events to the hub.
func WithHub(h *notify.Hub) Option {
	return func(o *Orchestrator) { o.hub = h }
}

// WithAssembler sets the final assembly implementation.
func WithAssembler(a Assembler) Option {
	return func(o *Orchestrator) { o.assembler = a }
}

// WithArchive records run summaries to the archive store.
func WithArchive(s *archive.Store) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithMetrics instruments the pipeline.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMaxAttempts overrides the per-unit attempt budget. Values below 1
// are ignored.
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n >= 1 {
			o.maxAttempts = n
		}
	}
}

// NewOrchestrator creates an orchestrator over the given project store and
// generator.
func NewOrchestrator(manager *project.Manager, generator Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		manager:     manager,
		generator:   generator,
		logger:      slog.Default(),
		maxAttempts: MaxAttempts,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunUnit generates one chapter with bounded retries. It requires the
// chapter_build phase and a verified outline lock. An already-approved
// chapter settles immediately without generation.
func (o *Orchestrator) RunUnit(ctx context.Context, slug string, index int) (*UnitResult, error) {
	p, err := o.manager.Load(ctx, slug)
	if err != nil {
		return nil, err
	}
	if p.Phase != project.PhaseChapterBuild {
		return nil, &project.PreconditionError{Phase: p.Phase, Requirement: "units build only during chapter_build"}
	}
	ch := p.ChapterByIndex(index)
	if ch == nil {
		return nil, &project.ValidationError{Field: "unit", Reason: fmt.Sprintf("no chapter with index %d", index)}
	}
	if ch.Status == project.ChapterApproved {
		return &UnitResult{
			Slug:    slug,
			Index:   index,
			Title:   ch.Title,
			State:   UnitPassed,
			Score:   ch.Score,
			Settled: true,
		}, nil
	}
	return o.runUnit(ctx, p, ch)
}

// runUnit is the bounded attempt loop shared by the pipeline and RunUnit.
// Callers have already phase-gated.
func (o *Orchestrator) runUnit(ctx context.Context, p *project.Project, ch *project.Chapter) (*UnitResult, error) {
	if err := project.VerifyOutline(p); err != nil {
		return nil, err
	}

	profile := scoring.ProfileFor(p.DepthMode)
	reqs := scoring.Requirements{
		TargetWords: profile.TargetWords,
		Subsections: scoring.SubsectionsFor(ch.Title, profile),
	}
	promptCtx := o.promptContext(p, ch, profile, reqs.Subsections)

	// Scorer feedback accumulates across attempts, seeded from the last
	// failed run so reruns do not repeat its mistakes.
	var feedback []string
	if ch.Score != nil && ch.Score.Feedback != "" {
		feedback = append(feedback, ch.Score.Feedback)
	}

	idx := ch.Index
	result := &UnitResult{Slug: p.Slug, Index: idx, Title: ch.Title}
	state := UnitQueued
	baseAttempts := ch.Attempts

	var err error
	for local := 1; local <= o.maxAttempts; local++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attempt := baseAttempts + local
		result.Attempts = local

		o.publish(notify.Event{
			Type:    notify.EventUnitStarted,
			Slug:    p.Slug,
			Unit:    &idx,
			Phase:   p.Phase.String(),
			Attempt: attempt,
		})

		prev := state
		if state, err = stepState(state, UnitGenerating); err != nil {
			return nil, err
		}

		promptCtx.Attempt = attempt
		text, genErr := o.generator.Generate(ctx, GenRequest{Context: promptCtx, Feedback: feedback})
		o.metrics.AttemptMade()

		if genErr != nil {
			// The attempt is consumed; the unit keeps its pre-attempt state
			// since no new draft arrived.
			state = prev
			o.logger.Warn("Generation attempt failed",
				"slug", p.Slug,
				"unit", idx,
				"attempt", attempt,
				"error", genErr)

			if uerr := o.updateChapter(ctx, p.Slug, idx, func(c *project.Chapter) {
				c.Attempts = attempt
			}); uerr != nil {
				return nil, uerr
			}

			if local == o.maxAttempts {
				o.publish(notify.Event{
					Type:    notify.EventUnitFailed,
					Slug:    p.Slug,
					Unit:    &idx,
					Attempt: attempt,
					Reason:  genErr.Error(),
				})
				o.metrics.UnitSettled(metrics.OutcomeFailed)
				return nil, &GenerationError{Slug: p.Slug, Index: idx, Attempts: local, Err: genErr}
			}
			continue
		}

		if state, err = stepState(state, UnitScoring); err != nil {
			return nil, err
		}

		score := scoring.Score(text, reqs)
		result.Score = &score
		o.metrics.ObserveUnitScore(score.Total)
		o.publish(notify.Event{
			Type:    notify.EventUnitScored,
			Slug:    p.Slug,
			Unit:    &idx,
			Attempt: attempt,
			Score:   &score.Total,
			Bucket:  score.Bucket.String(),
		})

		passed := score.Bucket == scoring.BucketComplete
		status := project.ChapterApproved
		if !passed {
			status = project.StatusForAttempt(attempt)
		}

		// Every attempt's outcome lands on disk before the next begins.
		if uerr := o.updateChapter(ctx, p.Slug, idx, func(c *project.Chapter) {
			c.Body = text
			c.Score = &score
			c.Status = status
			c.Attempts = attempt
		}); uerr != nil {
			return nil, uerr
		}

		if passed {
			if state, err = stepState(state, UnitPassed); err != nil {
				return nil, err
			}
			result.State = state
			result.Settled = true
			o.publish(notify.Event{
				Type:    notify.EventUnitPassed,
				Slug:    p.Slug,
				Unit:    &idx,
				Attempt: attempt,
				Score:   &score.Total,
				Bucket:  score.Bucket.String(),
			})
			o.metrics.UnitSettled(metrics.OutcomePassed)
			return result, nil
		}

		if local < o.maxAttempts {
			if state, err = stepState(state, UnitNeedsRetry); err != nil {
				return nil, err
			}
			feedback = append(feedback, score.Feedback)
			o.publish(notify.Event{
				Type:    notify.EventUnitRetry,
				Slug:    p.Slug,
				Unit:    &idx,
				Attempt: attempt,
				Score:   &score.Total,
				Bucket:  score.Bucket.String(),
				Reason:  score.Feedback,
			})
			continue
		}

		if state, err = stepState(state, UnitFailed); err != nil {
			return nil, err
		}
		result.State = state
		o.publish(notify.Event{
			Type:    notify.EventUnitFailed,
			Slug:    p.Slug,
			Unit:    &idx,
			Attempt: attempt,
			Score:   &score.Total,
			Bucket:  score.Bucket.String(),
			Reason:  score.Feedback,
		})
		o.metrics.UnitSettled(metrics.OutcomeFailed)
		return result, nil
	}

	return nil, fmt.Errorf("unit %d of project %q did not settle", ch.Index, p.Slug)
}

// PipelineReport summarizes one pipeline run.
type PipelineReport struct {
	Slug  string       `json:"slug"`
	Units []UnitResult `json:"units,omitempty"`

	// FailedUnit names the unit that halted the build phase, if any.
	FailedUnit *int `json:"failed_unit,omitempty"`

	// Document is the document-level evaluation, nil when the run halted
	// before quality gates.
	Document *scoring.DocReport `json:"document,omitempty"`

	// RegenUsed is true when this run spent the document regeneration
	// budget.
	RegenUsed bool `json:"regen_used,omitempty"`

	Halted     bool   `json:"halted"`
	HaltReason string `json:"halt_reason,omitempty"`

	// AssembledPath is set when the run reached final assembly.
	AssembledPath string `json:"assembled_path,omitempty"`

	// Phase is the project's phase when the run stopped.
	Phase project.Phase `json:"phase"`
}

// RunPipeline drives a project from its current phase toward complete, or
// to the first halt. It enters at chapter_build, quality_gates, or
// final_assembly, so an interrupted run resumes from the recorded phase.
func (o *Orchestrator) RunPipeline(ctx context.Context, slug string) (*PipelineReport, error) {
	p, err := o.manager.Load(ctx, slug)
	if err != nil {
		return nil, err
	}
	switch p.Phase {
	case project.PhaseChapterBuild, project.PhaseQualityGates, project.PhaseFinalAssembly:
	default:
		return nil, &project.PreconditionError{Phase: p.Phase, Requirement: "pipeline runs from chapter_build onward"}
	}

	report := &PipelineReport{Slug: slug, Phase: p.Phase}
	run := o.beginRun(ctx, p)

	fail := func(err error) (*PipelineReport, error) {
		o.haltRun(ctx, run, err.Error())
		return nil, err
	}

	if p.Phase == project.PhaseChapterBuild {
		halted, err := o.buildChapters(ctx, p, report, run)
		if err != nil {
			return fail(err)
		}
		if halted {
			o.haltRun(ctx, run, report.HaltReason)
			return report, nil
		}
		if p, err = o.advance(ctx, slug); err != nil {
			return fail(err)
		}
		report.Phase = p.Phase
	}

	if p.Phase == project.PhaseQualityGates {
		passed, err := o.runQualityGates(ctx, p, report, run)
		if err != nil {
			return fail(err)
		}
		if !passed {
			o.haltRun(ctx, run, report.HaltReason)
			return report, nil
		}
		if p, err = o.advance(ctx, slug); err != nil {
			return fail(err)
		}
		report.Phase = p.Phase
	}

	if p.Phase == project.PhaseFinalAssembly {
		if err := o.assemble(ctx, p, report); err != nil {
			return fail(err)
		}
		if p, err = o.advance(ctx, slug); err != nil {
			return fail(err)
		}
		report.Phase = p.Phase
	}

	o.finishRun(ctx, run)
	return report, nil
}

// buildChapters runs every non-approved unit in ascending index order.
// Returns true when a unit failed and the pipeline must halt; remaining
// units stay untouched.
func (o *Orchestrator) buildChapters(ctx context.Context, p *project.Project, report *PipelineReport, run *archive.RunSummary) (bool, error) {
	for i := range p.Chapters {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		ch := &p.Chapters[i]
		if ch.Status == project.ChapterApproved {
			continue
		}

		res, err := o.runUnit(ctx, p, ch)
		if err != nil {
			return false, err
		}
		report.Units = append(report.Units, *res)
		o.recordUnit(ctx, run, res)

		if !res.Settled {
			idx := res.Index
			report.FailedUnit = &idx
			report.Halted = true
			report.HaltReason = fmt.Sprintf("unit %d (%s) failed after %d attempts", res.Index, res.Title, res.Attempts)
			o.publish(notify.Event{
				Type:   notify.EventPipelineHalted,
				Slug:   p.Slug,
				Unit:   &idx,
				Reason: report.HaltReason,
			})
			o.metrics.PipelineHalted()
			return true, nil
		}
	}
	return false, nil
}

// runQualityGates evaluates the assembled chapters against the document
// gates, spending the single regeneration budget when the first pass falls
// short. Returns true when the review allows final assembly. The budget is
// per run; it never replenishes within one.
func (o *Orchestrator) runQualityGates(ctx context.Context, p *project.Project, report *PipelineReport, run *archive.RunSummary) (bool, error) {
	// A review the operator already approved passes without re-evaluation.
	if p.Review != nil && p.Review.Approved {
		return true, nil
	}

	doc := o.evaluateDocument(p)
	report.Document = &doc
	regenUsed := false

	if !doc.Passed {
		regenerated, err := o.regenerateWeakest(ctx, p, doc)
		if err != nil {
			return false, err
		}
		regenUsed = true
		report.RegenUsed = true
		if regenerated {
			fresh, err := o.manager.Load(ctx, p.Slug)
			if err != nil {
				return false, err
			}
			p = fresh
			doc = o.evaluateDocument(p)
			report.Document = &doc
		}
	}

	review := &project.QualityReview{
		Score:      doc.Score.Total,
		Bucket:     doc.Score.Bucket,
		Gates:      doc.Gates,
		Feedback:   doc.Score.Feedback,
		RegenUsed:  regenUsed,
		ReviewedAt: time.Now(),
	}
	if _, err := o.manager.Update(ctx, p.Slug, func(proj *project.Project) error {
		proj.Review = review
		return nil
	}); err != nil {
		return false, err
	}
	o.recordDocument(ctx, run, review)

	if doc.Passed {
		return true, nil
	}

	// The pipeline never auto-approves a deficient document; it stops here
	// for operator review.
	report.Halted = true
	report.HaltReason = "document review failed: " + docFeedback(doc)
	o.publish(notify.Event{
		Type:   notify.EventPipelineHalted,
		Slug:   p.Slug,
		Score:  &doc.Score.Total,
		Bucket: doc.Score.Bucket.String(),
		Reason: report.HaltReason,
	})
	o.metrics.PipelineHalted()
	return false, nil
}

// evaluateDocument runs the document gates over all chapters, scoring
// against the summed word target and the union of required subsections.
func (o *Orchestrator) evaluateDocument(p *project.Project) scoring.DocReport {
	profile := scoring.ProfileFor(p.DepthMode)

	chapters := make([]scoring.ChapterText, 0, len(p.Chapters))
	var subsections []string
	seen := make(map[string]bool)
	for _, ch := range p.Chapters {
		text := scoring.ChapterText{Title: ch.Title, Body: ch.Body}
		if ch.Score != nil {
			text.Score = *ch.Score
		}
		chapters = append(chapters, text)

		for _, s := range scoring.SubsectionsFor(ch.Title, profile) {
			if !seen[s] {
				seen[s] = true
				subsections = append(subsections, s)
			}
		}
	}

	return scoring.EvaluateDocument(chapters, scoring.DocRequirements{
		TargetWords: profile.TargetWords * len(p.Chapters),
		Subsections: subsections,
	})
}

// regenerateWeakest rewrites the lowest-scoring chapter once, keeping the
// new draft only when it scores complete. Returns true when the chapter
// body changed. Chapter attempt counts are untouched; the regeneration
// budget is separate from per-unit attempts.
func (o *Orchestrator) regenerateWeakest(ctx context.Context, p *project.Project, doc scoring.DocReport) (bool, error) {
	ch := weakestChapter(p)
	if ch == nil {
		return false, nil
	}
	if err := project.VerifyOutline(p); err != nil {
		return false, err
	}

	profile := scoring.ProfileFor(p.DepthMode)
	reqs := scoring.Requirements{
		TargetWords: profile.TargetWords,
		Subsections: scoring.SubsectionsFor(ch.Title, profile),
	}

	feedback := []string{docFeedback(doc)}
	if ch.Score != nil && ch.Score.Feedback != "" {
		feedback = append(feedback, ch.Score.Feedback)
	}

	attempt := ch.Attempts + 1
	promptCtx := o.promptContext(p, ch, profile, reqs.Subsections)
	promptCtx.Attempt = attempt

	idx := ch.Index
	o.publish(notify.Event{
		Type:    notify.EventUnitStarted,
		Slug:    p.Slug,
		Unit:    &idx,
		Phase:   p.Phase.String(),
		Attempt: attempt,
	})

	text, err := o.generator.Generate(ctx, GenRequest{Context: promptCtx, Feedback: feedback})
	o.metrics.AttemptMade()
	if err != nil {
		return false, &GenerationError{Slug: p.Slug, Index: idx, Attempts: 1, Err: err}
	}

	score := scoring.Score(text, reqs)
	o.metrics.ObserveUnitScore(score.Total)
	o.publish(notify.Event{
		Type:    notify.EventUnitScored,
		Slug:    p.Slug,
		Unit:    &idx,
		Attempt: attempt,
		Score:   &score.Total,
		Bucket:  score.Bucket.String(),
	})

	if score.Bucket != scoring.BucketComplete {
		o.logger.Info("Regenerated draft scored below complete, keeping prior body",
			"slug", p.Slug,
			"unit", idx,
			"score", score.Total)
		return false, nil
	}

	if err := o.updateChapter(ctx, p.Slug, idx, func(c *project.Chapter) {
		c.Body = text
		c.Score = &score
	}); err != nil {
		return false, err
	}
	return true, nil
}

// assemble writes the final document and records its path.
func (o *Orchestrator) assemble(ctx context.Context, p *project.Project, report *PipelineReport) error {
	if o.assembler == nil {
		return fmt.Errorf("project %q: no assembler configured", p.Slug)
	}

	path, err := o.assembler.Assemble(ctx, p)
	if err != nil {
		return fmt.Errorf("assemble document: %w", err)
	}

	if _, err := o.manager.Update(ctx, p.Slug, func(proj *project.Project) error {
		proj.AssembledPath = path
		return nil
	}); err != nil {
		return err
	}
	report.AssembledPath = path
	return nil
}

// advance moves the project one phase forward and announces it.
func (o *Orchestrator) advance(ctx context.Context, slug string) (*project.Project, error) {
	p, err := o.manager.Advance(ctx, slug)
	if err != nil {
		return nil, err
	}
	o.publish(notify.Event{
		Type:  notify.EventPhaseAdvanced,
		Slug:  slug,
		Phase: p.Phase.String(),
	})
	o.metrics.SetPhase(slug, p.Phase.String())
	o.logger.Info("Phase advanced", "slug", slug, "phase", p.Phase)
	return p, nil
}

// updateChapter persists a mutation of one chapter.
func (o *Orchestrator) updateChapter(ctx context.Context, slug string, index int, fn func(*project.Chapter)) error {
	_, err := o.manager.Update(ctx, slug, func(proj *project.Project) error {
		c := proj.ChapterByIndex(index)
		if c == nil {
			return &project.ValidationError{Field: "unit", Reason: fmt.Sprintf("no chapter with index %d", index)}
		}
		fn(c)
		c.UpdatedAt = time.Now()
		return nil
	})
	return err
}

// promptContext assembles the generation context for one chapter.
func (o *Orchestrator) promptContext(p *project.Project, ch *project.Chapter, profile scoring.Profile, subsections []string) PromptContext {
	features := make([]string, 0, len(p.Features))
	for _, f := range p.Features {
		features = append(features, f.Name)
	}

	var outline []string
	if p.Outline != nil {
		outline = make([]string, 0, len(p.Outline.Sections))
		for _, s := range p.Outline.Sections {
			outline = append(outline, s.Title)
		}
	}

	return PromptContext{
		Slug:        p.Slug,
		DocTitle:    p.Title,
		Idea:        p.Idea,
		Features:    features,
		Outline:     outline,
		Index:       ch.Index,
		Title:       ch.Title,
		Subsections: subsections,
		TargetWords: profile.TargetWords,
		MaxTokens:   profile.MaxTokens,
	}
}

// publish sends an event to the hub when one is configured. The hub fills
// in ID and timestamp.
func (o *Orchestrator) publish(ev notify.Event) {
	if o.hub == nil {
		return
	}
	o.hub.Publish(ev)
}

// weakestChapter returns the lowest-scoring chapter, ties going to the
// lowest index. Chapters without a score sort weakest of all.
func weakestChapter(p *project.Project) *project.Chapter {
	var weakest *project.Chapter
	for i := range p.Chapters {
		ch := &p.Chapters[i]
		if weakest == nil || chapterScore(ch) < chapterScore(weakest) {
			weakest = ch
		}
	}
	return weakest
}

func chapterScore(ch *project.Chapter) int {
	if ch.Score == nil {
		return -1
	}
	return ch.Score.Total
}

// docFeedback flattens a failing document report into one revision note.
func docFeedback(doc scoring.DocReport) string {
	var parts []string
	for _, g := range doc.Gates {
		if !g.Passed {
			parts = append(parts, fmt.Sprintf("%s gate failed: %s", g.Name, g.Detail))
		}
	}
	if doc.Score.Feedback != "" {
		parts = append(parts, doc.Score.Feedback)
	}
	return strings.Join(parts, " ")
}

// beginRun opens an archive record for this pipeline run. Archive failures
// are logged, never fatal.
func (o *Orchestrator) beginRun(ctx context.Context, p *project.Project) *archive.RunSummary {
	if o.store == nil {
		return nil
	}
	run := &archive.RunSummary{
		Slug:      p.Slug,
		DepthMode: p.DepthMode.String(),
		StartedAt: time.Now(),
	}
	if _, err := o.store.CreateRun(ctx, run); err != nil {
		o.logger.Warn("Archive run create failed", "slug", p.Slug, "error", err)
		return nil
	}
	return run
}

// recordUnit appends a unit outcome to the run record.
func (o *Orchestrator) recordUnit(ctx context.Context, run *archive.RunSummary, res *UnitResult) {
	if run == nil {
		return
	}
	outcome := archive.UnitOutcome{
		Index:    res.Index,
		Title:    res.Title,
		Status:   res.State.String(),
		Attempts: res.Attempts,
	}
	if res.Score != nil {
		outcome.Score = res.Score.Total
	}
	run.Units = append(run.Units, outcome)
	if err := o.store.UpdateRun(ctx, run); err != nil {
		o.logger.Warn("Archive run update failed", "slug", run.Slug, "error", err)
	}
}

// recordDocument stores the document review on the run record.
func (o *Orchestrator) recordDocument(ctx context.Context, run *archive.RunSummary, review *project.QualityReview) {
	if run == nil {
		return
	}
	score := review.Score
	run.DocumentScore = &score
	run.DocumentBucket = review.Bucket.String()
	if err := o.store.UpdateRun(ctx, run); err != nil {
		o.logger.Warn("Archive run update failed", "slug", run.Slug, "error", err)
	}
}

// haltRun closes the run record as halted.
func (o *Orchestrator) haltRun(ctx context.Context, run *archive.RunSummary, reason string) {
	if run == nil {
		return
	}
	now := time.Now()
	run.FinishedAt = &now
	run.Halted = true
	run.HaltReason = reason
	if err := o.store.UpdateRun(ctx, run); err != nil {
		o.logger.Warn("Archive run update failed", "slug", run.Slug, "error", err)
	}
}

// finishRun closes the run record cleanly.
func (o *Orchestrator) finishRun(ctx context.Context, run *archive.RunSummary) {
	if run == nil {
		return
	}
	now := time.Now()
	run.FinishedAt = &now
	if err := o.store.UpdateRun(ctx, run); err != nil {
		o.logger.Warn("Archive run update failed", "slug", run.Slug, "error", err)
	}
}
