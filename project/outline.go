package project

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360studio/semdraft/llm"
)

// outlineCapability routes outline generation to its configured model.
const outlineCapability = "outline"

// OutlineGeneratedByFallback marks outlines built from the default
// section list rather than a model response.
const OutlineGeneratedByFallback = "fallback"

// DefaultSections returns the built-in seven-section outline used when no
// model is available or a model response cannot be parsed.
func DefaultSections() []Section {
	titles := []string{
		"System Purpose & Context",
		"Target Users & Roles",
		"Core Capabilities",
		"Non-Goals & Explicit Exclusions",
		"High-Level Architecture",
		"Execution Phases",
		"Risks, Constraints, and Assumptions",
	}
	sections := make([]Section, len(titles))
	for i, title := range titles {
		sections[i] = Section{Index: i, Title: title, Type: SectionTypeStandard}
	}
	return sections
}

const outlineSystemPrompt = "You are a software requirements architect. Generate structured document outlines for software projects."

const outlinePromptTemplate = `Given this project:

Idea: %s

Selected features:
%s

Generate a 7-section requirements document outline.
Return ONLY valid JSON with this structure:
{"sections": [{"index": 0, "title": "Section Title", "type": "standard"}]}

The 7 sections MUST cover these topics in this order:
1. System Purpose & Context
2. Target Users & Roles
3. Core Capabilities (reference the selected features)
4. Non-Goals & Explicit Exclusions
5. High-Level Architecture
6. Execution Phases
7. Risks, Constraints, and Assumptions

Rules:
- Exactly 7 sections, index starting at 0
- Titles may be tailored to THIS project but must keep the topic order
- Return ONLY the JSON object, no markdown or explanation`

// GenerateOutline builds an outline for the project with a one-time model
// call. Any transport or parse failure falls back to the default
// sections; the returned generatedBy string records which path produced
// the result.
func GenerateOutline(ctx context.Context, gen TextGenerator, p *Project) (sections []Section, generatedBy string) {
	if gen == nil || strings.TrimSpace(p.Idea) == "" {
		return DefaultSections(), OutlineGeneratedByFallback
	}

	raw, err := gen.GenerateText(ctx, outlineCapability, outlineSystemPrompt,
		fmt.Sprintf(outlinePromptTemplate, strings.TrimSpace(p.Idea), featureList(p.Features)))
	if err != nil {
		return DefaultSections(), OutlineGeneratedByFallback
	}

	parsed, err := parseOutline(raw)
	if err != nil {
		return DefaultSections(), OutlineGeneratedByFallback
	}
	return parsed, outlineCapability
}

// featureList renders selected features for the outline prompt.
func featureList(features []SelectedFeature) string {
	if len(features) == 0 {
		return "- No specific features selected"
	}
	var sb strings.Builder
	for _, f := range features {
		fmt.Fprintf(&sb, "- %s (%s)\n", f.Name, f.Category)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// parseOutline decodes and validates a model outline response. Indexes
// are renumbered densely from zero so models that count from one still
// parse.
func parseOutline(raw string) ([]Section, error) {
	var payload struct {
		Sections []Section `json:"sections"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &payload); err != nil {
		return nil, fmt.Errorf("parse outline: %w", err)
	}
	if len(payload.Sections) == 0 {
		return nil, fmt.Errorf("outline has no sections")
	}

	sections := payload.Sections
	for i := range sections {
		if strings.TrimSpace(sections[i].Title) == "" {
			return nil, fmt.Errorf("outline section %d has an empty title", i)
		}
		sections[i].Index = i
		if sections[i].Type == "" {
			sections[i].Type = SectionTypeStandard
		}
	}
	return sections, nil
}

// GenerateOutline generates and persists an outline for the project,
// replacing any unlocked one. The generation call runs outside the slug
// lock.
func (m *Manager) GenerateOutline(ctx context.Context, slug string, gen TextGenerator) (*Project, error) {
	p, err := m.Load(ctx, slug)
	if err != nil {
		return nil, err
	}
	if p.Locked() {
		return nil, &PreconditionError{Phase: p.Phase, Requirement: "outline is locked; unlock before regenerating"}
	}

	sections, generatedBy := GenerateOutline(ctx, gen, p)
	return m.SetOutline(ctx, slug, sections, generatedBy)
}
