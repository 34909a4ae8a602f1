// Package scoring provides deterministic quality evaluation for generated
// chapters and assembled documents. Depth profiles set generation targets,
// the scorer grades text across four dimensions, and document gates judge
// the assembled whole. Everything in this package is pure: no I/O, no
// clock, no randomness.
package scoring

import "strings"

// DepthMode selects how deep generated chapters should go. Modes move the
// generation targets (words, subsections, token budget); they never move
// the score bucket thresholds.
type DepthMode string

const (
	DepthLight        DepthMode = "light"
	DepthStandard     DepthMode = "standard"
	DepthProfessional DepthMode = "professional"
	DepthEnterprise   DepthMode = "enterprise"
)

// DefaultDepthMode is used when a project does not choose one.
const DefaultDepthMode = DepthProfessional

// String returns the string representation of the depth mode.
func (d DepthMode) String() string {
	return string(d)
}

// IsValid returns true if the depth mode is known.
func (d DepthMode) IsValid() bool {
	switch d {
	case DepthLight, DepthStandard, DepthProfessional, DepthEnterprise:
		return true
	default:
		return false
	}
}

// ResolveDepthMode maps user input to a depth mode, accepting legacy
// aliases. Unknown input falls back to DefaultDepthMode.
func ResolveDepthMode(s string) DepthMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "light", "lite":
		return DepthLight
	case "standard":
		return DepthStandard
	case "professional":
		return DepthProfessional
	case "enterprise", "architect":
		return DepthEnterprise
	default:
		return DefaultDepthMode
	}
}

// Profile carries the generation targets for one depth mode.
type Profile struct {
	Mode DepthMode `json:"mode"`

	// MaxTokens is the generation token budget per chapter.
	MaxTokens int `json:"max_tokens"`

	// TargetWords is the word count a chapter is scored against.
	TargetWords int `json:"target_words"`

	// RequiredSubsections is how many subsection headings a chapter needs
	// when its section title has no entry in the per-title table.
	RequiredSubsections int `json:"required_subsections"`
}

var profiles = map[DepthMode]Profile{
	DepthLight:        {Mode: DepthLight, MaxTokens: 4096, TargetWords: 800, RequiredSubsections: 3},
	DepthStandard:     {Mode: DepthStandard, MaxTokens: 6144, TargetWords: 1500, RequiredSubsections: 4},
	DepthProfessional: {Mode: DepthProfessional, MaxTokens: 8192, TargetWords: 2500, RequiredSubsections: 6},
	DepthEnterprise:   {Mode: DepthEnterprise, MaxTokens: 12288, TargetWords: 3500, RequiredSubsections: 8},
}

// ProfileFor returns the profile for the given mode. Unknown modes get the
// default profile so callers never receive zero targets.
func ProfileFor(mode DepthMode) Profile {
	if p, ok := profiles[mode]; ok {
		return p
	}
	return profiles[DefaultDepthMode]
}

// genericSubsections is the ordered fallback for section titles without an
// entry in sectionSubsections. Truncated to the profile's count.
var genericSubsections = []string{
	"Overview",
	"Details",
	"Implementation",
	"Considerations",
	"Dependencies",
	"Testing Strategy",
	"Deployment Notes",
	"Monitoring & Operations",
}

// sectionSubsections maps default outline section titles (lowercased) to
// their required subsection headings per depth mode. Titles outside this
// table use genericSubsections; that fallback is documented behavior.
var sectionSubsections = map[string]map[DepthMode][]string{
	"system purpose & context": {
		DepthLight:    {"Purpose", "Context"},
		DepthStandard: {"Purpose", "Context", "Scope", "Stakeholders"},
		DepthProfessional: {
			"Purpose", "Context", "Scope", "Stakeholders",
			"Business Model", "Competitive Landscape",
		},
		DepthEnterprise: {
			"Purpose", "Context", "Scope", "Stakeholders",
			"Business Model", "Competitive Landscape",
			"Market Timing", "Investment Context",
		},
	},
	"target users & roles": {
		DepthLight:    {"User Personas", "Roles"},
		DepthStandard: {"User Personas", "Roles", "Access Control", "User Journeys"},
		DepthProfessional: {
			"User Personas", "Roles", "Access Control",
			"User Journeys", "Onboarding Flow", "Edge Cases",
		},
		DepthEnterprise: {
			"User Personas", "Roles", "Access Control",
			"User Journeys", "Onboarding Flow", "Edge Cases",
			"Internationalization", "Accessibility",
		},
	},
	"core capabilities": {
		DepthLight:    {"Features", "Integration Points"},
		DepthStandard: {"Features", "Integration Points", "API Design", "Workflows"},
		DepthProfessional: {
			"Features", "Integration Points", "API Design",
			"Workflows", "Acceptance Criteria", "Error Handling",
		},
		DepthEnterprise: {
			"Features", "Integration Points", "API Design",
			"Workflows", "Acceptance Criteria", "Error Handling",
			"Feature Dependencies", "Feature Flags",
		},
	},
	"non-goals & explicit exclusions": {
		DepthLight:    {"Non-Goals", "Exclusions"},
		DepthStandard: {"Non-Goals", "Exclusions", "Future Considerations", "Scope Boundaries"},
		DepthProfessional: {
			"Non-Goals", "Exclusions", "Future Considerations",
			"Scope Boundaries", "Anti-Patterns", "Decision Rationale",
		},
		DepthEnterprise: {
			"Non-Goals", "Exclusions", "Future Considerations",
			"Scope Boundaries", "Anti-Patterns", "Decision Rationale",
			"Deferred Features", "Technical Debt Boundaries",
		},
	},
	"high-level architecture": {
		DepthLight: {"Architecture Overview", "Technology Stack"},
		DepthStandard: {
			"Architecture Overview", "Technology Stack",
			"Data Model", "Infrastructure",
		},
		DepthProfessional: {
			"Architecture Overview", "Technology Stack",
			"Data Model", "Infrastructure",
			"CI/CD Pipeline", "Security Architecture",
		},
		DepthEnterprise: {
			"Architecture Overview", "Technology Stack",
			"Data Model", "Infrastructure",
			"CI/CD Pipeline", "Security Architecture",
			"Caching Strategy", "Event Architecture",
		},
	},
	"execution phases": {
		DepthLight:    {"MVP Scope", "Phase Plan"},
		DepthStandard: {"MVP Scope", "Phase Plan", "Milestones", "Resources"},
		DepthProfessional: {
			"MVP Scope", "Phase Plan", "Milestones",
			"Resources", "Risk Mitigation", "Go-To-Market",
		},
		DepthEnterprise: {
			"MVP Scope", "Phase Plan", "Milestones",
			"Resources", "Risk Mitigation", "Go-To-Market",
			"Team Structure", "Technical Debt Budget",
		},
	},
	"risks, constraints, and assumptions": {
		DepthLight:    {"Risks", "Constraints"},
		DepthStandard: {"Risks", "Constraints", "Assumptions", "Mitigation Plans"},
		DepthProfessional: {
			"Risks", "Constraints", "Assumptions",
			"Mitigation Plans", "Compliance Requirements", "Monitoring",
		},
		DepthEnterprise: {
			"Risks", "Constraints", "Assumptions",
			"Mitigation Plans", "Compliance Requirements", "Monitoring",
			"Incident Response", "Disaster Recovery",
		},
	},
}

// SubsectionsFor returns the required subsection headings for a section
// title under the given profile.
func SubsectionsFor(title string, p Profile) []string {
	key := strings.ToLower(strings.TrimSpace(title))
	if byMode, ok := sectionSubsections[key]; ok {
		if subs, ok := byMode[p.Mode]; ok {
			return subs
		}
	}
	n := p.RequiredSubsections
	if n > len(genericSubsections) {
		n = len(genericSubsections)
	}
	return genericSubsections[:n]
}

// wordsPerPage is the conversion used for page estimates.
const wordsPerPage = 500

// EstimatePages converts a word count to an estimated printed page count.
// Any non-empty document is at least one page.
func EstimatePages(words int) int {
	pages := words / wordsPerPage
	if pages < 1 {
		return 1
	}
	return pages
}
