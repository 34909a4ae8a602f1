// Package model provides capability-based model selection for pipeline
// stages. Instead of hardcoding model names, callers specify capabilities
// (catalog, drafting, review) and the registry resolves them to available
// models with fallback chains.
package model

// Capability represents a semantic capability for model selection.
// Instead of specifying "claude-sonnet", callers specify "drafting" or
// "review".
type Capability string

const (
	// CapabilityCatalog is for feature catalog generation.
	CapabilityCatalog Capability = "catalog"

	// CapabilityOutline is for document outline generation.
	CapabilityOutline Capability = "outline"

	// CapabilityDrafting is for first-pass chapter generation.
	CapabilityDrafting Capability = "drafting"

	// CapabilityRevision is for feedback-driven chapter rewrites.
	CapabilityRevision Capability = "revision"

	// CapabilityReview is for document-level quality review.
	CapabilityReview Capability = "review"
)

// CapabilityForAttempt returns the capability for a generation attempt
// number (1-based). First attempts draft; later attempts revise.
func CapabilityForAttempt(attempt int) Capability {
	if attempt <= 1 {
		return CapabilityDrafting
	}
	return CapabilityRevision
}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityCatalog, CapabilityOutline, CapabilityDrafting, CapabilityRevision, CapabilityReview:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for
// invalid values.
func ParseCapability(s string) Capability {
	cap := Capability(s)
	if cap.IsValid() {
		return cap
	}
	return ""
}
