package model

import "testing"

func TestCapabilityForAttempt(t *testing.T) {
	tests := []struct {
		name     string
		attempt  int
		expected Capability
	}{
		{"first attempt drafts", 1, CapabilityDrafting},
		{"second attempt revises", 2, CapabilityRevision},
		{"third attempt revises", 3, CapabilityRevision},
		{"zero drafts", 0, CapabilityDrafting},
		{"negative drafts", -1, CapabilityDrafting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CapabilityForAttempt(tt.attempt)
			if got != tt.expected {
				t.Errorf("CapabilityForAttempt(%d) = %q, want %q", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestCapabilityIsValid(t *testing.T) {
	tests := []struct {
		cap      Capability
		expected bool
	}{
		{CapabilityCatalog, true},
		{CapabilityOutline, true},
		{CapabilityDrafting, true},
		{CapabilityRevision, true},
		{CapabilityReview, true},
		{Capability("invalid"), false},
		{Capability(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.cap), func(t *testing.T) {
			got := tt.cap.IsValid()
			if got != tt.expected {
				t.Errorf("Capability(%q).IsValid() = %v, want %v", tt.cap, got, tt.expected)
			}
		})
	}
}

func TestParseCapability(t *testing.T) {
	tests := []struct {
		input    string
		expected Capability
	}{
		{"catalog", CapabilityCatalog},
		{"outline", CapabilityOutline},
		{"drafting", CapabilityDrafting},
		{"revision", CapabilityRevision},
		{"review", CapabilityReview},
		{"invalid", ""},
		{"", ""},
		{"DRAFTING", ""}, // case-sensitive
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseCapability(tt.input)
			if got != tt.expected {
				t.Errorf("ParseCapability(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCapabilityString(t *testing.T) {
	tests := []struct {
		cap      Capability
		expected string
	}{
		{CapabilityCatalog, "catalog"},
		{CapabilityOutline, "outline"},
		{CapabilityDrafting, "drafting"},
		{CapabilityRevision, "revision"},
		{CapabilityReview, "review"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := tt.cap.String()
			if got != tt.expected {
				t.Errorf("Capability.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}
