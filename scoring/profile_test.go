package scoring

import "testing"

func TestResolveDepthMode(t *testing.T) {
	tests := []struct {
		input string
		want  DepthMode
	}{
		{"light", DepthLight},
		{"lite", DepthLight},
		{"standard", DepthStandard},
		{"professional", DepthProfessional},
		{"enterprise", DepthEnterprise},
		{"architect", DepthEnterprise},
		{"ENTERPRISE", DepthEnterprise},
		{"  standard  ", DepthStandard},
		{"unknown", DefaultDepthMode},
		{"", DefaultDepthMode},
	}

	for _, tt := range tests {
		if got := ResolveDepthMode(tt.input); got != tt.want {
			t.Errorf("ResolveDepthMode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestProfileFor(t *testing.T) {
	tests := []struct {
		mode      DepthMode
		wantWords int
		wantSubs  int
	}{
		{DepthLight, 800, 3},
		{DepthStandard, 1500, 4},
		{DepthProfessional, 2500, 6},
		{DepthEnterprise, 3500, 8},
		{DepthMode("bogus"), 2500, 6}, // falls back to default
	}

	for _, tt := range tests {
		p := ProfileFor(tt.mode)
		if p.TargetWords != tt.wantWords {
			t.Errorf("ProfileFor(%q).TargetWords = %d, want %d", tt.mode, p.TargetWords, tt.wantWords)
		}
		if p.RequiredSubsections != tt.wantSubs {
			t.Errorf("ProfileFor(%q).RequiredSubsections = %d, want %d", tt.mode, p.RequiredSubsections, tt.wantSubs)
		}
		if p.MaxTokens == 0 {
			t.Errorf("ProfileFor(%q).MaxTokens = 0, want nonzero", tt.mode)
		}
	}
}

func TestSubsectionsFor_KnownTitle(t *testing.T) {
	counts := map[DepthMode]int{
		DepthLight:        2,
		DepthStandard:     4,
		DepthProfessional: 6,
		DepthEnterprise:   8,
	}

	for mode, want := range counts {
		subs := SubsectionsFor("Core Capabilities", ProfileFor(mode))
		if len(subs) != want {
			t.Errorf("SubsectionsFor(Core Capabilities, %s) returned %d headings, want %d", mode, len(subs), want)
		}
	}
}

func TestSubsectionsFor_CaseInsensitiveTitle(t *testing.T) {
	a := SubsectionsFor("core capabilities", ProfileFor(DepthStandard))
	b := SubsectionsFor("  Core Capabilities ", ProfileFor(DepthStandard))

	if len(a) != len(b) || len(a) == 0 {
		t.Errorf("title lookup not case/space insensitive: %v vs %v", a, b)
	}
}

func TestSubsectionsFor_GenericFallback(t *testing.T) {
	p := ProfileFor(DepthStandard)
	subs := SubsectionsFor("Some Custom Section", p)

	if len(subs) != p.RequiredSubsections {
		t.Fatalf("fallback returned %d headings, want %d", len(subs), p.RequiredSubsections)
	}
	if subs[0] != "Overview" {
		t.Errorf("fallback starts with %q, want Overview", subs[0])
	}
}

func TestEstimatePages(t *testing.T) {
	tests := []struct {
		words int
		want  int
	}{
		{0, 1},
		{499, 1},
		{500, 1},
		{1000, 2},
		{1750, 3},
	}

	for _, tt := range tests {
		if got := EstimatePages(tt.words); got != tt.want {
			t.Errorf("EstimatePages(%d) = %d, want %d", tt.words, got, tt.want)
		}
	}
}
