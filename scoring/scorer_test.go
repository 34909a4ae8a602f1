package scoring

import (
	"reflect"
	"strings"
	"testing"
)

// wordBlock returns n filler words that match no signal or specificity
// pattern.
func wordBlock(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "detail"
	}
	return strings.Join(words, " ")
}

var standardSubs = []string{"Purpose", "Context", "Scope", "Stakeholders"}

// minimalCompleteChapter builds a chapter that just clears the complete
// bar: full length, all subsections, two tables, one file path, one
// ordering marker.
func minimalCompleteChapter() string {
	var sb strings.Builder
	for _, sub := range standardSubs {
		sb.WriteString("## " + sub + "\n\n")
		sb.WriteString(wordBlock(380))
		sb.WriteString("\n\n")
	}
	sb.WriteString("| Field | Value |\n|-------|-------|\n\n")
	sb.WriteString("| Stage | Owner |\n|-------|-------|\n\n")
	sb.WriteString("The runtime loads /etc/semdraft/project.json at startup.\n")
	sb.WriteString("Step 1 initializes the store.\n")
	return sb.String()
}

func TestScore_CompleteChapter(t *testing.T) {
	text := minimalCompleteChapter()
	req := Requirements{TargetWords: 1500, Subsections: standardSubs}

	r := Score(text, req)

	if r.Length != 25 {
		t.Errorf("Length = %d, want 25 (word count %d)", r.Length, r.WordCount)
	}
	if r.Structure != 25 {
		t.Errorf("Structure = %d, want 25 (missing %v)", r.Structure, r.MissingSubsections)
	}
	if r.Density < 20 {
		t.Errorf("Density = %d, want >= 20 (signals %v)", r.Density, r.SignalCounts)
	}
	if r.Specificity < 6 {
		t.Errorf("Specificity = %d, want >= 6 (categories %v)", r.Specificity, r.CategoriesFound)
	}
	if r.Total < 75 {
		t.Errorf("Total = %d, want >= 75", r.Total)
	}
	if r.Bucket != BucketComplete {
		t.Errorf("Bucket = %q, want %q", r.Bucket, BucketComplete)
	}
	if r.Feedback != "" {
		t.Errorf("Feedback = %q, want empty for complete result", r.Feedback)
	}
}

func TestScore_ShortChapterFeedback(t *testing.T) {
	text := wordBlock(200)
	req := Requirements{TargetWords: 1500, Subsections: standardSubs}

	r := Score(text, req)

	if r.WordCount != 200 {
		t.Fatalf("WordCount = %d, want 200", r.WordCount)
	}
	if r.Length != 3 {
		t.Errorf("Length = %d, want 3", r.Length)
	}
	if r.Structure != 0 {
		t.Errorf("Structure = %d, want 0", r.Structure)
	}
	if r.Total >= 40 {
		t.Errorf("Total = %d, want < 40", r.Total)
	}
	if r.Bucket != BucketIncomplete {
		t.Errorf("Bucket = %q, want %q", r.Bucket, BucketIncomplete)
	}
	if !strings.Contains(r.Feedback, "missing: all 4 subsections") {
		t.Errorf("Feedback = %q, want it to name all 4 missing subsections", r.Feedback)
	}
	if !strings.Contains(r.Feedback, "word count 200/1500") {
		t.Errorf("Feedback = %q, want it to include the word count shortfall", r.Feedback)
	}
}

func TestScore_Deterministic(t *testing.T) {
	text := minimalCompleteChapter()
	req := Requirements{TargetWords: 1500, Subsections: standardSubs}

	first := Score(text, req)
	second := Score(text, req)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Score() not deterministic:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}

func TestScore_LengthMonotonic(t *testing.T) {
	req := Requirements{TargetWords: 1000}

	prev := -1
	for _, words := range []int{0, 100, 400, 999, 1000, 1500, 5000} {
		r := Score(wordBlock(words), req)
		if r.Length < prev {
			t.Errorf("Length decreased at %d words: %d -> %d", words, prev, r.Length)
		}
		if r.Length > 25 {
			t.Errorf("Length = %d at %d words, want <= 25", r.Length, words)
		}
		prev = r.Length
	}
}

func TestScore_StructureMonotonic(t *testing.T) {
	req := Requirements{Subsections: standardSubs}

	var sb strings.Builder
	prev := -1
	for _, sub := range standardSubs {
		sb.WriteString("## " + sub + "\n")
		r := Score(sb.String(), req)
		if r.Structure < prev {
			t.Errorf("Structure decreased after adding %q: %d -> %d", sub, prev, r.Structure)
		}
		prev = r.Structure
	}
	if prev != 25 {
		t.Errorf("Structure with all subsections = %d, want 25", prev)
	}
}

func TestScore_ZeroRequirements(t *testing.T) {
	r := Score("a few words", Requirements{})

	if r.Length != 25 {
		t.Errorf("Length with zero target = %d, want 25", r.Length)
	}
	if r.Structure != 25 {
		t.Errorf("Structure with no required subsections = %d, want 25", r.Structure)
	}
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		total int
		want  Bucket
	}{
		{0, BucketIncomplete},
		{39, BucketIncomplete},
		{40, BucketNeedsExpansion},
		{74, BucketNeedsExpansion},
		{75, BucketComplete},
		{100, BucketComplete},
	}

	for _, tt := range tests {
		if got := BucketFor(tt.total); got != tt.want {
			t.Errorf("BucketFor(%d) = %q, want %q", tt.total, got, tt.want)
		}
	}
}

func TestDensityScore_Tiers(t *testing.T) {
	tests := []struct {
		signals int
		want    int
	}{
		{0, 0},
		{1, 10},
		{2, 10},
		{3, 20},
		{5, 20},
		{6, 25},
		{40, 25},
	}

	for _, tt := range tests {
		if got := densityScore(tt.signals); got != tt.want {
			t.Errorf("densityScore(%d) = %d, want %d", tt.signals, got, tt.want)
		}
	}
}

func TestCountSignals(t *testing.T) {
	text := "Run pip install deps before starting.\n" +
		"```\ncode here\n```\n" +
		"Edit config/settings.yaml and set API_TOKEN=secret.\n" +
		"| a | b |\n" +
		"Serve on localhost:8080.\n"

	counts := countSignals(text)

	if counts["code_blocks"] != 1 {
		t.Errorf("code_blocks = %d, want 1", counts["code_blocks"])
	}
	if counts["cli_commands"] == 0 {
		t.Error("cli_commands = 0, want at least 1")
	}
	if counts["file_paths"] == 0 {
		t.Error("file_paths = 0, want at least 1")
	}
	if counts["tables"] != 1 {
		t.Errorf("tables = %d, want 1", counts["tables"])
	}
	if counts["env_vars"] == 0 {
		t.Error("env_vars = 0, want at least 1")
	}
	if counts["urls_ports"] == 0 {
		t.Error("urls_ports = 0, want at least 1")
	}
}

func TestMatchSubsections(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		required    []string
		wantFound   int
		wantMissing int
	}{
		{
			name:        "markdown heading",
			text:        "## User Personas\nsome text",
			required:    []string{"User Personas"},
			wantFound:   1,
			wantMissing: 0,
		},
		{
			name:        "deeper heading",
			text:        "### Access Control\nsome text",
			required:    []string{"Access Control"},
			wantFound:   1,
			wantMissing: 0,
		},
		{
			name:        "phrase without heading",
			text:        "the onboarding flow guides new users",
			required:    []string{"Onboarding Flow"},
			wantFound:   1,
			wantMissing: 0,
		},
		{
			name:        "absent",
			text:        "nothing relevant here",
			required:    []string{"Edge Cases"},
			wantFound:   0,
			wantMissing: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, missing := matchSubsections(tt.text, tt.required)
			if len(found) != tt.wantFound {
				t.Errorf("found = %v, want %d entries", found, tt.wantFound)
			}
			if len(missing) != tt.wantMissing {
				t.Errorf("missing = %v, want %d entries", missing, tt.wantMissing)
			}
		})
	}
}

func TestScore_SpecificityCategories(t *testing.T) {
	text := "Step 1 loads data. Inputs: a slug. The build depends on a locked outline. " +
		"Set the environment variable before running."

	r := Score(text, Requirements{})

	want := []string{"ordering", "io", "dependencies", "env_config"}
	if !reflect.DeepEqual(r.CategoriesFound, want) {
		t.Errorf("CategoriesFound = %v, want %v", r.CategoriesFound, want)
	}
	if r.Specificity != 25 {
		t.Errorf("Specificity = %d, want 25", r.Specificity)
	}
}

func TestScore_FeedbackNamesMissingSubsections(t *testing.T) {
	text := "## Purpose\n" + wordBlock(50)
	req := Requirements{TargetWords: 1500, Subsections: standardSubs}

	r := Score(text, req)

	if strings.Contains(r.Feedback, "all 4 subsections") {
		t.Errorf("Feedback = %q, should list individual subsections when some are present", r.Feedback)
	}
	for _, sub := range []string{"Context", "Scope", "Stakeholders"} {
		if !strings.Contains(r.Feedback, sub) {
			t.Errorf("Feedback = %q, want it to name missing subsection %q", r.Feedback, sub)
		}
	}
}
