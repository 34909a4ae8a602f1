package scoring

import (
	"strings"
	"testing"
)

// richChapter builds a chapter that passes every gate: all subsections,
// plenty of signals, three specificity categories, full length.
func richChapter(subs []string, targetWords int) string {
	var sb strings.Builder
	perSub := targetWords / len(subs)
	for _, sub := range subs {
		sb.WriteString("## " + sub + "\n\n")
		sb.WriteString(wordBlock(perSub))
		sb.WriteString("\n\n")
	}
	sb.WriteString("```\nsemdraft build demo\n```\n")
	sb.WriteString("| Stage | Output |\n|-------|--------|\n")
	sb.WriteString("Step 1 writes /var/lib/semdraft/project.json.\n")
	sb.WriteString("Inputs: the locked outline. The build depends on an approved outline.\n")
	return sb.String()
}

func scoredChapter(title string, subs []string, targetWords int) ChapterText {
	body := richChapter(subs, targetWords)
	return ChapterText{
		Title: title,
		Body:  body,
		Score: Score(body, Requirements{TargetWords: targetWords, Subsections: subs}),
	}
}

func TestEvaluateDocument_AllGatesPass(t *testing.T) {
	subs := []string{"Purpose", "Scope"}
	chapters := []ChapterText{
		scoredChapter("One", subs, 800),
		scoredChapter("Two", subs, 800),
	}
	req := DocRequirements{TargetWords: 1600, Subsections: subs}

	report := EvaluateDocument(chapters, req)

	if !report.Passed {
		t.Fatalf("Passed = false, gates = %+v", report.Gates)
	}
	if len(report.Gates) != 5 {
		t.Fatalf("got %d gates, want 5", len(report.Gates))
	}
	for _, g := range report.Gates {
		if !g.Passed {
			t.Errorf("gate %s failed: %s", g.Name, g.Detail)
		}
	}
	if report.Score.Bucket != BucketComplete {
		t.Errorf("document bucket = %q, want %q", report.Score.Bucket, BucketComplete)
	}
	if report.Pages < 3 {
		t.Errorf("Pages = %d, want >= 3 for %d words", report.Pages, report.WordCount)
	}
}

func TestEvaluateDocument_InternTestFailsOnShortDocument(t *testing.T) {
	subs := []string{"Purpose", "Scope"}
	chapters := []ChapterText{
		scoredChapter("One", subs, 800),
	}
	// Document target far above what one chapter provides.
	req := DocRequirements{TargetWords: 20000, Subsections: subs}

	report := EvaluateDocument(chapters, req)

	if report.Passed {
		t.Fatal("Passed = true, want failure when document misses its word target")
	}
	var intern *GateResult
	for i := range report.Gates {
		if report.Gates[i].Name == GateInternTest {
			intern = &report.Gates[i]
		}
	}
	if intern == nil {
		t.Fatal("intern_test gate missing from report")
	}
	if intern.Passed {
		t.Errorf("intern_test passed with score %d, want failure", report.Score.Total)
	}
}

func TestEvaluateDocument_CompletenessFlagsEmptyChapter(t *testing.T) {
	subs := []string{"Purpose", "Scope"}
	chapters := []ChapterText{
		scoredChapter("One", subs, 800),
		{Title: "Two", Body: "   "},
	}

	report := EvaluateDocument(chapters, DocRequirements{TargetWords: 1600, Subsections: subs})

	if report.Passed {
		t.Fatal("Passed = true, want failure with an empty chapter")
	}
	if g := report.Gates[0]; g.Name != GateCompleteness || g.Passed {
		t.Errorf("completeness gate = %+v, want failure first", g)
	}
}

func TestEvaluateDocument_Empty(t *testing.T) {
	report := EvaluateDocument(nil, DocRequirements{})

	if report.Passed {
		t.Fatal("Passed = true for empty document")
	}
	if report.Score.Bucket != BucketIncomplete {
		t.Errorf("bucket = %q, want %q", report.Score.Bucket, BucketIncomplete)
	}
	if report.Pages != 0 {
		t.Errorf("Pages = %d, want 0", report.Pages)
	}
}

func TestEvaluateDocument_AntiVaguenessNeedsThreeCategories(t *testing.T) {
	// Chapters with signals but only one specificity category.
	body := "## Purpose\n" + wordBlock(800) +
		"\n| a | b |\n| c | d |\nStep 1 does the work. Step 2 finishes.\n"
	ch := ChapterText{
		Title: "One",
		Body:  body,
		Score: Score(body, Requirements{TargetWords: 800, Subsections: []string{"Purpose"}}),
	}

	report := EvaluateDocument([]ChapterText{ch, ch}, DocRequirements{TargetWords: 1600})

	for _, g := range report.Gates {
		if g.Name == GateAntiVagueness && g.Passed {
			t.Errorf("anti_vagueness passed with categories %v, want failure", ch.Score.CategoriesFound)
		}
	}
	if report.Passed {
		t.Error("Passed = true, want failure")
	}
}
