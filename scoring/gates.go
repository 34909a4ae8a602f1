package scoring

import (
	"fmt"
	"strings"
)

// GateResult is the outcome of one binary document gate.
type GateResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Gate names, in evaluation order.
const (
	GateCompleteness   = "completeness"
	GateClarity        = "clarity"
	GateBuildReadiness = "build_readiness"
	GateAntiVagueness  = "anti_vagueness"
	GateInternTest     = "intern_test"
)

// ChapterText pairs a chapter body with its most recent score for
// document-level evaluation.
type ChapterText struct {
	Title string
	Body  string
	Score Result
}

// DocRequirements are the document-level scoring targets: the sum of the
// chapter word targets and the union of required subsection headings.
type DocRequirements struct {
	TargetWords int
	Subsections []string
}

// DocReport is the document-level evaluation: five binary gates plus the
// aggregate score over the concatenated text.
type DocReport struct {
	Score     Result       `json:"score"`
	Gates     []GateResult `json:"gates"`
	Passed    bool         `json:"passed"`
	WordCount int          `json:"word_count"`
	Pages     int          `json:"pages"`
}

// EvaluateDocument runs the five document gates and scores the concatenated
// chapters. Pure: callers decide what to do with a failing report.
func EvaluateDocument(chapters []ChapterText, req DocRequirements) DocReport {
	if len(chapters) == 0 {
		return DocReport{
			Score: Result{Bucket: BucketIncomplete},
			Gates: []GateResult{
				{Name: GateCompleteness, Passed: false, Detail: "no chapters"},
			},
		}
	}

	bodies := make([]string, len(chapters))
	for i, ch := range chapters {
		bodies[i] = ch.Body
	}
	docScore := Score(strings.Join(bodies, "\n\n"), Requirements{
		TargetWords: req.TargetWords,
		Subsections: req.Subsections,
	})

	gates := []GateResult{
		checkCompleteness(chapters),
		checkClarity(chapters),
		checkBuildReadiness(chapters),
		checkAntiVagueness(chapters),
		{
			Name:   GateInternTest,
			Passed: docScore.Total >= completeFloor,
			Detail: fmt.Sprintf("document score %d/100", docScore.Total),
		},
	}

	passed := true
	for _, g := range gates {
		if !g.Passed {
			passed = false
			break
		}
	}

	return DocReport{
		Score:     docScore,
		Gates:     gates,
		Passed:    passed,
		WordCount: docScore.WordCount,
		Pages:     EstimatePages(docScore.WordCount),
	}
}

// checkCompleteness requires every chapter to be non-empty and scored above
// the incomplete bucket.
func checkCompleteness(chapters []ChapterText) GateResult {
	below := 0
	for _, ch := range chapters {
		if strings.TrimSpace(ch.Body) == "" || ch.Score.Bucket == BucketIncomplete {
			below++
		}
	}
	return GateResult{
		Name:   GateCompleteness,
		Passed: below == 0,
		Detail: fmt.Sprintf("%d of %d chapters below minimum", below, len(chapters)),
	}
}

// checkClarity requires the average structure sub-score to reach 20/25.
func checkClarity(chapters []ChapterText) GateResult {
	sum := 0
	for _, ch := range chapters {
		sum += ch.Score.Structure
	}
	avg := sum / len(chapters)
	return GateResult{
		Name:   GateClarity,
		Passed: avg >= 20,
		Detail: fmt.Sprintf("average structure score %d/25", avg),
	}
}

// checkBuildReadiness requires technical signals in at least half the
// chapters.
func checkBuildReadiness(chapters []ChapterText) GateResult {
	withSignals := 0
	for _, ch := range chapters {
		if totalSignals(ch.Score.SignalCounts) > 0 {
			withSignals++
		}
	}
	return GateResult{
		Name:   GateBuildReadiness,
		Passed: withSignals*2 >= len(chapters),
		Detail: fmt.Sprintf("technical signals in %d of %d chapters", withSignals, len(chapters)),
	}
}

// checkAntiVagueness requires at least three of the four specificity
// categories somewhere in the document.
func checkAntiVagueness(chapters []ChapterText) GateResult {
	seen := make(map[string]bool)
	for _, ch := range chapters {
		for _, cat := range ch.Score.CategoriesFound {
			seen[cat] = true
		}
	}
	return GateResult{
		Name:   GateAntiVagueness,
		Passed: len(seen) >= 3,
		Detail: fmt.Sprintf("%d of %d specificity categories present", len(seen), specificityCategoryCount),
	}
}
