package scoring

import (
	"fmt"
	"regexp"
	"strings"
)

// Bucket classifies an aggregate score. Thresholds are fixed regardless of
// depth mode.
type Bucket string

const (
	BucketIncomplete     Bucket = "incomplete"      // total < 40
	BucketNeedsExpansion Bucket = "needs_expansion" // 40 <= total < 75
	BucketComplete       Bucket = "complete"        // total >= 75
)

// Aggregate thresholds on the 0-100 scale.
const (
	needsExpansionFloor = 40
	completeFloor       = 75
)

// String returns the string representation of the bucket.
func (b Bucket) String() string {
	return string(b)
}

// BucketFor maps an aggregate score to its bucket.
func BucketFor(total int) Bucket {
	switch {
	case total >= completeFloor:
		return BucketComplete
	case total >= needsExpansionFloor:
		return BucketNeedsExpansion
	default:
		return BucketIncomplete
	}
}

// Requirements are the targets a single text is scored against.
type Requirements struct {
	// TargetWords is the expected word count. Zero or negative disables the
	// length dimension (full marks).
	TargetWords int `json:"target_words"`

	// Subsections are the required subsection headings. Empty disables the
	// structure dimension (full marks).
	Subsections []string `json:"subsections,omitempty"`
}

// Result is the full outcome of scoring one text. Results are stored on
// chapters, so every field carries a JSON tag.
type Result struct {
	// Total is the aggregate score, clamped to [0, 100].
	Total int `json:"total"`

	// Per-dimension scores, each 0-25.
	Length      int `json:"length"`
	Structure   int `json:"structure"`
	Density     int `json:"density"`
	Specificity int `json:"specificity"`

	Bucket Bucket `json:"bucket"`

	WordCount          int            `json:"word_count"`
	MissingSubsections []string       `json:"missing_subsections,omitempty"`
	SignalCounts       map[string]int `json:"signal_counts,omitempty"`
	CategoriesFound    []string       `json:"categories_found,omitempty"`

	// Feedback is actionable revision guidance. Empty when the bucket is
	// complete.
	Feedback string `json:"feedback,omitempty"`
}

// Technical density signal patterns. Each match is one signal; the density
// score saturates, so flooding one family earns nothing past the top tier.
var technicalSignals = []struct {
	name string
	re   *regexp.Regexp
}{
	{"file_paths", regexp.MustCompile(`(?i)(?:/[\w.-]+){2,}|[\w.-]+\.(?:py|go|js|ts|json|yaml|yml|toml|md|html|css|sql|sh|env)`)},
	{"cli_commands", regexp.MustCompile(`(?i)\b(?:npm|pip|python|docker|git|curl|mkdir|cd|export|uvicorn|pytest|make)\s+\w+`)},
	{"tables", regexp.MustCompile(`\|.+\|`)},
	{"env_vars", regexp.MustCompile(`[A-Z][A-Z_]{3,}(?:=|:)`)},
	{"urls_ports", regexp.MustCompile(`(?i)(?:localhost|127\.0\.0\.1|0\.0\.0\.0)(?::\d+)?|\bport\s+\d+`)},
}

// Implementation specificity categories. Exactly four; each contributes by
// presence, not volume. Patterns are matched against lowercased text.
var specificityCategories = []struct {
	name     string
	patterns []*regexp.Regexp
}{
	{"ordering", compileAll(`step\s+\d`, `phase\s+\d`, `first,?\s`, `then,?\s`, `next,?\s`, `finally,?\s`)},
	{"io", compileAll(`inputs?\s*:`, `outputs?\s*:`, `returns?\s+`, `accepts?\s+`, `produces?\s+`)},
	{"dependencies", compileAll(`depends?\s+on`, `requires?\s+`, `prerequisite`, `must be .+? before`)},
	{"env_config", compileAll(`environment variable`, `\.env\b`, `config\s`, `settings?\s`)},
}

const specificityCategoryCount = 4

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

// Score grades text against requirements across four dimensions and
// composes revision feedback. Equal inputs always produce equal results.
func Score(text string, req Requirements) Result {
	var r Result

	r.WordCount = len(strings.Fields(text))
	r.Length = lengthScore(r.WordCount, req.TargetWords)

	found, missing := matchSubsections(text, req.Subsections)
	r.MissingSubsections = missing
	r.Structure = coverageScore(len(found), len(req.Subsections))

	r.SignalCounts = countSignals(text)
	r.Density = densityScore(totalSignals(r.SignalCounts))

	r.CategoriesFound = findCategories(text)
	r.Specificity = len(r.CategoriesFound) * 25 / specificityCategoryCount

	total := r.Length + r.Structure + r.Density + r.Specificity
	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}
	r.Total = total
	r.Bucket = BucketFor(total)
	r.Feedback = composeFeedback(&r, req)

	return r
}

// lengthScore is proportional up to the target and capped there: overshoot
// never earns more than 25.
func lengthScore(words, target int) int {
	if target <= 0 {
		return 25
	}
	score := words * 25 / target
	if score > 25 {
		return 25
	}
	return score
}

// coverageScore converts found/total coverage to 0-25.
func coverageScore(found, total int) int {
	if total <= 0 {
		return 25
	}
	score := found * 25 / total
	if score > 25 {
		return 25
	}
	return score
}

// matchSubsections checks each required heading. A subsection counts as
// found when it appears as a markdown heading (## through ####) or anywhere
// in the text as a phrase, case-insensitively.
func matchSubsections(text string, required []string) (found, missing []string) {
	if len(required) == 0 {
		return nil, nil
	}
	lower := strings.ToLower(text)
	for _, sub := range required {
		heading := regexp.MustCompile(`(?i)#{2,4}\s+` + regexp.QuoteMeta(sub))
		switch {
		case heading.MatchString(text):
			found = append(found, sub)
		case strings.Contains(lower, strings.ToLower(sub)):
			found = append(found, sub)
		default:
			missing = append(missing, sub)
		}
	}
	return found, missing
}

// countSignals tallies technical density signals per family. Fenced code
// blocks are counted as pairs.
func countSignals(text string) map[string]int {
	counts := make(map[string]int, len(technicalSignals)+1)
	counts["code_blocks"] = strings.Count(text, "```") / 2
	for _, sig := range technicalSignals {
		counts[sig.name] = len(sig.re.FindAllString(text, -1))
	}
	return counts
}

func totalSignals(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

// densityScore tiers the signal total: 0 -> 0, 1-2 -> 10, 3-5 -> 20,
// 6+ -> 25. Saturating by construction.
func densityScore(signals int) int {
	switch {
	case signals >= 6:
		return 25
	case signals >= 3:
		return 20
	case signals >= 1:
		return 10
	default:
		return 0
	}
}

// findCategories returns the specificity categories present in the text,
// in declaration order.
func findCategories(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, cat := range specificityCategories {
		for _, p := range cat.patterns {
			if p.MatchString(lower) {
				found = append(found, cat.name)
				break
			}
		}
	}
	return found
}

// composeFeedback builds the revision guidance string: missing subsections
// first, then word count, then the weakest remaining dimension. Clauses are
// joined with ", ". Complete results get no feedback.
func composeFeedback(r *Result, req Requirements) string {
	if r.Bucket == BucketComplete {
		return ""
	}

	var clauses []string

	switch {
	case len(req.Subsections) > 0 && len(r.MissingSubsections) == len(req.Subsections):
		clauses = append(clauses, fmt.Sprintf("missing: all %d subsections", len(req.Subsections)))
	case len(r.MissingSubsections) > 0:
		clauses = append(clauses, "missing: "+strings.Join(r.MissingSubsections, ", "))
	}

	if r.Length < 25 && req.TargetWords > 0 {
		clauses = append(clauses, fmt.Sprintf("word count %d/%d", r.WordCount, req.TargetWords))
	}

	switch {
	case r.Density <= r.Specificity && r.Density < 25:
		clauses = append(clauses, "add concrete signals: code blocks, file paths, tables")
	case r.Specificity < 25:
		clauses = append(clauses, "state ordering, inputs/outputs, dependencies, and configuration explicitly")
	}

	return strings.Join(clauses, ", ")
}
