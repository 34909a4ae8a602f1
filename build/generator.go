package build

import (
	"context"
	"fmt"
	"strings"

	"github.com/c360studio/semdraft/llm"
	"github.com/c360studio/semdraft/model"
)

// Generator produces chapter text for one generation attempt. The llm
// client adapter implements it; tests supply fakes.
type Generator interface {
	Generate(ctx context.Context, req GenRequest) (string, error)
}

// PromptContext carries everything a generator needs to draft one chapter.
type PromptContext struct {
	Slug     string
	DocTitle string
	Idea     string
	Features []string

	// Outline holds every section title in order, to situate the chapter
	// within the document.
	Outline []string

	Index       int
	Title       string
	Subsections []string
	TargetWords int
	MaxTokens   int

	// Attempt is the cumulative attempt number, 1-based. First attempts
	// use the drafting capability, later ones revision.
	Attempt int
}

// GenRequest is one generation attempt: the prompt context plus the scorer
// feedback accumulated from earlier failed attempts.
type GenRequest struct {
	Context  PromptContext
	Feedback []string
}

// LLMGenerator adapts the llm client to the Generator interface.
type LLMGenerator struct {
	client *llm.Client
}

// NewLLMGenerator returns a Generator backed by the llm client.
func NewLLMGenerator(client *llm.Client) *LLMGenerator {
	return &LLMGenerator{client: client}
}

// Generate drafts the chapter, routed through the capability for the
// attempt number.
func (g *LLMGenerator) Generate(ctx context.Context, req GenRequest) (string, error) {
	capability := model.CapabilityForAttempt(req.Context.Attempt)

	resp, err := g.client.Complete(ctx, llm.Request{
		Capability: capability.String(),
		Messages: []llm.Message{
			{Role: "system", Content: chapterSystemPrompt},
			{Role: "user", Content: buildChapterPrompt(req)},
		},
		MaxTokens: req.Context.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

const chapterSystemPrompt = "You are a senior software architect writing a technical design document. Write concrete, build-ready prose with real schemas, endpoints, and limits. Never use placeholder language."

// buildChapterPrompt assembles the user prompt for one attempt. Revision
// attempts carry every piece of scorer feedback collected so far.
func buildChapterPrompt(req GenRequest) string {
	pc := req.Context
	var b strings.Builder

	fmt.Fprintf(&b, "Project: %s\n", pc.DocTitle)
	if pc.Idea != "" {
		fmt.Fprintf(&b, "Idea: %s\n", pc.Idea)
	}
	if len(pc.Features) > 0 {
		fmt.Fprintf(&b, "Selected features: %s\n", strings.Join(pc.Features, ", "))
	}
	if len(pc.Outline) > 0 {
		b.WriteString("\nDocument outline:\n")
		for i, title := range pc.Outline {
			fmt.Fprintf(&b, "%d. %s\n", i+1, title)
		}
	}

	fmt.Fprintf(&b, "\nWrite chapter %d, %q, targeting %d words.\n", pc.Index+1, pc.Title, pc.TargetWords)

	if len(pc.Subsections) > 0 {
		b.WriteString("Cover each of these subsections under a markdown heading:\n")
		for _, s := range pc.Subsections {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	b.WriteString("\nRules:\n")
	b.WriteString("- Name concrete technologies, schemas, endpoints, and numeric limits\n")
	b.WriteString("- Include code or configuration examples where they clarify the design\n")
	b.WriteString("- No placeholder phrases (TBD, as appropriate, if needed)\n")
	b.WriteString("- Return only the chapter body in markdown, starting at its first heading\n")

	if len(req.Feedback) > 0 {
		b.WriteString("\nThis is a revision. Earlier drafts were rejected for these reasons; fix every one:\n")
		for _, f := range req.Feedback {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	return b.String()
}
