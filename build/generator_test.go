package build

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/c360studio/semdraft/llm"
	"github.com/c360studio/semdraft/model"

	_ "github.com/c360studio/semdraft/llm/providers"
)

func testPromptContext() PromptContext {
	return PromptContext{
		Slug:        "reading-tracker",
		DocTitle:    "Reading Tracker",
		Idea:        "an app that tracks reading lists",
		Features:    []string{"Dashboard", "API Access"},
		Outline:     []string{"Executive Summary", "Architecture Overview", "Data Model"},
		Index:       1,
		Title:       "Architecture Overview",
		Subsections: []string{"Overview", "Details", "Implementation"},
		TargetWords: 800,
		MaxTokens:   4096,
		Attempt:     1,
	}
}

func TestBuildChapterPrompt(t *testing.T) {
	prompt := buildChapterPrompt(GenRequest{Context: testPromptContext()})

	for _, want := range []string{
		"Project: Reading Tracker",
		"Idea: an app that tracks reading lists",
		"Selected features: Dashboard, API Access",
		"1. Executive Summary",
		"2. Architecture Overview",
		"3. Data Model",
		`Write chapter 2, "Architecture Overview", targeting 800 words.`,
		"- Overview",
		"- Details",
		"- Implementation",
		"numeric limits",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\nprompt:\n%s", want, prompt)
		}
	}

	if strings.Contains(prompt, "This is a revision") {
		t.Error("first attempt prompt should not carry a revision block")
	}
}

func TestBuildChapterPrompt_RevisionCarriesFeedback(t *testing.T) {
	req := GenRequest{
		Context: testPromptContext(),
		Feedback: []string{
			"missing: Details, Implementation, word count 120/800",
			"add concrete signals: code blocks, file paths, tables",
		},
	}

	prompt := buildChapterPrompt(req)

	if !strings.Contains(prompt, "This is a revision") {
		t.Fatal("revision prompt should announce itself")
	}
	for _, f := range req.Feedback {
		if !strings.Contains(prompt, "- "+f) {
			t.Errorf("prompt missing feedback line %q", f)
		}
	}
}

// chatResponse builds an OpenAI-format chat completion body.
func chatResponse(modelName, content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  modelName,
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]string{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     10,
			"completion_tokens": 8,
			"total_tokens":      18,
		},
	}
}

func TestLLMGenerator_RoutesByAttempt(t *testing.T) {
	var draftBody map[string]any
	draftServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&draftBody); err != nil {
			t.Errorf("decode draft request: %v", err)
		}
		json.NewEncoder(w).Encode(chatResponse("draft-model", "First draft."))
	}))
	defer draftServer.Close()

	reviseCalls := 0
	reviseServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reviseCalls++
		json.NewEncoder(w).Encode(chatResponse("revise-model", "Revised draft."))
	}))
	defer reviseServer.Close()

	registry := model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityDrafting: {Preferred: []string{"draft-model"}},
			model.CapabilityRevision: {Preferred: []string{"revise-model"}},
		},
		map[string]*model.EndpointConfig{
			"draft-model":  {Provider: "ollama", URL: draftServer.URL, Model: "draft-model"},
			"revise-model": {Provider: "ollama", URL: reviseServer.URL, Model: "revise-model"},
		},
	)

	gen := NewLLMGenerator(llm.NewClient(registry))

	pc := testPromptContext()
	text, err := gen.Generate(context.Background(), GenRequest{Context: pc})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "First draft." {
		t.Errorf("Generate() = %q, want first draft", text)
	}

	messages, ok := draftBody["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("draft request messages = %v, want system + user", draftBody["messages"])
	}
	user, _ := messages[1].(map[string]any)
	content, _ := user["content"].(string)
	if !strings.Contains(content, "Architecture Overview") {
		t.Errorf("user prompt missing chapter title, got %q", content)
	}

	pc.Attempt = 2
	text, err = gen.Generate(context.Background(), GenRequest{
		Context:  pc,
		Feedback: []string{"word count 120/800"},
	})
	if err != nil {
		t.Fatalf("Generate() revision error = %v", err)
	}
	if text != "Revised draft." {
		t.Errorf("Generate() = %q, want revised draft", text)
	}
	if reviseCalls != 1 {
		t.Errorf("revision endpoint calls = %d, want 1", reviseCalls)
	}
}
