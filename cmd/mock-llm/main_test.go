package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFixturesBaseOnly(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "draft-writer.md", "## Overview\nchapter text")
	writeFixture(t, dir, "catalog-model.json", `{"categories":[]}`)

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}

	if len(fixtures) != 2 {
		t.Fatalf("expected 2 models, got %d", len(fixtures))
	}
	for model, seq := range fixtures {
		if len(seq) != 1 {
			t.Errorf("model %q: expected 1 fixture, got %d", model, len(seq))
		}
	}
}

func TestLoadFixturesSequential(t *testing.T) {
	dir := t.TempDir()

	// Thin first draft, passing revision, repeating base.
	writeFixture(t, dir, "draft-writer.1.md", "too short")
	writeFixture(t, dir, "draft-writer.2.md", "## Purpose\nlong enough now")
	writeFixture(t, dir, "draft-writer.md", "## Purpose\nrepeating fallback")
	writeFixture(t, dir, "outline-model.json", `{"sections":[]}`)

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}

	seq := fixtures["draft-writer"]
	if len(seq) != 3 {
		t.Fatalf("draft-writer: expected 3 fixtures, got %d", len(seq))
	}
	if !strings.Contains(seq[0], "too short") {
		t.Errorf("fixture[0] should be the thin draft, got: %s", seq[0])
	}
	if !strings.Contains(seq[1], "long enough") {
		t.Errorf("fixture[1] should be the revision, got: %s", seq[1])
	}
	if !strings.Contains(seq[2], "fallback") {
		t.Errorf("fixture[2] should be the base file, got: %s", seq[2])
	}
}

func TestLoadFixturesRejectsBadJSON(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "catalog-model.json", `{"categories":`)

	if _, err := loadFixtures(dir); err == nil {
		t.Fatal("expected error for invalid JSON fixture")
	}
}

func TestLoadFixturesEmptyDir(t *testing.T) {
	if _, err := loadFixtures(t.TempDir()); err == nil {
		t.Fatal("expected error for empty fixture dir")
	}
}

func postChat(t *testing.T, ts *httptest.Server, model string) (*http.Response, chatResponse) {
	t.Helper()
	body := strings.NewReader(`{"model":"` + model + `","messages":[{"role":"user","content":"write chapter 1"}]}`)
	resp, err := http.Post(ts.URL+"/v1/chat/completions", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	var decoded chatResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatal(err)
		}
	}
	resp.Body.Close()
	return resp, decoded
}

func TestChatCompletionsSequence(t *testing.T) {
	s := newServer(map[string][]string{
		"draft-writer": {"first attempt", "second attempt"},
	})
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	for i, want := range []string{"first attempt", "second attempt", "second attempt"} {
		resp, decoded := postChat(t, ts, "draft-writer")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("call %d: status %d", i+1, resp.StatusCode)
		}
		if got := decoded.Choices[0].Message.Content; got != want {
			t.Errorf("call %d: content %q, want %q", i+1, got, want)
		}
		if decoded.Choices[0].FinishReason != "stop" {
			t.Errorf("call %d: finish_reason %q", i+1, decoded.Choices[0].FinishReason)
		}
	}
}

func TestChatCompletionsFallbackModel(t *testing.T) {
	s := newServer(map[string][]string{
		fallbackModel: {"fallback content"},
	})
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, decoded := postChat(t, ts, "some-unconfigured-model")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if decoded.Choices[0].Message.Content != "fallback content" {
		t.Errorf("content %q", decoded.Choices[0].Message.Content)
	}
}

func TestChatCompletionsUnknownModel(t *testing.T) {
	s := newServer(map[string][]string{"draft-writer": {"x"}})
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, _ := postChat(t, ts, "nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
}

func TestStatsAndRequests(t *testing.T) {
	s := newServer(map[string][]string{"draft-writer": {"a", "b"}})
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/requests", s.handleRequests)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	postChat(t, ts, "draft-writer")
	postChat(t, ts, "draft-writer")

	resp, err := http.Get(ts.URL + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	var stats struct {
		TotalCalls   int            `json:"total_calls"`
		CallsByModel map[string]int `json:"calls_by_model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if stats.TotalCalls != 2 || stats.CallsByModel["draft-writer"] != 2 {
		t.Errorf("stats = %+v", stats)
	}

	resp, err = http.Get(ts.URL + "/requests?model=draft-writer&call=2")
	if err != nil {
		t.Fatal(err)
	}
	var captured struct {
		RequestsByModel map[string][]capturedRequest `json:"requests_by_model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&captured); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	reqs := captured.RequestsByModel["draft-writer"]
	if len(reqs) != 1 || reqs[0].CallIndex != 2 {
		t.Errorf("captured = %+v", reqs)
	}
	if len(reqs) == 1 && !strings.Contains(reqs[0].Messages[0].Content, "chapter 1") {
		t.Errorf("captured prompt = %q", reqs[0].Messages[0].Content)
	}
}
