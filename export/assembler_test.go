package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/c360studio/semdraft/project"
)

func testProject() *project.Project {
	return &project.Project{
		Slug:    "reading-tracker",
		Title:   "Reading Tracker",
		Version: 1,
		Chapters: []project.Chapter{
			{
				Index:  0,
				Title:  "Executive Summary",
				Status: project.ChapterApproved,
				Body:   "## Executive Summary\n\nAn app that tracks reading lists across devices.",
			},
			{
				Index:  1,
				Title:  "Architecture Overview",
				Status: project.ChapterApproved,
				Body:   "The service accepts requests on port 8080 and stores state in Postgres.",
			},
		},
	}
}

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	}
}

func TestAssembler_Assemble_WritesDocument(t *testing.T) {
	ctx := context.Background()
	m := project.NewManager(t.TempDir())
	a := NewAssembler(m, WithClock(fixedClock()))
	p := testProject()

	path, err := a.Assemble(ctx, p)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	want := filepath.Join(m.ProjectDir("reading-tracker"), "Reading_Tracker_Build_Guide_v1.md")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	doc := string(data)

	if !strings.HasPrefix(doc, "# Reading Tracker Build Guide\n") {
		t.Errorf("document should open with the title heading, got %q", firstLine(doc))
	}
	for _, want := range []string{
		"**Version:** v1",
		"**Date:** 2026-03-01",
		"## Contents",
		"1. Executive Summary",
		"2. Architecture Overview",
		"tracks reading lists across devices",
		"port 8080",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q", want)
		}
	}

	// Chapter 1 opened with its own heading; chapter 2 did not, so the
	// assembler supplies one.
	if strings.Count(doc, "## Executive Summary") != 1 {
		t.Error("chapter heading should not be duplicated")
	}
	if !strings.Contains(doc, "## Architecture Overview") {
		t.Error("assembler should prepend a heading to a bare chapter body")
	}

	if strings.Contains(doc, "\n\n\n\n") {
		t.Error("document should not contain runs of blank lines")
	}
	if !strings.HasSuffix(doc, "\n") || strings.HasSuffix(doc, "\n\n") {
		t.Error("document should end with exactly one newline")
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func TestAssembler_Assemble_SeparatesChapters(t *testing.T) {
	ctx := context.Background()
	m := project.NewManager(t.TempDir())
	a := NewAssembler(m)

	path, err := a.Assemble(ctx, testProject())
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	doc := string(data)

	first := strings.Index(doc, "tracks reading lists")
	second := strings.Index(doc, "port 8080")
	rule := strings.Index(doc[first:], "\n---\n")
	if first < 0 || second < 0 || rule < 0 {
		t.Fatal("expected both chapters and a separator")
	}
	if first+rule > second {
		t.Error("separator should sit between the chapters")
	}
}

func TestAssembler_Assemble_EmptyChapterFails(t *testing.T) {
	ctx := context.Background()
	m := project.NewManager(t.TempDir())
	a := NewAssembler(m)

	p := testProject()
	p.Chapters[1].Body = "   "

	_, err := a.Assemble(ctx, p)
	if err == nil {
		t.Fatal("Assemble() should fail on an empty chapter")
	}
	if !strings.Contains(err.Error(), "Architecture Overview") {
		t.Errorf("error = %v, want the chapter named", err)
	}

	entries, err := os.ReadDir(m.ProjectDir("reading-tracker"))
	if err == nil && len(entries) > 0 {
		t.Errorf("nothing should be written on failure, found %d entries", len(entries))
	}
}

func TestAssembler_Assemble_NoChaptersFails(t *testing.T) {
	ctx := context.Background()
	m := project.NewManager(t.TempDir())
	a := NewAssembler(m)

	p := testProject()
	p.Chapters = nil

	if _, err := a.Assemble(ctx, p); err == nil {
		t.Fatal("Assemble() should fail without chapters")
	}
}

func TestAssembler_Assemble_ContextCancelled(t *testing.T) {
	m := project.NewManager(t.TempDir())
	a := NewAssembler(m)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Assemble(ctx, testProject()); err == nil {
		t.Fatal("Assemble() should fail with a cancelled context")
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		title   string
		version int
		want    string
	}{
		{"Reading Tracker", 1, "Reading_Tracker_Build_Guide_v1.md"},
		{"my-app: v2!", 3, "my_app_v2_Build_Guide_v3.md"},
		{"  spaced  out  ", 2, "spaced_out_Build_Guide_v2.md"},
		{"---", 1, "Untitled_Build_Guide_v1.md"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := Filename(tt.title, tt.version); got != tt.want {
				t.Errorf("Filename(%q, %d) = %q, want %q", tt.title, tt.version, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses blank runs", "a\n\n\n\n\nb", "a\n\n\nb\n"},
		{"spaces headings", "text\n## Head", "text\n\n## Head\n"},
		{"strips trailing spaces", "line  \nnext\t\n", "line\nnext\n"},
		{"single final newline", "done\n\n\n", "done\n"},
		{"normalizes crlf", "a\r\nb", "a\nb\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalize(tt.in); got != tt.want {
				t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
