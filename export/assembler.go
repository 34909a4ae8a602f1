// Package export assembles approved chapters into the final build guide.
// Assembly is mechanical: chapter content is composed and formatted, never
// rewritten.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/c360studio/semdraft/build"
	"github.com/c360studio/semdraft/project"
	"github.com/c360studio/semdraft/scoring"
)

// chapterSeparator sits between chapters in the assembled document.
const chapterSeparator = "\n\n---\n\n"

// Assembler composes and writes the final markdown document for a project.
type Assembler struct {
	manager *project.Manager
	now     func() time.Time
	logger  *slog.Logger
}

var _ build.Assembler = (*Assembler)(nil)

// Option configures an Assembler.
type Option func(*Assembler)

// WithClock overrides the header timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) { a.logger = logger }
}

// NewAssembler creates an assembler that writes documents into the
// manager's project directories, next to each project document.
func NewAssembler(manager *project.Manager, opts ...Option) *Assembler {
	a := &Assembler{
		manager: manager,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble compiles the project's chapters in index order, normalizes the
// formatting, and atomically writes the document. Returns the written path.
func (a *Assembler) Assemble(ctx context.Context, p *project.Project) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(p.Chapters) == 0 {
		return "", fmt.Errorf("project %q has no chapters to assemble", p.Slug)
	}
	for i := range p.Chapters {
		ch := &p.Chapters[i]
		if strings.TrimSpace(ch.Body) == "" {
			return "", fmt.Errorf("chapter %d (%s) has no content", ch.Index, ch.Title)
		}
	}

	body := normalize(composeChapters(p))
	doc := a.header(p) + contents(p) + body

	dir := a.manager.ProjectDir(p.Slug)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create project directory: %w", err)
	}
	path := filepath.Join(dir, Filename(p.Title, p.Version))

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(doc), 0644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("replace document: %w", err)
	}

	words := documentWords(p)
	a.logger.Info("Document assembled",
		"slug", p.Slug,
		"path", path,
		"words", words,
		"pages", scoring.EstimatePages(words))
	return path, nil
}

// header renders the title block. The two trailing spaces on each metadata
// line are markdown hard line breaks.
func (a *Assembler) header(p *project.Project) string {
	words := documentWords(p)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s Build Guide\n\n", p.Title)
	fmt.Fprintf(&sb, "**Version:** v%d  \n", p.Version)
	fmt.Fprintf(&sb, "**Date:** %s  \n", a.now().UTC().Format("2006-01-02"))
	fmt.Fprintf(&sb, "**Length:** %d words (about %d pages)  \n\n", words, scoring.EstimatePages(words))
	sb.WriteString("---\n\n")
	return sb.String()
}

// contents renders the table of contents from the chapter titles.
func contents(p *project.Project) string {
	var sb strings.Builder
	sb.WriteString("## Contents\n\n")
	for i := range p.Chapters {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, p.Chapters[i].Title)
	}
	sb.WriteString("\n---\n\n")
	return sb.String()
}

// composeChapters joins chapter bodies in index order, prepending a title
// heading to any draft that does not open with one.
func composeChapters(p *project.Project) string {
	var sb strings.Builder
	for i := range p.Chapters {
		if i > 0 {
			sb.WriteString(chapterSeparator)
		}
		ch := &p.Chapters[i]
		body := strings.TrimSpace(ch.Body)
		if !startsWithHeading(body) {
			fmt.Fprintf(&sb, "## %s\n\n", ch.Title)
		}
		sb.WriteString(body)
	}
	return sb.String()
}

// startsWithHeading reports whether the text opens with a markdown heading.
func startsWithHeading(body string) bool {
	line := body
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		line = body[:i]
	}
	return strings.HasPrefix(line, "#")
}

func documentWords(p *project.Project) int {
	words := 0
	for i := range p.Chapters {
		words += len(strings.Fields(p.Chapters[i].Body))
	}
	return words
}

var (
	extraBlankLines = regexp.MustCompile(`\n{4,}`)
	headingSpacing  = regexp.MustCompile(`([^\n])\n(#{1,6}\s)`)
)

// normalize standardizes the composed text: at most two blank lines in a
// row, a blank line before every heading, no trailing whitespace on any
// line, exactly one final newline.
func normalize(doc string) string {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	doc = extraBlankLines.ReplaceAllString(doc, "\n\n\n")
	doc = headingSpacing.ReplaceAllString(doc, "$1\n\n$2")

	lines := strings.Split(doc, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	doc = strings.Join(lines, "\n")

	return strings.TrimRight(doc, "\n") + "\n"
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Filename returns the canonical document filename,
// {Title}_Build_Guide_v{version}.md with unsafe characters collapsed to
// underscores.
func Filename(title string, version int) string {
	safe := strings.Trim(unsafeFilenameChars.ReplaceAllString(title, "_"), "_")
	if safe == "" {
		safe = "Untitled"
	}
	return fmt.Sprintf("%s_Build_Guide_v%d.md", safe, version)
}
