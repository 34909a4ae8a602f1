package project

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/c360studio/semdraft/scoring"
)

// Storage layout constants.
const (
	// RootDirName is the state directory created under the repo root.
	RootDirName = ".semdraft"

	// ProjectFile is the document filename within a project directory.
	ProjectFile = "project.json"
)

// slugPattern validates slugs: lowercase alphanumeric with hyphens, 1-50 chars.
var slugPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,48}[a-z0-9])?$`)

// ValidateSlug checks if a slug is valid and safe for use in file paths.
func ValidateSlug(slug string) error {
	if slug == "" {
		return ErrSlugRequired
	}
	// Prevent path traversal
	if strings.Contains(slug, "..") || strings.Contains(slug, "/") || strings.Contains(slug, "\\") {
		return ErrInvalidSlug
	}
	if !slugPattern.MatchString(slug) {
		return ErrInvalidSlug
	}
	return nil
}

// Slugify derives a slug from free text: lowercased, non-alphanumerics
// collapsed to single hyphens, trimmed to the slug length limit.
func Slugify(text string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 50 {
		slug = strings.Trim(slug[:50], "-")
	}
	return slug
}

// slugLocks provides per-project locking so concurrent writers serialize
// their read-modify-write cycles.
var (
	slugLocksMu sync.Mutex
	slugLocks   = make(map[string]*sync.Mutex)
)

func slugLock(slug string) *sync.Mutex {
	slugLocksMu.Lock()
	defer slugLocksMu.Unlock()
	if slugLocks[slug] == nil {
		slugLocks[slug] = &sync.Mutex{}
	}
	return slugLocks[slug]
}

// Manager owns the project documents under {repoRoot}/.semdraft. All
// mutating operations serialize per slug; a failed validation never
// reaches disk.
type Manager struct {
	repoRoot string
}

// NewManager creates a manager rooted at the given repository path.
func NewManager(repoRoot string) *Manager {
	return &Manager{repoRoot: repoRoot}
}

// RootPath returns the state directory path.
func (m *Manager) RootPath() string {
	return filepath.Join(m.repoRoot, RootDirName)
}

// ProjectDir returns the directory for a project.
func (m *Manager) ProjectDir(slug string) string {
	return filepath.Join(m.RootPath(), slug)
}

// ProjectFilePath returns the document path for a project.
func (m *Manager) ProjectFilePath(slug string) string {
	return filepath.Join(m.ProjectDir(slug), ProjectFile)
}

// EnsureDirectories creates the state root if needed.
func (m *Manager) EnsureDirectories() error {
	if err := os.MkdirAll(m.RootPath(), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return nil
}

// Create initializes a new project in the idea_intake phase. The project
// directory is cleaned up if the first write fails.
func (m *Manager) Create(ctx context.Context, slug, title, idea string) (*Project, error) {
	if err := m.EnsureDirectories(); err != nil {
		return nil, err
	}
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}
	if title == "" {
		return nil, ErrTitleRequired
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lock := slugLock(slug)
	lock.Lock()
	defer lock.Unlock()

	dir := m.ProjectDir(slug)

	// os.Mkdir fails if the directory exists, which closes the TOCTOU
	// window between an existence check and creation.
	if err := os.Mkdir(dir, 0755); err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrProjectExists, slug)
		}
		return nil, fmt.Errorf("failed to create project directory: %w", err)
	}

	now := time.Now()
	p := &Project{
		Slug:      slug,
		Title:     title,
		Idea:      idea,
		Phase:     PhaseIdeaIntake,
		DepthMode: scoring.DefaultDepthMode,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.save(ctx, p); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return p, nil
}

// Load reads and validates a project document.
func (m *Manager) Load(ctx context.Context, slug string) (*Project, error) {
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.load(ctx, slug)
}

// load reads the document without acquiring the slug lock; callers that
// mutate must hold it.
func (m *Manager) load(_ context.Context, slug string) (*Project, error) {
	data, err := os.ReadFile(m.ProjectFilePath(slug))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, slug)
		}
		return nil, fmt.Errorf("failed to read project: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var p Project
	if err := dec.Decode(&p); err != nil {
		return nil, &ValidationError{Field: "document", Reason: fmt.Sprintf("malformed project.json: %v", err)}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Save validates and atomically persists a project document.
func (m *Manager) Save(ctx context.Context, p *Project) error {
	if err := ValidateSlug(p.Slug); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := slugLock(p.Slug)
	lock.Lock()
	defer lock.Unlock()

	return m.save(ctx, p)
}

// save persists without acquiring the slug lock. The document is validated
// first; an invalid document never reaches disk. The write goes to a temp
// file in the same directory and is renamed over the target, so a crash
// leaves the previous document intact.
func (m *Manager) save(ctx context.Context, p *Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	path := m.ProjectFilePath(p.Slug)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	p.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write project: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace project: %w", err)
	}
	return nil
}

// Update applies fn to the current document and persists the result, all
// under the slug lock. An error from fn aborts without writing.
func (m *Manager) Update(ctx context.Context, slug string, fn func(*Project) error) (*Project, error) {
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lock := slugLock(slug)
	lock.Lock()
	defer lock.Unlock()

	p, err := m.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	if err := m.save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListResult contains the results of listing projects, including any
// non-fatal errors from individual documents.
type ListResult struct {
	Projects []*Project
	Errors   []error
}

// List returns all projects under the state root. Unreadable entries are
// reported in the result and do not fail the listing.
func (m *Manager) List(ctx context.Context) (*ListResult, error) {
	result := &ListResult{
		Projects: []*Project{},
		Errors:   []error{},
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(m.RootPath())
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p, err := m.load(ctx, entry.Name())
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Errorf("failed to load project %s: %w", entry.Name(), err))
			continue
		}
		result.Projects = append(result.Projects, p)
	}

	return result, nil
}

// Exists checks whether a project document exists.
func (m *Manager) Exists(slug string) bool {
	if err := ValidateSlug(slug); err != nil {
		return false
	}
	_, err := os.Stat(m.ProjectFilePath(slug))
	return err == nil
}

// Delete permanently removes a project and all its contents.
func (m *Manager) Delete(ctx context.Context, slug string) error {
	if err := ValidateSlug(slug); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := slugLock(slug)
	lock.Lock()
	defer lock.Unlock()

	dir := m.ProjectDir(slug)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, slug)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}
