package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace manages the on-disk layout for run outputs. Extracted article
// text lives under runs/<date>/extracted/ and run artifacts such as show
// notes and scripts directly under runs/<date>/.
type Workspace struct {
	root string
}

// NewWorkspace creates a workspace rooted at the given directory.
func NewWorkspace(root string) *Workspace {
	return &Workspace{root: root}
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string {
	return w.root
}

// RunDir returns the directory for a run's logical date.
func (w *Workspace) RunDir(date string) string {
	return filepath.Join(w.root, "runs", date)
}

// Init creates the workspace skeleton: the root with its runs and cache
// directories.
func (w *Workspace) Init() error {
	for _, dir := range []string{
		filepath.Join(w.root, "runs"),
		filepath.Join(w.root, "cache"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create workspace directory %s: %w", dir, err)
		}
	}
	return nil
}

// EnsureRunDirs creates the directory tree for a run.
func (w *Workspace) EnsureRunDirs(date string) error {
	dir := filepath.Join(w.RunDir(date), "extracted")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create run directories: %w", err)
	}
	return nil
}

// ExtractedPath returns the file path for an article's extracted text.
func (w *Workspace) ExtractedPath(date string, articleID int64) string {
	return filepath.Join(w.RunDir(date), "extracted", fmt.Sprintf("article_%d.txt", articleID))
}

// WriteExtracted saves an article's extracted text and returns the path it
// was written to.
func (w *Workspace) WriteExtracted(date string, articleID int64, text string) (string, error) {
	path := w.ExtractedPath(date, articleID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create extracted directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("failed to write extracted text: %w", err)
	}
	return path, nil
}

// ReadFile returns the contents of a workspace file, typically an article's
// extracted text.
func (w *Workspace) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// WriteArtifact saves a run artifact such as show_notes.md or script.txt and
// returns the path it was written to.
func (w *Workspace) WriteArtifact(date, name string, data []byte) (string, error) {
	dir := w.RunDir(date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", name, err)
	}
	return path, nil
}
