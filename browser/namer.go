package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ArtifactExt is the fixed extension of screenshot artifacts.
const ArtifactExt = ".png"

// Artifact is a file produced by a screenshot.
type Artifact struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	ContentType string    `json:"content_type"`
	FullPage    bool      `json:"full_page"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// ArtifactNamer hands out collision-free artifact names under a fixed
// directory. It holds no mutable state and is safe for concurrent use.
type ArtifactNamer struct {
	dir string
}

// NewArtifactNamer creates a namer rooted at dir.
func NewArtifactNamer(dir string) *ArtifactNamer {
	if dir == "" {
		dir = "."
	}
	return &ArtifactNamer{dir: filepath.Clean(dir)}
}

// Dir returns the artifact directory.
func (n *ArtifactNamer) Dir() string { return n.dir }

// Name returns a fresh "<uuid>.png" name. uuid v4 draws from crypto/rand, so
// concurrent callers never share state.
func (n *ArtifactNamer) Name() string {
	return uuid.NewString() + ArtifactExt
}

// Next returns a fresh name and its full path.
func (n *ArtifactNamer) Next() (name, path string) {
	name = n.Name()
	return name, filepath.Join(n.dir, name)
}

// EnsureDir creates the artifact directory if needed.
func (n *ArtifactNamer) EnsureDir() error {
	if err := os.MkdirAll(n.dir, 0o755); err != nil {
		return &IOError{Path: n.dir, Err: fmt.Errorf("create artifact dir: %w", err)}
	}
	return nil
}
