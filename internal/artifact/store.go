// Package artifact persists captured page artifacts (HTML snapshots and
// screenshots) on disk and hands back stable paths for baseline records.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/urlutil"
)

// Kind distinguishes the two artifact flavours stored per URL.
type Kind string

const (
	KindHTML       Kind = "html"
	KindScreenshot Kind = "png"
)

// Store lays artifacts out as <root>/<websiteID>/<urlhash>__<label>.<kind>.
type Store struct {
	root string
}

// NewStore creates the artifact root directory if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &Store{root: root}, nil
}

// Path computes the artifact path for a URL without touching the disk.
// label distinguishes baseline captures from fresh ones so a running
// comparison never overwrites the baseline it reads from.
func (s *Store) Path(websiteID, rawURL, label string, kind Kind) string {
	name := fmt.Sprintf("%s__%s.%s", urlutil.Hash(rawURL), label, kind)
	return filepath.Join(s.root, websiteID, name)
}

// TimestampedLabel builds a label for fresh captures, keyed to the
// moment of capture so successive checks keep distinct artifacts.
func TimestampedLabel(t time.Time) string {
	return t.UTC().Format("20060102T150405")
}

// Write stores data at path atomically: a temp file in the same
// directory is renamed over the target so readers never observe a
// partial artifact.
func (s *Store) Write(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("finalize artifact: %w", err)
	}
	return nil
}

// Read loads an artifact back for comparison.
func (s *Store) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	return data, nil
}

// Root returns the artifact root directory.
func (s *Store) Root() string { return s.root }
