// Package storage keeps local copies of downloaded video artifacts. The
// record store remains the source of truth; the cache is a convenience for
// operators who want the bytes on disk next to the service.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactCache persists downloaded videos onto the local filesystem.
type ArtifactCache struct {
	dir string
}

// NewArtifactCache initializes a cache rooted at dir. An empty dir disables
// caching and returns nil.
func NewArtifactCache(dir string) (*ArtifactCache, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure artifact dir: %w", err)
	}
	return &ArtifactCache{dir: dir}, nil
}

// Save writes the artifact for one record under its derived filename and
// returns the absolute path. A nil cache silently accepts nothing.
func (c *ArtifactCache) Save(ctx context.Context, recordID, filename string, data []byte) (string, error) {
	if c == nil {
		return "", errors.New("storage: no cache configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	recordID = sanitizeComponent(recordID)
	filename = sanitizeComponent(filename)
	if recordID == "" || filename == "" {
		return "", errors.New("storage: record id and filename are required")
	}
	target := filepath.Join(c.dir, recordID, filename)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure record dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write artifact: %w", err)
	}
	return target, nil
}

// sanitizeComponent strips anything that could escape the cache directory so
// record ids and filenames are always single path elements.
func sanitizeComponent(v string) string {
	v = strings.TrimSpace(v)
	v = strings.ReplaceAll(v, "\\", "/")
	if idx := strings.LastIndex(v, "/"); idx >= 0 {
		v = v[idx+1:]
	}
	if v == "." || v == ".." {
		return ""
	}
	return v
}
