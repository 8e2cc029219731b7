package clipcache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"overdub/internal/logging"
)

const clipExtension = ".mp3"

// Key derives the cache key for a cue's display text: the MD5 digest of the
// lowercased text. Callers normalize the text first (newlines to spaces,
// trimmed), so cues differing only in layout share a key.
func Key(text string) string {
	sum := md5.Sum([]byte(strings.ToLower(text)))
	return hex.EncodeToString(sum[:])
}

// Store is a content-addressed clip store rooted at a run's cache directory.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore creates the cache directory if needed and returns a store over it.
func NewStore(root string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("clipcache: empty root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("clipcache: create %s: %w", root, err)
	}
	return &Store{
		root:   root,
		logger: logging.NewComponentLogger(logger, "clipcache"),
	}, nil
}

// Path returns the on-disk location for a key, whether or not it exists.
func (s *Store) Path(key string) string {
	return filepath.Join(s.root, "cache_"+key+clipExtension)
}

// Lookup reports whether a non-empty clip exists for the key.
func (s *Store) Lookup(key string) (string, bool) {
	path := s.Path(key)
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return "", false
	}
	return path, true
}

// Store writes clip bytes for the key atomically via a temp file and rename.
// An existing clip is never rewritten: by construction each unique key is
// generated at most once per run, and a concurrent duplicate write would
// carry identical content anyway.
func (s *Store) Store(key string, data []byte) (string, error) {
	path := s.Path(key)

	tmp, err := os.CreateTemp(s.root, "cache_*.tmp")
	if err != nil {
		return "", fmt.Errorf("clipcache: create temp: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("clipcache: write clip: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("clipcache: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("clipcache: publish clip: %w", err)
	}

	s.logger.Debug("stored clip",
		logging.String("key", key),
		logging.Int("bytes", len(data)))
	return path, nil
}

// Materialize copies the cached clip for key to a per-cue destination.
func (s *Store) Materialize(key, destination string) error {
	path, ok := s.Lookup(key)
	if !ok {
		return fmt.Errorf("clipcache: no clip for key %s", key)
	}
	return copyFile(path, destination)
}

// Count returns the number of unique clips in the cache.
func (s *Store) Count() int {
	count, _ := s.scan()
	return count
}

// SizeBytes returns the total size of all cached clips.
func (s *Store) SizeBytes() int64 {
	_, size := s.scan()
	return size
}

// Clear removes every cached clip, leaving the directory in place.
func (s *Store) Clear() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("clipcache: read dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "cache_") {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, entry.Name())); err != nil {
			return fmt.Errorf("clipcache: remove %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func (s *Store) scan() (int, int64) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, 0
	}
	count := 0
	var size int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "cache_") || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		count++
		if info, err := entry.Info(); err == nil {
			size += info.Size()
		}
	}
	return count, size
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("clipcache: open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("clipcache: create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("clipcache: copy clip: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("clipcache: close destination: %w", err)
	}
	return nil
}
