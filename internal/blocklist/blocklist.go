// Package blocklist owns the hostnames that are fetched with the fallback user agent.
//
// Entries come from static configuration plus an optional file with one entry
// per line. The merged list is held as an immutable snapshot that Reload swaps
// atomically, so readers never observe a partial update.
package blocklist

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Store holds the current blocked-hostname snapshot.
type Store struct {
	path    string
	static  []string
	entries atomic.Pointer[[]string]
	logger  *zap.Logger
}

// NewStore builds a Store from static entries and, when path is set, the
// entries in that file. A missing file yields only the static entries.
func NewStore(path string, static []string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{path: path, static: normalize(static), logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Entries returns the current snapshot. Callers must not modify it.
func (s *Store) Entries() []string {
	if p := s.entries.Load(); p != nil {
		return *p
	}
	return nil
}

// Reload re-reads the file and replaces the snapshot. On error the previous
// snapshot stays in place.
func (s *Store) Reload() error {
	merged := append([]string(nil), s.static...)
	if s.path != "" {
		fromFile, err := readFile(s.path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			s.logger.Warn("blocklist file missing; using static entries", zap.String("path", s.path))
		case err != nil:
			return err
		default:
			merged = append(merged, fromFile...)
		}
	}
	merged = dedupe(merged)
	s.entries.Store(&merged)
	s.logger.Debug("blocklist loaded", zap.Int("entries", len(merged)))
	return nil
}

// Watch reloads the snapshot whenever the backing file changes, until ctx is
// done. It watches the parent directory so editors that replace the file are
// picked up. Watch returns immediately when the store has no file.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	target := filepath.Clean(s.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Warn("blocklist reload failed", zap.Error(err))
				continue
			}
			s.logger.Info("blocklist reloaded", zap.String("path", s.path), zap.Int("entries", len(s.Entries())))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("blocklist watcher error", zap.Error(err))
		}
	}
}

// Parse reads one entry per line. Blank lines and lines starting with # are skipped.
func Parse(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan blocklist: %w", err)
	}
	return normalize(out), nil
}

func readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// normalize lowercases entries and strips wildcard prefixes. Matching is by
// substring, so "*.example.com" and ".example.com" reduce to "example.com".
func normalize(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		value := strings.TrimSpace(strings.ToLower(entry))
		value = strings.TrimPrefix(value, "*.")
		value = strings.TrimPrefix(value, ".")
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	return out
}

func dedupe(entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
