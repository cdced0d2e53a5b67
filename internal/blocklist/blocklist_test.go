package blocklist

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	input := `
# paywalled publishers
Paywall.Example
  *.cdn.blocked
.dotted.test

# trailing comment
`
	got, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, []string{"paywall.example", "cdn.blocked", "dotted.test"}, got)
}

func TestNewStore_MergesStaticAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked.txt")
	require.NoError(t, os.WriteFile(path, []byte("file.example\nstatic.example\n"), 0o600))

	s, err := NewStore(path, []string{"Static.Example"}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"static.example", "file.example"}, s.Entries())
}

func TestNewStore_MissingFileUsesStatic(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "absent.txt"), []string{"only.example"}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"only.example"}, s.Entries())
}

func TestNewStore_NoSources(t *testing.T) {
	s, err := NewStore("", nil, nil)
	require.NoError(t, err)
	require.Empty(t, s.Entries())
}

func TestReload_SwapsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked.txt")
	require.NoError(t, os.WriteFile(path, []byte("one.example\n"), 0o600))

	s, err := NewStore(path, nil, nil)
	require.NoError(t, err)
	before := s.Entries()

	require.NoError(t, os.WriteFile(path, []byte("two.example\nthree.example\n"), 0o600))
	require.NoError(t, s.Reload())

	require.Equal(t, []string{"one.example"}, before)
	require.Equal(t, []string{"two.example", "three.example"}, s.Entries())
}

func TestReload_KeepsSnapshotOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked.txt")
	require.NoError(t, os.WriteFile(path, []byte("kept.example\n"), 0o600))

	s, err := NewStore(path, nil, nil)
	require.NoError(t, err)

	// A directory at the path opens but fails to read.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0o700))

	require.Error(t, s.Reload())
	require.Equal(t, []string{"kept.example"}, s.Entries())
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked.txt")
	require.NoError(t, os.WriteFile(path, []byte("old.example\n"), 0o600))

	s, err := NewStore(path, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()

	// Give the watcher time to register before writing.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("new.example\n"), 0o600)
		entries := s.Entries()
		return len(entries) == 1 && entries[0] == "new.example"
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestWatch_NoPathReturns(t *testing.T) {
	s, err := NewStore("", []string{"x"}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Watch(context.Background()))
}
