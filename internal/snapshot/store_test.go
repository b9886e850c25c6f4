package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koalasec/photon-sync/internal/logger"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), logger.Discard())
	require.NoError(t, err)
	return s
}

// seedGeneration fills dir with a recognizable payload.
func seedGeneration(t *testing.T, dir, payload string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "photon_data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "photon_data", "index"), []byte(payload), 0o644))
}

func readGeneration(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "photon_data", "index"))
	require.NoError(t, err)
	return string(data)
}

func TestPromoteFirstGeneration(t *testing.T) {
	s := openStore(t)
	assert.False(t, s.HasCurrent())

	seedGeneration(t, s.Staging(), "gen1")
	require.NoError(t, s.Promote())

	assert.True(t, s.HasCurrent())
	assert.Equal(t, "gen1", readGeneration(t, s.Current()))
	assert.NoDirExists(t, s.Staging())
	assert.NoDirExists(t, s.Previous())
}

func TestPromoteRetiresCurrent(t *testing.T) {
	s := openStore(t)

	seedGeneration(t, s.Staging(), "gen1")
	require.NoError(t, s.Promote())

	seedGeneration(t, s.Staging(), "gen2")
	require.NoError(t, s.Promote())

	assert.Equal(t, "gen2", readGeneration(t, s.Current()))
	assert.Equal(t, "gen1", readGeneration(t, s.Previous()))
}

func TestPromoteWithoutStaging(t *testing.T) {
	s := openStore(t)
	var perr *PromotionError
	assert.ErrorAs(t, s.Promote(), &perr)
}

func TestRollback(t *testing.T) {
	s := openStore(t)

	seedGeneration(t, s.Staging(), "gen1")
	require.NoError(t, s.Promote())
	seedGeneration(t, s.Staging(), "gen2")
	require.NoError(t, s.Promote())

	require.NoError(t, s.Rollback())
	assert.Equal(t, "gen1", readGeneration(t, s.Current()))
	assert.True(t, s.HasCurrent())
	assert.NoDirExists(t, s.Previous())
}

func TestRollbackWithoutPrevious(t *testing.T) {
	s := openStore(t)
	assert.Error(t, s.Rollback())
}

func TestGCBoundsGenerations(t *testing.T) {
	s := openStore(t)

	seedGeneration(t, s.Staging(), "gen1")
	require.NoError(t, s.Promote())
	seedGeneration(t, s.Staging(), "gen2")
	require.NoError(t, s.Promote())

	// Litter the root with things gc must remove.
	seedGeneration(t, s.Staging(), "half-built")
	require.NoError(t, os.MkdirAll(s.DownloadDir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.DownloadDir(), "archive.tar.bz2"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "stale-gen"), 0o755))

	require.NoError(t, s.WriteMetadata(&Metadata{LastSuccess: time.Now()}))
	require.NoError(t, s.GC())

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	assert.ElementsMatch(t, []string{"current", "previous"}, dirs)

	// Metadata survives gc.
	m, err := s.ReadMetadata()
	require.NoError(t, err)
	assert.False(t, m.LastSuccess.IsZero())
}

func TestDiscardStaging(t *testing.T) {
	s := openStore(t)
	seedGeneration(t, s.Staging(), "partial")
	require.NoError(t, os.MkdirAll(s.Staging()+".extract", 0o755))

	require.NoError(t, s.DiscardStaging())
	assert.NoDirExists(t, s.Staging())
	assert.NoDirExists(t, s.Staging()+".extract")
}

func TestRecoverInterruptedBeforeMarker(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, logger.Discard())
	require.NoError(t, err)

	seedGeneration(t, s.Staging(), "good")
	require.NoError(t, s.Promote())

	// Simulate a crash between the staging rename and the marker write:
	// current exists but unmarked, previous carries the old marker.
	require.NoError(t, os.Rename(s.Current(), s.Previous()))
	seedGeneration(t, s.Current(), "incomplete")

	s2, err := Open(root, logger.Discard())
	require.NoError(t, err)

	assert.True(t, s2.HasCurrent())
	assert.Equal(t, "good", readGeneration(t, s2.Current()))
	assert.NoDirExists(t, s2.Previous())
}

func TestRecoverInterruptedBetweenRenames(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, logger.Discard())
	require.NoError(t, err)

	seedGeneration(t, s.Staging(), "good")
	require.NoError(t, s.Promote())

	// Simulate a crash after current -> previous but before
	// staging -> current.
	require.NoError(t, os.Rename(s.Current(), s.Previous()))
	seedGeneration(t, s.Staging(), "unfinished")

	s2, err := Open(root, logger.Discard())
	require.NoError(t, err)

	assert.True(t, s2.HasCurrent())
	assert.Equal(t, "good", readGeneration(t, s2.Current()))
}

func TestRecoverAdoptsUnmarkedDataset(t *testing.T) {
	root := t.TempDir()
	seedGeneration(t, filepath.Join(root, "current"), "migrated")

	s, err := Open(root, logger.Discard())
	require.NoError(t, err)

	assert.True(t, s.HasCurrent())
	assert.Equal(t, "migrated", readGeneration(t, s.Current()))
}

func TestMetadataRoundTrip(t *testing.T) {
	s := openStore(t)

	// First run: empty record.
	m, err := s.ReadMetadata()
	require.NoError(t, err)
	assert.True(t, m.LastSuccess.IsZero())

	want := &Metadata{
		SourceURL:   "https://mirror.example.org/x.tar.bz2",
		Checksum:    "d41d8cd98f00b204e9800998ecf8427e",
		InstalledAt: time.Now().UTC().Truncate(time.Second),
		SizeBytes:   42,
		LastSuccess: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.WriteMetadata(want))

	got, err := s.ReadMetadata()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMetadataCorruptRecordIgnored(t *testing.T) {
	s := openStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "metadata.json"), []byte("{not json"), 0o644))

	m, err := s.ReadMetadata()
	require.NoError(t, err)
	assert.True(t, m.LastSuccess.IsZero())
}

func TestDirSize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b"), make([]byte, 50), 0o644))

	size, err := DirSize(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(150), size)
}
