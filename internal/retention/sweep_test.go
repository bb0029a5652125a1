package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRunDir(t *testing.T, root, id string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, id), 0o755))
}

func TestSweepDeletesPrunedAndOrphanDirs(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	oldID := uuid.New().String()
	keepID := uuid.New().String()
	orphanID := uuid.New().String()
	notARunDir := "not-a-uuid"

	makeRunDir(t, root, oldID)
	makeRunDir(t, root, keepID)
	makeRunDir(t, root, orphanID)
	makeRunDir(t, root, notARunDir)

	tracked := []RunMeta{
		{RunID: oldID, SizeBytes: 100, LastWrittenAt: now.Add(-10 * 24 * time.Hour)},
		{RunID: keepID, SizeBytes: 100, LastWrittenAt: now.Add(-1 * time.Hour)},
	}

	result, err := Sweep(root, tracked, Limits{MaxCount: intp(1)}, func() time.Time { return now })
	require.NoError(t, err)

	assert.Equal(t, []string{oldID}, result.Deleted)
	assert.Equal(t, []string{orphanID}, result.Orphans)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, result.KeptCount)

	assert.NoDirExists(t, filepath.Join(root, oldID))
	assert.DirExists(t, filepath.Join(root, keepID))
	assert.NoDirExists(t, filepath.Join(root, orphanID))
	assert.DirExists(t, filepath.Join(root, notARunDir), "a directory that isn't a valid run ID must never be touched")
}

func TestSweepMissingRootIsNotAnError(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does-not-exist")
	result, err := Sweep(root, nil, Limits{}, func() time.Time { return time.Now() })
	require.NoError(t, err)
	assert.Empty(t, result.Deleted)
	assert.Empty(t, result.Orphans)
}
