package record

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderRoundTripsOutputsAndEvents(t *testing.T) {
	dir := t.TempDir()
	rec, err := New(dir, "run-1", 1<<20, nil)
	require.NoError(t, err)
	defer rec.Close()

	entry, err := rec.RecordOutput(KindStdout, []byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, entry.FinalSize)
	assert.Equal(t, 6, entry.OriginalSize)
	assert.False(t, entry.DictCompressed)

	// Identical bytes dedup to the same entry name.
	entry2, err := rec.RecordOutput(KindStdout, []byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, entry.Name, entry2.Name)

	require.NoError(t, rec.RecordEvent(TestEventSummary{
		Timestamp: time.Unix(0, 0),
		Kind:      "test-finished",
		RunID:     "run-1",
		Binary:    "crate::lib",
		Test:      "it_works",
		Outcome:   "pass",
		Passed:    true,
		StdoutRef: entry.Name,
	}))

	require.NoError(t, rec.WriteTestList(map[string]int{"crate::lib": 1}))
	require.NoError(t, rec.WriteCargoMetadata([]byte(`{"workspace_root":"/tmp/x"}`)))

	result, err := rec.Finish()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Store.Entries, "the dedup'd second write must not count as a second entry")
	assert.Greater(t, result.Log.Uncompressed, int64(0))
	assert.Greater(t, result.Store.Uncompressed, int64(0))

	r, err := OpenReader(filepath.Join(dir, "run-1", "store.zip"))
	require.NoError(t, err)
	defer r.Close()

	out, err := r.Output(entry.Name, KindStdout)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))

	meta, err := r.Meta("record-opts.json")
	require.NoError(t, err)
	assert.Contains(t, string(meta), "max_output_size")
}

func TestRecorderDictCompressedOutputsAreStoredMethod(t *testing.T) {
	dir := t.TempDir()
	dict := make([]byte, 2048)
	for i := range dict {
		dict[i] = byte(i % 251)
	}
	rec, err := New(dir, "run-2", 1<<20, map[OutputKind][]byte{KindStdout: dict})
	require.NoError(t, err)
	defer rec.Close()

	entry, err := rec.RecordOutput(KindStdout, []byte("dictionary trained output\n"))
	require.NoError(t, err)
	assert.True(t, entry.DictCompressed)

	_, err = rec.Finish()
	require.NoError(t, err)

	r, err := OpenReader(filepath.Join(dir, "run-2", "store.zip"))
	require.NoError(t, err)
	defer r.Close()

	out, err := r.Output(entry.Name, KindStdout)
	require.NoError(t, err)
	assert.Equal(t, "dictionary trained output\n", string(out))
}

func TestRecorderCloseWithoutFinishDoesNotPanic(t *testing.T) {
	dir := t.TempDir()
	rec, err := New(dir, "run-3", 1<<20, nil)
	require.NoError(t, err)
	_, err = rec.RecordOutput(KindStderr, []byte("partial\n"))
	require.NoError(t, err)
	rec.Close()
	rec.Close() // idempotent
}

func TestRecorderTruncatesLargeOutput(t *testing.T) {
	dir := t.TempDir()
	rec, err := New(dir, "run-4", 50, nil)
	require.NoError(t, err)
	defer rec.Close()

	big := make([]byte, 1000)
	for i := range big {
		big[i] = 'a'
	}
	entry, err := rec.RecordOutput(KindCombined, big)
	require.NoError(t, err)
	assert.Equal(t, 1000, entry.OriginalSize)
	assert.LessOrEqual(t, entry.FinalSize, 200, "truncated size should be near the configured budget, not the original 1000 bytes")
}
