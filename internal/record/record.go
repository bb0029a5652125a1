// Package record is the recorder: one archive per run, holding a
// content-addressed, dictionary-compressed store of captured outputs
// (store.zip) and a zstd-compressed newline-delimited event log
// (run.log.zst). internal/record/rerun builds on its TestEventSummary
// stream to compute which tests remain outstanding across runs.
package record

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FinishResult is what an explicit Finish reports for both halves of the
// archive.
type FinishResult struct {
	Log SizePair
	Store StoreSizes
}

// SizePair is a compressed/uncompressed byte-count pair.
type SizePair struct {
	Compressed int64
	Uncompressed int64
}

// StoreSizes is SizePair plus the number of distinct out/* entries
// written (after content-address dedup).
type StoreSizes struct {
	SizePair
	Entries int
}

// Recorder drives one run's archive. It is not safe for concurrent
// RecordOutput/RecordEvent calls from multiple goroutines without
// external synchronization: single-writer, owned by the dispatcher
// thread.
type Recorder struct {
	dir string
	maxOutputSize int

	store *store
	log *eventLog

	mu sync.Mutex
	finished bool
}

// New creates <baseDir>/<runID>/ and opens store.zip + run.log.zst inside
// it. dicts maps an output kind to its pre-trained dictionary bytes, both
// of which are embedded in the archive (meta/<kind>.dict) and used to
// dict-compress matching out/* entries as they're recorded.
func New(baseDir, runID string, maxOutputSize int, dicts map[OutputKind][]byte) (*Recorder, error) {
	dir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("record: creating run directory: %w", err)
	}

	st, err := openStore(filepath.Join(dir, "store.zip"), dicts)
	if err != nil {
		return nil, err
	}
	lg, err := openEventLog(filepath.Join(dir, "run.log.zst"))
	if err != nil {
		st.abort()
		return nil, err
	}

	dictKinds := make([]OutputKind, 0, len(dicts))
	for kind := range dicts {
		dictKinds = append(dictKinds, kind)
	}
	if err := st.writeJSON("meta/record-opts.json", RecordOpts{MaxOutputSize: maxOutputSize, Dictionaries: dictKinds}); err != nil {
		st.abort()
		lg.abort()
		return nil, err
	}

	return &Recorder{dir: dir, maxOutputSize: maxOutputSize, store: st, log: lg}, nil
}

// RecordOutput truncates data to the recorder's max-output-size, content-
// addresses it into store.zip, and returns the entry describing where it
// landed (for embedding into the test's TestEventSummary as stdout_ref /
// stderr_ref).
func (r *Recorder) RecordOutput(kind OutputKind, data []byte) (OutputEntry, error) {
	truncated, originalLen := Truncate(data, r.maxOutputSize)
	return r.store.putOutput(kind, truncated, originalLen)
}

// RecordEvent appends one TestEventSummary line to run.log.zst.
func (r *Recorder) RecordEvent(ev TestEventSummary) error {
	return r.log.append(ev)
}

// WriteTestList embeds the list-time test inventory (meta/test-list.json)
// used by both `xtr list` consumers and the rerun computation's
// filter-result inputs.
func (r *Recorder) WriteTestList(v interface{}) error {
	return r.store.writeJSON("meta/test-list.json", v)
}

// WriteCargoMetadata embeds the workspace metadata an external
// collaborator supplies verbatim (meta/cargo-metadata.json) as raw
// bytes, not re-marshaled, since xtr treats this JSON as opaque
// passthrough.
func (r *Recorder) WriteCargoMetadata(raw []byte) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.writeZstd("meta/cargo-metadata.json", raw)
}

// WriteRerunInfo embeds the rerun-info computed for this run (optional —
// only present when the run was itself invoked with a rerun filter or is
// the basis for a future one).
func (r *Recorder) WriteRerunInfo(v interface{}) error {
	return r.store.writeJSON("meta/rerun-info.json", v)
}

// Finish flushes and closes both halves of the archive and reports their
// final sizes. Calling Finish twice, or calling it after Close, is an
// error.
func (r *Recorder) Finish() (FinishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return FinishResult{}, fmt.Errorf("record: Finish called twice for %s", r.dir)
	}
	r.finished = true

	logCompressed, logUncompressed, err := r.log.close()
	if err != nil {
		r.store.abort()
		return FinishResult{}, err
	}
	storeCompressed, entries, err := r.store.close()
	if err != nil {
		return FinishResult{}, err
	}

	return FinishResult{
		Log: SizePair{Compressed: logCompressed, Uncompressed: logUncompressed},
		Store: StoreSizes{SizePair: SizePair{Compressed: storeCompressed, Uncompressed: r.store.uncompressed}, Entries: entries},
	}, nil
}

// Close is the drop-without-finish path: it
// best-effort finalizes both zstd streams, ignoring errors, and is safe
// to call after a successful Finish (a no-op in that case). Callers
// should `defer rec.Close()` immediately after New so a panic mid-run
// still leaves a readable (if incomplete) archive on disk.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	r.finished = true
	r.log.abort()
	r.store.abort()
}
