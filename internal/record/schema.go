package record

import (
	"time"

	"xtr/internal/ids"
)

// OutputKind names one of the known, dictionary-eligible output
// categories.
type OutputKind string

const (
	KindStdout OutputKind = "stdout"
	KindStderr OutputKind = "stderr"
	KindCombined OutputKind = "combined"
)

// TestEventSummary is one line of run.log.zst ("each line a
// TestEventSummary"). It is the durable, replayable projection of a
// dispatcher report.Event — smaller, JSON-stable, and independent of the
// in-process event types so archives remain readable across versions.
type TestEventSummary struct {
	Timestamp time.Time `json:"timestamp"`
	Kind string `json:"kind"`
	RunID string `json:"run_id"`
	Binary ids.BinaryID `json:"binary,omitempty"`
	Test ids.TestName `json:"test,omitempty"`
	Attempt int `json:"attempt,omitempty"`
	StressIdx *int `json:"stress_idx,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Passed bool `json:"passed,omitempty"`
	Leaked bool `json:"leaked,omitempty"`
	Details string `json:"details,omitempty"`
	StdoutRef string `json:"stdout_ref,omitempty"`
	StderrRef string `json:"stderr_ref,omitempty"`
}

// OutputEntry records where one captured output blob landed in store.zip,
// alongside the sizes needed to reconstruct what was trimmed: the final
// size and the original uncompressed length.
type OutputEntry struct {
	Name string `json:"name"`
	Kind OutputKind `json:"kind"`
	FinalSize int `json:"final_size"`
	OriginalSize int `json:"original_size"`
	DictCompressed bool `json:"dict_compressed"`
}

// RecordOpts is the frozen snapshot of the options a run was recorded
// under (meta/record-opts.json) — max-output-size and which dictionaries
// were in effect, so a later reader knows how to interpret out/* entries
// without guessing.
type RecordOpts struct {
	MaxOutputSize int `json:"max_output_size"`
	Dictionaries []OutputKind `json:"dictionaries"`
}
