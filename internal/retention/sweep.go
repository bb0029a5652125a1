package retention

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// SweepResult reports what a Sweep did, for the caller (cmd/rerun_prune.go)
// to print or log.
type SweepResult struct {
	Deleted []string // run IDs removed because Prune scheduled them
	Orphans []string // run-ID-shaped directories removed that the index never tracked
	Errors []error // individual deletion failures; a sweep does not stop on one
	KeptCount int
	KeptSize int64
}

// Sweep prunes tracked runs under limits and additionally reclaims orphan
// directories: subdirectories of root whose name parses as a run ID (a
// UUID) but which tracked is not aware of at all, e.g. left behind by a
// process that crashed before updating its index.
//
// Errors from individual deletions do not stop the sweep; they are
// collected into SweepResult.Errors.
func Sweep(root string, tracked []RunMeta, limits Limits, now func() time.Time) (SweepResult, error) {
	decisions := Prune(tracked, limits, now())

	trackedIDs := make(map[string]struct{}, len(tracked))
	for _, r := range tracked {
		trackedIDs[r.RunID] = struct{}{}
	}

	var result SweepResult
	for _, d := range decisions {
		if !d.Delete {
			result.KeptCount++
			result.KeptSize += d.Run.SizeBytes
			continue
		}
		if err := removeRunDir(root, d.Run.RunID); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("retention: deleting run %s: %w", d.Run.RunID, err))
			continue
		}
		result.Deleted = append(result.Deleted, d.Run.RunID)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, fmt.Errorf("retention: listing %s: %w", root, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if _, err := uuid.Parse(name); err != nil {
			continue // not a run directory at all; leave it alone
		}
		if _, ok := trackedIDs[name]; ok {
			continue // already handled above (kept or deleted)
		}
		if err := removeRunDir(root, name); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("retention: deleting orphan %s: %w", name, err))
			continue
		}
		result.Orphans = append(result.Orphans, name)
	}

	return result, nil
}

func removeRunDir(root, runID string) error {
	return os.RemoveAll(filepath.Join(root, runID))
}
