package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"xtr/internal/retention"
)

type pruneFlags struct {
	archiveDir string
	maxCount int
	maxTotalSize int64
	maxAge string
}

func newRerunPruneCmd() *cobra.Command {
	flags := &pruneFlags{}
	c := &cobra.Command{
		Use: "prune",
		Short: "Delete recorded run archives that exceed the configured retention limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(cmd, flags)
		},
	}
	c.Flags().StringVar(&flags.archiveDir, "archive-dir", ".xtr/runs", "base directory recorded run archives are written under")
	c.Flags().IntVar(&flags.maxCount, "max-count", 0, "keep at most this many runs (0 = unlimited)")
	c.Flags().Int64Var(&flags.maxTotalSize, "max-total-size", 0, "keep at most this many bytes of run archives combined (0 = unlimited)")
	c.Flags().StringVar(&flags.maxAge, "max-age", "", "delete runs older than this duration, e.g. \"168h\" (empty = unlimited)")
	return c
}

func runPrune(cmd *cobra.Command, flags *pruneFlags) error {
	limits, err := flags.limits()
	if err != nil {
		return err
	}

	tracked, err := scanRunArchives(flags.archiveDir)
	if err != nil {
		return err
	}

	result, err := retention.Sweep(flags.archiveDir, tracked, limits, time.Now)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", " ")
	return enc.Encode(sweepReport{
		Deleted: result.Deleted,
		Orphans: result.Orphans,
		Errors: sweepErrorStrings(result.Errors),
		KeptCount: result.KeptCount,
		KeptSize: result.KeptSize,
	})
}

// sweepReport mirrors retention.SweepResult but renders Errors as plain
// strings, since error values themselves carry no exported fields for
// json.Marshal to walk.
type sweepReport struct {
	Deleted []string `json:"deleted"`
	Orphans []string `json:"orphans"`
	Errors []string `json:"errors,omitempty"`
	KeptCount int `json:"kept_count"`
	KeptSize int64 `json:"kept_size"`
}

func sweepErrorStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}

func (f *pruneFlags) limits() (retention.Limits, error) {
	var limits retention.Limits
	if f.maxCount > 0 {
		limits.MaxCount = &f.maxCount
	}
	if f.maxTotalSize > 0 {
		limits.MaxTotalSize = &f.maxTotalSize
	}
	if f.maxAge != "" {
		d, err := time.ParseDuration(f.maxAge)
		if err != nil {
			return limits, fmt.Errorf("parsing --max-age: %w", err)
		}
		limits.MaxAge = &d
	}
	return limits, nil
}

// scanRunArchives builds the retention.RunMeta index Sweep needs by
// reading archiveDir directly: every subdirectory whose name parses as a
// UUID is a tracked run, sized by its
// store.zip and dated by that file's modification time.
func scanRunArchives(archiveDir string) ([]retention.RunMeta, error) {
	entries, err := os.ReadDir(archiveDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", archiveDir, err)
	}

	var runs []retention.RunMeta
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := uuid.Parse(entry.Name()); err != nil {
			continue
		}
		storePath := filepath.Join(archiveDir, entry.Name(), "store.zip")
		info, err := os.Stat(storePath)
		if err != nil {
			continue
		}
		runs = append(runs, retention.RunMeta{
			RunID: entry.Name(),
			SizeBytes: info.Size(),
			LastWrittenAt: info.ModTime(),
		})
	}
	return runs, nil
}
