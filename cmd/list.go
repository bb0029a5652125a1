package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"xtr/internal/config"
	"xtr/internal/discover"
	"xtr/internal/ids"
)

type listFlags struct {
	profile    string
	configPath string
	filterExpr string
}

func newListCmd() *cobra.Command {
	flags := &listFlags{}
	c := &cobra.Command{
		Use:   "list BINARY [BINARY...]",
		Short: "List every test case the given binaries report, and whether it would run",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), cmd, args, flags)
		},
	}
	c.Flags().StringVar(&flags.profile, "profile", "default", "nextest profile to evaluate filters under")
	c.Flags().StringVar(&flags.configPath, "config", "", "path to a repo nextest.toml (optional; the embedded default is always layered in)")
	c.Flags().StringVar(&flags.filterExpr, "filter", "", "filterset expression restricting which tests are marked as matching")
	return c
}

// listEntry is one line of `xtr list`'s JSON output: a (binary, test)
// pair and whether it currently matches, for a human or script to
// consume without needing its own copy of the filterset grammar.
type listEntry struct {
	Binary  ids.BinaryID `json:"binary"`
	Test    ids.TestName `json:"test"`
	Matches bool         `json:"matches"`
	Reason  string       `json:"reason,omitempty"`
}

func runList(ctx context.Context, cmd *cobra.Command, binaryPaths []string, flags *listFlags) error {
	cfg, err := loadCompiledConfig(flags.configPath)
	if err != nil {
		return err
	}

	var cliFilter *ids.FilterExpr
	if flags.filterExpr != "" {
		cliFilter, err = ids.ParseFilterExpr(flags.filterExpr)
		if err != nil {
			return fmt.Errorf("parsing --filter: %w", err)
		}
	}

	var entries []listEntry
	for _, path := range binaryPaths {
		bin := discover.Binary{ID: ids.BinaryID(filepath.Base(path)), Package: filepath.Base(filepath.Dir(path)), Path: path}
		tests, err := discover.ListTests(ctx, bin)
		if err != nil {
			return fmt.Errorf("listing %s: %w", bin.ID, err)
		}
		for _, test := range tests {
			filterCtx := ids.FilterContext{BinaryName: string(bin.ID), PackageName: bin.Package, TestName: string(test)}
			settings, err := cfg.SettingsForTest(flags.profile, config.TestQuery{Binary: bin.ID, Test: test, FilterCtx: filterCtx})
			if err != nil {
				return err
			}

			entry := listEntry{Binary: bin.ID, Test: test, Matches: true}
			switch {
			case cliFilter != nil && !cliFilter.Eval(filterCtx):
				entry.Matches, entry.Reason = false, string(ids.MismatchExpression)
			case cliFilter == nil && settings.DefaultFilter != nil && !settings.DefaultFilter.Eval(filterCtx):
				entry.Matches, entry.Reason = false, string(ids.MismatchDefaultFilter)
			}
			entries = append(entries, entry)
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
