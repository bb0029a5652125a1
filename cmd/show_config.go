package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"xtr/internal/config"
	"xtr/internal/ids"
)

type showConfigFlags struct {
	profile     string
	configPath  string
	binary      string
	test        string
	packageName string
}

func newShowConfigCmd() *cobra.Command {
	flags := &showConfigFlags{}
	c := &cobra.Command{
		Use:   "show-config",
		Short: "Print the compiled configuration, or one test's resolved settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShowConfig(cmd, flags)
		},
	}
	c.Flags().StringVar(&flags.profile, "profile", "default", "profile to resolve")
	c.Flags().StringVar(&flags.configPath, "config", "", "path to a repo nextest.toml (optional; the embedded default is always layered in)")
	c.Flags().StringVar(&flags.binary, "binary", "", "binary id to resolve settings for (requires --test)")
	c.Flags().StringVar(&flags.test, "test", "", "test name to resolve settings for (requires --binary)")
	c.Flags().StringVar(&flags.packageName, "package", "", "package name to evaluate package()-scoped overrides against")
	return c
}

// profileSummary is the shape show-config prints when no (binary, test)
// pair was named: the set of profiles, groups, and scripts a compiled
// config carries, without requiring the caller to have a test binary on
// hand at all.
type profileSummary struct {
	Profiles   []string        `json:"profiles"`
	TestGroups []ids.GroupID   `json:"test_groups"`
	Scripts    []scriptSummary `json:"scripts"`
}

type scriptSummary struct {
	ID   ids.ScriptID      `json:"id"`
	Kind config.ScriptKind `json:"kind"`
}

func runShowConfig(cmd *cobra.Command, flags *showConfigFlags) error {
	cfg, err := loadCompiledConfig(flags.configPath)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	if flags.binary == "" && flags.test == "" {
		summary := profileSummary{}
		for name := range cfg.Profiles {
			summary.Profiles = append(summary.Profiles, name)
		}
		for id := range cfg.TestGroups {
			summary.TestGroups = append(summary.TestGroups, id)
		}
		for id, sc := range cfg.Scripts {
			summary.Scripts = append(summary.Scripts, scriptSummary{ID: id, Kind: sc.Kind})
		}
		return enc.Encode(summary)
	}

	if flags.binary == "" || flags.test == "" {
		return fmt.Errorf("--binary and --test must both be given, or both omitted")
	}

	query := config.TestQuery{
		Binary: ids.BinaryID(flags.binary),
		Test:   ids.TestName(flags.test),
		FilterCtx: ids.FilterContext{
			BinaryName:  flags.binary,
			PackageName: flags.packageName,
			TestName:    flags.test,
		},
	}
	settings, err := cfg.SettingsForTest(flags.profile, query)
	if err != nil {
		return err
	}
	return enc.Encode(settings)
}
