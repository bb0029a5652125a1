// Package cmd wires the xtr CLI surface: Cobra subcommands that parse flags,
// discover test binaries and cargo-metadata (both external collaborators),
// and hand a fully-formed request to the internal execution engine. No
// scheduling, retry, or recording logic lives here.
package cmd

import (
	"errors"
	"os"

	"xtr/internal/dispatch"

	"github.com/spf13/cobra"
)

// Exit codes for the xtr binary.
const (
	// ExitSuccess indicates every test passed.
	ExitSuccess = 0
	// ExitTestFailure indicates at least one test failed.
	ExitTestFailure = 1
	// ExitCancelled indicates the run was cancelled before completion.
	ExitCancelled = 2
	// ExitConfigError indicates a pre-flight configuration or build error.
	ExitConfigError = 3
	// ExitNoTestsRun indicates no tests ran, when configured to treat that as an error.
	ExitNoTestsRun = 4
)

// rootCmd is the base command for the xtr application.
var rootCmd = &cobra.Command{
	Use: "xtr",
	Short: "A concurrency-limited, per-test-process runner for compiled test binaries",
	Long: `xtr discovers compiled test binaries, lists their embedded cases, and
executes each case as an isolated child process under a concurrency-limited
scheduler with per-test configuration, retries, timeouts, grace-period
termination, output capture, and persistent run recording.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command, typically injected at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the CLI entry point called from main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "xtr version %s\n".Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps a returned error to one of the semantic exit codes above.
func getExitCode(err error) int {
	var cancelled *dispatch.CancelledError
	if errors.As(err, &cancelled) {
		return ExitCancelled
	}

	var noTests *dispatch.NoTestsRunError
	if errors.As(err, &noTests) {
		return ExitNoTestsRun
	}

	var testFailure *dispatch.TestsFailedError
	if errors.As(err, &testFailure) {
		return ExitTestFailure
	}

	return ExitConfigError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newShowConfigCmd())
	rootCmd.AddCommand(newRerunPruneCmd())
}
