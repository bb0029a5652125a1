// Package scripts runs a profile's setup-script phase and parses the
// resulting environment-variable maps.
package scripts

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"xtr/internal/config"
	"xtr/internal/ids"
	"xtr/pkg/logging"
)

const subsystem = "scripts"

// Runner executes setup scripts in declaration order and remembers each
// one's resulting environment map so EnvFor can look them up later.
type Runner struct {
	runID string
	profile string

	results map[ids.ScriptID]Result
}

// Result is the outcome of running one setup script.
type Result struct {
	ID ids.ScriptID
	Env map[string]string // nil if the script failed
	Err error
	Elapsed time.Duration
}

// NewRunner builds a Runner for one run.
func NewRunner(runID, profile string) *Runner {
	return &Runner{runID: runID, profile: profile, results: make(map[ids.ScriptID]Result)}
}

// RunAll executes every setup script in cfg, strictly in declaration
// order ("Scripts run strictly in declaration order"), and
// records each one's Result. A failing script does not stop the phase —
// dependent tests still run, just without its env contributions.
func (r *Runner) RunAll(ctx context.Context, cfg *config.NextestConfig, order []ids.ScriptID) {
	for _, id := range order {
		sc, ok := cfg.Scripts[id]
		if !ok || sc.Kind != config.ScriptKindSetup {
			continue
		}
		res := r.runOne(ctx, sc)
		r.results[id] = res
		if res.Err != nil {
			logging.Warn(subsystem, "setup script %s failed, dependent tests continue without its env: %v", id, res.Err)
		}
	}
}

// EnvFor returns the union of every successful setup script's
// environment map that id depends on, in the order given. Scripts that
// failed contribute nothing ("A failing script yields no
// map; dependent tests still run but without its contributions").
func (r *Runner) EnvFor(deps []ids.ScriptID) []string {
	var env []string
	for _, dep := range deps {
		res, ok := r.results[dep]
		if !ok || res.Env == nil {
			continue
		}
		for k, v := range res.Env {
			env = append(env, k+"="+v)
		}
	}
	return env
}

// Result returns the recorded result for a setup script, and false if it
// was never run.
func (r *Runner) Result(id ids.ScriptID) (Result, bool) {
	res, ok := r.results[id]
	return res, ok
}

func (r *Runner) runOne(ctx context.Context, sc *config.ScriptConfig) Result {
	start := time.Now()
	envFile, err := os.CreateTemp("", "xtr-env-*")
	if err != nil {
		return Result{ID: sc.ID, Err: fmt.Errorf("creating env tempfile: %w", err)}
	}
	envPath := envFile.Name()
	envFile.Close()
	defer os.Remove(envPath)

	if len(sc.Command) == 0 {
		return Result{ID: sc.ID, Err: fmt.Errorf("script %s has no command", sc.ID)}
	}

	cmd := exec.CommandContext(ctx, sc.Command[0], sc.Command[1:]...)
	cmd.Env = append(os.Environ(),
		"NEXTEST=1",
		"NEXTEST_PROFILE="+r.profile,
		"NEXTEST_ENV="+envPath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	elapsed := time.Since(start)
	if runErr != nil {
		return Result{ID: sc.ID, Err: fmt.Errorf("setup script %s: %w (stderr: %s)", sc.ID, runErr, stderr.String()), Elapsed: elapsed}
	}

	contents, err := os.ReadFile(envPath)
	if err != nil {
		return Result{ID: sc.ID, Err: fmt.Errorf("reading env file for %s: %w", sc.ID, err), Elapsed: elapsed}
	}

	env, err := ParseEnvFile(contents)
	if err != nil {
		return Result{ID: sc.ID, Err: fmt.Errorf("parsing env file for %s: %w", sc.ID, err), Elapsed: elapsed}
	}

	return Result{ID: sc.ID, Env: env, Elapsed: elapsed}
}

// ParseEnvFile parses the `KEY=VALUE\n` lines a setup script's tempfile
// produces ("Setup-script env file format"). KEY must be
// non-empty and must not contain '='; VALUE is everything up to the next
// newline. An empty file yields an empty, non-nil map.
func ParseEnvFile(contents []byte) (map[string]string, error) {
	env := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(contents))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			return nil, fmt.Errorf("line %d: expected KEY=VALUE, got %q", lineNo, line)
		}
		key := line[:idx]
		value := line[idx+1:]
		env[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning env file: %w", err)
	}
	return env, nil
}
