package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"xtr/internal/config"
	"xtr/internal/dispatch"
	"xtr/internal/discover"
	"xtr/internal/ids"
	"xtr/internal/queue"
	"xtr/internal/record"
	"xtr/internal/record/rerun"
	"xtr/internal/report"
	"xtr/internal/scripts"
	"xtr/internal/supervisor"
	"xtr/pkg/logging"
)

const cmdSubsystem = "cmd"

type runFlags struct {
	profile string
	configPath string
	filterExpr string
	archiveDir string
	maxOutputSize int64
	cargoMetadata string
	rerunFile string
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}
	c := &cobra.Command{
		Use: "run BINARY [BINARY...]",
		Short: "List and execute every test case in the given binaries",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), args, flags)
		},
	}
	c.Flags().StringVar(&flags.profile, "profile", "default", "nextest profile to run under")
	c.Flags().StringVar(&flags.configPath, "config", "", "path to a repo nextest.toml (optional; the embedded default is always layered in)")
	c.Flags().StringVar(&flags.filterExpr, "filter", "", "filterset expression restricting which tests run")
	c.Flags().StringVar(&flags.archiveDir, "archive-dir", ".xtr/runs", "base directory recorded run archives are written under")
	c.Flags().Int64Var(&flags.maxOutputSize, "max-output-size", 0, "override the profile's archive.max-output-size (bytes); 0 uses the profile's own setting")
	c.Flags().StringVar(&flags.cargoMetadata, "cargo-metadata", "", "path to a pre-built cargo-metadata JSON blob, embedded verbatim into the archive")
	c.Flags().StringVar(&flags.rerunFile, "rerun-from", "", "path to a previous run's store.zip archive, for computing this run's rerun-info")
	return c
}

func runRun(ctx context.Context, binaryPaths []string, flags *runFlags) error {
	cfg, err := loadCompiledConfig(flags.configPath)
	if err != nil {
		return err
	}

	binaries := make([]discover.Binary, len(binaryPaths))
	for i, p := range binaryPaths {
		binaries[i] = discover.Binary{
			ID: ids.BinaryID(filepath.Base(p)),
			Package: filepath.Base(filepath.Dir(p)),
			Path: p,
		}
	}

	var cliFilter *ids.FilterExpr
	if flags.filterExpr != "" {
		cliFilter, err = ids.ParseFilterExpr(flags.filterExpr)
		if err != nil {
			return fmt.Errorf("parsing --filter: %w", err)
		}
	}

	var prevRerun *rerun.Info
	if flags.rerunFile != "" {
		prevRerun, err = loadRerunInfo(flags.rerunFile)
		if err != nil {
			return err
		}
	}

	runID := uuid.New().String()
	scriptRunner := scripts.NewRunner(runID, flags.profile)
	runSetupScripts(ctx, cfg, scriptRunner)

	packets, settingsByPacket, listing, err := buildPackets(cfg, flags.profile, runID, binaries, cliFilter)
	if err != nil {
		return err
	}
	if len(packets) == 0 {
		return &dispatch.NoTestsRunError{}
	}

	maxOutputSize := int(settingsByPacket[packets[0]].Archive.MaxOutputSize)
	if flags.maxOutputSize > 0 {
		maxOutputSize = int(flags.maxOutputSize)
	}
	if maxOutputSize <= 0 {
		maxOutputSize = 1 << 20
	}

	rec, err := record.New(flags.archiveDir, runID, maxOutputSize, nil)
	if err != nil {
		return fmt.Errorf("opening run archive: %w", err)
	}
	defer rec.Close()

	if flags.cargoMetadata != "" {
		raw, err := os.ReadFile(flags.cargoMetadata)
		if err != nil {
			return fmt.Errorf("reading --cargo-metadata: %w", err)
		}
		if err := rec.WriteCargoMetadata(raw); err != nil {
			return fmt.Errorf("embedding cargo-metadata: %w", err)
		}
	}

	testThreads := resolveRunTestThreads(settingsByPacket, packets)
	slots := newSlotTracker(testThreads, cfg.TestGroups)

	eventRec := record.NewEventRecorder(rec, time.Now)
	outcomes := newOutcomeCollector()
	reporter := &runReporter{inner: eventRec, slots: slots, outcomes: outcomes}

	spawn := makeSpawnFunc(runID, flags.profile, binaries, scriptRunner, cfg, slots)

	d := dispatch.New(testThreads, cfg.TestGroups, reporter, spawn)
	settingsFor := func(p *queue.Packet) config.Settings { return settingsByPacket[p] }

	runErr := d.Run(ctx, runID, packets, settingsFor)

	if err := rec.WriteTestList(listing); err != nil {
		logging.Warn(cmdSubsystem, "writing test-list.json: %v", err)
	}
	newInfo := rerun.ComputeAll(prevRerun, listing, outcomes.snapshot())
	if err := rec.WriteRerunInfo(newInfo); err != nil {
		logging.Warn(cmdSubsystem, "writing rerun-info.json: %v", err)
	}

	if _, err := rec.Finish(); err != nil {
		logging.Warn(cmdSubsystem, "finishing run archive: %v", err)
	}

	return runErr
}

// loadCompiledConfig layers the embedded default with an optional
// repo-supplied file and compiles it against the host platform. Locating
// nextest.toml on disk is explicitly out of scope; the path
// is whatever the caller names via --config.
func loadCompiledConfig(userConfigPath string) (*config.NextestConfig, error) {
	var user *config.ParsedSource
	if userConfigPath != "" {
		content, err := os.ReadFile(userConfigPath)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", userConfigPath, err)
		}
		user = &config.ParsedSource{
			Source: config.Source{Path: userConfigPath, Kind: config.SourceUser},
			Content: content,
		}
	}

	raw, loadErrs := config.LoadLayered(nil, user)
	if loadErrs.HasErrors() {
		return nil, loadErrs.AsError()
	}

	cfg, compileErrs, warnings := config.Compile(raw, nil)
	for _, w := range warnings {
		logging.Warn(cmdSubsystem, "%s", w)
	}
	if compileErrs.HasErrors() {
		return nil, compileErrs.AsError()
	}

	cfg.ApplyBuildPlatforms(config.BuildPlatform{Host: hostPlatform()})
	return cfg, nil
}

// hostPlatform describes the running process for cfg() predicates,
// passing runtime.GOOS/GOARCH through unchanged as OS/Arch; Go's names
// (e.g. "darwin", "amd64") are not translated to other spellings.
func hostPlatform() ids.PlatformContext {
	env := ""
	if runtime.GOOS == "linux" {
		env = "gnu"
	}
	return ids.PlatformContext{OS: runtime.GOOS, Arch: runtime.GOARCH, Env: env}
}

// runSetupScripts runs every declared setup script once, in the order it
// was declared across the layered config files (config.ScriptConfig's
// DeclOrder). Each script's exported env is collected separately; a
// script does not see the env an earlier one exported.
func runSetupScripts(ctx context.Context, cfg *config.NextestConfig, runner *scripts.Runner) {
	var order []ids.ScriptID
	for id, sc := range cfg.Scripts {
		if sc.Kind == config.ScriptKindSetup {
			order = append(order, id)
		}
	}
	sort.Slice(order, func(i, j int) bool { return cfg.Scripts[order[i]].DeclOrder < cfg.Scripts[order[j]].DeclOrder })
	runner.RunAll(ctx, cfg, order)
}

// buildPackets lists every binary's tests, evaluates each against the
// CLI filter (falling back to the profile's default-filter when no CLI
// filter was given, "Settings-for-test"), and returns the
// resulting packets alongside the settings each needs at dispatch time
// and the rerun.TestList describing every candidate's filter verdict.
func buildPackets(cfg *config.NextestConfig, profile, runID string, binaries []discover.Binary, cliFilter *ids.FilterExpr) ([]*queue.Packet, map[*queue.Packet]config.Settings, rerun.TestList, error) {
	var packets []*queue.Packet
	settingsByPacket := make(map[*queue.Packet]config.Settings)
	listing := make(rerun.TestList)

	for _, bin := range binaries {
		tests, err := discover.ListTests(context.Background(), bin)
		if err != nil {
			logging.Warn(cmdSubsystem, "listing %s: %v", bin.ID, err)
			listing[bin.ID] = rerun.Listing{Presence: rerun.BinaryNotPresent}
			continue
		}

		byTest := make(map[ids.TestName]ids.FilterMatch, len(tests))
		for _, test := range tests {
			filterCtx := ids.FilterContext{BinaryName: string(bin.ID), PackageName: bin.Package, TestName: string(test)}
			query := config.TestQuery{Binary: bin.ID, Test: test, FilterCtx: filterCtx}
			settings, err := cfg.SettingsForTest(profile, query)
			if err != nil {
				return nil, nil, nil, err
			}

			match := ids.FilterMatch{Matches: true}
			switch {
			case cliFilter != nil && !cliFilter.Eval(filterCtx):
				match = ids.FilterMatch{Matches: false, Reason: ids.MismatchExpression}
			case cliFilter == nil && settings.DefaultFilter != nil && !settings.DefaultFilter.Eval(filterCtx):
				match = ids.FilterMatch{Matches: false, Reason: ids.MismatchDefaultFilter}
			}
			byTest[test] = match

			if !match.Matches {
				continue
			}
			p := queue.NewPacket(runID, bin.ID, test, settings.Group, settings.ThreadsRequired, settings.Retries)
			packets = append(packets, p)
			settingsByPacket[p] = settings
		}
		listing[bin.ID] = rerun.Listing{Presence: rerun.BinaryPresent, Tests: byTest}
	}

	return packets, settingsByPacket, listing, nil
}

// resolveRunTestThreads picks the dispatcher's global permit count. Every
// packet shares one profile's test-threads value in practice (it is not
// a per-override knob any repo config in this scheme varies mid-run), so
// the first packet's resolved settings stand in for the whole run.
func resolveRunTestThreads(settingsByPacket map[*queue.Packet]config.Settings, packets []*queue.Packet) int {
	if len(packets) == 0 {
		return runtime.NumCPU()
	}
	if threads := settingsByPacket[packets[0]].TestThreads; threads > 0 {
		return threads
	}
	return runtime.NumCPU()
}

func loadRerunInfo(path string) (*rerun.Info, error) {
	r, err := record.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening rerun archive %s: %w", path, err)
	}
	defer r.Close()
	raw, err := r.Meta("rerun-info.json")
	if err != nil {
		return nil, fmt.Errorf("reading rerun-info.json from %s: %w", path, err)
	}
	var info rerun.Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("parsing rerun-info.json: %w", err)
	}
	return &info, nil
}

// outcomeCollector accumulates per-test outcomes from the event stream so
// the post-run rerun.ComputeAll call has concrete rerun.Outcome values to
// fold, without threading a second reporter through the dispatcher.
type outcomeCollector struct {
	mu sync.Mutex
	data rerun.Outcomes
}

func newOutcomeCollector() *outcomeCollector {
	return &outcomeCollector{data: make(rerun.Outcomes)}
}

func (c *outcomeCollector) record(binary ids.BinaryID, test ids.TestName, outcome rerun.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byTest, ok := c.data[binary]
	if !ok {
		byTest = make(map[ids.TestName]rerun.Outcome)
		c.data[binary] = byTest
	}
	byTest[test] = outcome
}

func (c *outcomeCollector) snapshot() rerun.Outcomes {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

// runReporter wraps the archive's EventRecorder with two side effects the
// recorder itself has no business knowing about: releasing the
// NEXTEST_*_SLOT numbers a finished attempt held, and folding its result
// into the rerun-info outcome collector.
type runReporter struct {
	inner report.Reporter
	slots *slotTracker
	outcomes *outcomeCollector
}

func (r *runReporter) StartRun(runID string) { r.inner.StartRun(runID) }

func (r *runReporter) Event(ev report.Event) {
	if ev.Kind == report.EventTestFinished {
		r.slots.release(ev.AttemptID)
		r.outcomes.record(ev.AttemptID.Binary, ev.AttemptID.Test, outcomeFor(ev.Outcome))
	}
	r.inner.Event(ev)
}

func (r *runReporter) FinishRun(summary report.RunSummary) { r.inner.FinishRun(summary) }

func outcomeFor(o report.Outcome) rerun.Outcome {
	if o.Passed {
		return rerun.OutcomePassed
	}
	return rerun.OutcomeFailed
}

// slotTracker assigns each live attempt a global and (if grouped) a
// per-group slot number from internal/queue.SlotAllocator, recording the
// assignment so the reporter's TestFinished event can release it.
type slotTracker struct {
	global *queue.SlotAllocator
	groups map[ids.GroupID]*queue.SlotAllocator

	mu sync.Mutex
	issued map[string]issuedSlots
}

type issuedSlots struct {
	global int
	group int
	hasGroup bool
	groupID ids.GroupID
}

func newSlotTracker(testThreads int, groupConfigs map[ids.GroupID]config.TestGroupConfig) *slotTracker {
	groups := make(map[ids.GroupID]*queue.SlotAllocator, len(groupConfigs))
	for id, gc := range groupConfigs {
		groups[id] = queue.NewSlotAllocator(gc.MaxThreads)
	}
	return &slotTracker{
		global: queue.NewSlotAllocator(testThreads),
		groups: groups,
		issued: make(map[string]issuedSlots),
	}
}

// acquire blocks until a global slot (and, if group is non-global, a
// group slot) is free. The dispatcher has already admitted this attempt
// through its own concurrency semaphores before calling spawn, so these
// acquisitions complete promptly.
func (t *slotTracker) acquire(ctx context.Context, attempt ids.AttemptID, group ids.GroupID) (globalSlot int, groupSlot int, hasGroup bool, err error) {
	globalSlot, err = t.global.Acquire(ctx)
	if err != nil {
		return 0, 0, false, err
	}

	hasGroup = !group.IsGlobal()
	if hasGroup {
		if alloc, ok := t.groups[group]; ok {
			groupSlot, err = alloc.Acquire(ctx)
			if err != nil {
				t.global.Release(globalSlot)
				return 0, 0, false, err
			}
		} else {
			hasGroup = false
		}
	}

	t.mu.Lock()
	t.issued[attempt.String()] = issuedSlots{global: globalSlot, group: groupSlot, hasGroup: hasGroup, groupID: group}
	t.mu.Unlock()
	return globalSlot, groupSlot, hasGroup, nil
}

func (t *slotTracker) release(attempt ids.AttemptID) {
	t.mu.Lock()
	slots, ok := t.issued[attempt.String()]
	delete(t.issued, attempt.String())
	t.mu.Unlock()
	if !ok {
		return
	}
	t.global.Release(slots.global)
	if slots.hasGroup {
		if alloc, ok := t.groups[slots.groupID]; ok {
			alloc.Release(slots.group)
		}
	}
}

// makeSpawnFunc builds the dispatch.SpawnFunc that turns a resolved
// packet into an actual child-process invocation: the settings'
// wrapper-script (if any) prepended to the binary, run with the exact
// case selected, and the full NEXTEST_* environment contract plus every
// setup script's contributed env.
func makeSpawnFunc(runID, profile string, binaries []discover.Binary, scriptRunner *scripts.Runner, cfg *config.NextestConfig, slots *slotTracker) dispatch.SpawnFunc {
	byID := make(map[ids.BinaryID]discover.Binary, len(binaries))
	for _, b := range binaries {
		byID[b.ID] = b
	}

	setupDeps := make([]ids.ScriptID, 0, len(cfg.Scripts))
	for id, sc := range cfg.Scripts {
		if sc.Kind == config.ScriptKindSetup {
			setupDeps = append(setupDeps, id)
		}
	}
	sort.Slice(setupDeps, func(i, j int) bool { return cfg.Scripts[setupDeps[i]].DeclOrder < cfg.Scripts[setupDeps[j]].DeclOrder })

	return func(p *queue.Packet, settings config.Settings, attempt ids.AttemptID) supervisor.Options {
		bin := byID[p.Binary]

		globalSlot, groupSlot, hasGroup, err := slots.acquire(context.Background(), attempt, settings.Group)
		if err != nil {
			globalSlot, hasGroup = 0, false
		}

		command := []string{bin.Path, "--exact", string(p.Test)}
		if settings.WrapperScript != "" {
			if sc, ok := cfg.Scripts[settings.WrapperScript]; ok && len(sc.Command) > 0 {
				command = append(append([]string{}, sc.Command...), command...)
			}
		}

		env := append(os.Environ(), buildTestEnv(runID, profile, p, attempt, settings, globalSlot, groupSlot, hasGroup)...)
		env = append(env, scriptRunner.EnvFor(setupDeps)...)

		return supervisor.Options{
			Command: command,
			Env: env,
			SlowTimeout: settings.SlowTimeout,
			LeakTimeout: settings.LeakTimeout,
		}
	}
}

// buildTestEnv renders "Environment exposed to tests" table
// for one attempt.
func buildTestEnv(runID, profile string, p *queue.Packet, attempt ids.AttemptID, settings config.Settings, globalSlot, groupSlot int, hasGroup bool) []string {
	group := "@global"
	groupSlotStr := "none"
	if hasGroup {
		group = string(settings.Group)
		groupSlotStr = fmt.Sprintf("%d", groupSlot)
	}

	stressCurrent, stressTotal := "none", "none"
	if attempt.StressIdx != nil {
		stressCurrent = fmt.Sprintf("%d", *attempt.StressIdx)
		stressTotal = stressCurrent
	}

	return []string{
		"NEXTEST=1",
		"NEXTEST_RUN_ID=" + runID,
		"NEXTEST_RUN_MODE=test",
		"NEXTEST_BINARY_ID=" + string(p.Binary),
		"NEXTEST_TEST_NAME=" + string(p.Test),
		fmt.Sprintf("NEXTEST_ATTEMPT=%d", attempt.Attempt),
		fmt.Sprintf("NEXTEST_TOTAL_ATTEMPTS=%d", p.TotalAttempts()),
		"NEXTEST_ATTEMPT_ID=" + attempt.String(),
		"NEXTEST_STRESS_CURRENT=" + stressCurrent,
		"NEXTEST_STRESS_TOTAL=" + stressTotal,
		fmt.Sprintf("NEXTEST_TEST_GLOBAL_SLOT=%d", globalSlot),
		"NEXTEST_TEST_GROUP=" + group,
		"NEXTEST_TEST_GROUP_SLOT=" + groupSlotStr,
		"NEXTEST_PROFILE=" + profile,
	}
}
