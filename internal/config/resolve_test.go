package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xtr/internal/ids"
)

func compileUser(t *testing.T, userTOML string) *NextestConfig {
	t.Helper()
	raw, loadErrs := LoadLayered(nil, &ParsedSource{
		Source: Source{Path: "nextest.toml", Kind: SourceUser},
		Content: []byte(userTOML),
	})
	require.False(t, loadErrs.HasErrors(), "%v", loadErrs)
	cfg, compileErrs, _ := Compile(raw, nil)
	require.False(t, compileErrs.HasErrors(), "%v", compileErrs)
	cfg.ApplyBuildPlatforms(BuildPlatform{Host: ids.PlatformContext{OS: "linux", Arch: "x86_64"}})
	return cfg
}

func TestSettingsForTestFirstMatchingOverrideWins(t *testing.T) {
	cfg := compileUser(t, `
[[profile.default.overrides]]
filter = 'package("slow-crate")'
test-threads = 1

[[profile.default.overrides]]
filter = 'all()'
test-threads = 8
`)

	settings, err := cfg.SettingsForTest("default", TestQuery{
		FilterCtx: ids.FilterContext{PackageName: "slow-crate"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, settings.TestThreads, "first matching override (package-specific) must win over the later catch-all")

	settings2, err := cfg.SettingsForTest("default", TestQuery{
		FilterCtx: ids.FilterContext{PackageName: "other-crate"},
	})
	require.NoError(t, err)
	assert.Equal(t, 8, settings2.TestThreads)
}

func TestSettingsForTestPlatformGating(t *testing.T) {
	cfg := compileUser(t, `
[[profile.default.overrides]]
platform = 'cfg(target_os = "windows")'
filter = 'all()'
test-threads = 2
`)

	settings, err := cfg.SettingsForTest("default", TestQuery{FilterCtx: ids.FilterContext{}})
	require.NoError(t, err)
	assert.NotEqual(t, 2, settings.TestThreads, "override scoped to windows must not apply on the linux host used in this test")
}

func TestSettingsForTestBenchHasNoFallbackToSlowTimeout(t *testing.T) {
	cfg := compileUser(t, `
[profile.default]
[profile.default.slow-timeout]
period = "30s"
grace-period = "5s"
on-timeout = "fail"
`)

	settings, err := cfg.SettingsForTest("default", TestQuery{IsBench: true})
	require.NoError(t, err)
	assert.Zero(t, settings.SlowTimeout.Period.Duration, "bench queries must not fall back to the non-bench slow-timeout (pinned Open Question decision)")
}

func TestSettingsForTestUnknownProfileErrors(t *testing.T) {
	cfg := compileUser(t, "")
	_, err := cfg.SettingsForTest("does-not-exist", TestQuery{})
	assert.Error(t, err)
}

func TestListSettingsSelectsWrapperScript(t *testing.T) {
	cfg := compileUser(t, `
[[scripts]]
id = "my-wrapper"
kind = "wrapper"
command = ["./wrap.sh"]

[[profile.default.overrides]]
filter = 'all()'
wrapper-script = "my-wrapper"
`)

	sid, err := cfg.ListSettings("default", TestQuery{})
	require.NoError(t, err)
	assert.Equal(t, ids.ScriptID("my-wrapper"), sid)
}
