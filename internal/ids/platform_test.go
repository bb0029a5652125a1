package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformExprCfgMatch(t *testing.T) {
	expr, err := ParsePlatformExpr(`cfg(target_os = "linux")`)
	require.NoError(t, err)

	assert.True(t, expr.Eval(PlatformContext{OS: "linux"}))
	assert.False(t, expr.Eval(PlatformContext{OS: "windows"}))
}

func TestPlatformExprAnyAll(t *testing.T) {
	any, err := ParsePlatformExpr(`any(cfg(target_os = "linux"), cfg(target_os = "macos"))`)
	require.NoError(t, err)
	assert.True(t, any.Eval(PlatformContext{OS: "macos"}))
	assert.False(t, any.Eval(PlatformContext{OS: "windows"}))

	all, err := ParsePlatformExpr(`all(cfg(target_os = "linux"), cfg(target_arch = "x86_64"))`)
	require.NoError(t, err)
	assert.True(t, all.Eval(PlatformContext{OS: "linux", Arch: "x86_64"}))
	assert.False(t, all.Eval(PlatformContext{OS: "linux", Arch: "aarch64"}))
}

func TestPlatformExprNot(t *testing.T) {
	expr, err := ParsePlatformExpr(`not(cfg(target_os = "windows"))`)
	require.NoError(t, err)
	assert.True(t, expr.Eval(PlatformContext{OS: "linux"}))
	assert.False(t, expr.Eval(PlatformContext{OS: "windows"}))
}

func TestNilPlatformExprMatchesEverything(t *testing.T) {
	var expr *PlatformExpr
	assert.True(t, expr.Eval(PlatformContext{OS: "anything"}))
}
