package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunShowConfigSummaryIncludesDefaultProfile(t *testing.T) {
	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)

	require.NoError(t, runShowConfig(c, &showConfigFlags{profile: "default"}))

	var summary profileSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Contains(t, summary.Profiles, "default")
}

func TestRunShowConfigResolvesOneTest(t *testing.T) {
	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)

	flags := &showConfigFlags{profile: "default", binary: "crate::lib", test: "it_works", packageName: "crate"}
	require.NoError(t, runShowConfig(c, flags))

	var settings map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &settings))
	assert.Contains(t, settings, "FailureOutput")
}

func TestRunShowConfigRequiresBothBinaryAndTest(t *testing.T) {
	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)

	err := runShowConfig(c, &showConfigFlags{profile: "default", binary: "crate::lib"})
	assert.Error(t, err)
}
