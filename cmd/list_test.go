package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunListReportsFilterVerdicts(t *testing.T) {
	path := fakeListBinary(t, "it_works", "slow_integration")

	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)

	flags := &listFlags{profile: "default", filterExpr: `not(test("slow_"))`}
	require.NoError(t, runList(context.Background(), c, []string{path}, flags))

	var entries []listEntry
	require.NoError(t, json.Unmarshal(out.Bytes(), &entries))
	require.Len(t, entries, 2)

	byName := make(map[string]listEntry, len(entries))
	for _, e := range entries {
		byName[string(e.Test)] = e
	}
	assert.True(t, byName["it_works"].Matches)
	assert.False(t, byName["slow_integration"].Matches)
	assert.NotEmpty(t, byName["slow_integration"].Reason)
}

func TestRunListRejectsBadFilter(t *testing.T) {
	path := fakeListBinary(t, "a")
	var out bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)

	flags := &listFlags{profile: "default", filterExpr: "not a valid filter((("}
	err := runList(context.Background(), c, []string{path}, flags)
	assert.Error(t, err)
}
