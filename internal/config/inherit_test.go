package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectInheritanceCyclesFindsDirectCycle(t *testing.T) {
	profiles := map[string]*Profile{
		"a": {Name: "a", Extends: "b"},
		"b": {Name: "b", Extends: "a"},
		"default": {Name: "default"},
	}

	cycles := detectInheritanceCycles(profiles)
	assert.Len(t, cycles, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, cycles[0])
}

func TestDetectInheritanceCyclesFindsSelfLoop(t *testing.T) {
	profiles := map[string]*Profile{
		"a": {Name: "a", Extends: "a"},
	}
	cycles := detectInheritanceCycles(profiles)
	assert.Len(t, cycles, 1)
	assert.Equal(t, []string{"a"}, cycles[0])
}

func TestDetectInheritanceCyclesAcyclicChainIsClean(t *testing.T) {
	profiles := map[string]*Profile{
		"default": {Name: "default"},
		"ci":       {Name: "ci", Extends: "default"},
		"ci-slow":  {Name: "ci-slow", Extends: "ci"},
	}
	assert.Empty(t, detectInheritanceCycles(profiles))
}

func TestResolveInheritanceMergesRootToLeaf(t *testing.T) {
	base := 1
	override := 4
	profiles := map[string]*Profile{
		"default": {Name: "default", Defaults: SettingsDelta{ThreadsRequired: &base}},
		"ci":      {Name: "ci", Extends: "default", Defaults: SettingsDelta{ThreadsRequired: &override}},
	}

	merged := resolveInheritance(profiles, "ci")
	assert.Equal(t, 4, *merged.ThreadsRequired)
}
