package config

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// ParsedSource is one already-read config file plus its priority tier.
// Discovering these files on disk is explicitly out of scope; callers
// hand the core already-read bytes.
type ParsedSource struct {
	Source Source
	Content []byte
}

// LoadLayered parses the embedded default plus every tool config (in
// order) plus an optional user config, and merges them into a single set
// of raw per-profile tables using a three-way precedence: user files are
// higher-priority than tool files than the embedded default. Overrides
// from every source are concatenated highest-priority source first, each
// file's internal declaration order preserved, since the
// "first matching override wins" rule depends on that
// combined order.
func LoadLayered(toolConfigs []ParsedSource, userConfig *ParsedSource) (*rawConfig, ConfigErrors) {
	var errs ConfigErrors

	merged := &rawConfig{
		Profile: make(map[string]rawProfile),
		TestGroups: make(map[string]rawGroup),
	}

	embeddedSource := Source{Path: "<embedded-default>", Kind: SourceEmbedded}
	embedded, err := parseSource([]byte(embeddedDefaultTOML), embeddedSource.Path)
	if err != nil {
		errs.Add(StageParse, "<embedded-default>", "", "embedded default profile failed to parse: %v — this is a logic error in the tool itself", err)
		return nil, errs
	}
	applyRawConfig(merged, embedded, embeddedSource)

	for _, ts := range toolConfigs {
		raw, err := parseSource(ts.Content, ts.Source.Path)
		if err != nil {
			errs.Add(StageParse, ts.Source.Path, "", "%v", err)
			continue
		}
		applyRawConfig(merged, raw, ts.Source)
	}

	if userConfig != nil {
		raw, err := parseSource(userConfig.Content, userConfig.Source.Path)
		if err != nil {
			errs.Add(StageParse, userConfig.Source.Path, "", "%v", err)
			return merged, errs
		}
		applyRawConfig(merged, raw, userConfig.Source)
	}

	return merged, errs
}

func parseSource(content []byte, path string) (*rawConfig, error) {
	var raw rawConfig
	if err := toml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &raw, nil
}

// applyRawConfig layers src on top of dst in place: per-profile scalar
// fields overwrite when present in src, group/script lists are appended
// and src's overrides are placed ahead of dst's (each keeping its own
// declaration order) rather than replacing them.
func applyRawConfig(dst, src *rawConfig, origin Source) {
	for name, srcProfile := range src.Profile {
		dstProfile := dst.Profile[name]
		dst.Profile[name] = mergeRawProfile(dstProfile, srcProfile)
	}
	for name, g := range src.TestGroups {
		dst.TestGroups[name] = g
		dst.taggedGroups = append(dst.taggedGroups, taggedGroup{name: name, group: g, source: origin})
	}
	for _, s := range src.Scripts {
		dst.taggedScripts = append(dst.taggedScripts, taggedScript{script: s, source: origin})
	}
	dst.Scripts = append(dst.Scripts, src.Scripts...)
	dst.Experimental = append(dst.Experimental, src.Experimental...)
}

func mergeRawProfile(dst, src rawProfile) rawProfile {
	if src.Extends != "" {
		dst.Extends = src.Extends
	}
	if src.DefaultFilter != "" {
		dst.DefaultFilter = src.DefaultFilter
	}
	if src.TestThreads != nil {
		dst.TestThreads = src.TestThreads
	}
	if src.ThreadsRequired != nil {
		dst.ThreadsRequired = src.ThreadsRequired
	}
	if src.Retries != nil {
		dst.Retries = src.Retries
	}
	if src.SlowTimeout != nil {
		dst.SlowTimeout = src.SlowTimeout
	}
	if src.Bench != nil {
		dst.Bench = src.Bench
	}
	if src.LeakTimeout != nil {
		dst.LeakTimeout = src.LeakTimeout
	}
	if src.FailureOutput != "" {
		dst.FailureOutput = src.FailureOutput
	}
	if src.SuccessOutput != "" {
		dst.SuccessOutput = src.SuccessOutput
	}
	if src.Junit != nil {
		dst.Junit = src.Junit
	}
	if src.StatusLevel != "" {
		dst.StatusLevel = src.StatusLevel
	}
	if src.FinalStatusLevel != "" {
		dst.FinalStatusLevel = src.FinalStatusLevel
	}
	if src.MaxFail != "" {
		dst.MaxFail = src.MaxFail
	}
	if src.RunExtraArgs != nil {
		dst.RunExtraArgs = src.RunExtraArgs
	}
	if src.Archive != nil {
		dst.Archive = src.Archive
	}
	if src.Group != "" {
		dst.Group = src.Group
	}
	if src.WrapperScript != "" {
		dst.WrapperScript = src.WrapperScript
	}
	// src is the higher-priority layer, so its overrides are matched first.
	dst.Overrides = append(append([]rawOverride{}, src.Overrides...), dst.Overrides...)
	return dst
}
