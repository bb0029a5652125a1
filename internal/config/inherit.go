package config

import "sort"

// detectInheritanceCycles runs Tarjan's strongly-connected-components
// algorithm over the profile "extends" graph and reports every
// non-singleton SCC as a cycle (, "non-singleton SCCs
// are errors listing each cycle representative"). A profile that extends
// itself directly is also reported, since a 1-node SCC with a self-edge
// is still a cycle.
func detectInheritanceCycles(profiles map[string]*Profile) [][]string {
	t := &tarjan{
		profiles: profiles,
		index: make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}

	// Iterate in sorted order so output is deterministic across runs.
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, visited := t.index[name]; !visited {
			t.strongConnect(name)
		}
	}
	return t.cycles
}

type tarjan struct {
	profiles map[string]*Profile
	counter int
	index map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack []string
	cycles [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	if p, ok := t.profiles[v]; ok && p.Extends != "" {
		w := p.Extends
		if _, ok := t.profiles[w]; ok {
			if _, visited := t.index[w]; !visited {
				t.strongConnect(w)
				if t.lowlink[w] < t.lowlink[v] {
					t.lowlink[v] = t.lowlink[w]
				}
			} else if t.onStack[w] {
				if t.index[w] < t.lowlink[v] {
					t.lowlink[v] = t.index[w]
				}
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var component []string
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			component = append(component, w)
			if w == v {
				break
			}
		}

		isCycle := len(component) > 1
		if len(component) == 1 {
			single := component[0]
			if p, ok := t.profiles[single]; ok && p.Extends == single {
				isCycle = true
			}
		}
		if isCycle {
			sort.Strings(component)
			t.cycles = append(t.cycles, component)
		}
	}
}

// resolveInheritance walks extends chains (already validated acyclic by
// detectInheritanceCycles) and returns the fully-merged default settings
// for profile name: each ancestor's SettingsDelta is applied in
// root-to-leaf order so the most-derived profile wins per field.
func resolveInheritance(profiles map[string]*Profile, name string) SettingsDelta {
	var chain []*Profile
	seen := make(map[string]bool)
	cur := name
	for {
		p, ok := profiles[cur]
		if !ok || seen[cur] {
			break
		}
		seen[cur] = true
		chain = append(chain, p)
		if p.Extends == "" {
			break
		}
		cur = p.Extends
	}

	var merged SettingsDelta
	for i := len(chain) - 1; i >= 0; i-- {
		merged = mergeSettingsDelta(merged, chain[i].Defaults)
	}
	return merged
}

// mergeSettingsDelta overlays override onto base, field by field; a
// non-nil field in override always wins.
func mergeSettingsDelta(base, override SettingsDelta) SettingsDelta {
	out := base
	if override.DefaultFilter != nil {
		out.DefaultFilter = override.DefaultFilter
	}
	if override.TestThreads != nil {
		out.TestThreads = override.TestThreads
	}
	if override.ThreadsRequired != nil {
		out.ThreadsRequired = override.ThreadsRequired
	}
	if override.Retries != nil {
		out.Retries = override.Retries
	}
	if override.SlowTimeout != nil {
		out.SlowTimeout = override.SlowTimeout
	}
	if override.BenchSlowTimeout != nil {
		out.BenchSlowTimeout = override.BenchSlowTimeout
	}
	if override.LeakTimeout != nil {
		out.LeakTimeout = override.LeakTimeout
	}
	if override.FailureOutput != nil {
		out.FailureOutput = override.FailureOutput
	}
	if override.SuccessOutput != nil {
		out.SuccessOutput = override.SuccessOutput
	}
	if override.Junit != nil {
		out.Junit = override.Junit
	}
	if override.StatusLevel != nil {
		out.StatusLevel = override.StatusLevel
	}
	if override.FinalStatusLevel != nil {
		out.FinalStatusLevel = override.FinalStatusLevel
	}
	if override.MaxFail != nil {
		out.MaxFail = override.MaxFail
	}
	if override.RunExtraArgs != nil {
		out.RunExtraArgs = override.RunExtraArgs
	}
	if override.Archive != nil {
		out.Archive = override.Archive
	}
	if override.Group != nil {
		out.Group = override.Group
	}
	if override.WrapperScript != nil {
		out.WrapperScript = override.WrapperScript
	}
	return out
}
