// Package ids holds the small, dependency-free identifier and primitive
// types shared by every other xtr package: typed durations, retry
// policies, binary/test/script/group identifiers, and the filterset and
// platform-predicate grammars. These are the leaves every other package
// builds on.
package ids

import (
	"fmt"
	"strings"
)

// BinaryID identifies one compiled test binary within a workspace, e.g.
// "my-crate::lib" or "my-crate::tests/integration".
type BinaryID string

// TestName identifies one case within a binary's --list output. Its shape
// is opaque to xtr ("Non-goals").
type TestName string

// GroupID names a test group. The zero value is the implicit
// global group.
type GroupID string

// GlobalGroup is the implicit group every test belongs to when it does not
// join a named group.
const GlobalGroup GroupID = ""

// IsGlobal reports whether g is the implicit global group.
func (g GroupID) IsGlobal() bool { return g == GlobalGroup }

// ScriptID names a setup or wrapper script. Tool-provided
// scripts carry a reserved "@tool:<tool>:<name>" prefix.
type ScriptID string

const toolScriptPrefix = "@tool:"

// IsToolProvided reports whether id uses the reserved "@tool:" namespace.
func (id ScriptID) IsToolProvided() bool {
	return strings.HasPrefix(string(id), toolScriptPrefix)
}

// ToolName returns the tool name component of a tool-provided script ID,
// and false if id is not tool-provided or malformed.
func (id ScriptID) ToolName() (string, bool) {
	if !id.IsToolProvided() {
		return "", false
	}
	rest := strings.TrimPrefix(string(id), toolScriptPrefix)
	idx := strings.Index(rest, ":")
	if idx < 0 {
		return "", false
	}
	return rest[:idx], true
}

// ValidateRepoScriptID checks that a script ID declared in a repo config
// does not use the reserved tool-prefix namespace (:
// "tool files may only declare groups/scripts prefixed with @tool:<tool>:;
// repo files may not use that prefix").
func ValidateRepoScriptID(id ScriptID) error {
	if id.IsToolProvided() {
		return fmt.Errorf("script id %q uses the reserved %q namespace, which only tool configs may declare", id, toolScriptPrefix)
	}
	return nil
}

// ValidateToolScriptID checks that a script ID declared in a tool config
// uses that tool's own reserved namespace.
func ValidateToolScriptID(id ScriptID, tool string) error {
	name, ok := id.ToolName()
	if !ok {
		return fmt.Errorf("script id %q declared by tool config %q must use the %q%s: prefix", id, tool, toolScriptPrefix, tool)
	}
	if name != tool {
		return fmt.Errorf("script id %q declared by tool config %q must use its own tool name, not %q", id, tool, name)
	}
	return nil
}

// ValidateRepoGroupID applies the same reserved-namespace rule as
// ValidateRepoScriptID to test group names.
func ValidateRepoGroupID(id GroupID) error {
	if strings.HasPrefix(string(id), toolScriptPrefix) {
		return fmt.Errorf("test group %q uses the reserved %q namespace, which only tool configs may declare", id, toolScriptPrefix)
	}
	return nil
}

// AttemptID is the stable, loggable identifier for one supervised
// execution attempt (glossary: "Attempt ID").
type AttemptID struct {
	RunID string
	Binary BinaryID
	Test TestName
	StressIdx *int
	Attempt int
}

// String renders "run-id:binary-id:test-name(@stress-i)?#attempt".
func (a AttemptID) String() string {
	var b strings.Builder
	b.WriteString(a.RunID)
	b.WriteByte(':')
	b.WriteString(string(a.Binary))
	b.WriteByte(':')
	b.WriteString(string(a.Test))
	if a.StressIdx != nil {
		fmt.Fprintf(&b, "@stress-%d", *a.StressIdx)
	}
	fmt.Fprintf(&b, "#%d", a.Attempt)
	return b.String()
}
