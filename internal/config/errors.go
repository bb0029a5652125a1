// Package config resolves layered TOML profile/override sources into a
// per-test effective configuration.
package config

import (
	"fmt"
	"strings"
)

// Stage tags which phase of config handling produced an error, matching
// this error taxonomy.
type Stage string

const (
	// StageParse covers file-syntax, schema, and unknown-key errors.
	StageParse Stage = "parse"
	// StageCompile covers platform predicate, filterset syntax, unknown
	// groups/scripts, and inheritance-cycle errors.
	StageCompile Stage = "compile"
)

// ConfigError is a single structured error produced while loading or
// compiling configuration. Config errors are always pre-flight: runtime
// paths assume a valid config ("Config errors are raised at
// load time only").
type ConfigError struct {
	Stage Stage
	Source string // file path the error originated from, if any
	Profile string // profile name, if the error is profile-scoped
	Message string
}

// Error implements the error interface.
func (e ConfigError) Error() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(string(e.Stage))
	if e.Source != "" {
		fmt.Fprintf(&b, " %s", e.Source)
	}
	if e.Profile != "" {
		fmt.Fprintf(&b, " profile=%s", e.Profile)
	}
	b.WriteString("] ")
	b.WriteString(e.Message)
	return b.String()
}

// ConfigErrors collects every error accumulated while compiling a
// NextestConfig. A single bad override or group does not abort the rest
// of compilation (: "Errors accumulate into a vector;
// a single bad override does not abort neighboring overrides"), so
// callers gather every error found and report them together.
type ConfigErrors []ConfigError

// Error implements the error interface for the collection.
func (es ConfigErrors) Error() string {
	switch len(es) {
	case 0:
		return "no config errors"
	case 1:
		return es[0].Error()
	default:
		msgs := make([]string, len(es))
		for i, e := range es {
			msgs[i] = e.Error()
		}
		return fmt.Sprintf("%d config errors: %s", len(es), strings.Join(msgs, "; "))
	}
}

// HasErrors reports whether any error has been collected.
func (es ConfigErrors) HasErrors() bool { return len(es) > 0 }

// Add appends a new error to the collection.
func (es *ConfigErrors) Add(stage Stage, source, profile, format string, args...interface{}) {
	*es = append(*es, ConfigError{
		Stage: stage,
		Source: source,
		Profile: profile,
		Message: fmt.Sprintf(format, args...),
	})
}

// AsError returns es as an error, or nil if it is empty — the standard
// pattern for returning an accumulated-errors collection from a function
// that may have nothing to report.
func (es ConfigErrors) AsError() error {
	if len(es) == 0 {
		return nil
	}
	return es
}
