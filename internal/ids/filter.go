package ids

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// MismatchReason explains why a test instance did not match a filter
// (glossary: "Filter-match").
type MismatchReason string

const (
	MismatchIgnored MismatchReason = "ignored"
	MismatchExpression MismatchReason = "expression"
	MismatchPartition MismatchReason = "partition"
	MismatchDefaultFilter MismatchReason = "default-filter"
	MismatchRerunAlreadyPassed MismatchReason = "rerun-already-passed"
)

// FilterMatch is the per-test tag produced by the listing phase (glossary).
type FilterMatch struct {
	Matches bool
	Reason MismatchReason // only meaningful when !Matches
}

// FilterContext is everything a filterset expression can be evaluated
// against. BinaryName/PackageName are available at both list time and run
// time; TestName and Ignored are only meaningful once a binary's --list
// output has been parsed, which is why leaves referencing them are
// "runtime-only" for the purposes of this list-time wrapper
// validation.
type FilterContext struct {
	BinaryName string
	PackageName string
	TestName string
	Ignored bool
}

// FilterExpr is the parsed AST of a filterset expression: an opaque
// filterset AST handle.
type FilterExpr struct {
	Or *filterOr `@@`
}

type filterOr struct {
	Left *filterAnd `@@`
	Right []*filterAnd `("or" @@)*`
}

type filterAnd struct {
	Left *filterNot `@@`
	Right []*filterNot `("and" @@)*`
}

type filterNot struct {
	Negated bool `@"not"?`
	Atom *filterAtom `@@`
}

type filterAtom struct {
	All bool `( @"all" "(" ")"`
	Test *string ` | "test" "(" @String ")"`
	Package *string ` | "package" "(" @String ")"`
	Binary *string ` | "binary" "(" @String ")"`
	Ignored bool ` | @"ignored" "(" ")"`
	Sub *filterOr ` | "(" @@ ")" )`
}

var filterLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_\-:]*`},
	{Name: "Punct", Pattern: `[(),]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var filterParser = participle.MustBuild[FilterExpr](
	participle.Lexer(filterLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
)

// ParseFilterExpr parses a filterset expression (,
// "parse filtersets").
func ParseFilterExpr(src string) (*FilterExpr, error) {
	expr, err := filterParser.ParseString("", src)
	if err != nil {
		return nil, fmt.Errorf("parsing filterset %q: %w", src, err)
	}
	return expr, nil
}

// Eval reports whether ctx matches the expression.
func (e *FilterExpr) Eval(ctx FilterContext) bool {
	if e == nil {
		return true // absent filter matches everything
	}
	return e.Or.eval(ctx)
}

// HasRuntimeOnlyLeaf reports whether the expression references test() or
// ignored(), which are only resolvable once a binary's test list has been
// parsed — used to reject such expressions on list-time wrapper overrides
// ("list-time wrapper overrides referencing a filter with
// runtime-only leaves... are rejected").
func (e *FilterExpr) HasRuntimeOnlyLeaf() bool {
	if e == nil {
		return false
	}
	return e.Or.hasRuntimeOnlyLeaf()
}

func (o *filterOr) eval(ctx FilterContext) bool {
	if o.Left.eval(ctx) {
		return true
	}
	for _, r := range o.Right {
		if r.eval(ctx) {
			return true
		}
	}
	return false
}

func (o *filterOr) hasRuntimeOnlyLeaf() bool {
	if o.Left.hasRuntimeOnlyLeaf() {
		return true
	}
	for _, r := range o.Right {
		if r.hasRuntimeOnlyLeaf() {
			return true
		}
	}
	return false
}

func (a *filterAnd) eval(ctx FilterContext) bool {
	if !a.Left.eval(ctx) {
		return false
	}
	for _, r := range a.Right {
		if !r.eval(ctx) {
			return false
		}
	}
	return true
}

func (a *filterAnd) hasRuntimeOnlyLeaf() bool {
	if a.Left.hasRuntimeOnlyLeaf() {
		return true
	}
	for _, r := range a.Right {
		if r.hasRuntimeOnlyLeaf() {
			return true
		}
	}
	return false
}

func (n *filterNot) eval(ctx FilterContext) bool {
	v := n.Atom.eval(ctx)
	if n.Negated {
		return !v
	}
	return v
}

func (n *filterNot) hasRuntimeOnlyLeaf() bool { return n.Atom.hasRuntimeOnlyLeaf() }

func (a *filterAtom) eval(ctx FilterContext) bool {
	switch {
	case a.All:
		return true
	case a.Test != nil:
		return containsSubstring(ctx.TestName, *a.Test)
	case a.Package != nil:
		return ctx.PackageName == *a.Package
	case a.Binary != nil:
		return ctx.BinaryName == *a.Binary
	case a.Ignored:
		return ctx.Ignored
	case a.Sub != nil:
		return a.Sub.eval(ctx)
	default:
		return false
	}
}

func (a *filterAtom) hasRuntimeOnlyLeaf() bool {
	switch {
	case a.Test != nil, a.Ignored:
		return true
	case a.Sub != nil:
		return a.Sub.hasRuntimeOnlyLeaf()
	default:
		return false
	}
}

func containsSubstring(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	n, m := len(haystack), len(needle)
	if m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if haystack[i:i+m] == needle {
			return i
		}
	}
	return -1
}
