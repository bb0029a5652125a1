package ids

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// PlatformContext is the target triple information a platform predicate is
// evaluated against ("platform predicate cfg(...) expressions").
type PlatformContext struct {
	OS string
	Arch string
	Env string // e.g. "gnu", "musl"; empty if not applicable
}

// PlatformExpr is the parsed AST of a cfg(...)/any(...)/all(...)/not(...)
// platform predicate.
type PlatformExpr struct {
	Expr *platformExpr `@@`
}

type platformExpr struct {
	Any []*platformExpr `( "any" "(" @@ ("," @@)* ")"`
	All []*platformExpr ` | "all" "(" @@ ("," @@)* ")"`
	Not *platformExpr ` | "not" "(" @@ ")"`
	Cfg *cfgTerm ` | "cfg" "(" @@ ")" )`
}

type cfgTerm struct {
	Key string `@Ident "="`
	Value string `@String`
}

var platformLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[(),=]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var platformParser = participle.MustBuild[PlatformExpr](
	participle.Lexer(platformLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
)

// ParsePlatformExpr parses a platform predicate ("platform
// field accepts a cfg() target-predicate expression").
func ParsePlatformExpr(src string) (*PlatformExpr, error) {
	return platformParser.ParseString("", src)
}

// Eval reports whether ctx satisfies the predicate. A nil expression
// matches every platform.
func (p *PlatformExpr) Eval(ctx PlatformContext) bool {
	if p == nil {
		return true
	}
	return p.Expr.eval(ctx)
}

func (e *platformExpr) eval(ctx PlatformContext) bool {
	switch {
	case e.Any != nil:
		for _, sub := range e.Any {
			if sub.eval(ctx) {
				return true
			}
		}
		return false
	case e.All != nil:
		for _, sub := range e.All {
			if !sub.eval(ctx) {
				return false
			}
		}
		return true
	case e.Not != nil:
		return !e.Not.eval(ctx)
	case e.Cfg != nil:
		return e.Cfg.eval(ctx)
	default:
		return false
	}
}

func (c *cfgTerm) eval(ctx PlatformContext) bool {
	switch c.Key {
	case "target_os":
		return c.Value == ctx.OS
	case "target_arch":
		return c.Value == ctx.Arch
	case "target_env":
		return c.Value == ctx.Env
	default:
		return false
	}
}
