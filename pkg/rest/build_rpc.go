package rest

import (
	"github.com/edgeflare/pgbase/pkg/pgq/schema"
)

// BuildCall compiles an RPC invocation of a cached database function. Args
// are passed by name with => so callers may omit defaulted parameters; the
// cached declaration order keeps the statement text stable.
func BuildCall(fn schema.Function, args map[string]any) (Statement, error) {
	declared := map[string]struct{}{}
	for _, name := range fn.ArgNames {
		declared[name] = struct{}{}
	}
	for name := range args {
		if _, ok := declared[name]; !ok {
			return Statement{}, errInvalidQuerySyntax("function %q has no argument %q", fn.Name, name)
		}
	}

	b := &sqlBuilder{}
	b.write("SELECT * FROM " + qualify(fn.Schema, fn.Name) + "(")
	wrote := false
	for _, name := range fn.ArgNames {
		v, present := args[name]
		if !present {
			continue
		}
		nv, err := normalizeValue(v)
		if err != nil {
			return Statement{}, errInvalidQuerySyntax("argument %q: %v", name, err)
		}
		if wrote {
			b.write(", ")
		}
		b.write(quoteIdent(name) + " => " + b.param(nv))
		wrote = true
	}
	b.write(")")
	return b.statement(), nil
}
