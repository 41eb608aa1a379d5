package runtime

import (
	"fmt"
	"sync"

	"github.com/aretw0/convo/pkg/domain"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// exprFunctions are the only functions a custom condition may call.
var exprFunctions = map[string]function.Function{
	"lower":     stdlib.LowerFunc,
	"upper":     stdlib.UpperFunc,
	"strlen":    stdlib.StrlenFunc,
	"length":    stdlib.LengthFunc,
	"contains":  stdlib.ContainsFunc,
	"trimspace": stdlib.TrimSpaceFunc,
	"max":       stdlib.MaxFunc,
	"min":       stdlib.MinFunc,
}

// CompileExpression parses a custom condition without evaluating it.
func CompileExpression(src string) error {
	_, err := parseExpression(src)
	return err
}

func parseExpression(src string) (hcl.Expression, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "condition", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid expression %q: %s", src, diags.Error())
	}
	return expr, nil
}

// exprCache keeps parsed custom conditions keyed by source.
type exprCache struct {
	mu    sync.RWMutex
	exprs map[string]hcl.Expression
}

func newExprCache() *exprCache {
	return &exprCache{exprs: make(map[string]hcl.Expression)}
}

func (c *exprCache) get(src string) (hcl.Expression, error) {
	c.mu.RLock()
	expr, ok := c.exprs[src]
	c.mu.RUnlock()
	if ok {
		return expr, nil
	}
	expr, err := parseExpression(src)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.exprs[src] = expr
	c.mu.Unlock()
	return expr, nil
}

// evalBool evaluates src against the context. Every context key that is a
// valid identifier becomes a variable, plus input and user_input.
func (c *exprCache) evalBool(src, input string, ctx domain.Context) (bool, error) {
	expr, err := c.get(src)
	if err != nil {
		return false, err
	}

	vars := make(map[string]cty.Value, len(ctx)+3)
	for k, v := range ctx {
		if hclsyntax.ValidIdentifier(k) {
			vars[k] = toCty(v)
		}
	}
	vars["context"] = toCty(domain.Map(ctx))
	vars["input"] = cty.StringVal(input)
	vars["user_input"] = cty.StringVal(input)

	out, diags := expr.Value(&hcl.EvalContext{Variables: vars, Functions: exprFunctions})
	if diags.HasErrors() {
		return false, fmt.Errorf("evaluating %q: %s", src, diags.Error())
	}
	if out.IsNull() || !out.IsKnown() {
		return false, nil
	}
	out, err = convert.Convert(out, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("expression %q is not boolean: %w", src, err)
	}
	return out.True(), nil
}

// toCty converts a context value into its cty counterpart. Lists become
// tuples and maps become objects so that mixed element types are allowed.
func toCty(v domain.Value) cty.Value {
	switch v.Kind() {
	case domain.KindString:
		s, _ := v.Str()
		return cty.StringVal(s)
	case domain.KindNumber:
		f, _ := v.Float()
		return cty.NumberFloatVal(f)
	case domain.KindBool:
		b, _ := v.Boolean()
		return cty.BoolVal(b)
	case domain.KindList:
		items := v.Items()
		if len(items) == 0 {
			return cty.EmptyTupleVal
		}
		vals := make([]cty.Value, len(items))
		for i, item := range items {
			vals[i] = toCty(item)
		}
		return cty.TupleVal(vals)
	case domain.KindMap:
		fields := v.Fields()
		if len(fields) == 0 {
			return cty.EmptyObjectVal
		}
		attrs := make(map[string]cty.Value, len(fields))
		for k, field := range fields {
			attrs[k] = toCty(field)
		}
		return cty.ObjectVal(attrs)
	default:
		return cty.NullVal(cty.DynamicPseudoType)
	}
}
