// Package expr parses and evaluates decision-rule expressions.
//
// Rules are small boolean HCL expressions over contact.* and campaign.*
// fields, e.g. `contact.age > 18 || campaign.event_type == "dinner"`.
package expr

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Rule is a parsed boolean expression ready for repeated evaluation.
type Rule struct {
	src  string
	expr hclsyntax.Expression
}

// Parse compiles the expression source. It fails on syntax errors, so
// malformed rules are rejected at graph load time rather than mid-advance.
func Parse(src string) (*Rule, error) {
	parsed, diags := hclsyntax.ParseExpression([]byte(src), "rule.expr", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing expression %q: %s", src, diags.Error())
	}
	return &Rule{src: src, expr: parsed}, nil
}

// String returns the original expression source.
func (r *Rule) String() string { return r.src }

// Scope holds the variable namespaces visible to a rule.
type Scope struct {
	Contact  map[string]cty.Value
	Campaign map[string]cty.Value
}

// Eval evaluates the rule against the scope and coerces the result to bool.
// Unknown variables or a non-boolean result are evaluation errors; the
// caller decides whether that stalls or skips the rule.
func (r *Rule) Eval(scope Scope) (bool, error) {
	vars := map[string]cty.Value{
		"contact":  objectOrEmpty(scope.Contact),
		"campaign": objectOrEmpty(scope.Campaign),
	}
	val, diags := r.expr.Value(&hcl.EvalContext{Variables: vars})
	if diags.HasErrors() {
		return false, fmt.Errorf("evaluating %q: %s", r.src, diags.Error())
	}
	b, err := convert.Convert(val, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("expression %q is not boolean: %w", r.src, err)
	}
	if b.IsNull() {
		return false, fmt.Errorf("expression %q evaluated to null", r.src)
	}
	return b.True(), nil
}

func objectOrEmpty(m map[string]cty.Value) cty.Value {
	if len(m) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(m)
}

// StringVal wraps a Go string for a scope map.
func StringVal(s string) cty.Value { return cty.StringVal(s) }

// NumberVal wraps a Go float for a scope map.
func NumberVal(f float64) cty.Value { return cty.NumberFloatVal(f) }

// BoolVal wraps a Go bool for a scope map.
func BoolVal(b bool) cty.Value { return cty.BoolVal(b) }
