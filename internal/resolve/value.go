package resolve

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lbforge/internal/ast"
	"github.com/zclconf/go-cty/cty"
)

var durationLiteral = regexp.MustCompile(`^\d+(us|ms|s|m|h|d)$`)

// toCty converts a literal node to the value expressions see.
func toCty(n *ast.Node) cty.Value {
	if n == nil {
		return cty.DynamicVal
	}
	switch n.Kind {
	case ast.KindString, ast.KindIdent, ast.KindDuration:
		return cty.StringVal(n.Text)
	case ast.KindNumber:
		v, err := cty.ParseNumberVal(n.Text)
		if err != nil {
			return cty.StringVal(n.Text)
		}
		return v
	case ast.KindBool:
		return cty.BoolVal(n.Text == "true")
	case ast.KindList:
		if len(n.Children) == 0 {
			return cty.EmptyTupleVal
		}
		vals := make([]cty.Value, len(n.Children))
		for i, c := range n.Children {
			vals[i] = toCty(c)
		}
		return cty.TupleVal(vals)
	default:
		return cty.DynamicVal
	}
}

// fromCty converts an expression result back into a literal node. A non-empty
// message means the value cannot be represented.
func fromCty(val cty.Value, rng hcl.Range) (*ast.Node, string) {
	if val.IsNull() {
		return nil, "The expression produced a null value."
	}
	if !val.IsWhollyKnown() {
		return nil, "The expression value is not known."
	}

	ty := val.Type()
	switch {
	case ty == cty.String:
		return ast.NewString(val.AsString(), rng), ""
	case ty == cty.Number:
		bf := val.AsBigFloat()
		if bf.IsInf() {
			return nil, "Division by zero: the divisor evaluated to 0."
		}
		if !bf.IsInt() {
			return nil, fmt.Sprintf("Arithmetic must produce a whole number, got %s.", bf.Text('f', -1))
		}
		i, _ := bf.Int(nil)
		return ast.NewNumber(i.String(), rng), ""
	case ty == cty.Bool:
		return ast.NewBool(val.True(), rng), ""
	case ty.IsTupleType() || ty.IsListType():
		var items []*ast.Node
		for it := val.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			item, msg := fromCty(ev, rng)
			if msg != "" {
				return nil, msg
			}
			if !item.IsScalar() {
				return nil, "Lists may only contain strings, numbers and booleans."
			}
			items = append(items, item)
		}
		return ast.NewList(items, rng), ""
	default:
		return nil, fmt.Sprintf("Values of type %s cannot be used in a configuration.", ty.FriendlyName())
	}
}

// defaultLiteral interprets the text after ":-" in ${env.NAME:-default}.
func defaultLiteral(text string, rng hcl.Range) *ast.Node {
	text = strings.TrimSpace(text)
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		if s, err := strconv.Unquote(text); err == nil {
			return ast.NewString(s, rng)
		}
	}
	if _, err := strconv.ParseInt(text, 10, 64); err == nil {
		return ast.NewNumber(text, rng)
	}
	if text == "true" || text == "false" {
		return ast.NewBool(text == "true", rng)
	}
	if durationLiteral.MatchString(text) {
		return ast.NewDuration(text, rng)
	}
	return ast.NewString(text, rng)
}
