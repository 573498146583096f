package builder

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lbforge/internal/ast"
	"github.com/specialistvlad/lbforge/internal/diag"
	"github.com/specialistvlad/lbforge/internal/ir"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

type valueType int

const (
	typeString valueType = iota
	typeInt
	typeBool
	typeDuration
	typeEnum
	typeList
	typeEnumList
)

type attrSpec struct {
	typ  valueType
	enum []string
	min  int
	max  int
}

func stringAttr() attrSpec               { return attrSpec{typ: typeString} }
func boolAttr() attrSpec                 { return attrSpec{typ: typeBool} }
func durationAttr() attrSpec             { return attrSpec{typ: typeDuration} }
func listAttr() attrSpec                 { return attrSpec{typ: typeList} }
func enumAttr(set []string) attrSpec     { return attrSpec{typ: typeEnum, enum: set} }
func enumListAttr(set []string) attrSpec { return attrSpec{typ: typeEnumList, enum: set} }

// intAttr accepts whole numbers in [min, max]; max <= 0 means unbounded.
func intAttr(min, max int) attrSpec { return attrSpec{typ: typeInt, min: min, max: max} }

type blockSpec struct {
	labeled bool
	repeat  bool
}

var (
	oneBlock     = blockSpec{}
	labeledBlock = blockSpec{labeled: true}
	manyBlocks   = blockSpec{repeat: true}
	namedBlocks  = blockSpec{labeled: true, repeat: true}
)

// schema describes what a block body may contain.
type schema struct {
	attrs  map[string]attrSpec
	blocks map[string]blockSpec
}

// with returns a copy of s extended by more.
func (s schema) with(more schema) schema {
	out := schema{attrs: make(map[string]attrSpec), blocks: make(map[string]blockSpec)}
	for _, src := range []schema{s, more} {
		for k, v := range src.attrs {
			out.attrs[k] = v
		}
		for k, v := range src.blocks {
			out.blocks[k] = v
		}
	}
	return out
}

// without returns a copy of s lacking the named attributes.
func (s schema) without(names ...string) schema {
	out := s.with(schema{})
	for _, n := range names {
		delete(out.attrs, n)
	}
	return out
}

func (s schema) attrNames() []string  { return sortedKeys(s.attrs) }
func (s schema) blockNames() []string { return sortedKeys(s.blocks) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// body is the decoded content of one block.
type body struct {
	node   *ast.Node
	schema schema
	attrs  map[string]*ast.Node
	blocks map[string][]*ast.Node
}

// decode sorts the children of n into properties and blocks, reporting
// anything the schema does not allow.
func (b *builder) decode(n *ast.Node, s schema) *body {
	bd := &body{node: n, schema: s, attrs: make(map[string]*ast.Node), blocks: make(map[string][]*ast.Node)}
	for _, c := range n.Children {
		switch c.Kind {
		case ast.KindProperty:
			if _, ok := s.attrs[c.Name]; !ok {
				b.errorf(c.Range, "Unsupported property", "%s does not accept a property named %q.%s",
					describe(n), c.Name, diag.DidYouMean(c.Name, s.attrNames()))
				continue
			}
			if prev, ok := bd.attrs[c.Name]; ok {
				b.diags = append(b.diags, diag.Duplicate(diag.ValidationError, "property", c.Name, prev.Range, c.Range))
				continue
			}
			bd.attrs[c.Name] = c
		case ast.KindBlock:
			spec, ok := s.blocks[c.Name]
			if !ok {
				b.errorf(c.Range, "Unsupported block", "%s does not accept a %q block.%s",
					describe(n), c.Name, diag.DidYouMean(c.Name, s.blockNames()))
				continue
			}
			if spec.labeled && c.LabelText() == "" {
				b.errorf(c.Range, "Missing block label", "A %q block needs a name, as in %s \"name\" { ... }.", c.Name, c.Name)
				continue
			}
			if !spec.labeled && c.Label != nil {
				b.errorf(c.Label.Range, "Unexpected block label", "A %q block does not take a name.", c.Name)
				continue
			}
			if prev := bd.blocks[c.Name]; !spec.repeat && len(prev) > 0 {
				b.diags = append(b.diags, diag.Duplicate(diag.ValidationError, "block", c.Name, prev[0].Range, c.Range))
				continue
			}
			bd.blocks[c.Name] = append(bd.blocks[c.Name], c)
		case ast.KindSection:
			b.errorf(c.Range, "Misplaced section", "%s sections must be declared at the top level.", c.Name)
		default:
			b.errorf(c.Range, "Unexpected statement", "A %s is not allowed inside %s at this point.", c.Kind, describe(n))
		}
	}
	return bd
}

func describe(n *ast.Node) string {
	if n.Kind == ast.KindSection && n.LabelText() != "" {
		return fmt.Sprintf("%s %q", n.Name, n.LabelText())
	}
	return n.DisplayName()
}

func (bd *body) single(name string) *ast.Node {
	if bs := bd.blocks[name]; len(bs) > 0 {
		return bs[0]
	}
	return nil
}

func (bd *body) has(name string) bool {
	_, ok := bd.attrs[name]
	return ok
}

// valueRange is the range of the named property's value, or of the block
// when the property is absent.
func (bd *body) valueRange(name string) hcl.Range {
	if p, ok := bd.attrs[name]; ok {
		return p.Value.Range
	}
	return bd.node.Range
}

func (bd *body) spec(name string, want ...valueType) attrSpec {
	spec, ok := bd.schema.attrs[name]
	if !ok {
		panic(fmt.Sprintf("builder: property %q is not in the schema of %s", name, bd.node.Name))
	}
	for _, w := range want {
		if spec.typ == w {
			return spec
		}
	}
	panic(fmt.Sprintf("builder: property %q read with the wrong type", name))
}

// require reports every missing property among names.
func (b *builder) require(bd *body, names ...string) bool {
	ok := true
	for _, name := range names {
		if !bd.has(name) {
			b.errorf(bd.node.Range, "Missing required property", "%s requires the %q property.", describe(bd.node), name)
			ok = false
		}
	}
	return ok
}

func scalarValue(n *ast.Node) (cty.Value, bool) {
	switch n.Kind {
	case ast.KindString, ast.KindIdent, ast.KindDuration:
		return cty.StringVal(n.Text), true
	case ast.KindNumber:
		v, err := cty.ParseNumberVal(n.Text)
		if err != nil {
			return cty.StringVal(n.Text), true
		}
		return v, true
	case ast.KindBool:
		return cty.BoolVal(n.Text == "true"), true
	default:
		return cty.NilVal, false
	}
}

func (b *builder) typeError(name string, v *ast.Node, want string) {
	b.errorf(v.Range, "Invalid value", "Property %q expects %s, got %s.", name, want, v.Describe())
}

func (b *builder) stringValue(name string, v *ast.Node) (string, bool) {
	val, ok := scalarValue(v)
	if !ok {
		b.typeError(name, v, "a string")
		return "", false
	}
	conv, err := convert.Convert(val, cty.String)
	if err != nil {
		b.typeError(name, v, "a string")
		return "", false
	}
	return conv.AsString(), true
}

func (b *builder) str(bd *body, name string) string {
	p, ok := bd.attrs[name]
	if !ok {
		return ""
	}
	bd.spec(name, typeString)
	s, _ := b.stringValue(name, p.Value)
	return s
}

func (b *builder) intp(bd *body, name string) *int {
	p, ok := bd.attrs[name]
	if !ok {
		return nil
	}
	spec := bd.spec(name, typeInt)
	val, ok := scalarValue(p.Value)
	if !ok || p.Value.Kind == ast.KindBool {
		b.typeError(name, p.Value, "a whole number")
		return nil
	}
	num, err := convert.Convert(val, cty.Number)
	if err != nil || !num.AsBigFloat().IsInt() {
		b.typeError(name, p.Value, "a whole number")
		return nil
	}
	i64, _ := num.AsBigFloat().Int64()
	if i64 < int64(spec.min) || (spec.max > 0 && i64 > int64(spec.max)) {
		bound := fmt.Sprintf("at least %d", spec.min)
		if spec.max > 0 {
			bound = fmt.Sprintf("between %d and %d", spec.min, spec.max)
		}
		b.errorf(p.Value.Range, "Value out of range", "Property %q must be %s, got %d.", name, bound, i64)
		return nil
	}
	i := int(i64)
	return &i
}

func (b *builder) boolp(bd *body, name string) *bool {
	p, ok := bd.attrs[name]
	if !ok {
		return nil
	}
	bd.spec(name, typeBool)
	val, ok := scalarValue(p.Value)
	if !ok || p.Value.Kind == ast.KindNumber {
		b.typeError(name, p.Value, "true or false")
		return nil
	}
	conv, err := convert.Convert(val, cty.Bool)
	if err != nil {
		b.typeError(name, p.Value, "true or false")
		return nil
	}
	v := conv.True()
	return &v
}

// flag is boolp for bare keywords: unset and false both render nothing.
func (b *builder) flag(bd *body, name string) bool {
	v := b.boolp(bd, name)
	return v != nil && *v
}

func (b *builder) dur(bd *body, name string) *time.Duration {
	p, ok := bd.attrs[name]
	if !ok {
		return nil
	}
	bd.spec(name, typeDuration)
	return b.durationValue(name, p.Value)
}

func (b *builder) durationValue(name string, v *ast.Node) *time.Duration {
	switch v.Kind {
	case ast.KindDuration, ast.KindNumber, ast.KindString, ast.KindIdent:
		d, err := ir.ParseDuration(v.Text)
		if err != nil {
			b.errorf(v.Range, "Invalid value", "Property %q expects a duration such as 500ms, 5s or 2m, got %s.", name, v.Describe())
			return nil
		}
		return &d
	default:
		b.typeError(name, v, "a duration")
		return nil
	}
}

func (b *builder) enumValue(name string, v *ast.Node, set []string) (string, bool) {
	s, ok := b.stringValue(name, v)
	if !ok {
		return "", false
	}
	if !ir.Contains(set, s) {
		b.errorf(v.Range, "Unsupported value", "%q is not a valid %s; accepted values are: %s.%s",
			s, name, strings.Join(set, ", "), diag.DidYouMean(s, set))
		return "", false
	}
	return s, true
}

func (b *builder) enum(bd *body, name string) string {
	p, ok := bd.attrs[name]
	if !ok {
		return ""
	}
	spec := bd.spec(name, typeEnum)
	s, _ := b.enumValue(name, p.Value, spec.enum)
	return s
}

// list accepts a list of scalars or a single scalar.
func (b *builder) list(bd *body, name string) []string {
	p, ok := bd.attrs[name]
	if !ok {
		return nil
	}
	spec := bd.spec(name, typeList, typeEnumList)
	items := []*ast.Node{p.Value}
	if p.Value.Kind == ast.KindList {
		items = p.Value.Children
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		var s string
		var ok bool
		if spec.typ == typeEnumList {
			s, ok = b.enumValue(name, it, spec.enum)
		} else {
			s, ok = b.stringValue(name, it)
		}
		if ok {
			out = append(out, s)
		}
	}
	return out
}

// elementRange finds the range of the list element equal to value.
func (bd *body) elementRange(name, value string) hcl.Range {
	p, ok := bd.attrs[name]
	if !ok {
		return bd.node.Range
	}
	for _, c := range p.Value.Children {
		if c.Text == value {
			return c.Range
		}
	}
	return p.Value.Range
}

func isTrue(v *bool) bool { return v != nil && *v }
