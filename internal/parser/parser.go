// Package parser turns .lbf source text into an ast.Node tree.
//
// The parser stops at the first syntax error: every later stage needs a
// complete tree, and follow-on syntax errors are rarely useful.
package parser

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lbforge/internal/ast"
	"github.com/specialistvlad/lbforge/internal/diag"
)

// SectionKeywords are the block keywords that open a native section when
// they appear at top level.
var SectionKeywords = map[string]bool{
	"global":    true,
	"defaults":  true,
	"frontend":  true,
	"backend":   true,
	"listen":    true,
	"resolvers": true,
	"peers":     true,
	"mailers":   true,
}

// Parse parses one file. On error the returned tree is nil and the
// diagnostics hold exactly one SyntaxError.
func Parse(filename string, src []byte) (*ast.Node, hcl.Diagnostics) {
	toks, d := newLexer(filename, src).tokens()
	if d != nil {
		return nil, hcl.Diagnostics{d}
	}
	p := &parser{filename: filename, toks: toks}
	return p.file()
}

type parser struct {
	filename string
	toks     []token
	pos      int
}

// syntaxError unwinds the parser. It is recovered in file().
type syntaxError struct{ d *hcl.Diagnostic }

func (p *parser) file() (tree *ast.Node, diags hcl.Diagnostics) {
	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(syntaxError)
			if !ok {
				panic(r)
			}
			tree, diags = nil, hcl.Diagnostics{se.d}
		}
	}()

	start := p.peek().rng
	items := p.items(true, tEOF)
	end := p.peek().rng
	return &ast.Node{
		Kind:     ast.KindFile,
		Children: items,
		Range:    hcl.RangeBetween(start, end),
	}, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if t.typ != tEOF {
		p.pos++
	}
	return t
}

func (p *parser) fail(rng hcl.Range, summary, format string, args ...any) {
	panic(syntaxError{diag.Errorf(diag.SyntaxError, rng, summary, format, args...)})
}

func (p *parser) expect(typ tokenType, context string) token {
	t := p.peek()
	if t.typ != typ {
		p.fail(t.rng, "Unexpected "+t.typ.String(), "Expected %s %s, found %s.", typ, context, describe(t))
	}
	return p.advance()
}

func describe(t token) string {
	switch t.typ {
	case tIdent, tNumber, tDuration:
		return fmt.Sprintf("%s %q", t.typ, t.text)
	default:
		return t.typ.String()
	}
}

// items parses a body until the closing token. topLevel controls whether
// section keywords produce section nodes.
func (p *parser) items(topLevel bool, closing tokenType) []*ast.Node {
	var out []*ast.Node
	for {
		t := p.peek()
		switch t.typ {
		case closing:
			return out
		case tSemi, tComma:
			p.advance()
			continue
		case tIdent:
			out = append(out, p.item(topLevel)...)
		case tEOF:
			p.fail(t.rng, "Unclosed block", "The file ended before a closing brace.")
		default:
			p.fail(t.rng, "Unexpected "+t.typ.String(), "Expected a property, block or statement, found %s.", describe(t))
		}
	}
}

func (p *parser) item(topLevel bool) []*ast.Node {
	t := p.peek()
	next := p.peekAt(1).typ
	isStatement := next != tColon && next != tEquals
	if isStatement {
		switch t.text {
		case "let":
			return []*ast.Node{p.let()}
		case "template":
			return []*ast.Node{p.template()}
		case "for":
			return []*ast.Node{p.loop(topLevel)}
		case "use":
			return p.use()
		}
	}

	name := p.advance()
	switch next {
	case tColon, tEquals:
		p.advance()
		value := p.value()
		return []*ast.Node{ast.NewProperty(name.text, value, hcl.RangeBetween(name.rng, value.Range))}
	case tLBrace, tString, tIdent, tNumber:
		return []*ast.Node{p.block(name, topLevel)}
	default:
		p.fail(p.peek().rng, "Unexpected "+next.String(), "Expected \":\", \"=\" or a block after %q, found %s.", name.text, describe(p.peek()))
		return nil
	}
}

func (p *parser) block(keyword token, topLevel bool) *ast.Node {
	var label *ast.Node
	if p.peek().typ != tLBrace {
		label = p.label()
	}
	defRange := keyword.rng
	if label != nil {
		defRange = hcl.RangeBetween(keyword.rng, label.Range)
	}
	p.expect(tLBrace, "to open the "+keyword.text+" block")
	body := p.items(false, tRBrace)
	p.advance()

	kind := ast.KindBlock
	if topLevel && SectionKeywords[keyword.text] {
		kind = ast.KindSection
	}
	return &ast.Node{Kind: kind, Name: keyword.text, Label: label, Children: body, Range: defRange}
}

func (p *parser) label() *ast.Node {
	t := p.peek()
	switch t.typ {
	case tString:
		return p.value()
	case tIdent:
		p.advance()
		return ast.NewIdent(t.text, t.rng)
	case tNumber:
		p.advance()
		return ast.NewNumber(t.text, t.rng)
	default:
		p.fail(t.rng, "Invalid block label", "Expected a string, identifier or number as block label, found %s.", describe(t))
		return nil
	}
}

func (p *parser) let() *ast.Node {
	kw := p.advance()
	name := p.expect(tIdent, "after let")
	if t := p.peek(); t.typ == tColon || t.typ == tEquals {
		p.advance()
	} else {
		p.fail(t.rng, "Missing assignment", "Expected \"=\" after the variable name %q, found %s.", name.text, describe(t))
	}
	value := p.value()
	return &ast.Node{Kind: ast.KindLet, Name: name.text, Value: value, Range: hcl.RangeBetween(kw.rng, value.Range)}
}

func (p *parser) template() *ast.Node {
	kw := p.advance()
	kind := p.expect(tIdent, "as template kind")
	nameTok := p.peek()
	if nameTok.typ != tString {
		p.fail(nameTok.rng, "Invalid template name", "A template name must be a quoted string, found %s.", describe(nameTok))
	}
	name := p.value()
	p.expect(tLBrace, "to open the template body")
	body := p.items(false, tRBrace)
	p.advance()
	return &ast.Node{
		Kind:     ast.KindTemplate,
		Name:     kind.text,
		Label:    name,
		Children: body,
		Range:    hcl.RangeBetween(kw.rng, name.Range),
	}
}

func (p *parser) loop(topLevel bool) *ast.Node {
	kw := p.advance()
	name := p.expect(tIdent, "as loop variable")
	in := p.expect(tIdent, "after the loop variable")
	if in.text != "in" {
		p.fail(in.rng, "Invalid loop", "Expected \"in\" after the loop variable %q, found %q.", name.text, in.text)
	}
	source := p.loopSource()
	p.expect(tLBrace, "to open the loop body")
	body := p.items(topLevel, tRBrace)
	p.advance()
	return &ast.Node{
		Kind:     ast.KindFor,
		Name:     name.text,
		Value:    source,
		Children: body,
		Range:    hcl.RangeBetween(kw.rng, source.Range),
	}
}

func (p *parser) loopSource() *ast.Node {
	t := p.peek()
	if t.typ != tLBrack {
		return p.value()
	}
	p.advance()
	if p.peek().typ == tRBrack {
		end := p.advance()
		return ast.NewList(nil, hcl.RangeBetween(t.rng, end.rng))
	}
	first := p.value()
	if p.peek().typ == tDotDot {
		p.advance()
		last := p.value()
		end := p.expect(tRBrack, "to close the range")
		return &ast.Node{Kind: ast.KindRange, Children: []*ast.Node{first, last}, Range: hcl.RangeBetween(t.rng, end.rng)}
	}
	return p.listTail(t, first)
}

func (p *parser) use() []*ast.Node {
	p.advance()
	var out []*ast.Node
	for {
		t := p.peek()
		switch t.typ {
		case tString:
			n := p.value()
			if n.Kind != ast.KindString {
				p.fail(n.Range, "Invalid template reference", "Template names in use statements cannot contain interpolations.")
			}
			out = append(out, &ast.Node{Kind: ast.KindUse, Text: n.Text, Range: n.Range})
		case tIdent:
			p.advance()
			out = append(out, &ast.Node{Kind: ast.KindUse, Text: t.text, Range: t.rng})
		default:
			p.fail(t.rng, "Invalid template reference", "Expected a template name after use, found %s.", describe(t))
		}
		if p.peek().typ != tComma {
			return out
		}
		p.advance()
	}
}

func (p *parser) value() *ast.Node {
	t := p.peek()
	switch t.typ {
	case tString:
		p.advance()
		return stringNode(t)
	case tNumber:
		p.advance()
		return ast.NewNumber(t.text, t.rng)
	case tDuration:
		p.advance()
		return ast.NewDuration(t.text, t.rng)
	case tExpr:
		p.advance()
		return ast.NewExpr(t.text, t.rng)
	case tIdent:
		p.advance()
		if t.text == "true" || t.text == "false" {
			return ast.NewBool(t.text == "true", t.rng)
		}
		return ast.NewIdent(t.text, t.rng)
	case tLBrack:
		p.advance()
		if p.peek().typ == tRBrack {
			end := p.advance()
			return ast.NewList(nil, hcl.RangeBetween(t.rng, end.rng))
		}
		return p.listTail(t, p.value())
	default:
		p.fail(t.rng, "Missing value", "Expected a value, found %s.", describe(t))
		return nil
	}
}

// listTail parses the remainder of a list whose first element is parsed.
func (p *parser) listTail(open token, first *ast.Node) *ast.Node {
	items := []*ast.Node{first}
	for {
		t := p.peek()
		switch t.typ {
		case tRBrack:
			p.advance()
			return ast.NewList(items, hcl.RangeBetween(open.rng, t.rng))
		case tComma:
			p.advance()
			if p.peek().typ == tRBrack {
				continue
			}
			items = append(items, p.value())
		default:
			p.fail(t.rng, "Invalid list", "Expected \",\" or \"]\" in list, found %s.", describe(t))
		}
	}
}

func stringNode(t token) *ast.Node {
	if len(t.parts) == 1 && !t.parts[0].expr {
		return ast.NewString(t.parts[0].text, t.rng)
	}
	parts := make([]*ast.Node, len(t.parts))
	for i, part := range t.parts {
		if part.expr {
			parts[i] = ast.NewExpr(part.text, part.rng)
		} else {
			parts[i] = ast.NewString(part.text, part.rng)
		}
	}
	return &ast.Node{Kind: ast.KindInterp, Children: parts, Range: t.rng}
}
