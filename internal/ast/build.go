package ast

import (
	"strconv"

	"github.com/hashicorp/hcl/v2"
)

// Constructors used by the parser and by stages that synthesize literals.

func NewString(text string, rng hcl.Range) *Node {
	return &Node{Kind: KindString, Text: text, Range: rng}
}

func NewNumber(text string, rng hcl.Range) *Node {
	return &Node{Kind: KindNumber, Text: text, Range: rng}
}

func NewInt(v int64, rng hcl.Range) *Node {
	return NewNumber(strconv.FormatInt(v, 10), rng)
}

func NewBool(v bool, rng hcl.Range) *Node {
	return &Node{Kind: KindBool, Text: strconv.FormatBool(v), Range: rng}
}

func NewIdent(text string, rng hcl.Range) *Node {
	return &Node{Kind: KindIdent, Text: text, Range: rng}
}

func NewDuration(text string, rng hcl.Range) *Node {
	return &Node{Kind: KindDuration, Text: text, Range: rng}
}

func NewExpr(src string, rng hcl.Range) *Node {
	return &Node{Kind: KindExpr, Text: src, Range: rng}
}

func NewList(items []*Node, rng hcl.Range) *Node {
	return &Node{Kind: KindList, Children: items, Range: rng}
}

func NewProperty(name string, value *Node, rng hcl.Range) *Node {
	return &Node{Kind: KindProperty, Name: name, Value: value, Range: rng}
}

// NewBlock builds a block node. label may be nil.
func NewBlock(keyword string, label *Node, body []*Node, rng hcl.Range) *Node {
	return &Node{Kind: KindBlock, Name: keyword, Label: label, Children: body, Range: rng}
}
