// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package ast defines the syntax tree shared by every compilation stage.
//
// Nodes are treated as immutable once built: a stage that needs a different
// node allocates a new one with the With* helpers, sharing every subtree it
// does not touch.
package ast

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
)

// Kind tags a Node with its syntactic role.
type Kind int

const (
	KindInvalid Kind = iota
	// KindFile is the root of a parsed file. Children holds the top-level items.
	KindFile
	// KindSection is a top-level block whose keyword names a native section
	// (global, defaults, frontend, backend, listen, resolvers, peers, mailers).
	KindSection
	// KindBlock is any other block. Name is the keyword, Label the optional label.
	KindBlock
	// KindTemplate declares a reusable property set. Name is the template
	// kind, Label the template name.
	KindTemplate
	// KindLet binds Value to the variable Name in the enclosing scope.
	KindLet
	// KindFor repeats Children once per element of Value, binding Name.
	KindFor
	// KindUse applies the template named by Text.
	KindUse
	// KindProperty assigns Value to Name.
	KindProperty
	// KindString is a string literal with escapes already decoded in Text.
	KindString
	// KindInterp is a string with interpolations. Children alternate between
	// KindString and KindExpr parts.
	KindInterp
	// KindExpr holds the raw source of a ${...} expression in Text. Range
	// starts at the first byte of that source.
	KindExpr
	KindNumber
	KindBool
	KindDuration
	// KindIdent is a bare word such as roundrobin or static-rr.
	KindIdent
	KindList
	// KindRange is an inclusive [a..b] loop source. Children holds both bounds.
	KindRange
)

var kindNames = [...]string{
	KindInvalid:  "invalid",
	KindFile:     "file",
	KindSection:  "section",
	KindBlock:    "block",
	KindTemplate: "template",
	KindLet:      "let",
	KindFor:      "for",
	KindUse:      "use",
	KindProperty: "property",
	KindString:   "string",
	KindInterp:   "interpolated string",
	KindExpr:     "expression",
	KindNumber:   "number",
	KindBool:     "bool",
	KindDuration: "duration",
	KindIdent:    "identifier",
	KindList:     "list",
	KindRange:    "range",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Node is one element of the syntax tree.
type Node struct {
	Kind     Kind
	Name     string
	Label    *Node
	Value    *Node
	Children []*Node
	Text     string
	Range    hcl.Range
}

// IsScalar reports whether n is a literal that can be bound to a variable
// or used as a list element.
func (n *Node) IsScalar() bool {
	switch n.Kind {
	case KindString, KindNumber, KindBool, KindDuration, KindIdent:
		return true
	default:
		return false
	}
}

// IsLiteral reports whether n is a scalar or a list of scalars.
func (n *Node) IsLiteral() bool {
	if n.Kind != KindList {
		return n.IsScalar()
	}
	for _, c := range n.Children {
		if !c.IsScalar() {
			return false
		}
	}
	return true
}

// LabelText returns the literal text of the node's label, or "" when the
// label is absent or not a scalar.
func (n *Node) LabelText() string {
	if n.Label == nil || !n.Label.IsScalar() {
		return ""
	}
	return n.Label.Text
}

// DisplayName renders a block or section as it appears in source, e.g.
// `backend "api"`.
func (n *Node) DisplayName() string {
	if label := n.LabelText(); label != "" {
		return fmt.Sprintf("%s %q", n.Name, label)
	}
	return n.Name
}

// Describe returns a short human description of a value node.
func (n *Node) Describe() string {
	switch n.Kind {
	case KindString:
		return fmt.Sprintf("string %q", n.Text)
	case KindNumber, KindDuration, KindBool, KindIdent:
		return fmt.Sprintf("%s %s", n.Kind, n.Text)
	case KindList:
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = c.Text
		}
		return "list [" + strings.Join(parts, ", ") + "]"
	default:
		return n.Kind.String()
	}
}

// WithChildren returns a shallow copy of n with Children replaced.
func (n *Node) WithChildren(children []*Node) *Node {
	c := *n
	c.Children = children
	return &c
}

// WithValue returns a shallow copy of n with Value replaced.
func (n *Node) WithValue(v *Node) *Node {
	c := *n
	c.Value = v
	return &c
}

// WithLabel returns a shallow copy of n with Label replaced.
func (n *Node) WithLabel(label *Node) *Node {
	c := *n
	c.Label = label
	return &c
}

// WithRange returns a shallow copy of n positioned at rng.
func (n *Node) WithRange(rng hcl.Range) *Node {
	c := *n
	c.Range = rng
	return &c
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Label = n.Label.Clone()
	c.Value = n.Value.Clone()
	c.Children = CloneAll(n.Children)
	return &c
}

// CloneAll deep-copies every node of items.
func CloneAll(items []*Node) []*Node {
	if items == nil {
		return nil
	}
	out := make([]*Node, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}
