package resolve

import (
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lbforge/internal/ast"
	"github.com/zclconf/go-cty/cty"
)

type bindingState int

const (
	stateBound bindingState = iota
	// statePending marks a name whose value is only known per loop
	// iteration, such as a loop variable.
	statePending
	// stateFailed marks a name whose own evaluation was reported already.
	stateFailed
)

// Binding is one variable visible in a Scope.
type Binding struct {
	Name  string
	Value *ast.Node
	Range hcl.Range

	state bindingState
	val   cty.Value
}

// Pending reports whether the value is only known during loop unrolling.
func (b *Binding) Pending() bool { return b.state == statePending }

// Failed reports whether evaluating the binding raised a diagnostic.
func (b *Binding) Failed() bool { return b.state == stateFailed }

// CtyValue returns the value used when the name appears in an expression.
func (b *Binding) CtyValue() cty.Value { return b.val }

// Scope is one level of the lexical scope chain.
type Scope struct {
	parent *Scope
	vars   map[string]*Binding
}

// NewScope creates a scope nested in parent. parent may be nil.
func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, vars: make(map[string]*Binding)}
}

// Child returns a new scope whose parent is s.
func (s *Scope) Child() *Scope { return NewScope(s) }

// Parent returns the enclosing scope, or nil for a root scope.
func (s *Scope) Parent() *Scope { return s.parent }

// Bind binds name to a literal value in s, replacing any local binding.
func (s *Scope) Bind(name string, value *ast.Node, rng hcl.Range) *Binding {
	b := &Binding{Name: name, Value: value, Range: rng, state: stateBound, val: toCty(value)}
	s.vars[name] = b
	return b
}

func (s *Scope) bindPending(name string, rng hcl.Range) {
	s.vars[name] = &Binding{Name: name, Range: rng, state: statePending, val: cty.DynamicVal}
}

func (s *Scope) bindFailed(name string, rng hcl.Range) {
	s.vars[name] = &Binding{Name: name, Range: rng, state: stateFailed, val: cty.DynamicVal}
}

// Lookup finds name in s or its ancestors, innermost first.
func (s *Scope) Lookup(name string) (*Binding, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if b, ok := cur.vars[name]; ok {
			return b, true
		}
	}
	return nil, false
}

func (s *Scope) local(name string) (*Binding, bool) {
	b, ok := s.vars[name]
	return b, ok
}

// Names returns every name visible from s, sorted.
func (s *Scope) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for cur := s; cur != nil; cur = cur.parent {
		for name := range cur.vars {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}
