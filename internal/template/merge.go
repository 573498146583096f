package template

import "github.com/specialistvlad/lbforge/internal/ast"

// appendOnly lists block keywords whose instances accumulate rather than
// replace each other.
var appendOnly = map[string]bool{
	"http_request":  true,
	"http_response": true,
	"log":           true,
}

// Merge overlays overlay onto base and returns the combined body. Neither
// input is modified.
//
// Properties are keyed by name and blocks by keyword and label; an overlay
// entry replaces the base entry with the same key in the base position, and
// matching blocks are merged recursively. Entries without a match, and
// append-only blocks, are appended in overlay order.
func Merge(base, overlay []*ast.Node) []*ast.Node {
	out := make([]*ast.Node, len(base), len(base)+len(overlay))
	copy(out, base)

	index := make(map[string]int, len(out))
	for i, n := range out {
		if key, ok := mergeKey(n); ok {
			index[key] = i
		}
	}

	// Keys already taken by the overlay itself. A repeated key inside the
	// overlay is a literal duplicate and is kept so the builder reports it.
	seen := make(map[string]bool, len(overlay))
	for _, n := range overlay {
		key, ok := mergeKey(n)
		if !ok {
			out = append(out, n)
			continue
		}
		i, exists := index[key]
		if !exists || seen[key] {
			seen[key] = true
			index[key] = len(out)
			out = append(out, n)
			continue
		}
		seen[key] = true
		if n.Kind == ast.KindBlock && out[i].Kind == ast.KindBlock {
			out[i] = n.WithChildren(Merge(out[i].Children, n.Children))
		} else {
			out[i] = n
		}
	}
	return out
}

func mergeKey(n *ast.Node) (string, bool) {
	switch n.Kind {
	case ast.KindProperty:
		return "p\x00" + n.Name, true
	case ast.KindBlock:
		if appendOnly[n.Name] {
			return "", false
		}
		return "b\x00" + n.Name + "\x00" + n.LabelText(), true
	default:
		return "", false
	}
}
