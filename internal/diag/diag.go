// Package diag tags hcl diagnostics with the compiler stage that produced
// them and offers the shared helpers every stage uses to report problems.
package diag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/hashicorp/hcl/v2"
)

// Kind classifies a diagnostic by the stage that raised it.
type Kind int

const (
	KindUnknown Kind = iota
	SyntaxError
	ResolutionError
	LoopError
	TemplateError
	ValidationError
)

func (k Kind) String() string {
	switch k {
	case SyntaxError:
		return "SyntaxError"
	case ResolutionError:
		return "ResolutionError"
	case LoopError:
		return "LoopError"
	case TemplateError:
		return "TemplateError"
	case ValidationError:
		return "ValidationError"
	default:
		return "UnknownError"
	}
}

// Info is stored in hcl.Diagnostic.Extra.
type Info struct {
	Kind Kind
	// Related lists secondary locations, such as the first declaration of a
	// duplicated name.
	Related []hcl.Range
}

// New builds an error diagnostic of the given kind located at rng.
func New(kind Kind, rng hcl.Range, summary, detail string, related ...hcl.Range) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   detail,
		Subject:  rng.Ptr(),
		Extra:    &Info{Kind: kind, Related: related},
	}
}

// Errorf is New with a formatted detail.
func Errorf(kind Kind, rng hcl.Range, summary, format string, args ...any) *hcl.Diagnostic {
	return New(kind, rng, summary, fmt.Sprintf(format, args...))
}

// Duplicate reports a second declaration of name, pointing at both places.
func Duplicate(kind Kind, what, name string, first, second hcl.Range) *hcl.Diagnostic {
	return New(kind, second,
		fmt.Sprintf("Duplicate %s", what),
		fmt.Sprintf("%s %q is already declared at %s.", capitalize(what), name, first),
		first,
	)
}

// KindOf returns the kind recorded on d, or KindUnknown for diagnostics
// produced outside this module.
func KindOf(d *hcl.Diagnostic) Kind {
	if info, ok := d.Extra.(*Info); ok {
		return info.Kind
	}
	return KindUnknown
}

// RelatedOf returns the secondary locations recorded on d.
func RelatedOf(d *hcl.Diagnostic) []hcl.Range {
	if info, ok := d.Extra.(*Info); ok {
		return info.Related
	}
	return nil
}

// Tag marks every diagnostic in diags that carries no kind yet with kind.
// It is used for diagnostics coming straight from hclsyntax.
func Tag(kind Kind, diags hcl.Diagnostics) hcl.Diagnostics {
	for _, d := range diags {
		if _, ok := d.Extra.(*Info); !ok {
			d.Extra = &Info{Kind: kind}
		}
	}
	return diags
}

// Count returns how many diagnostics of the given kind are in diags.
func Count(diags hcl.Diagnostics, kind Kind) int {
	n := 0
	for _, d := range diags {
		if KindOf(d) == kind {
			n++
		}
	}
	return n
}

// Sort orders diagnostics by file, line and column. Diagnostics without a
// subject go last. The sort is stable so equal positions keep report order.
func Sort(diags hcl.Diagnostics) hcl.Diagnostics {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i].Subject, diags[j].Subject
		switch {
		case a == nil || b == nil:
			return a != nil && b == nil
		case a.Filename != b.Filename:
			return a.Filename < b.Filename
		case a.Start.Line != b.Start.Line:
			return a.Start.Line < b.Start.Line
		default:
			return a.Start.Column < b.Start.Column
		}
	})
	return diags
}

// Suggest returns the candidate closest to given, or "" when nothing is
// close enough to be a plausible typo.
func Suggest(given string, candidates []string) string {
	best, bestDist := "", 3
	for _, c := range candidates {
		if d := levenshtein.Distance(given, c, nil); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// DidYouMean formats Suggest's result as a sentence suffix, or "".
func DidYouMean(given string, candidates []string) string {
	if s := Suggest(given, candidates); s != "" {
		return fmt.Sprintf(" Did you mean %q?", s)
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
