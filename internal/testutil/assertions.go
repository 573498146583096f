package testutil

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/lbforge/internal/diag"
	"github.com/stretchr/testify/require"
)

// Summaries lists the summary of every diagnostic, in order.
func Summaries(diags hcl.Diagnostics) []string {
	out := make([]string, len(diags))
	for i, d := range diags {
		out[i] = d.Summary
	}
	return out
}

// RequireDiag finds the only error diagnostic with the given summary and
// checks its kind.
func RequireDiag(t *testing.T, diags hcl.Diagnostics, kind diag.Kind, summary string) *hcl.Diagnostic {
	t.Helper()
	var found []*hcl.Diagnostic
	for _, d := range diags {
		if d.Summary == summary {
			found = append(found, d)
		}
	}
	require.Len(t, found, 1, "expected exactly one %q diagnostic, got %v", summary, Summaries(diags))
	d := found[0]
	require.Equal(t, hcl.DiagError, d.Severity)
	require.Equal(t, kind, diag.KindOf(d), "diagnostic %q has the wrong kind", summary)
	require.NotNil(t, d.Subject, "diagnostic %q has no location", summary)
	return d
}

// RequireLocation checks that rng starts at the given 1-based line and column.
func RequireLocation(t *testing.T, rng *hcl.Range, line, column int) {
	t.Helper()
	require.NotNil(t, rng)
	require.Equal(t, line, rng.Start.Line, "line of %s", rng)
	require.Equal(t, column, rng.Start.Column, "column of %s", rng)
}
