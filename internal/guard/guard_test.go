package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hospitalbooking/internal/session"
)

var (
	loading  = session.State{Loading: true}
	signedIn = session.State{Authenticated: true}
	anon     = session.State{}
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		variant Variant
		state   session.State
		want    Decision
	}{
		{"protected while loading", Protected, loading, Resolving},
		{"public-only while loading", PublicOnly, loading, Resolving},
		{"open while loading", Open, loading, Resolving},
		{"protected signed in", Protected, signedIn, Allow},
		{"protected anonymous", Protected, anon, RedirectToLogin},
		{"public-only signed in", PublicOnly, signedIn, RedirectToDashboard},
		{"public-only anonymous", PublicOnly, anon, Allow},
		{"open signed in", Open, signedIn, Allow},
		{"open anonymous", Open, anon, Allow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.variant, tt.state))
		})
	}
}

func TestTable_Resolve(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		name     string
		path     string
		state    session.State
		decision Decision
		location string
	}{
		{"dashboard anonymous", "/dashboard", anon, RedirectToLogin, PathLogin},
		{"analytics anonymous", "/analytics", anon, RedirectToLogin, PathLogin},
		{"dashboard signed in", "/dashboard", signedIn, Allow, ""},
		{"login signed in", "/login", signedIn, RedirectToDashboard, PathDashboard},
		{"register signed in", "/register", signedIn, RedirectToDashboard, PathDashboard},
		{"landing signed in", "/", signedIn, RedirectToDashboard, PathDashboard},
		{"landing anonymous", "/", anon, Allow, ""},
		{"voice flow anonymous", "/voice-flow", anon, Allow, ""},
		{"voice flow signed in", "/voice-flow", signedIn, Allow, ""},
		{"unknown path", "/nope", signedIn, RedirectToLanding, PathLanding},
		{"unknown path while loading", "/nope", loading, RedirectToLanding, PathLanding},
		{"dashboard while loading", "/dashboard", loading, Resolving, ""},
		{"trailing slash", "/dashboard/", signedIn, Allow, ""},
		{"query string", "/login?next=x", anon, Allow, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := table.Resolve(tt.path, tt.state)
			assert.Equal(t, tt.decision, out.Decision)
			assert.Equal(t, tt.location, out.Location)
			assert.Equal(t, tt.decision.IsRedirect(), out.Replace)
		})
	}
}

func TestTable_Lookup(t *testing.T) {
	table := DefaultTable()
	r, ok := table.Lookup("/analytics/")
	assert.True(t, ok)
	assert.Equal(t, Protected, r.Variant)
	assert.Equal(t, "analytics", r.View)

	_, ok = table.Lookup("/settings")
	assert.False(t, ok)
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "redirect_to_login", RedirectToLogin.String())
	assert.Equal(t, "resolving", Resolving.String())
	assert.Equal(t, "public_only", PublicOnly.String())
	assert.False(t, Allow.IsRedirect())
	assert.False(t, Resolving.IsRedirect())
}
