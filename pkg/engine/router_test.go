package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rulekit/rulekit/pkg/catalog"
	"github.com/rulekit/rulekit/pkg/signals"
)

func TestRouteClear(t *testing.T) {
	idx := buildIndex(t, []unitSpec{
		{id: "frontend-specialist", category: catalog.CategoryAgent, domain: "frontend", extensions: []string{".tsx"}, keywords: []string{"button"}},
		{id: "backend-specialist", category: catalog.CategoryAgent, domain: "backend", extensions: []string{".go"}},
	})

	wc := signals.WorkContext{
		TouchedExtensions: []string{".tsx"},
		RequestText:       "style the button",
		Scope:             signals.ScopeSingleFile,
	}

	decision := Route(idx, wc, DefaultPolicy(), asOf)
	assert.Equal(t, RouteClear, decision.State)
	assert.Equal(t, "frontend-specialist", decision.AgentID)
}

func TestRouteMultiDomain(t *testing.T) {
	specs := []unitSpec{
		{id: "frontend-specialist", category: catalog.CategoryAgent, domain: "frontend", extensions: []string{".tsx"}},
		{id: "backend-specialist", category: catalog.CategoryAgent, domain: "backend", extensions: []string{".go"}},
	}
	wc := signals.WorkContext{
		TouchedExtensions: []string{".tsx", ".go"},
		Scope:             signals.ScopeMultiFile,
	}

	t.Run("routes to coordinator", func(t *testing.T) {
		withLead := append([]unitSpec{
			{id: "tech-lead", category: catalog.CategoryAgent, coordinator: true},
		}, specs...)
		idx := buildIndex(t, withLead)

		decision := Route(idx, wc, DefaultPolicy(), asOf)
		assert.Equal(t, RouteMultiDomain, decision.State)
		assert.Equal(t, "tech-lead", decision.AgentID)
	})

	t.Run("ambiguous without coordinator", func(t *testing.T) {
		idx := buildIndex(t, specs)

		decision := Route(idx, wc, DefaultPolicy(), asOf)
		assert.Equal(t, RouteAmbiguous, decision.State)
		assert.Empty(t, decision.AgentID)
	})
}

func TestRouteAmbiguousOnTie(t *testing.T) {
	idx := buildIndex(t, []unitSpec{
		{id: "frontend-specialist", category: catalog.CategoryAgent, domain: "frontend", extensions: []string{".ts"}},
		{id: "tooling-specialist", category: catalog.CategoryAgent, domain: "frontend", extensions: []string{".ts"}},
	})

	wc := signals.WorkContext{TouchedExtensions: []string{".ts"}, Scope: signals.ScopeFeature}
	decision := Route(idx, wc, DefaultPolicy(), asOf)

	assert.Equal(t, RouteAmbiguous, decision.State)
}

func TestRouteAmbiguousBelowConfidence(t *testing.T) {
	idx := buildIndex(t, []unitSpec{
		{id: "docs-specialist", category: catalog.CategoryAgent, domain: "docs", keywords: []string{"readme"}},
	})

	// a lone keyword hit scores 1+1=2 against min_confidence 2, so raise the bar
	policy := DefaultPolicy()
	policy.Router.MinConfidence = 3

	wc := signals.WorkContext{RequestText: "update the readme", Scope: signals.ScopeSingleFile}
	decision := Route(idx, wc, policy, asOf)

	assert.Equal(t, RouteAmbiguous, decision.State)
	assert.Empty(t, decision.AgentID)
}

func TestRouteNoSignals(t *testing.T) {
	idx := buildIndex(t, []unitSpec{
		{id: "frontend-specialist", category: catalog.CategoryAgent, domain: "frontend", extensions: []string{".tsx"}},
	})

	decision := Route(idx, signals.WorkContext{Scope: signals.ScopeFeature}, DefaultPolicy(), asOf)
	assert.Equal(t, RouteAmbiguous, decision.State)
}

func TestRouteIgnoresLifecycledAgents(t *testing.T) {
	idx := buildIndex(t, []unitSpec{
		{id: "old-specialist", category: catalog.CategoryAgent, domain: "frontend", lifecycle: catalog.StateRemoved, extensions: []string{".tsx"}},
		{id: "frontend-specialist", category: catalog.CategoryAgent, domain: "frontend", extensions: []string{".tsx"}},
	})

	wc := signals.WorkContext{TouchedExtensions: []string{".tsx"}, Scope: signals.ScopeFeature}
	decision := Route(idx, wc, DefaultPolicy(), asOf)

	assert.Equal(t, RouteClear, decision.State)
	assert.Equal(t, "frontend-specialist", decision.AgentID)
}

func TestRouteSingleDomainPicksTopAgent(t *testing.T) {
	idx := buildIndex(t, []unitSpec{
		{id: "frontend-specialist", category: catalog.CategoryAgent, domain: "frontend", priority: 1, extensions: []string{".tsx"}},
		{id: "frontend-intern", category: catalog.CategoryAgent, domain: "frontend", extensions: []string{".tsx"}},
	})

	wc := signals.WorkContext{TouchedExtensions: []string{".tsx"}, Scope: signals.ScopeFeature}
	decision := Route(idx, wc, DefaultPolicy(), asOf)

	assert.Equal(t, RouteClear, decision.State)
	assert.Equal(t, "frontend-specialist", decision.AgentID)
}
