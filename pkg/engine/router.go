package engine

import (
	"time"

	"github.com/rulekit/rulekit/pkg/catalog"
	"github.com/rulekit/rulekit/pkg/signals"
)

// RouteState is the terminal state of one routing decision
type RouteState string

const (
	// RouteClear means a single agent dominated the signals
	RouteClear RouteState = "clear"
	// RouteMultiDomain means signals spanned two or more agent domains
	RouteMultiDomain RouteState = "multi_domain"
	// RouteAmbiguous means no agent cleared the confidence bar; the caller
	// should escalate to a clarification step.
	RouteAmbiguous RouteState = "ambiguous"
)

// RouteDecision is the agent router output
type RouteDecision struct {
	AgentID string     `json:"agent_id,omitempty"`
	State   RouteState `json:"state"`
}

// Route maps a work context to a single primary agent. It runs the same
// candidate/score pipeline restricted to category=agent, then decides in one
// pass: one dominant agent routes Clear, signals spanning two or more agent
// domains route to the declared coordinator, everything else is Ambiguous.
func Route(idx *catalog.Index, wc signals.WorkContext, policy PolicyConfig, asOf time.Time) RouteDecision {
	candidates := gatherCandidates(idx, wc, func(u *catalog.ContentUnit) bool {
		return u.Category == catalog.CategoryAgent
	})
	for _, cand := range candidates {
		cand.score = baseScore(cand, policy)
	}

	candidates = filterLifecycle(candidates, asOf, map[string]string{})

	domains := make(map[string]bool)
	specialists := make([]*candidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand.unit.Coordinator {
			continue
		}
		specialists = append(specialists, cand)
		if cand.unit.Domain != "" {
			domains[cand.unit.Domain] = true
		}
	}

	if len(domains) >= 2 {
		if coordinator := idx.Coordinator(); coordinator != nil {
			return RouteDecision{AgentID: coordinator.ID, State: RouteMultiDomain}
		}
		// A multi-domain context without a declared coordinator has nowhere
		// to route; surface it as ambiguity rather than guessing.
		return RouteDecision{State: RouteAmbiguous}
	}

	if len(specialists) == 0 {
		return RouteDecision{State: RouteAmbiguous}
	}

	sortCandidates(specialists)

	top := specialists[0]
	if top.score < policy.Router.MinConfidence {
		return RouteDecision{State: RouteAmbiguous}
	}
	if len(specialists) > 1 && top.score-specialists[1].score <= policy.Router.TieMargin {
		return RouteDecision{State: RouteAmbiguous}
	}

	return RouteDecision{AgentID: top.unit.ID, State: RouteClear}
}
