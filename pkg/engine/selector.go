package engine

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rulekit/rulekit/pkg/catalog"
	"github.com/rulekit/rulekit/pkg/logger"
	"github.com/rulekit/rulekit/pkg/signals"
)

// Rejection reasons recorded in Selection.Rejected
const (
	reasonRemoved    = "removed"
	reasonDeprecated = "deprecated"
	reasonOverLimit  = "over_limit"

	reasonReplacedByPrefix   = "replaced_by:"
	reasonSupersededByPrefix = "superseded_by:"
)

// Selection is the engine output: the ordered unit ids to load, the routed
// agent, and the reason every dropped candidate was dropped.
type Selection struct {
	RunID        string            `json:"-"`
	OrderedUnits []string          `json:"ordered_units"`
	ChosenAgent  string            `json:"chosen_agent,omitempty"`
	Ambiguous    bool              `json:"ambiguous"`
	Rejected     map[string]string `json:"rejected,omitempty"`
}

// candidate is a unit whose triggers fired, with its running score
type candidate struct {
	unit        *catalog.ContentUnit
	score       float64
	keywordHits int
	kinds       map[catalog.TriggerKind]bool
}

// Classify runs the full pipeline: rule/skill selection plus agent routing,
// assembled into one Selection. It never mutates the index and is
// deterministic for a fixed (index, work context, policy, as-of date).
func Classify(ctx context.Context, idx *catalog.Index, wc signals.WorkContext, policy PolicyConfig, asOf time.Time) Selection {
	runID := uuid.NewString()

	selection := Select(idx, wc, policy, asOf)
	decision := Route(idx, wc, policy, asOf)

	selection.RunID = runID
	selection.ChosenAgent = decision.AgentID
	selection.Ambiguous = decision.State == RouteAmbiguous

	logger.G(ctx).WithFields(map[string]interface{}{
		"run_id":   runID,
		"selected": len(selection.OrderedUnits),
		"rejected": len(selection.Rejected),
		"agent":    selection.ChosenAgent,
		"route":    string(decision.State),
	}).Debug("Classified work context")

	return selection
}

// Select runs the rule/skill pipeline: candidate gathering, scoring,
// lifecycle filtering, conflict resolution, and load-limit truncation.
// Agents are routed separately (see Route); they never occupy a slot in the
// load-limit window.
func Select(idx *catalog.Index, wc signals.WorkContext, policy PolicyConfig, asOf time.Time) Selection {
	selection := Selection{
		OrderedUnits: []string{},
		Rejected:     map[string]string{},
	}

	candidates := gatherCandidates(idx, wc, func(u *catalog.ContentUnit) bool {
		return u.Category != catalog.CategoryAgent
	})
	for _, cand := range candidates {
		cand.score = baseScore(cand, policy)
	}

	survivors := filterLifecycle(candidates, asOf, selection.Rejected)
	survivors = resolveConflicts(idx, survivors, selection.Rejected)

	sortCandidates(survivors)

	// Truncation is last so that every unit removed above promotes the
	// next-ranked candidate into the limit window.
	limit := policy.LimitFor(wc.Scope)
	for i, cand := range survivors {
		if limit > 0 && i >= limit {
			selection.Rejected[cand.unit.ID] = reasonOverLimit
			continue
		}
		selection.OrderedUnits = append(selection.OrderedUnits, cand.unit.ID)
	}

	return selection
}

// gatherCandidates unions the three signal lookups into one candidate set,
// returned in catalog declaration order.
func gatherCandidates(idx *catalog.Index, wc signals.WorkContext, keep func(*catalog.ContentUnit) bool) []*candidate {
	byID := make(map[string]*candidate)

	add := func(unit *catalog.ContentUnit, kind catalog.TriggerKind) *candidate {
		if !keep(unit) {
			return nil
		}
		cand, ok := byID[unit.ID]
		if !ok {
			cand = &candidate{unit: unit, kinds: make(map[catalog.TriggerKind]bool)}
			byID[unit.ID] = cand
		}
		cand.kinds[kind] = true
		return cand
	}

	for _, ext := range wc.TouchedExtensions {
		for _, unit := range idx.LookupExtension(ext) {
			add(unit, catalog.KindFileExtension)
		}
	}

	for _, marker := range wc.ProjectMarkers {
		for _, unit := range idx.LookupMarker(marker.File, marker.Key) {
			add(unit, catalog.KindProjectMarker)
		}
	}

	for id, hits := range idx.KeywordHits(wc.RequestText) {
		unit, ok := idx.Unit(id)
		if !ok {
			continue
		}
		if cand := add(unit, catalog.KindKeyword); cand != nil {
			cand.keywordHits = hits
		}
	}

	candidates := make([]*candidate, 0, len(byID))
	for _, cand := range byID {
		candidates = append(candidates, cand)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].unit.DeclOrder < candidates[j].unit.DeclOrder
	})

	return candidates
}

// baseScore implements declared_priority * priority_factor +
// trigger_kind_weight + keyword_hit_count, where the kind weight is that of
// the strongest signal kind that fired.
func baseScore(cand *candidate, policy PolicyConfig) float64 {
	score := float64(cand.unit.Priority) * policy.Weights.PriorityFactor

	switch {
	case cand.kinds[catalog.KindProjectMarker]:
		score += policy.Weights.ProjectMarker
	case cand.kinds[catalog.KindFileExtension]:
		score += policy.Weights.FileExtension
	case cand.kinds[catalog.KindKeyword]:
		score += policy.Weights.Keyword
	}

	return score + float64(cand.keywordHits)
}

// filterLifecycle applies the deprecation policy as of the given date:
// removed units drop, past-sunset deprecated units drop, live deprecated
// units are down-weighted, and a deprecated unit whose replacement also
// fired always loses to the replacement.
func filterLifecycle(candidates []*candidate, asOf time.Time, rejected map[string]string) []*candidate {
	alive := make([]*candidate, 0, len(candidates))
	aliveIDs := make(map[string]bool)

	for _, cand := range candidates {
		switch cand.unit.StateAt(asOf) {
		case catalog.StateRemoved:
			if cand.unit.Lifecycle == catalog.StateRemoved {
				rejected[cand.unit.ID] = reasonRemoved
			} else {
				rejected[cand.unit.ID] = reasonDeprecated
			}
		case catalog.StateDeprecated:
			cand.score /= 2
			alive = append(alive, cand)
			aliveIDs[cand.unit.ID] = true
		default:
			alive = append(alive, cand)
			aliveIDs[cand.unit.ID] = true
		}
	}

	// Replacement precedence: when both the deprecated unit and its declared
	// replacement fired, the replacement wins regardless of score.
	kept := alive[:0]
	for _, cand := range alive {
		if cand.unit.Lifecycle == catalog.StateDeprecated &&
			cand.unit.Replacement != "" && aliveIDs[cand.unit.Replacement] {
			rejected[cand.unit.ID] = reasonReplacedByPrefix + cand.unit.Replacement
			continue
		}
		kept = append(kept, cand)
	}

	return kept
}

// resolveConflicts enforces exclusion groups: within each declared group the
// highest-scored surviving member wins, ties broken by declaration order.
func resolveConflicts(idx *catalog.Index, candidates []*candidate, rejected map[string]string) []*candidate {
	byID := make(map[string]*candidate, len(candidates))
	for _, cand := range candidates {
		byID[cand.unit.ID] = cand
	}

	for _, group := range idx.Groups() {
		var members []*candidate
		for _, id := range group.Members {
			if cand, ok := byID[id]; ok {
				members = append(members, cand)
			}
		}
		if len(members) < 2 {
			continue
		}

		winner := members[0]
		for _, cand := range members[1:] {
			if cand.score > winner.score ||
				(cand.score == winner.score && cand.unit.DeclOrder < winner.unit.DeclOrder) {
				winner = cand
			}
		}

		for _, cand := range members {
			if cand == winner {
				continue
			}
			rejected[cand.unit.ID] = reasonSupersededByPrefix + winner.unit.ID
			delete(byID, cand.unit.ID)
		}
	}

	kept := candidates[:0]
	for _, cand := range candidates {
		if _, ok := byID[cand.unit.ID]; ok {
			kept = append(kept, cand)
		}
	}

	return kept
}

// sortCandidates orders by score descending, declaration order ascending
func sortCandidates(candidates []*candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].unit.DeclOrder < candidates[j].unit.DeclOrder
	})
}
