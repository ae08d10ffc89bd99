package catalog

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Index is the immutable lookup structure built once from a Catalog. It is
// safe for concurrent use; classification runs hold a single Index snapshot
// for their whole duration.
type Index struct {
	units       map[string]*ContentUnit
	order       []*ContentUnit
	byExtension map[string][]*ContentUnit
	markers     []markerEntry
	keywords    []keywordEntry
	groups      []ExclusionGroup
	coordinator *ContentUnit
}

type markerEntry struct {
	unit    *ContentUnit
	matcher glob.Glob
	pattern string
	key     string
}

type keywordEntry struct {
	unit          *ContentUnit
	pattern       string
	caseSensitive bool
}

// NewIndex builds an Index from a loaded Catalog. Every referential problem
// is collected and reported together: a dangling replacement id, an exclusion
// group naming an unknown unit, or an uncompilable marker pattern is a
// configuration error that must abort startup.
func NewIndex(cat *Catalog) (*Index, error) {
	idx := &Index{
		units:       make(map[string]*ContentUnit, len(cat.Units)),
		order:       cat.Units,
		byExtension: make(map[string][]*ContentUnit),
		groups:      cat.Groups,
	}

	var result *multierror.Error

	for _, unit := range cat.Units {
		idx.units[unit.ID] = unit
		if unit.Coordinator && idx.coordinator == nil {
			idx.coordinator = unit
		}
	}

	for _, unit := range cat.Units {
		if unit.Replacement != "" {
			if _, ok := idx.units[unit.Replacement]; !ok {
				result = multierror.Append(result, errors.Errorf(
					"unit '%s': replacement '%s' is not defined in the catalog", unit.ID, unit.Replacement))
			}
		}

		for _, trigger := range unit.Triggers {
			switch trigger.Kind {
			case KindFileExtension:
				idx.byExtension[trigger.Pattern] = append(idx.byExtension[trigger.Pattern], unit)
			case KindProjectMarker:
				matcher, err := glob.Compile(trigger.Pattern)
				if err != nil {
					result = multierror.Append(result, errors.Wrapf(err,
						"unit '%s': invalid marker pattern '%s'", unit.ID, trigger.Pattern))
					continue
				}
				idx.markers = append(idx.markers, markerEntry{
					unit:    unit,
					matcher: matcher,
					pattern: trigger.Pattern,
					key:     trigger.Key,
				})
			case KindKeyword:
				if trigger.Pattern == "" {
					continue
				}
				idx.keywords = append(idx.keywords, keywordEntry{
					unit:          unit,
					pattern:       trigger.Pattern,
					caseSensitive: trigger.CaseSensitive,
				})
			}
		}
	}

	for _, group := range cat.Groups {
		if group.ID == "" {
			result = multierror.Append(result, errors.New("exclusion group with empty id"))
			continue
		}
		if len(group.Members) == 0 {
			result = multierror.Append(result, errors.Errorf("exclusion group '%s' has no members", group.ID))
			continue
		}
		for _, member := range group.Members {
			if _, ok := idx.units[member]; !ok {
				result = multierror.Append(result, errors.Errorf(
					"exclusion group '%s': member '%s' is not defined in the catalog", group.ID, member))
			}
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, errors.Wrap(err, "catalog validation failed")
	}

	return idx, nil
}

// Unit returns a content unit by id
func (ix *Index) Unit(id string) (*ContentUnit, bool) {
	unit, ok := ix.units[id]
	return unit, ok
}

// Units returns all units in declaration order
func (ix *Index) Units() []*ContentUnit {
	return ix.order
}

// Len returns the number of units in the index
func (ix *Index) Len() int {
	return len(ix.order)
}

// Groups returns the exclusion-group declarations
func (ix *Index) Groups() []ExclusionGroup {
	return ix.groups
}

// Coordinator returns the first-declared coordinator agent, or nil when the
// catalog declares none.
func (ix *Index) Coordinator() *ContentUnit {
	return ix.coordinator
}

// LookupExtension returns all units triggered by the given file extension
func (ix *Index) LookupExtension(ext string) []*ContentUnit {
	return ix.byExtension[normalizeExtension(ext)]
}

// LookupMarker returns all units whose marker trigger matches the given
// (filename, key) pair. A trigger without a key matches on file presence
// alone; a trigger with a key requires the same key to have been confirmed.
func (ix *Index) LookupMarker(file, key string) []*ContentUnit {
	var units []*ContentUnit
	for _, entry := range ix.markers {
		if !entry.matcher.Match(file) {
			continue
		}
		if entry.key != "" && entry.key != key {
			continue
		}
		units = append(units, entry.unit)
	}
	return units
}

// MarkerProbes returns the distinct (file pattern, key) pairs the catalog
// wants probed in a project root, in declaration order.
func (ix *Index) MarkerProbes() []TriggerSpec {
	var probes []TriggerSpec
	seen := make(map[string]bool)

	for _, entry := range ix.markers {
		probeKey := entry.pattern + "\x00" + entry.key
		if seen[probeKey] {
			continue
		}
		seen[probeKey] = true
		probes = append(probes, TriggerSpec{
			Kind:    KindProjectMarker,
			Pattern: entry.pattern,
			Key:     entry.key,
		})
	}

	return probes
}

// KeywordHits counts, per unit id, how many keyword triggers match the given
// request text. Matching is substring based, case-insensitive unless the
// trigger is declared case sensitive. Overlapping keywords each count;
// deduplication happens downstream by unit id.
func (ix *Index) KeywordHits(text string) map[string]int {
	hits := make(map[string]int)
	if text == "" {
		return hits
	}

	lowered := strings.ToLower(text)
	for _, entry := range ix.keywords {
		if entry.caseSensitive {
			if strings.Contains(text, entry.pattern) {
				hits[entry.unit.ID]++
			}
			continue
		}
		if strings.Contains(lowered, strings.ToLower(entry.pattern)) {
			hits[entry.unit.ID]++
		}
	}

	return hits
}
