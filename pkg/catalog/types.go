// Package catalog loads and indexes the declarative activation catalog: rules,
// skills, and agents described as markdown files with YAML frontmatter, plus
// exclusion-group declarations. The catalog is read once and exposed as an
// immutable Index snapshot that classification runs share without locking.
package catalog

import (
	"time"

	"github.com/pkg/errors"
)

// Category classifies a content unit
type Category string

const (
	CategoryRule  Category = "rule"
	CategorySkill Category = "skill"
	CategoryAgent Category = "agent"
)

// LifecycleState is the declared lifecycle of a content unit
type LifecycleState string

const (
	StateActive     LifecycleState = "active"
	StateDeprecated LifecycleState = "deprecated"
	StateRemoved    LifecycleState = "removed"
)

// ParseLifecycleState parses a frontmatter lifecycle value. An empty value
// defaults to active.
func ParseLifecycleState(s string) (LifecycleState, error) {
	switch LifecycleState(s) {
	case "":
		return StateActive, nil
	case StateActive, StateDeprecated, StateRemoved:
		return LifecycleState(s), nil
	default:
		return "", errors.Errorf("invalid lifecycle state '%s'", s)
	}
}

// TriggerKind discriminates the three trigger types
type TriggerKind string

const (
	KindFileExtension TriggerKind = "file_extension"
	KindProjectMarker TriggerKind = "project_marker"
	KindKeyword       TriggerKind = "keyword"
)

// TriggerSpec is a single declarative activation condition. Pattern holds the
// extension, marker filename (glob patterns allowed), or keyword depending on
// Kind. Key is only set for project markers that probe a JSON dependency key
// inside the marker file.
type TriggerSpec struct {
	Kind          TriggerKind
	Pattern       string
	Key           string
	CaseSensitive bool
}

// ContentUnit is a rule, skill, or agent descriptor loaded from the catalog
type ContentUnit struct {
	ID          string
	Description string
	Category    Category
	Triggers    []TriggerSpec
	Priority    int
	Lifecycle   LifecycleState
	SunsetDate  time.Time // zero unless deprecated with a declared sunset
	Replacement string    // id of the replacing unit, deprecated units only
	LoadedBy    string    // owning agent, skills only, informational
	Domain      string    // agents only, drives multi-domain routing
	Coordinator bool      // agents only, marks the multi-domain coordinator

	// DeclOrder is the position in catalog declaration order and breaks
	// score ties deterministically.
	DeclOrder int
	// Path is the file the unit was loaded from
	Path string
}

// StateAt returns the effective lifecycle state at the given date. A
// deprecated unit whose sunset date has passed counts as removed; the
// transition is computed here rather than stored, so nothing ever has to
// flip a flag in the catalog.
func (u *ContentUnit) StateAt(asOf time.Time) LifecycleState {
	if u.Lifecycle == StateDeprecated && !u.SunsetDate.IsZero() && asOf.After(u.SunsetDate) {
		return StateRemoved
	}
	return u.Lifecycle
}

// ExclusionGroup declares a set of units of which at most one may be selected
type ExclusionGroup struct {
	ID      string   `yaml:"id"`
	Members []string `yaml:"members"`
}

// Catalog is the raw loader output before indexing: units in declaration
// order plus exclusion-group declarations.
type Catalog struct {
	Units  []*ContentUnit
	Groups []ExclusionGroup
}
