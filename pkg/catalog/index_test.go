package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(id string, category Category, triggers ...TriggerSpec) *ContentUnit {
	return &ContentUnit{
		ID:          id,
		Description: "test unit " + id,
		Category:    category,
		Lifecycle:   StateActive,
		Triggers:    triggers,
	}
}

func newTestIndex(t *testing.T, cat *Catalog) *Index {
	t.Helper()
	for i, u := range cat.Units {
		u.DeclOrder = i
	}
	idx, err := NewIndex(cat)
	require.NoError(t, err)
	return idx
}

func TestNewIndexValidation(t *testing.T) {
	t.Run("dangling replacement", func(t *testing.T) {
		old := unit("old-rule", CategoryRule)
		old.Lifecycle = StateDeprecated
		old.Replacement = "new-rule"

		_, err := NewIndex(&Catalog{Units: []*ContentUnit{old}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "replacement 'new-rule' is not defined")
	})

	t.Run("unknown group member", func(t *testing.T) {
		cat := &Catalog{
			Units:  []*ContentUnit{unit("react", CategoryRule)},
			Groups: []ExclusionGroup{{ID: "frontend-framework", Members: []string{"react", "vue"}}},
		}
		_, err := NewIndex(cat)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "member 'vue' is not defined")
	})

	t.Run("all problems reported together", func(t *testing.T) {
		old := unit("old-rule", CategoryRule)
		old.Replacement = "missing-replacement"
		cat := &Catalog{
			Units:  []*ContentUnit{old},
			Groups: []ExclusionGroup{{ID: "g", Members: []string{"missing-member"}}},
		}
		_, err := NewIndex(cat)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing-replacement")
		assert.Contains(t, err.Error(), "missing-member")
	})

	t.Run("group without id", func(t *testing.T) {
		cat := &Catalog{Groups: []ExclusionGroup{{Members: []string{"x"}}}}
		_, err := NewIndex(cat)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty id")
	})

	t.Run("group without members", func(t *testing.T) {
		cat := &Catalog{Groups: []ExclusionGroup{{ID: "empty-group"}}}
		_, err := NewIndex(cat)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no members")
	})

	t.Run("invalid marker pattern", func(t *testing.T) {
		bad := unit("bad", CategoryRule, TriggerSpec{Kind: KindProjectMarker, Pattern: "[unclosed"})
		_, err := NewIndex(&Catalog{Units: []*ContentUnit{bad}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid marker pattern")
	})
}

func TestLookupExtension(t *testing.T) {
	idx := newTestIndex(t, &Catalog{Units: []*ContentUnit{
		unit("react", CategoryRule, TriggerSpec{Kind: KindFileExtension, Pattern: ".tsx"}),
		unit("typescript", CategoryRule,
			TriggerSpec{Kind: KindFileExtension, Pattern: ".ts"},
			TriggerSpec{Kind: KindFileExtension, Pattern: ".tsx"}),
	}})

	tsx := idx.LookupExtension(".tsx")
	require.Len(t, tsx, 2)

	// Lookup normalizes the extension form
	assert.Len(t, idx.LookupExtension("TSX"), 2)
	assert.Len(t, idx.LookupExtension(".ts"), 1)
	assert.Empty(t, idx.LookupExtension(".go"))
}

func TestLookupMarker(t *testing.T) {
	idx := newTestIndex(t, &Catalog{Units: []*ContentUnit{
		unit("node", CategoryRule, TriggerSpec{Kind: KindProjectMarker, Pattern: "package.json"}),
		unit("react", CategoryRule, TriggerSpec{Kind: KindProjectMarker, Pattern: "package.json", Key: "dependencies.react"}),
		unit("dotnet", CategoryRule, TriggerSpec{Kind: KindProjectMarker, Pattern: "*.csproj"}),
	}})

	t.Run("presence only", func(t *testing.T) {
		units := idx.LookupMarker("package.json", "")
		require.Len(t, units, 1)
		assert.Equal(t, "node", units[0].ID)
	})

	t.Run("key disambiguates shared manifest", func(t *testing.T) {
		units := idx.LookupMarker("package.json", "dependencies.react")
		require.Len(t, units, 2)
		assert.Equal(t, "node", units[0].ID)
		assert.Equal(t, "react", units[1].ID)
	})

	t.Run("glob filename pattern", func(t *testing.T) {
		units := idx.LookupMarker("App.csproj", "")
		require.Len(t, units, 1)
		assert.Equal(t, "dotnet", units[0].ID)
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, idx.LookupMarker("composer.json", ""))
	})
}

func TestKeywordHits(t *testing.T) {
	caseSensitive := unit("sql-rule", CategoryRule, TriggerSpec{Kind: KindKeyword, Pattern: "SELECT", CaseSensitive: true})
	idx := newTestIndex(t, &Catalog{Units: []*ContentUnit{
		unit("testing", CategoryRule,
			TriggerSpec{Kind: KindKeyword, Pattern: "test"},
			TriggerSpec{Kind: KindKeyword, Pattern: "testing"}),
		caseSensitive,
	}})

	t.Run("overlapping keywords each count", func(t *testing.T) {
		hits := idx.KeywordHits("add testing for the parser")
		assert.Equal(t, 2, hits["testing"])
	})

	t.Run("case insensitive by default", func(t *testing.T) {
		hits := idx.KeywordHits("Add a TEST")
		assert.Equal(t, 1, hits["testing"])
	})

	t.Run("case sensitive when declared", func(t *testing.T) {
		assert.Empty(t, idx.KeywordHits("select * from users"))
		assert.Equal(t, 1, idx.KeywordHits("run SELECT on users")["sql-rule"])
	})

	t.Run("empty text", func(t *testing.T) {
		assert.Empty(t, idx.KeywordHits(""))
	})
}

func TestMarkerProbes(t *testing.T) {
	idx := newTestIndex(t, &Catalog{Units: []*ContentUnit{
		unit("node", CategoryRule, TriggerSpec{Kind: KindProjectMarker, Pattern: "package.json"}),
		unit("react", CategoryRule, TriggerSpec{Kind: KindProjectMarker, Pattern: "package.json", Key: "dependencies.react"}),
		unit("also-node", CategoryRule, TriggerSpec{Kind: KindProjectMarker, Pattern: "package.json"}),
	}})

	probes := idx.MarkerProbes()
	require.Len(t, probes, 2)
	assert.Equal(t, "package.json", probes[0].Pattern)
	assert.Empty(t, probes[0].Key)
	assert.Equal(t, "dependencies.react", probes[1].Key)
}

func TestCoordinator(t *testing.T) {
	t.Run("first declared coordinator wins", func(t *testing.T) {
		lead := unit("tech-lead", CategoryAgent)
		lead.Coordinator = true
		second := unit("other-lead", CategoryAgent)
		second.Coordinator = true

		idx := newTestIndex(t, &Catalog{Units: []*ContentUnit{lead, second}})
		require.NotNil(t, idx.Coordinator())
		assert.Equal(t, "tech-lead", idx.Coordinator().ID)
	})

	t.Run("no coordinator", func(t *testing.T) {
		idx := newTestIndex(t, &Catalog{Units: []*ContentUnit{unit("a", CategoryAgent)}})
		assert.Nil(t, idx.Coordinator())
	})
}

func TestStateAt(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("active stays active", func(t *testing.T) {
		u := unit("a", CategoryRule)
		assert.Equal(t, StateActive, u.StateAt(now))
	})

	t.Run("deprecated before sunset", func(t *testing.T) {
		u := unit("a", CategoryRule)
		u.Lifecycle = StateDeprecated
		u.SunsetDate = time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, StateDeprecated, u.StateAt(now))
	})

	t.Run("deprecated past sunset counts as removed", func(t *testing.T) {
		u := unit("a", CategoryRule)
		u.Lifecycle = StateDeprecated
		u.SunsetDate = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, StateRemoved, u.StateAt(now))
	})

	t.Run("deprecated without sunset never expires", func(t *testing.T) {
		u := unit("a", CategoryRule)
		u.Lifecycle = StateDeprecated
		assert.Equal(t, StateDeprecated, u.StateAt(now))
	})
}
