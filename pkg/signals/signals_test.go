package signals

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulekit/rulekit/pkg/catalog"
)

func TestParseTaskScope(t *testing.T) {
	tests := []struct {
		input    string
		expected TaskScope
		wantErr  bool
	}{
		{"single_file", ScopeSingleFile, false},
		{"single-file", ScopeSingleFile, false},
		{"Feature", ScopeFeature, false},
		{"multi-file", ScopeMultiFile, false},
		{"architecture", ScopeArchitecture, false},
		{"galaxy", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			scope, err := ParseTaskScope(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, scope)
		})
	}
}

func TestExtensionsFromPaths(t *testing.T) {
	t.Run("deduplicates and sorts", func(t *testing.T) {
		exts := ExtensionsFromPaths([]string{
			"src/App.tsx",
			"src/Button.TSX",
			"db/schema.sql",
			"Makefile",
		})
		assert.Equal(t, []string{".sql", ".tsx"}, exts)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, ExtensionsFromPaths(nil))
	})
}

func markerProbe(file, key string) catalog.TriggerSpec {
	return catalog.TriggerSpec{Kind: catalog.KindProjectMarker, Pattern: file, Key: key}
}

func TestProbeProject(t *testing.T) {
	ctx := context.Background()

	t.Run("file presence", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, "composer.json"), []byte(`{}`), 0o644))

		markers := ProbeProject(ctx, root, []catalog.TriggerSpec{markerProbe("composer.json", "")})
		assert.Equal(t, []Marker{{File: "composer.json"}}, markers)
	})

	t.Run("dependency key present", func(t *testing.T) {
		root := t.TempDir()
		manifest := `{"require": {"laravel/framework": "^11.0"}}`
		require.NoError(t, os.WriteFile(filepath.Join(root, "composer.json"), []byte(manifest), 0o644))

		markers := ProbeProject(ctx, root, []catalog.TriggerSpec{markerProbe("composer.json", `require.laravel/framework`)})
		require.Len(t, markers, 1)
		assert.Equal(t, `require.laravel/framework`, markers[0].Key)
	})

	t.Run("dependency key absent", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte(`{"dependencies": {"vue": "^3"}}`), 0o644))

		markers := ProbeProject(ctx, root, []catalog.TriggerSpec{markerProbe("package.json", "dependencies.react")})
		assert.Empty(t, markers)
	})

	t.Run("malformed manifest degrades to absent", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte("{not json"), 0o644))

		markers := ProbeProject(ctx, root, []catalog.TriggerSpec{markerProbe("package.json", "dependencies.react")})
		assert.Empty(t, markers)
	})

	t.Run("glob filename pattern", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, "App.csproj"), []byte("<Project/>"), 0o644))

		markers := ProbeProject(ctx, root, []catalog.TriggerSpec{markerProbe("*.csproj", "")})
		assert.Equal(t, []Marker{{File: "App.csproj"}}, markers)
	})

	t.Run("missing root yields no markers", func(t *testing.T) {
		markers := ProbeProject(ctx, "/non/existent/root", []catalog.TriggerSpec{markerProbe("package.json", "")})
		assert.Empty(t, markers)
	})

	t.Run("directories are not markers", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(root, "package.json"), 0o755))

		markers := ProbeProject(ctx, root, []catalog.TriggerSpec{markerProbe("package.json", "")})
		assert.Empty(t, markers)
	})

	t.Run("cancelled context stops probing", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, "package.json"), []byte(`{}`), 0o644))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		markers := ProbeProject(cancelled, root, []catalog.TriggerSpec{markerProbe("package.json", "")})
		assert.Empty(t, markers)
	})
}
