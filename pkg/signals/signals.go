// Package signals builds the per-call WorkContext: the touched file
// extensions, confirmed project markers, and free-text request that a
// classification run is scored against. Project probing is best-effort and
// bounded by the caller's context; anything unreadable degrades to "marker
// absent", never an error.
package signals

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/rulekit/rulekit/pkg/catalog"
	"github.com/rulekit/rulekit/pkg/logger"
)

// TaskScope determines the load-limit tier of a classification run
type TaskScope string

const (
	ScopeSingleFile   TaskScope = "single_file"
	ScopeFeature      TaskScope = "feature"
	ScopeMultiFile    TaskScope = "multi_file"
	ScopeArchitecture TaskScope = "architecture"
)

// ParseTaskScope parses a scope value, accepting dash and underscore forms
func ParseTaskScope(s string) (TaskScope, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch TaskScope(normalized) {
	case ScopeSingleFile, ScopeFeature, ScopeMultiFile, ScopeArchitecture:
		return TaskScope(normalized), nil
	default:
		return "", errors.Errorf("invalid task scope '%s'", s)
	}
}

// Marker is a confirmed (filename, optional dependency key) pair found in
// the project root.
type Marker struct {
	File string `json:"file"`
	Key  string `json:"key,omitempty"`
}

// WorkContext is the input to a single classification call
type WorkContext struct {
	TouchedExtensions []string  `json:"touched_extensions,omitempty"`
	ProjectMarkers    []Marker  `json:"project_markers,omitempty"`
	RequestText       string    `json:"request_text,omitempty"`
	Scope             TaskScope `json:"task_scope"`
}

// ExtensionsFromPaths derives the deduplicated, sorted set of lowercase file
// extensions from a list of file paths. Files without an extension are
// ignored.
func ExtensionsFromPaths(paths []string) []string {
	seen := make(map[string]bool)
	var exts []string

	for _, path := range paths {
		ext := strings.ToLower(filepath.Ext(path))
		if ext == "" || seen[ext] {
			continue
		}
		seen[ext] = true
		exts = append(exts, ext)
	}

	sort.Strings(exts)
	return exts
}

// ProbeProject checks the project root for the given marker probes and
// returns the confirmed markers. Only the root directory itself is scanned;
// marker files live at the project root by convention. A probe with a key
// requires the key to resolve inside the marker file's JSON content.
//
// The probe is best-effort: a missing root, unreadable file, or malformed
// manifest is logged at debug level and treated as absent. Cancellation of
// ctx stops probing early with whatever was confirmed so far.
func ProbeProject(ctx context.Context, root string, probes []catalog.TriggerSpec) []Marker {
	entries, err := os.ReadDir(root)
	if err != nil {
		logger.G(ctx).WithField("root", root).WithError(err).Debug("Project root not readable, no markers")
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}

	var markers []Marker
	seen := make(map[Marker]bool)

	for _, probe := range probes {
		if ctx.Err() != nil {
			logger.G(ctx).Debug("Project probe cancelled, returning partial markers")
			return markers
		}

		matcher, err := glob.Compile(probe.Pattern)
		if err != nil {
			logger.G(ctx).WithField("pattern", probe.Pattern).WithError(err).Debug("Skipping invalid marker pattern")
			continue
		}

		for _, name := range names {
			if !matcher.Match(name) {
				continue
			}

			marker := Marker{File: name, Key: probe.Key}
			if seen[marker] {
				continue
			}

			if probe.Key != "" && !manifestHasKey(ctx, filepath.Join(root, name), probe.Key) {
				continue
			}

			seen[marker] = true
			markers = append(markers, marker)
		}
	}

	return markers
}

// manifestHasKey reports whether a JSON manifest file contains the given key
// path. Unreadable or malformed content counts as absent.
func manifestHasKey(ctx context.Context, path, key string) bool {
	content, err := os.ReadFile(path)
	if err != nil {
		logger.G(ctx).WithField("path", path).WithError(err).Debug("Marker file not readable")
		return false
	}

	if !gjson.ValidBytes(content) {
		logger.G(ctx).WithField("path", path).Debug("Marker file is not valid JSON, treating key as absent")
		return false
	}

	return gjson.GetBytes(content, key).Exists()
}
