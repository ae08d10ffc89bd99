package catalog

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	"gopkg.in/yaml.v3"

	"github.com/rulekit/rulekit/pkg/logger"
)

const (
	rulesDirName  = "rules"
	skillsDirName = "skills"
	agentsDirName = "agents"
	skillFileName = "SKILL.md"
	groupsFile    = "groups.yaml"

	sunsetDateLayout = "2006-01-02"
)

// Loader reads catalog directories into a Catalog. Each directory is expected
// to contain rules/, skills/, agents/ subdirectories and an optional
// groups.yaml. Earlier directories take precedence when the same unit id
// appears more than once.
type Loader struct {
	catalogDirs []string
}

// Option is a function that configures a Loader
type Option func(*Loader) error

// WithCatalogDirs sets custom catalog directories
func WithCatalogDirs(dirs ...string) Option {
	return func(l *Loader) error {
		if len(dirs) == 0 {
			return errors.New("at least one catalog directory must be specified")
		}
		l.catalogDirs = dirs
		return nil
	}
}

// WithDefaultDirs initializes with the default catalog directories
func WithDefaultDirs() Option {
	return func(l *Loader) error {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "failed to get user home directory")
		}
		l.catalogDirs = []string{
			"./.rulekit/catalog",                          // Repo-local (highest precedence)
			filepath.Join(homeDir, ".rulekit", "catalog"), // User-global
		}
		return nil
	}
}

// NewLoader creates a new catalog loader
func NewLoader(opts ...Option) (*Loader, error) {
	l := &Loader{}

	if len(opts) == 0 {
		if err := WithDefaultDirs()(l); err != nil {
			return nil, err
		}
		return l, nil
	}

	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Dirs returns the configured catalog directories
func (l *Loader) Dirs() []string {
	return l.catalogDirs
}

// Load reads all configured directories into a Catalog. Unit files that fail
// to parse are skipped with a warning; they never abort the load. Referential
// validation (dangling ids) happens in NewIndex, not here.
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	cat := &Catalog{}
	seen := make(map[string]bool)

	for _, dir := range l.catalogDirs {
		l.loadUnitsFromDir(ctx, dir, cat, seen)
		l.loadGroupsFromDir(ctx, dir, cat)
	}

	for i, unit := range cat.Units {
		unit.DeclOrder = i
	}

	logger.G(ctx).WithFields(map[string]interface{}{
		"units":  len(cat.Units),
		"groups": len(cat.Groups),
	}).Debug("Loaded catalog")

	return cat, nil
}

func (l *Loader) loadUnitsFromDir(ctx context.Context, dir string, cat *Catalog, seen map[string]bool) {
	l.loadFlatUnits(ctx, filepath.Join(dir, rulesDirName), CategoryRule, cat, seen)
	l.loadSkillUnits(ctx, filepath.Join(dir, skillsDirName), cat, seen)
	l.loadFlatUnits(ctx, filepath.Join(dir, agentsDirName), CategoryAgent, cat, seen)
}

// loadFlatUnits loads <dir>/*.md unit files (rules and agents)
func (l *Loader) loadFlatUnits(ctx context.Context, dir string, category Category, cat *Catalog, seen map[string]bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		l.appendUnit(ctx, filepath.Join(dir, entry.Name()), category, cat, seen)
	}
}

// loadSkillUnits loads <dir>/<skill>/SKILL.md unit files
func (l *Loader) loadSkillUnits(ctx context.Context, dir string, cat *Catalog, seen map[string]bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		entryPath := filepath.Join(dir, entry.Name())

		info, err := os.Stat(entryPath)
		if err != nil || !info.IsDir() {
			continue
		}

		l.appendUnit(ctx, filepath.Join(entryPath, skillFileName), CategorySkill, cat, seen)
	}
}

func (l *Loader) appendUnit(ctx context.Context, path string, category Category, cat *Catalog, seen map[string]bool) {
	unit, err := loadUnitFile(path, category)
	if err != nil {
		logger.G(ctx).WithField("path", path).WithError(err).Warn("Skipping invalid catalog unit")
		return
	}

	if seen[unit.ID] {
		return
	}
	seen[unit.ID] = true
	cat.Units = append(cat.Units, unit)
}

func (l *Loader) loadGroupsFromDir(ctx context.Context, dir string, cat *Catalog) {
	path := filepath.Join(dir, groupsFile)
	content, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var decl struct {
		Groups []ExclusionGroup `yaml:"groups"`
	}
	if err := yaml.Unmarshal(content, &decl); err != nil {
		logger.G(ctx).WithField("path", path).WithError(err).Warn("Skipping malformed groups file")
		return
	}

	cat.Groups = append(cat.Groups, decl.Groups...)
}

// unitMeta mirrors the YAML frontmatter schema of a catalog unit file
type unitMeta struct {
	Name        string      `mapstructure:"name"`
	Description string      `mapstructure:"description"`
	Priority    int         `mapstructure:"priority"`
	Lifecycle   string      `mapstructure:"lifecycle"`
	SunsetDate  string      `mapstructure:"sunset_date"`
	Replacement string      `mapstructure:"replacement"`
	LoadedBy    string      `mapstructure:"loaded_by"`
	Domain      string      `mapstructure:"domain"`
	Coordinator bool        `mapstructure:"coordinator"`
	Triggers    triggerMeta `mapstructure:"triggers"`
}

type triggerMeta struct {
	Extensions            []string     `mapstructure:"extensions"`
	Markers               []markerMeta `mapstructure:"markers"`
	Keywords              []string     `mapstructure:"keywords"`
	CaseSensitiveKeywords bool         `mapstructure:"case_sensitive_keywords"`
}

type markerMeta struct {
	File string `mapstructure:"file"`
	Key  string `mapstructure:"key"`
}

// loadUnitFile loads a single content unit from a markdown file
func loadUnitFile(path string, category Category) (*ContentUnit, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read unit file")
	}

	metaData, err := parseFrontmatter(content)
	if err != nil {
		return nil, err
	}

	var um unitMeta
	if err := mapstructure.Decode(metaData, &um); err != nil {
		return nil, errors.Wrap(err, "failed to decode frontmatter")
	}

	if um.Name == "" {
		return nil, errors.New("unit name is required in frontmatter")
	}
	if um.Description == "" {
		return nil, errors.New("unit description is required in frontmatter")
	}

	lifecycle, err := ParseLifecycleState(um.Lifecycle)
	if err != nil {
		return nil, err
	}

	var sunset time.Time
	if um.SunsetDate != "" {
		sunset, err = time.Parse(sunsetDateLayout, um.SunsetDate)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid sunset_date '%s'", um.SunsetDate)
		}
	}

	unit := &ContentUnit{
		ID:          um.Name,
		Description: um.Description,
		Category:    category,
		Priority:    um.Priority,
		Lifecycle:   lifecycle,
		SunsetDate:  sunset,
		Replacement: um.Replacement,
		LoadedBy:    um.LoadedBy,
		Domain:      um.Domain,
		Coordinator: um.Coordinator,
		Path:        path,
	}

	for _, ext := range um.Triggers.Extensions {
		unit.Triggers = append(unit.Triggers, TriggerSpec{
			Kind:    KindFileExtension,
			Pattern: normalizeExtension(ext),
		})
	}
	for _, m := range um.Triggers.Markers {
		if m.File == "" {
			return nil, errors.New("marker trigger requires a file pattern")
		}
		unit.Triggers = append(unit.Triggers, TriggerSpec{
			Kind:    KindProjectMarker,
			Pattern: m.File,
			Key:     m.Key,
		})
	}
	for _, kw := range um.Triggers.Keywords {
		unit.Triggers = append(unit.Triggers, TriggerSpec{
			Kind:          KindKeyword,
			Pattern:       kw,
			CaseSensitive: um.Triggers.CaseSensitiveKeywords,
		})
	}

	return unit, nil
}

// parseFrontmatter extracts the YAML frontmatter metadata map from a unit file
func parseFrontmatter(content []byte) (map[string]interface{}, error) {
	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()

	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse markdown")
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return nil, errors.New("missing frontmatter")
	}

	return metaData, nil
}

// normalizeExtension lowercases an extension and ensures the leading dot
func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
