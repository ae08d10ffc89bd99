package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/rulekit/rulekit/pkg/catalog"
	"github.com/rulekit/rulekit/pkg/engine"
	"github.com/rulekit/rulekit/pkg/presenter"
	"github.com/rulekit/rulekit/pkg/signals"
)

// SelectConfig holds the flag values for the select command
type SelectConfig struct {
	Files        []string
	Extensions   []string
	Text         string
	Scope        string
	ProjectRoot  string
	AsOf         string
	JSON         bool
	ProbeTimeout time.Duration
}

// NewSelectConfig returns the select command defaults
func NewSelectConfig() *SelectConfig {
	return &SelectConfig{
		Scope:        string(signals.ScopeFeature),
		ProbeTimeout: 2 * time.Second,
	}
}

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Classify a work context against the catalog",
	Long: `Classify a work context against the catalog and print the selected
content units and the routed agent.

Examples:
  rulekit select --files 'src/**/*.tsx' --text "add a button" --scope single-file
  rulekit select --ext .php --project-root . --text "optimize query" --json`,
	Run: func(cmd *cobra.Command, _ []string) {
		config := getSelectConfigFromFlags(cmd)
		runSelect(cmd.Context(), config)
	},
}

func init() {
	defaults := NewSelectConfig()
	selectCmd.Flags().StringSlice("files", defaults.Files, "Touched file paths or glob patterns (extensions are derived)")
	selectCmd.Flags().StringSlice("ext", defaults.Extensions, "Touched file extensions (e.g. .tsx)")
	selectCmd.Flags().StringP("text", "t", defaults.Text, "Free-form request text")
	selectCmd.Flags().String("scope", defaults.Scope, "Task scope (single-file, feature, multi-file, architecture)")
	selectCmd.Flags().String("project-root", "", "Project root to probe for marker files")
	selectCmd.Flags().String("as-of", "", "Evaluate lifecycle state as of this date (YYYY-MM-DD, default today)")
	selectCmd.Flags().Bool("json", defaults.JSON, "Output the selection as JSON")
	selectCmd.Flags().Duration("probe-timeout", defaults.ProbeTimeout, "Timeout for project marker probing")

	rootCmd.AddCommand(selectCmd)
}

func getSelectConfigFromFlags(cmd *cobra.Command) *SelectConfig {
	config := NewSelectConfig()
	if files, err := cmd.Flags().GetStringSlice("files"); err == nil {
		config.Files = files
	}
	if exts, err := cmd.Flags().GetStringSlice("ext"); err == nil {
		config.Extensions = exts
	}
	if text, err := cmd.Flags().GetString("text"); err == nil {
		config.Text = text
	}
	if scope, err := cmd.Flags().GetString("scope"); err == nil {
		config.Scope = scope
	}
	if root, err := cmd.Flags().GetString("project-root"); err == nil {
		config.ProjectRoot = root
	}
	if asOf, err := cmd.Flags().GetString("as-of"); err == nil {
		config.AsOf = asOf
	}
	if jsonOut, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = jsonOut
	}
	if timeout, err := cmd.Flags().GetDuration("probe-timeout"); err == nil {
		config.ProbeTimeout = timeout
	}
	return config
}

func runSelect(ctx context.Context, config *SelectConfig) {
	scope, err := signals.ParseTaskScope(config.Scope)
	if err != nil {
		presenter.Error(err, "Invalid task scope")
		os.Exit(1)
	}

	asOf := time.Now()
	if config.AsOf != "" {
		asOf, err = time.Parse("2006-01-02", config.AsOf)
		if err != nil {
			presenter.Error(err, "Invalid as-of date")
			os.Exit(1)
		}
	}

	idx, err := loadIndex(ctx)
	if err != nil {
		presenter.Error(err, "Failed to load catalog")
		os.Exit(1)
	}

	policy, err := engine.PolicyFromViper()
	if err != nil {
		presenter.Error(err, "Invalid policy configuration")
		os.Exit(1)
	}

	wc := signals.WorkContext{
		TouchedExtensions: gatherExtensions(config),
		RequestText:       config.Text,
		Scope:             scope,
	}

	if config.ProjectRoot != "" {
		probeCtx, cancel := context.WithTimeout(ctx, config.ProbeTimeout)
		wc.ProjectMarkers = signals.ProbeProject(probeCtx, config.ProjectRoot, idx.MarkerProbes())
		cancel()
	}

	selection := engine.Classify(ctx, idx, wc, policy, asOf)

	if config.JSON {
		output, err := json.MarshalIndent(selection, "", "  ")
		if err != nil {
			presenter.Error(err, "Failed to encode selection")
			os.Exit(1)
		}
		fmt.Println(string(output))
		return
	}

	printSelection(idx, selection)
}

// gatherExtensions merges explicit extensions with those derived from the
// --files patterns. Patterns that expand to nothing are kept literally so a
// plain path still contributes its extension.
func gatherExtensions(config *SelectConfig) []string {
	var paths []string
	for _, pattern := range config.Files {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil || len(matches) == 0 {
			paths = append(paths, pattern)
			continue
		}
		paths = append(paths, matches...)
	}

	exts := signals.ExtensionsFromPaths(paths)
	for _, ext := range config.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" {
			exts = append(exts, ext)
		}
	}
	return exts
}

func printSelection(idx *catalog.Index, selection engine.Selection) {
	if len(selection.OrderedUnits) == 0 {
		presenter.Info("No content units matched")
	} else {
		presenter.Section("Selected units")
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCATEGORY\tPRIORITY\tDESCRIPTION")
		for _, id := range selection.OrderedUnits {
			unit, ok := idx.Unit(id)
			if !ok {
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", unit.ID, unit.Category, unit.Priority, truncate(unit.Description, 60))
		}
		tw.Flush()
	}

	if selection.Ambiguous {
		presenter.Warning("Agent routing is ambiguous, escalate to clarification")
	} else if selection.ChosenAgent != "" {
		presenter.Success(fmt.Sprintf("Routed agent: %s", selection.ChosenAgent))
	}

	if len(selection.Rejected) > 0 {
		presenter.Section("Rejected")
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, id := range sortedKeys(selection.Rejected) {
			fmt.Fprintf(tw, "%s\t%s\n", id, selection.Rejected[id])
		}
		tw.Flush()
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
