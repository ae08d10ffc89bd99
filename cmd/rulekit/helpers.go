package main

import (
	"context"
	"sort"

	"github.com/spf13/viper"

	"github.com/rulekit/rulekit/pkg/catalog"
)

// newLoader builds a catalog loader from the --catalog flag / config,
// falling back to the default directories.
func newLoader() (*catalog.Loader, error) {
	dirs := viper.GetStringSlice("catalog")
	if len(dirs) > 0 {
		return catalog.NewLoader(catalog.WithCatalogDirs(dirs...))
	}
	return catalog.NewLoader()
}

// loadIndex loads and validates the catalog into an index
func loadIndex(ctx context.Context) (*catalog.Index, error) {
	loader, err := newLoader()
	if err != nil {
		return nil, err
	}

	cat, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	return catalog.NewIndex(cat)
}

// sortedKeys returns the map keys in sorted order for stable output
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
