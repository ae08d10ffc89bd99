package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rulekit/rulekit/pkg/presenter"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and validate the activation catalog",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all catalog units",
	Long:  `List all catalog units with their category, lifecycle state, priority, and trigger count.`,
	Run: func(cmd *cobra.Command, _ []string) {
		idx, err := loadIndex(cmd.Context())
		if err != nil {
			presenter.Error(err, "Failed to load catalog")
			os.Exit(1)
		}

		if idx.Len() == 0 {
			presenter.Info("Catalog is empty")
			return
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCATEGORY\tLIFECYCLE\tPRIORITY\tTRIGGERS\tDESCRIPTION")
		for _, unit := range idx.Units() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
				unit.ID, unit.Category, unit.Lifecycle, unit.Priority, len(unit.Triggers), truncate(unit.Description, 50))
		}
		tw.Flush()
	},
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the catalog",
	Long: `Load the catalog and run referential validation. Every dangling
replacement id and unknown exclusion-group member is reported; any finding
exits non-zero.`,
	Run: func(cmd *cobra.Command, _ []string) {
		idx, err := loadIndex(cmd.Context())
		if err != nil {
			presenter.Error(err, "Catalog validation failed")
			os.Exit(1)
		}

		presenter.Success(fmt.Sprintf("Catalog is valid (%d units, %d exclusion groups)", idx.Len(), len(idx.Groups())))
	},
}

func init() {
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogValidateCmd)
	rootCmd.AddCommand(catalogCmd)
}
