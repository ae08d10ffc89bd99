package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rulekit/rulekit/pkg/presenter"
	"github.com/rulekit/rulekit/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")
		info := version.Get()

		if jsonOut {
			output, err := info.JSON()
			if err != nil {
				presenter.Error(err, "Failed to encode version info")
				os.Exit(1)
			}
			fmt.Println(output)
			return
		}

		fmt.Println(info.String())
	},
}

func init() {
	versionCmd.Flags().Bool("json", false, "Output version info as JSON")
	rootCmd.AddCommand(versionCmd)
}
