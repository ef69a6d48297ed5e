package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/audiarr/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and build details",
	Run: func(cmd *cobra.Command, _ []string) {
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			fmt.Println(version.JSON())
			return
		}
		fmt.Println(version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().Bool("json", false, "print build details as JSON")
}
