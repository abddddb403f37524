package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/detent"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of detent",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "detent version %s\n", strings.TrimSpace(detent.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
