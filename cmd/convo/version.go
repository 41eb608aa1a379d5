package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/convo"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of convo",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "convo version %s\n", strings.TrimSpace(convo.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
