package main

import (
	"fmt"

	"github.com/aretw0/convo/pkg/adapters/file"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check convo definitions for consistency",
	Long: `Loads each YAML or JSON definition and reports dangling transitions, unknown
node types, malformed conditions and nodes unreachable from the start node.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, setupOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		failed := 0
		for _, path := range args {
			def, err := file.LoadFile(path)
			if err != nil {
				cmd.PrintErrf("%s: %v\n", path, err)
				failed++
				continue
			}
			warnings, err := a.engine.Validate(def)
			if err != nil {
				cmd.PrintErrf("%s: %v\n", path, err)
				printIssues(cmd, err)
				failed++
				continue
			}
			for _, w := range warnings {
				cmd.PrintErrf("%s: warning: %s\n", path, w)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d definitions are invalid", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
