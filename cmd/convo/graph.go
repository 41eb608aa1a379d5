package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <convo-id|file>",
	Short: "Export the convo graph as a Mermaid diagram",
	Long: `Outputs a Mermaid flowchart of the convo. With --session, nodes the session
visited and the node it currently sits on are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")

		convoID, defs, err := resolveConvo(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(cmd, setupOptions{defs: defs})
		if err != nil {
			return err
		}
		defer a.close()

		out, err := a.engine.Graph(cmd.Context(), convoID, sessionID)
		if err != nil {
			printIssues(cmd, err)
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Overlay the path of this session")
}
