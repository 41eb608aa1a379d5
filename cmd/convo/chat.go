package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/convo/internal/presentation/tui"
	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/runner"
	"github.com/spf13/cobra"
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat <convo-id|file>",
	Short: "Chat with a convo in the terminal",
	Long: `Starts (or with --session resumes) a session and reads user turns from stdin.
Type /quit to leave; the session stays stored and can be resumed later.

With --json, every turn response is written as one JSON line and input lines
may be plain text or {"user_input": "...", "media_url": "..."} objects.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		sessionID, _ := flags.GetString("session")
		jsonMode, _ := flags.GetBool("json")
		userID, _ := flags.GetString("user")
		tenant, _ := flags.GetString("tenant")
		rawContext, _ := flags.GetString("context")

		var initial map[string]any
		if rawContext != "" {
			if err := json.Unmarshal([]byte(rawContext), &initial); err != nil {
				return fmt.Errorf("invalid --context: %w", err)
			}
		}

		convoID, defs, err := resolveConvo(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(cmd, setupOptions{defs: defs})
		if err != nil {
			return err
		}
		defer a.close()

		var handler runner.IOHandler
		if jsonMode {
			handler = runner.NewJSONHandler(os.Stdin, os.Stdout)
		} else {
			tui.PrintBanner(os.Stdout)
			handler = runner.NewTextHandler(os.Stdin, os.Stdout,
				runner.WithTextHandlerRenderer(runner.ContentRenderer(tui.NewRenderer())))
		}

		r := runner.New(
			runner.WithHandler(handler),
			runner.WithLogger(a.logger),
			runner.WithSessionID(sessionID),
			runner.WithSignals(true),
		)
		id, err := r.Run(cmd.Context(), a.engine, domain.StartRequest{
			ConvoID:   convoID,
			UserID:    userID,
			TenantUID: tenant,
			Context:   domain.ContextFromAny(initial),
		})
		if err != nil {
			printIssues(cmd, err)
			return err
		}
		if !jsonMode && id != "" {
			fmt.Fprintln(os.Stderr, tui.Dim("session "+id))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().String("session", "", "Resume this session instead of starting a new one")
	chatCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	chatCmd.Flags().String("user", os.Getenv("USER"), "User ID recorded on the session")
	chatCmd.Flags().String("tenant", "", "Tenant UID recorded on the session")
	chatCmd.Flags().String("context", "", "Initial session context as a JSON object")
}
