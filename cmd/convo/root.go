package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "convo",
	Short: "Convo runs graph-defined chat conversations",
	Long: `Convo executes conversation graphs (menus, questions, API calls, AI chat and
media processing) defined as YAML or JSON documents.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("dir", ".convo", "Directory holding convos/ and sessions/")
	flags.String("redis", os.Getenv("CONVO_REDIS_ADDR"), "Redis address for sessions, convos and locks (env CONVO_REDIS_ADDR)")
	flags.String("redis-password", os.Getenv("CONVO_REDIS_PASSWORD"), "Redis password (env CONVO_REDIS_PASSWORD)")
	flags.Int("redis-db", 0, "Redis database number")
	flags.String("encryption-key", os.Getenv("CONVO_ENCRYPTION_KEY"), "32-byte key enabling session encryption at rest (env CONVO_ENCRYPTION_KEY)")
	flags.StringSlice("mask-keys", nil, "Regular expressions of context keys to mask before sessions are stored")
	flags.String("log-level", os.Getenv("CONVO_LOG_LEVEL"), "Log level: debug, info, warn, error (env CONVO_LOG_LEVEL)")
	flags.Bool("json-logs", false, "Write logs as JSON")
}
