package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/convo"
	"github.com/aretw0/convo/internal/logging"
	"github.com/aretw0/convo/internal/validator"
	"github.com/aretw0/convo/pkg/adapters/ai"
	"github.com/aretw0/convo/pkg/adapters/email"
	"github.com/aretw0/convo/pkg/adapters/file"
	"github.com/aretw0/convo/pkg/adapters/httpaction"
	"github.com/aretw0/convo/pkg/adapters/media"
	"github.com/aretw0/convo/pkg/adapters/memory"
	"github.com/aretw0/convo/pkg/adapters/redis"
	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/observability"
	"github.com/aretw0/convo/pkg/persistence/middleware"
	"github.com/aretw0/convo/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const lockTTL = 30 * time.Second

// app is everything a command needs once flags are resolved.
type app struct {
	engine  *convo.Engine
	logger  *slog.Logger
	metrics *observability.Metrics
	close   func()
}

// setupOptions tweak how newApp builds the engine.
type setupOptions struct {
	// defs replaces the configured definition store (e.g. a single file).
	defs ports.DefinitionStore
	// registry receives the prometheus collectors; nil disables metrics.
	registry prometheus.Registerer
}

func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	levelFlag, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json-logs")
	level, err := logging.ParseLevel(levelFlag)
	if err != nil {
		return nil, err
	}
	return logging.NewWriter(os.Stderr, level, jsonLogs), nil
}

// newApp initializes an engine with standard CLI conventions: file stores
// under --dir, or Redis when --redis is set, plus every collaborator that
// the environment configures.
func newApp(cmd *cobra.Command, so setupOptions) (*app, error) {
	logger, err := newLogger(cmd)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	dir, _ := flags.GetString("dir")
	redisAddr, _ := flags.GetString("redis")
	redisPassword, _ := flags.GetString("redis-password")
	redisDB, _ := flags.GetInt("redis-db")
	key, _ := flags.GetString("encryption-key")
	maskKeys, _ := flags.GetStringSlice("mask-keys")

	a := &app{logger: logger, close: func() {}}
	opts := []convo.Option{convo.WithLogger(logger)}

	// 1. Storage
	var (
		sessions ports.SessionStore
		defs     ports.DefinitionStore
	)
	if redisAddr != "" {
		client := redis.Connect(redisAddr, redisPassword, redisDB)
		a.close = func() { _ = client.Close() }
		sessions = redis.NewFromClient(client)
		defs = redis.NewDefinitions(client, "")
		opts = append(opts, convo.WithLocker(redis.NewLocker(client, "convo:"), lockTTL))
		logger.Debug("using redis storage", "addr", redisAddr)
	} else {
		sessions = file.New(filepath.Join(dir, "sessions"))
		defs = file.NewDefinitions(filepath.Join(dir, "convos"))
	}
	if so.defs != nil {
		defs = so.defs
	}

	var mws []middleware.Middleware
	if len(maskKeys) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(maskKeys))
	}
	if key != "" {
		active, err := middleware.ParseKey(key)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("invalid encryption key: %w", err)
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active}))
	}
	opts = append(opts,
		convo.WithSessionStore(middleware.Chain(sessions, mws...)),
		convo.WithDefinitionStore(defs),
	)

	// 2. Hooks
	hooks := observability.LoggingHooks(logger)
	if so.registry != nil {
		m, err := observability.NewMetrics(so.registry)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
		a.metrics = m
		hooks = observability.Combine(hooks, m.Hooks())
	}
	opts = append(opts, convo.WithLifecycleHooks(hooks))

	// 3. Collaborators
	httpClient := httpaction.New(httpaction.WithLogger(logger))
	sender := email.New(email.ConfigFromEnv(), email.WithLogger(logger))
	opts = append(opts, convo.WithHTTPClient(httpClient), convo.WithEmailSender(sender))

	handlerOpts := []media.HandlerOption{
		media.WithHTTPClient(httpClient),
		media.WithEmailSender(sender),
		media.WithLogger(logger),
	}
	if cfg := ai.ConfigFromEnv(); cfg.BaseURL != "" {
		answerer, err := ai.New(cfg, ai.WithLogger(logger))
		if err != nil {
			a.close()
			return nil, fmt.Errorf("configuring AI client: %w", err)
		}
		opts = append(opts, convo.WithAIAnswerer(answerer))
		handlerOpts = append(handlerOpts, media.WithAIAnswerer(answerer))
	}
	opts = append(opts, convo.WithMedia(
		media.NewFetcher(media.WithFetchLogger(logger)),
		media.NewHandler(handlerOpts...),
	))

	a.engine = convo.New(opts...)
	return a, nil
}

// isDefinitionFile reports whether arg names a definition file rather than a
// convo ID in the store.
func isDefinitionFile(arg string) bool {
	switch strings.ToLower(filepath.Ext(arg)) {
	case ".yaml", ".yml", ".json":
	default:
		return false
	}
	info, err := os.Stat(arg)
	return err == nil && !info.IsDir()
}

// resolveConvo turns a CLI argument into a convo ID. Files are loaded into a
// private in-memory definition store so running one never writes to --dir.
func resolveConvo(arg string) (string, ports.DefinitionStore, error) {
	if !isDefinitionFile(arg) {
		return arg, nil, nil
	}
	def, err := file.LoadFile(arg)
	if err != nil {
		return "", nil, fmt.Errorf("loading %s: %w", arg, err)
	}
	if def.ID == "" {
		def.ID = strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
	}
	if _, err := validator.ValidateDefinition(def); err != nil {
		return "", nil, err
	}
	defs, err := memory.NewFromDefinitions(def)
	if err != nil {
		return "", nil, err
	}
	return def.ID, defs, nil
}

// printIssues writes a DefinitionError issue by issue.
func printIssues(cmd *cobra.Command, err error) {
	var defErr *domain.DefinitionError
	if !errors.As(err, &defErr) {
		return
	}
	for _, issue := range defErr.Issues {
		cmd.PrintErrf("  - %s\n", issue)
	}
}
