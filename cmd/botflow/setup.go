package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aretw0/botflow"
	"github.com/aretw0/botflow/internal/config"
	"github.com/aretw0/botflow/internal/logging"
	"github.com/aretw0/botflow/pkg/adapters/file"
	"github.com/aretw0/botflow/pkg/adapters/memory"
	"github.com/aretw0/botflow/pkg/adapters/redis"
	"github.com/aretw0/botflow/pkg/persistence/middleware"
	"github.com/aretw0/botflow/pkg/ports"
	"github.com/spf13/cobra"
)

// app bundles what every command resolves from configuration.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	loader      *file.Loader
	breakpoints ports.BreakpointStore
	runs        ports.RunStore
	close       func() error
}

// setup loads the configuration, applies persistent flag overrides and opens the stores.
func setup(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if store, _ := cmd.Flags().GetString("store"); store != "" {
		cfg.Storage.Backend = store
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFormat(cfg.Log.Format, level)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		loader: file.NewLoader(cfg.Storage.BotsDir, file.WithCacheTTL(cfg.Storage.CacheTTL)),
		close:  func() error { return nil },
	}

	switch cfg.Storage.Backend {
	case config.StoreMemory:
		a.breakpoints = memory.NewBreakpointStore()
		a.runs = memory.NewRunStore()
	case config.StoreFile:
		// Breakpoints are process scoped on the file backend; runs are archived on disk.
		a.breakpoints = memory.NewBreakpointStore()
		a.runs = file.NewRunStore(cfg.Storage.RunsDir)
	case config.StoreRedis:
		client := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := client.Ping(cmd.Context()).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		a.breakpoints = redis.NewBreakpointStore(client, redis.WithPrefix(cfg.Redis.Prefix))
		a.runs = redis.NewRunStore(client, redis.WithPrefix(cfg.Redis.Prefix), redis.WithTTL(cfg.Redis.RunTTL))
		a.close = client.Close
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if a.runs, err = protectRuns(a.runs, cfg.Storage); err != nil {
		_ = a.close()
		return nil, err
	}

	logger.Debug("Configuration loaded",
		"store", cfg.Storage.Backend,
		"bots_dir", cfg.Storage.BotsDir,
		"max_steps", cfg.Debug.MaxSteps,
	)
	return a, nil
}

// protectRuns wraps the run archive with the configured redaction and encryption.
func protectRuns(runs ports.RunStore, storage config.StorageConfig) (ports.RunStore, error) {
	var mws []middleware.Middleware
	if len(storage.Redact) > 0 {
		pii, err := middleware.NewPIIMiddleware(storage.Redact)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	if storage.EncryptionKey != "" {
		key, err := middleware.ParseKey(storage.EncryptionKey)
		if err != nil {
			return nil, err
		}
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return middleware.Chain(runs, mws...), nil
}

// options returns the debugger options shared by every command, followed by extra.
func (a *app) options(extra ...botflow.Option) []botflow.Option {
	opts := []botflow.Option{
		botflow.WithLogger(a.logger),
		botflow.WithBotLoader(a.loader),
		botflow.WithBreakpointStore(a.breakpoints),
		botflow.WithRunStore(a.runs),
		botflow.WithMaxSteps(a.cfg.Debug.MaxSteps),
		botflow.WithBranchLabels(a.cfg.Debug.TruthyLabels, a.cfg.Debug.FalsyLabels),
	}
	return append(opts, extra...)
}

// readBot resolves a bot argument: a path to a document, or the id of a bot in the bots directory.
func (a *app) readBot(ctx context.Context, arg string) (string, []byte, error) {
	if doc, err := readFile(arg); err == nil {
		return botIDFromPath(arg), doc, nil
	}
	doc, err := a.loader.GetBotDocument(ctx, arg)
	if err != nil {
		return "", nil, err
	}
	return arg, doc, nil
}

// botIDFromPath maps data/bots/bot_support.json to "support".
func botIDFromPath(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.TrimPrefix(name, "bot_")
}

// readFile reads path when it names a regular file.
func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errors.New("is a directory")
	}
	return os.ReadFile(path)
}
