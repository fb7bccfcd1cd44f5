package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"roadwiki/app/internal/app/bootstrap"
	"roadwiki/app/internal/buildinfo"
	"roadwiki/app/internal/config"
	applog "roadwiki/app/internal/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "roadwiki",
		Short:         "Wiki server backed by a pluggable document or relational store",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create collections, tables and indexes for the configured backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate(cmd.Context())
		},
	}

	var confirmed bool
	wipeCmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every user, page and setting (reinstall flow)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return eris.New("refusing to wipe without --yes")
			}
			return wipe(cmd.Context())
		},
	}
	wipeCmd.Flags().BoolVar(&confirmed, "yes", false, "Confirm that all data should be deleted")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(buildinfo.Current())
		},
	}

	root.AddCommand(serveCmd, migrateCmd, wipeCmd, versionCmd)
	return root
}

type runtimeEnv struct {
	cfg       *config.Config
	logger    *logrus.Logger
	sentryHub *sentry.Hub
	flush     func()
}

func setup() (runtimeEnv, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return runtimeEnv{}, eris.Wrap(err, "failure loading configuration")
	}

	logger, err := applog.NewLogger(cfg.LogLevel)
	if err != nil {
		return runtimeEnv{}, eris.Wrap(err, "failure initialising logger")
	}

	sentryHub, flush, err := applog.InitSentry(logger, applog.SentrySettings{
		DSN:            cfg.SentryDSN,
		Environment:    cfg.Environment,
		Release:        buildinfo.Release(),
		StorageBackend: cfg.DatabaseBackend,
	})
	if err != nil {
		return runtimeEnv{}, eris.Wrap(err, "failure initialising sentry")
	}

	return runtimeEnv{cfg: cfg, logger: logger, sentryHub: sentryHub, flush: flush}, nil
}

func serve(ctx context.Context) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.flush()

	cfg, logger := env.cfg, env.logger

	app, err := bootstrap.Build(ctx, bootstrap.Dependencies{
		Config:    cfg,
		Logger:    logger,
		SentryHub: env.sentryHub,
	})
	if err != nil {
		return eris.Wrap(err, "building application")
	}
	defer func() {
		if closeErr := app.Cleanup(); closeErr != nil {
			logger.WithError(closeErr).Error("releasing resources")
		}
	}()

	if !cfg.IsRestAPIEnabled() {
		logger.Warn("no API keys configured, the REST API is disabled")
	}

	httpServer := &stdhttp.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", cfg.ServerPort),
		Handler: app.HTTPServer.Handler(),
	}

	logger.WithFields(logrus.Fields{
		"addr":     httpServer.Addr,
		"database": app.Store.Name(),
		"version":  buildinfo.Version,
	}).Info("starting http server")

	serverErrCh := make(chan error, 1)
	go func() {
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErrCh:
		if err != nil {
			return eris.Wrap(err, "http server error")
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "shutting down http server")
	}

	logger.Info("http server shut down cleanly")
	return nil
}

func migrate(ctx context.Context) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.flush()

	store, err := bootstrap.OpenStore(ctx, env.cfg, env.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	env.logger.WithField("database", store.Name()).Info("storage migrated")
	return nil
}

// wipe clears the store and everything derived from it. Wipe is best-effort
// per collection, so the remaining steps run even when it reports an error.
func wipe(ctx context.Context) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.flush()

	app, err := bootstrap.Build(ctx, bootstrap.Dependencies{
		Config:    env.cfg,
		Logger:    env.logger,
		SentryHub: env.sentryHub,
	})
	if err != nil {
		return eris.Wrap(err, "building application")
	}
	defer func() {
		if closeErr := app.Cleanup(); closeErr != nil {
			env.logger.WithError(closeErr).Error("releasing resources")
		}
	}()

	var errs []error
	if err := app.Store.Wipe(ctx); err != nil {
		errs = append(errs, eris.Wrap(err, "wiping storage"))
	}
	if err := app.WikiService.ClearCache(ctx); err != nil {
		errs = append(errs, eris.Wrap(err, "clearing object cache"))
	}
	if err := app.Search.Clear(ctx); err != nil {
		errs = append(errs, eris.Wrap(err, "clearing search index"))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	env.logger.WithField("database", app.Store.Name()).Warn("all wiki data deleted")
	return nil
}
