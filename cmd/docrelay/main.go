// Command docrelay relays event-model documents from one broker endpoint to
// another, filling external data and splicing auxiliary runs on the way.
//
//	docrelay <receive_from> <send_to>
//
// Set DOCRELAY_CONFIG to the path of a TOML file for resolver, catalog,
// logging and metrics settings.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"

	runtimepkg "github.com/bluesky/docrelay/internal/runtime"
	"github.com/bluesky/docrelay/internal/runtime/catalog"
	configpkg "github.com/bluesky/docrelay/internal/runtime/config"
	loggingpkg "github.com/bluesky/docrelay/internal/runtime/logging"
	"github.com/bluesky/docrelay/internal/runtime/pipeline"
	"github.com/bluesky/docrelay/internal/runtime/resolver"
	_ "github.com/bluesky/docrelay/transport/transports"
)

const usage = "usage: docrelay <receive_from> <send_to>"

// ConfigEnv names the environment variable holding the config file path.
const ConfigEnv = "DOCRELAY_CONFIG"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Getenv, os.Stderr))
}

var newService = runtimepkg.NewService

var dialCatalog = func(ctx context.Context, url, bucket string) (catalog.Catalog, *nats.Conn, error) {
	return catalog.DialKV(ctx, url, bucket)
}

func run(ctx context.Context, args []string, getenv func(string) string, stderr io.Writer) int {
	if len(args) != 2 {
		fmt.Fprintln(stderr, usage)
		return 2
	}

	cfg, err := loadConfig(getenv(ConfigEnv))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if err := cfg.SetEndpoints(args[0], args[1]); err != nil {
		fmt.Fprintf(stderr, "%v\n%s\n", err, usage)
		return 2
	}

	logger, err := loggingpkg.NewTextServiceLogger(stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	logger.Info("Starting docrelay", loggingpkg.LogFields{"config": cfg.String()})
	if err := relay(ctx, cfg, logger); err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			logger.Info("Terminated by user; exiting", nil)
			return 0
		}
		logger.Error("docrelay stopped", err, nil)
		return 1
	}
	if ctx.Err() != nil {
		logger.Info("Terminated by user; exiting", nil)
	}
	return 0
}

func loadConfig(path string) (*configpkg.Config, error) {
	if path == "" {
		return configpkg.Default(), nil
	}
	return configpkg.LoadFile(path)
}

func relay(ctx context.Context, cfg *configpkg.Config, logger loggingpkg.ServiceLogger) error {
	resolvers, closeResolvers, err := resolver.Discover(cfg.Resolvers, logger)
	if err != nil {
		return err
	}
	defer closeResolvers()

	opts := pipeline.FactoryOptions{
		Resolvers: resolvers,
		Logger:    logger,
	}
	if cfg.Splice.Enabled() {
		cat, closeCatalog, err := openCatalog(ctx, cfg.Splice)
		if err != nil {
			return err
		}
		defer closeCatalog()
		opts.Catalog = cat
		opts.Roles = cfg.Splice.Roles
		logger.Info("Splicing auxiliary runs", loggingpkg.LogFields{"roles": cfg.Splice.Roles})
	}

	svc, err := newService(cfg, logger, ctx, runtimepkg.ServiceDependencies{
		Pipeline: pipeline.DefaultFactory(opts),
	})
	if err != nil {
		return err
	}
	return svc.Start(ctx)
}

func openCatalog(ctx context.Context, cfg configpkg.SpliceConfig) (catalog.Catalog, func(), error) {
	if cfg.CatalogDir != "" {
		return catalog.NewDir(cfg.CatalogDir), func() {}, nil
	}
	cat, conn, err := dialCatalog(ctx, cfg.CatalogNATSURL, cfg.CatalogBucket)
	if err != nil {
		return nil, nil, fmt.Errorf("catalog bucket %q: %w", cfg.CatalogBucket, err)
	}
	return cat, func() {
		if conn != nil {
			conn.Close()
		}
	}, nil
}
