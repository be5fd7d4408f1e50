package main

import (
	"context"
	"os"

	"github.com/koustreak/scout/internal/config"
	"github.com/koustreak/scout/internal/export"
	"github.com/koustreak/scout/internal/filestore/minio"
	"github.com/koustreak/scout/internal/logger"
	"github.com/koustreak/scout/internal/search"
	"github.com/koustreak/scout/internal/server"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logger.New(cfg.LoggerConfig(os.Stderr))
			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	engine, err := openEngine(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.WarnWith("failed to close database", err, nil)
		}
	}()

	exporter, err := newExporter(ctx, cfg, engine, log)
	if err != nil {
		return err
	}

	srv := server.New(engine, server.Options{
		Version:  version,
		MaxSize:  cfg.Server.MaxSize,
		Exporter: exporter,
		Logger:   log,
	})
	return srv.Run(ctx, cfg.Addr(), cfg.Server)
}

// newExporter publishes exports to MinIO when the export section enables
// it, and serves them inline otherwise.
func newExporter(ctx context.Context, cfg *config.Config, engine *search.Engine, log *logger.Logger) (*export.Exporter, error) {
	fsCfg := cfg.FileStoreConfig()
	if fsCfg == nil {
		return export.New(engine, nil, export.WithLogger(log)), nil
	}

	store, err := minio.New(ctx, fsCfg)
	if err != nil {
		return nil, err
	}
	log.InfoWith("export publishing enabled", map[string]any{
		"endpoint": fsCfg.Endpoint,
		"bucket":   fsCfg.Bucket,
	})
	return export.New(engine, nil,
		export.WithStore(store, fsCfg.Bucket, fsCfg.PresignTTL),
		export.WithLogger(log),
	), nil
}
