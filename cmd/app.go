package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fizic37/Delcampe-sub011/internal/config"
	"github.com/fizic37/Delcampe-sub011/internal/cropper"
	"github.com/fizic37/Delcampe-sub011/internal/dedup"
	"github.com/fizic37/Delcampe-sub011/internal/detector"
	"github.com/fizic37/Delcampe-sub011/internal/extraction"
	"github.com/fizic37/Delcampe-sub011/internal/models"
	"github.com/fizic37/Delcampe-sub011/internal/session"
	"github.com/fizic37/Delcampe-sub011/internal/storage"
)

// addConfigFlags registers the flags shared by every command that opens the
// data directory. They win over DELCAMPE_* variables only when set.
func addConfigFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("data-dir", "", "Data directory (default \"data\", env DELCAMPE_DATA_DIR)")
	f.String("db", "", "SQLite database path (default <data-dir>/delcampe.db)")
	f.String("detector", "", "Grid detector command; the image path is appended")
	f.Bool("strict", false, "Panic on internal contract violations")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("db") {
		cfg.DBPath, _ = flags.GetString("db")
	}
	if flags.Changed("detector") {
		cfg.DetectorCommand, _ = flags.GetString("detector")
	}
	if flags.Changed("strict") {
		cfg.Strict, _ = flags.GetBool("strict")
	}
	if flags.Lookup("port") != nil && flags.Changed("port") {
		cfg.Port, _ = flags.GetString("port")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// app is the wired object graph behind every command.
type app struct {
	cfg     config.Config
	store   storage.Store
	gateway *dedup.Gateway
	deps    *session.Deps
}

func openApp(cfg config.Config) (*app, error) {
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	store, err := storage.OpenSQLite(cfg.Database())
	if err != nil {
		return nil, err
	}

	gw := dedup.NewGateway(store, storage.FSChecker{})

	var det detector.Detector = detector.None{}
	if c := detector.NewCommand(cfg.DetectorCommand); c != nil {
		det = c
		slog.Debug("Using external grid detector", "path", c.Path)
	}

	return &app{
		cfg:     cfg,
		store:   store,
		gateway: gw,
		deps: &session.Deps{
			Gateway:      gw,
			Orchestrator: extraction.NewOrchestrator(cropper.New(), gw, cfg.Strict),
			Detector:     det,
			Cleaner:      detector.Cleaner{MinDistance: cfg.DetectMinDistance, EdgeMargin: cfg.DetectEdgeMargin},
			UploadsDir:   cfg.Uploads(),
			DefaultRows:  cfg.DefaultRows,
			DefaultCols:  cfg.DefaultCols,
			Strict:       cfg.Strict,
			OutputDir: func(hash string, kind models.Kind) string {
				return cfg.OutputDir(hash, string(kind))
			},
		},
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Error("Failed to close store", "path", a.cfg.Database(), "err", err)
	}
}
