package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dentaldesk/legacymigrate/pkg/config"
	"github.com/dentaldesk/legacymigrate/pkg/database"
	"github.com/dentaldesk/legacymigrate/pkg/legacy"
	"github.com/dentaldesk/legacymigrate/pkg/logging"
	"github.com/dentaldesk/legacymigrate/pkg/repositories"
	"github.com/dentaldesk/legacymigrate/pkg/retry"
	"github.com/dentaldesk/legacymigrate/pkg/services"
)

// app holds the per-invocation wiring shared by every subcommand.
// Connections are opened lazily so mapping administration does not touch
// the legacy source and verification never needs write wiring.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	db  *database.DB
	src *legacy.ReadOnly
}

// newApp loads configuration and the logger for one command invocation.
func newApp(cmd *cobra.Command, version string) (*app, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath, version)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, logger: logger}, nil
}

// destination opens (once) the destination pool.
func (a *app) destination(ctx context.Context) (*database.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            a.cfg.Destination.ConnectionString(),
		MaxConnections: a.cfg.Destination.MaxConnections,
	})
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

// legacySource opens (once) the guarded read-only legacy handle.
func (a *app) legacySource(ctx context.Context) (*legacy.ReadOnly, error) {
	if a.src != nil {
		return a.src, nil
	}
	src, err := legacy.Open(ctx, &a.cfg.Legacy, a.logger)
	if err != nil {
		return nil, err
	}
	a.src = src
	return src, nil
}

// extractor builds the keyset extractor over the legacy source.
func (a *app) extractor(ctx context.Context) (*legacy.Extractor, error) {
	src, err := a.legacySource(ctx)
	if err != nil {
		return nil, err
	}
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = a.cfg.Import.MaxRetries
	return legacy.NewExtractor(src, a.cfg.Import.PageSize, retryCfg, a.logger), nil
}

// importer wires the full import pipeline.
func (a *app) importer(ctx context.Context) (*services.Importer, error) {
	db, err := a.destination(ctx)
	if err != nil {
		return nil, err
	}
	extractor, err := a.extractor(ctx)
	if err != nil {
		return nil, err
	}

	mappings := repositories.NewMappingRepository(db)
	patients := repositories.NewPatientRepository(db)
	restoratives := repositories.NewRestorativeRepository(db)
	plans := repositories.NewTreatmentPlanRepository(db)
	runs := repositories.NewImportRunRepository(db)

	loader := services.NewLoader(db, restoratives, plans, a.cfg.Import.BatchSize, a.logger)
	matcher := services.NewExternalNumberMatcher(patients)

	return services.NewImporter(extractor, mappings, matcher, loader, runs, a.cfg.Import.BatchSize, a.logger), nil
}

// verifier wires the parity verifier.
func (a *app) verifier(ctx context.Context) (*services.ParityVerifier, error) {
	db, err := a.destination(ctx)
	if err != nil {
		return nil, err
	}
	extractor, err := a.extractor(ctx)
	if err != nil {
		return nil, err
	}
	restoratives := repositories.NewRestorativeRepository(db)
	plans := repositories.NewTreatmentPlanRepository(db)
	return services.NewParityVerifier(extractor, restoratives, plans, a.logger), nil
}

// close releases whatever the command actually opened.
func (a *app) close() {
	if a.src != nil {
		if err := a.src.Close(); err != nil {
			a.logger.Warn("Failed to close legacy connection", zap.Error(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	_ = a.logger.Sync()
}
