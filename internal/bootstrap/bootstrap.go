// Package bootstrap wires the import service from configuration for the
// server and the operator CLI.
package bootstrap

import (
	"context"
	"fmt"

	"attendance-import-backend/internal/config"
	"attendance-import-backend/internal/lock"
	"attendance-import-backend/internal/repository"
	"attendance-import-backend/internal/services/imports"
	"attendance-import-backend/internal/services/suggest"
	"attendance-import-backend/internal/storage"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Open loads configuration, sets up logging and connects to the database.
func Open() (*config.Config, *gorm.DB, error) {
	config.LoadEnv(".env", ".env.local")
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	config.SetupLogging(cfg)

	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func NewService(ctx context.Context, cfg *config.Config, db *gorm.DB) (*imports.Service, error) {
	objects, err := storage.NewS3Store(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}
	locks, err := lock.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("batch lock: %w", err)
	}

	// A nil *OpenAIOracle must not end up inside the interface.
	var oracle suggest.Oracle
	if o := suggest.NewOpenAIOracle(cfg.Oracle); o != nil {
		oracle = o
		logrus.WithField("model", cfg.Oracle.Model).Info("suggestion oracle enabled")
	}

	return imports.NewService(imports.Deps{
		Batches:   repository.NewBatchRepository(db),
		Rows:      repository.NewStagedRowRepository(db),
		Overrides: repository.NewOverrideRepository(db),
		Objects:   objects,
		Directory: repository.NewEmployeeRepository(db),
		Locks:     locks,
		Suggester: suggest.NewSuggester(oracle),
		Options:   cfg.Import,
		KeyPrefix: cfg.Storage.Prefix,
	}), nil
}
