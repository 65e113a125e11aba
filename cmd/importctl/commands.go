package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"attendance-import-backend/internal/bootstrap"
	"attendance-import-backend/internal/config"
	"attendance-import-backend/internal/models"
	"attendance-import-backend/internal/services/imports"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// operator is the part of the import service the CLI drives.
type operator interface {
	Status(ctx context.Context, orgID uuid.UUID, month, year int) (*imports.BatchView, error)
	Summarize(ctx context.Context, batchID uuid.UUID) (*models.StageSummary, error)
	Discard(ctx context.Context, batchID uuid.UUID) error
	Overrides(ctx context.Context, orgID uuid.UUID, month, year int) ([]models.MonthlyOverride, error)
}

type cliEnv struct {
	connect func(ctx context.Context) (operator, error)
	migrate func(ctx context.Context) error
	out     io.Writer
}

func defaultEnv() *cliEnv {
	return &cliEnv{
		connect: func(ctx context.Context) (operator, error) {
			cfg, db, err := bootstrap.Open()
			if err != nil {
				return nil, err
			}
			return bootstrap.NewService(ctx, cfg, db)
		},
		migrate: func(ctx context.Context) error {
			_, db, err := bootstrap.Open()
			if err != nil {
				return err
			}
			return config.Migrate(db.WithContext(ctx))
		},
		out: os.Stdout,
	}
}

type periodFlags struct {
	org   string
	month int
	year  int
}

func (p *periodFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.org, "org", "", "Organization UUID (required)")
	cmd.Flags().IntVar(&p.month, "month", 0, "Month 1-12 (required)")
	cmd.Flags().IntVar(&p.year, "year", 0, "Year (required)")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("month")
	_ = cmd.MarkFlagRequired("year")
}

func (p *periodFlags) orgID() (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(p.org))
	if err != nil {
		return uuid.Nil, withCode(exitUsage, fmt.Errorf("invalid --org: %w", err))
	}
	return id, nil
}

func parseBatch(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, withCode(exitUsage, fmt.Errorf("invalid --batch: %w", err))
	}
	return id, nil
}

func newMigrateCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the import tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.migrate(cmd.Context()); err != nil {
				return err
			}
			logrus.Info("migration complete")
			return nil
		},
	}
}

func newStatusCmd(env *cliEnv) *cobra.Command {
	var period periodFlags
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the latest batch of a period with its stage summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := period.orgID()
			if err != nil {
				return err
			}
			op, err := env.connect(cmd.Context())
			if err != nil {
				return err
			}
			view, err := op.Status(cmd.Context(), orgID, period.month, period.year)
			if err != nil {
				return err
			}
			return writeJSON(env.out, view)
		},
	}
	period.register(cmd)
	return cmd
}

func newSummarizeCmd(env *cliEnv) *cobra.Command {
	var batch string
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Recompute the stage summary of a batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBatch(batch)
			if err != nil {
				return err
			}
			op, err := env.connect(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := op.Summarize(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeJSON(env.out, summary)
		},
	}
	cmd.Flags().StringVar(&batch, "batch", "", "Batch UUID (required)")
	_ = cmd.MarkFlagRequired("batch")
	return cmd
}

func newDiscardCmd(env *cliEnv) *cobra.Command {
	var batch string
	var yes bool
	cmd := &cobra.Command{
		Use:   "discard",
		Short: "Delete a batch, its staged rows and its source file",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBatch(batch)
			if err != nil {
				return err
			}
			if !yes {
				return withCode(exitUsage, fmt.Errorf("discard is destructive; pass --yes to confirm"))
			}
			op, err := env.connect(cmd.Context())
			if err != nil {
				return err
			}
			if err := op.Discard(cmd.Context(), id); err != nil {
				return err
			}
			return writeJSON(env.out, map[string]any{"batch_id": id, "discarded": true})
		},
	}
	cmd.Flags().StringVar(&batch, "batch", "", "Batch UUID (required)")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the discard")
	_ = cmd.MarkFlagRequired("batch")
	return cmd
}

func newOverridesCmd(env *cliEnv) *cobra.Command {
	var period periodFlags
	cmd := &cobra.Command{
		Use:   "overrides",
		Short: "List the applied monthly overrides of a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, err := period.orgID()
			if err != nil {
				return err
			}
			op, err := env.connect(cmd.Context())
			if err != nil {
				return err
			}
			overrides, err := op.Overrides(cmd.Context(), orgID, period.month, period.year)
			if err != nil {
				return err
			}
			if overrides == nil {
				overrides = []models.MonthlyOverride{}
			}
			return writeJSON(env.out, overrides)
		},
	}
	period.register(cmd)
	return cmd
}
