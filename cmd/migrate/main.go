package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/telcobill-backend/pkg/config"
	"github.com/angelmondragon/telcobill-backend/pkg/db"
	"github.com/angelmondragon/telcobill-backend/pkg/logger"
	"github.com/angelmondragon/telcobill-backend/pkg/migrate"
)

func main() {
	_ = godotenv.Load()
	if err := rootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var dir string
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the billing database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dir, "dir", migrate.DefaultDir, "goose migrations directory")

	root.AddCommand(
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a timestamped SQL migration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := migrate.CreateSQLMigration(dir, args[0])
				if err != nil {
					return fmt.Errorf("create migration: %w", err)
				}
				cmd.Println("created migration:", path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check migration file names and goose annotations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := migrate.ValidateDir(dir); err != nil {
					return fmt.Errorf("migration validation failed: %w", err)
				}
				cmd.Println("migration validation passed")
				return nil
			},
		},
		schemaCommand("up", "Apply all pending migrations", cobra.NoArgs, &dir, func(ctx context.Context, m *migrate.Migrator, _ []string) ([]migrate.Applied, error) {
			return m.Up(ctx)
		}),
		schemaCommand("down", "Roll back the latest migration", cobra.NoArgs, &dir, func(ctx context.Context, m *migrate.Migrator, _ []string) ([]migrate.Applied, error) {
			return m.Down(ctx)
		}),
		schemaCommand("version <YYYYMMDDHHMMSS>", "Migrate up or down to an exact version", cobra.ExactArgs(1), &dir, func(ctx context.Context, m *migrate.Migrator, args []string) ([]migrate.Applied, error) {
			return m.To(ctx, args[0])
		}),
		&cobra.Command{
			Use:   "status",
			Short: "Print applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), dir, func(ctx context.Context, m *migrate.Migrator) error {
					rows, err := m.Status(ctx)
					if err != nil {
						return err
					}
					for _, row := range rows {
						state := "pending"
						if row.AppliedAt != nil {
							state = row.AppliedAt.UTC().Format(time.RFC3339)
						}
						cmd.Printf("%-25s %s\n", state, filepath.Base(row.File))
					}
					return nil
				})
			},
		},
	)
	return root
}

type schemaChange func(ctx context.Context, m *migrate.Migrator, args []string) ([]migrate.Applied, error)

func schemaCommand(use, short string, args cobra.PositionalArgs, dir *string, change schemaChange) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			return withMigrator(cmd.Context(), *dir, func(ctx context.Context, m *migrate.Migrator) error {
				applied, err := change(ctx, m, argv)
				for _, a := range applied {
					cmd.Printf("%-4s %s (%s)\n", a.Direction, filepath.Base(a.File), a.Took.Round(time.Millisecond))
				}
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					cmd.Println("schema already current")
				}
				return nil
			})
		},
	}
}

func withMigrator(ctx context.Context, dir string, fn func(context.Context, *migrate.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": dir})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	m, err := migrate.New(sqlDB, cfg.DB.Driver, dir)
	if err != nil {
		return err
	}
	logg.Info(ctx, "migrate ready")
	return fn(ctx, m)
}
