package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/operino-hub/internal/infra/storage"
)

func migrateCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(*cfgFile, func(mg *storage.Migrator) error {
				if err := mg.Up(); err != nil {
					return err
				}
				return printVersion(cmd, mg)
			})
		},
	})

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(*cfgFile, func(mg *storage.Migrator) error {
				if err := mg.Down(steps); err != nil {
					return err
				}
				return printVersion(cmd, mg)
			})
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(downCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(*cfgFile, func(mg *storage.Migrator) error {
				return printVersion(cmd, mg)
			})
		},
	})

	return cmd
}

func withMigrator(cfgFile string, fn func(*storage.Migrator) error) error {
	a, err := newApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	pool, err := a.openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	mg, err := storage.NewMigrator(pool)
	if err != nil {
		return err
	}
	defer mg.Close()

	return fn(mg)
}

func printVersion(cmd *cobra.Command, mg *storage.Migrator) error {
	version, dirty, err := mg.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	cmd.Printf("schema version %d (dirty: %t)\n", version, dirty)
	return nil
}
