package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"tracker/config"
	"tracker/db/pg"
	_ "tracker/migration" // registers the Go migrations with goose

	_ "github.com/lib/pq"

	"github.com/pressly/goose/v3"
)

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "migrate the snapshot server database",
		Long:  `This command migrates the postgres snapshot store by goose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			up, _ := cmd.Flags().GetBool("up")
			down, _ := cmd.Flags().GetBool("down")

			if cmd.Flags().Changed("down") && down {
				up = false
			}
			if up == down {
				return cmd.Help()
			}

			if err := goose.SetDialect("postgres"); err != nil {
				return fmt.Errorf("failed to set goose dialect: %w", err)
			}

			db, err := sql.Open("postgres", pg.CreateDSN())
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			ctx := cmd.Context()
			pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
			defer pingCancel()
			if err := db.PingContext(pingCtx); err != nil {
				return fmt.Errorf("failed to ping database: %w", err)
			}
			log.Println("Successfully connected to the database.")

			// the DSN search_path points at the app schema, goose keeps its table there too
			if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", config.AppName)); err != nil {
				return fmt.Errorf("failed to create schema %s: %w", config.AppName, err)
			}

			migrationsDir := "migration"
			if up {
				log.Println("Running 'up' migrations...")
				if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
					return fmt.Errorf("goose up failed: %w", err)
				}
			} else {
				log.Println("Rolling back('down') the last migration...")
				if err := goose.DownContext(ctx, db, migrationsDir); err != nil {
					return fmt.Errorf("goose down failed: %w", err)
				}
			}
			log.Println("Goose operations completed.")

			log.Println("Checking migration status...")
			return goose.StatusContext(ctx, db, migrationsDir)
		},
	}

	cmd.Flags().BoolP("up", "u", true, "up the version of db")
	cmd.Flags().BoolP("down", "d", false, "down the version of db")

	return cmd
}
