package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/botio91514/gym-backend/internal/app"
	"github.com/botio91514/gym-backend/internal/auth"
	"github.com/botio91514/gym-backend/internal/config"
	"github.com/botio91514/gym-backend/internal/db"
	"github.com/botio91514/gym-backend/pkg/logger"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the embedded database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{db.DirectionUp, db.DirectionDown},
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.NewFromEnv()
			cfg, err := config.Load(log)
			if err != nil {
				return err
			}
			if cfg.DB.Driver != config.DBDriverPostgres {
				return fmt.Errorf("migrate: DB_DRIVER is %q, nothing to migrate", cfg.DB.Driver)
			}
			return db.Migrate(cfg.DB.MigrateURL(), args[0], log)
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one expiry and reminder pass now and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.NewFromEnv()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, log)
			if err != nil {
				return err
			}

			report, runErr := application.Scheduler().RunOnce(ctx)

			closeCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			closeErr := application.Close(closeCtx)

			if runErr != nil {
				return errors.Join(runErr, closeErr)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			return closeErr
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			hash, err := auth.HashPassword(strings.TrimRight(line, "\r\n"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
