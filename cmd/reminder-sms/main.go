package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/LeventeLantos/reminder-sms/internal/repo"
	"github.com/LeventeLantos/reminder-sms/internal/retry"
	"github.com/LeventeLantos/reminder-sms/internal/service"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "reminder-sms",
		Short:        "Overdue-care reminder SMS pipeline",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(aggregateCmd())
	rootCmd.AddCommand(dispatchCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ops API, the daily aggregation and the dispatch poller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func aggregateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate",
		Short: "Run the SMS aggregation job once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := a.job.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("aggregation failed: %w", err)
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(sum)
		},
	}
}

func dispatchCmd() *cobra.Command {
	var (
		eventID string
		noRetry bool
	)

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Dispatch one SMS event",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(eventID)
			if err != nil {
				return fmt.Errorf("invalid --event-id: %w", err)
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			policy := retry.DefaultDispatchPolicy()
			if noRetry {
				policy = retry.Policy{}
			}
			runner := service.NewDispatchRunner(cmd.Context(), a.dispatcher, policy, 1)
			if err := runner.Run(cmd.Context(), id); err != nil {
				return fmt.Errorf("dispatch %s: %w", id, err)
			}
			slog.Info("dispatch finished", "event_id", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&eventID, "event-id", "", "SMS event id")
	cmd.Flags().BoolVar(&noRetry, "no-retry", false, "Make a single attempt")
	_ = cmd.MarkFlagRequired("event-id")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			pool, err := repo.NewPool(cmd.Context(), cfg.Database.PostgresURL, cfg.Database.MaxConns, cfg.Database.MinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := repo.Migrate(cmd.Context(), pool)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			for _, name := range applied {
				slog.Info("migration applied", "name", name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", len(applied))
			return nil
		},
	}
}
