// Command trigger runs the background jobs once and exits. Point an
// external scheduler (cron, a Kubernetes CronJob) at it:
//
//	trigger publish            # every minute
//	trigger ingest             # hourly, all users
//	trigger ingest --user ID   # one user
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakif/voicepost/internal/app"
	"github.com/sakif/voicepost/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(config.Load).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

type configLoader func() (config.Config, error)

func newRootCmd(load configLoader) *cobra.Command {
	root := &cobra.Command{
		Use:          "trigger",
		Short:        "Run scheduled publishing and metrics ingestion once",
		SilenceUsage: true,
	}
	root.AddCommand(newPublishCmd(load), newIngestCmd(load))
	return root
}

func newPublishCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish every scheduled post that is due",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, load)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Publisher.Run(cmd.Context())
			if err != nil {
				return err
			}
			return writeReport(cmd, report)
		},
	}
}

func newIngestCmd(load configLoader) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch engagement metrics for connected accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, load)
			if err != nil {
				return err
			}
			defer a.Close()

			if userID != "" {
				report, err := a.Ingester.Run(cmd.Context(), userID)
				if err != nil {
					return err
				}
				return writeReport(cmd, report)
			}
			report, err := a.Ingester.RunAll(cmd.Context())
			if err != nil {
				return err
			}
			return writeReport(cmd, report)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "only ingest for this user id")
	return cmd
}

// openApp logs to stderr so stdout carries only the JSON report.
func openApp(cmd *cobra.Command, load configLoader) (*app.App, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel}))
	return app.New(cfg, logger)
}

func writeReport(cmd *cobra.Command, report any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
