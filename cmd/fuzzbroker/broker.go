package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jihwankim/fuzzbroker/pkg/broker"
	"github.com/jihwankim/fuzzbroker/pkg/store"
)

var brokerCmd = &cobra.Command{
	Use:   "broker",
	Args:  cobra.NoArgs,
	Short: "Run the broker that pairs producers' test cases with workers",
	RunE:  runBroker,
}

func runBroker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg, "broker")

	st, err := store.Open(cmd.Context(), cfg.Store.DBPath, cfg.Store.CrashfilesDir, cfg.Store.CrashdataDir, cfg.Store.TemplatesDir)
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsAddr := ""
	if cfg.Metrics.Enabled {
		metricsAddr = cfg.Metrics.ListenAddr
	}

	log.Info("broker starting", "listen_addr", cfg.Broker.ListenAddr, "metrics_addr", metricsAddr)
	opts := broker.Options{
		PollInterval: cfg.Broker.AckPollInterval,
		DBQMax:       cfg.Broker.DBQMax,
	}
	if err := broker.Serve(ctx, st, log, cfg.Broker.ListenAddr, metricsAddr, opts); err != nil && ctx.Err() == nil {
		return fmt.Errorf("broker: %w", err)
	}
	return nil
}
