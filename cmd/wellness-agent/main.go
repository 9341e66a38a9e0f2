package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"aura/wellness-agent/internal/config"
	"aura/wellness-agent/internal/database"
	"aura/wellness-agent/internal/engine"
	"aura/wellness-agent/internal/gateway"
	"aura/wellness-agent/internal/logger"
	"aura/wellness-agent/internal/platform"
	"aura/wellness-agent/internal/tray"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "wellness-agent",
	Short: "Background wellness agent: activity sampling and break scheduling",
	Long: `wellness-agent is a headless sidecar that samples user activity,
schedules micro, macro and hydration breaks, and automates sessions with
time-of-day rules. It speaks line-delimited JSON on stdin/stdout.`,
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the agent version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(engine.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yml", "path to config file")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("Starting wellness agent",
		zap.String("version", engine.Version),
		zap.String("env", cfg.Env),
	)

	db, err := database.New(cfg.StoragePath, log.Logger)
	if err != nil {
		return err
	}
	defer db.Close()

	gw := gateway.New(os.Stdin, os.Stdout, log.Logger)

	eng, err := engine.New(cfg, db, newPlatform(log.Logger), gw.Emit, log.Logger)
	if err != nil {
		return err
	}
	if err := eng.Start(); err != nil {
		return err
	}
	gw.Start(eng.Submit)

	if cfg.Tray.Enabled {
		go tray.Run(eng.Submit, log.Logger)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info("Received signal, shutting down", zap.String("signal", s.String()))
	case <-eng.Done():
		log.Info("Shutdown requested, stopping")
	}

	eng.Stop()
	return nil
}

// newPlatform falls back to a no-op monitor on unsupported platforms, so the
// break timers still run with metrics pinned at zero.
func newPlatform(log *zap.Logger) platform.Platform {
	p, err := platform.NewPlatform()
	if err != nil {
		log.Warn("Input monitoring unavailable, running degraded", zap.Error(err))
		return platform.NewNoop()
	}
	return p
}
