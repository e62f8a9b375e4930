package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JoeShih716/go-points-ledger/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "core",
	Short: "Points ledger service",
	Long: `Points ledger service: records payer transactions and spends points
oldest-first over HTTP and gRPC.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("config", "c", config.DefaultPath, "Path to YAML or TOML config file")
	serveCmd.Flags().String("engine", "", "Override ledger.engine (mutex | lmax)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	engine, _ := cmd.Flags().GetString("engine")

	// 1. 載入設定
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	if engine != "" {
		cfg.Ledger.Engine = engine
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	log := setupLogger(cfg.Env)
	log.Info("starting points ledger",
		slog.String("env", cfg.Env),
		slog.String("engine", cfg.Ledger.Engine),
		slog.String("journal", cfg.Journal.Driver),
	)
	log.Debug("debug messages are enabled")

	return run(cmd.Context(), cfg, log)
}

// loadConfig 預設路徑的檔案不存在時使用預設設定
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && path == config.DefaultPath {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}
