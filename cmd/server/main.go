// Package main provides the entry point for the Sage NL2SQL API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TFMV/sage/cmd/server/config"
	"github.com/TFMV/sage/cmd/server/server"
)

var (
	// Version information (set by build flags)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "sage",
	Short: "Sage NL2SQL API Server",
	Long: `An API server that answers natural-language questions about a
PostgreSQL database.

Sage drives a Gemini reasoning loop over read-only SQL, then shapes the
results into structured, visualization-ready responses.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Sage API server",
	Long: `Start the Sage API server with the specified configuration.

Example:
  sage serve --config ./config.yaml
  sage serve --address 0.0.0.0:8080 --database-url postgres://localhost/app`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Command flags
	serveCmd.Flags().StringP("config", "c", "", "config file path")
	serveCmd.Flags().String("address", "0.0.0.0:8080", "server listen address")
	serveCmd.Flags().String("database-url", "", "PostgreSQL connection URL")
	serveCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	serveCmd.Flags().String("model", "gemini-2.0-flash", "language model name")
	serveCmd.Flags().String("api-key", "", "language model API key")
	serveCmd.Flags().Int("max-iterations", 10, "maximum reasoning loop iterations")
	serveCmd.Flags().Int("max-rows", 50, "row limit injected into unbounded queries")
	serveCmd.Flags().Int32("max-connections", 20, "maximum database connections")
	serveCmd.Flags().Duration("query-timeout", 30*time.Second, "database query timeout")
	serveCmd.Flags().Duration("schema-cache-ttl", 5*time.Minute, "schema cache lifetime")
	serveCmd.Flags().Bool("metrics", true, "enable Prometheus metrics")
	serveCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "graceful shutdown timeout")

	// Bind flags to viper
	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		panic(fmt.Errorf("failed to bind flags: %w", err))
	}
	viper.SetEnvPrefix("SAGE")
	viper.AutomaticEnv()

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Sage NL2SQL API Server\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", commit)
			fmt.Printf("Build Date: %s\n", buildDate)
		},
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogging(cfg.LogLevel)
	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Msg("Starting Sage NL2SQL API Server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(); err != nil {
			serverErrCh <- err
		}
	}()

	select {
	case <-shutdownCh:
		logger.Info().Msg("Received shutdown signal")
	case err := <-serverErrCh:
		return err
	case <-ctx.Done():
		logger.Info().Msg("Context cancelled")
	}

	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("Starting graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error during server shutdown")
	}

	return nil
}

func loadConfig() (*config.Config, error) {
	// Load config file if specified
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Address = viper.GetString("address")
	cfg.LogLevel = viper.GetString("log-level")
	cfg.ShutdownTimeout = viper.GetDuration("shutdown-timeout")
	cfg.Database.URL = viper.GetString("database-url")
	cfg.Database.MaxConnections = viper.GetInt32("max-connections")
	cfg.Database.QueryTimeout = viper.GetDuration("query-timeout")
	cfg.Model.Name = viper.GetString("model")
	cfg.Model.APIKey = viper.GetString("api-key")
	cfg.Agent.MaxIterations = viper.GetInt("max-iterations")
	cfg.Guard.MaxRows = viper.GetInt("max-rows")
	cfg.Schema.CacheTTL = viper.GetDuration("schema-cache-ttl")
	cfg.Metrics.Enabled = viper.GetBool("metrics")

	// Environment fallbacks for secrets kept out of flags
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = os.Getenv("GOOGLE_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setupLogging(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
		zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
			short := file
			for i := len(file) - 1; i > 0; i-- {
				if file[i] == '/' {
					short = file[i+1:]
					break
				}
			}
			return fmt.Sprintf("%s:%d", short, line)
		}
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout).
		Level(logLevel).
		With().
		Timestamp().
		Str("service", "sage")

	if logLevel == zerolog.DebugLevel {
		logger = logger.Caller()
	}

	return logger.Logger()
}
