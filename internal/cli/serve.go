package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/profilegate/profilegate/internal/api"
	"github.com/profilegate/profilegate/internal/config"
	"github.com/profilegate/profilegate/internal/credentials"
	"github.com/profilegate/profilegate/internal/logging"
	"github.com/profilegate/profilegate/internal/places"
	"github.com/profilegate/profilegate/internal/store"
	"github.com/profilegate/profilegate/internal/telegram"
	"github.com/profilegate/profilegate/internal/upstream"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "server", "run"},
	Short:   "Start the ProfileGate server",
	Long: `Start the ProfileGate HTTP server.

The server exposes the OAuth endpoints and the Business Profile
forwarding endpoints configured in the config file.

Example:
  profilegate serve --config config.yaml`,
	RunE: runServe,
}

var serveFlags struct {
	Host       string
	Port       int
	Timeout    time.Duration
	TLS        bool
	TLSCert    string
	TLSKey     string
	TLSVersion string
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Server port (overrides config)")
	serveCmd.Flags().DurationVar(&serveFlags.Timeout, "timeout", envDuration("SHUTDOWN_TIMEOUT", 30*time.Second), "Shutdown timeout")
	serveCmd.Flags().BoolVar(&serveFlags.TLS, "tls", false, "Enable TLS/HTTPS")
	serveCmd.Flags().StringVar(&serveFlags.TLSCert, "cert", "", "TLS certificate file path")
	serveCmd.Flags().StringVar(&serveFlags.TLSKey, "key", "", "TLS key file path")
	serveCmd.Flags().StringVar(&serveFlags.TLSVersion, "tls-version", "1.3", "Minimum TLS version (1.2 or 1.3)")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if globalFlags.Verbose {
		log.Println("Starting ProfileGate server...")
		log.Printf("Config path: %s", globalFlags.Config)
	}

	// Load configuration
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Apply CLI flags to config
	if serveFlags.Host != "" {
		cfg.Server.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		cfg.Server.HTTPPort = serveFlags.Port
	}
	if serveFlags.TLS {
		cfg.Server.TLS.Enabled = true
	}
	if serveFlags.TLSCert != "" {
		cfg.Server.TLS.CertFile = serveFlags.TLSCert
	}
	if serveFlags.TLSKey != "" {
		cfg.Server.TLS.KeyFile = serveFlags.TLSKey
	}
	if serveFlags.TLSVersion != "" {
		cfg.Server.TLS.MinVersion = serveFlags.TLSVersion
	}

	if cfg.Server.TLS.Enabled {
		if err := validateTLSConfig(cfg.Server.TLS); err != nil {
			return fmt.Errorf("TLS validation failed: %w", err)
		}
	}

	// Credential broker and per-request upstream factory
	broker := credentials.NewBroker(cfg.OAuth)
	factory := api.NewUpstreamFactory(broker, upstream.Options{
		AccountID:         cfg.Business.AccountID,
		LocationGroupID:   cfg.Business.LocationGroupID,
		RegionCode:        cfg.Business.RegionCode,
		LanguageCode:      cfg.Business.LanguageCode,
		VerificationPhone: cfg.Business.VerificationPhone,
	})

	// Places text search client
	var placeOpts []places.Option
	if cfg.Places.Endpoint != "" {
		placeOpts = append(placeOpts, places.WithEndpoint(cfg.Places.Endpoint))
	}
	finder := places.NewClient(cfg.Places.APIKey, placeOpts...)

	// Audit store
	var auditStore store.AuditStore
	if cfg.Audit.Enabled {
		sqliteStore, err := store.NewSQLiteAuditStore(cfg.Audit.DBPath, cfg.Audit.RetentionDays)
		if err != nil {
			return fmt.Errorf("failed to open audit store: %w", err)
		}
		auditStore = sqliteStore
		if globalFlags.Verbose {
			log.Printf("Audit database: %s (WAL mode enabled)", cfg.Audit.DBPath)
		}
	} else {
		auditStore = store.NewMemoryAuditStore()
	}

	// Telegram alerts
	notifier := telegram.NewNotifier(cfg.Telegram, logging.NewLogger())

	// Reload config on file change
	loader.SetOnChange(func(updated *config.Config) {
		log.Printf("Configuration reloaded from %s", globalFlags.Config)
	})
	if err := loader.StartWatcher(); err != nil {
		log.Printf("Config watcher warning: %v", err)
	}
	defer loader.StopWatcher()

	server := api.NewServer(cfg.Server, cfg.API, broker, factory, finder, auditStore, notifier)

	setupGracefulShutdown(server, serveFlags.Timeout)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	if cfg.Server.TLS.Enabled {
		log.Printf("Starting ProfileGate HTTPS server on %s", addr)
	} else {
		log.Printf("Starting ProfileGate HTTP server on %s", addr)
	}

	if err := server.Run(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// validateTLSConfig validates TLS configuration
func validateTLSConfig(tls config.TLSConfig) error {
	if tls.CertFile == "" {
		return fmt.Errorf("TLS certificate file is required when TLS is enabled")
	}
	if tls.KeyFile == "" {
		return fmt.Errorf("TLS key file is required when TLS is enabled")
	}

	if _, err := os.Stat(tls.CertFile); os.IsNotExist(err) {
		return fmt.Errorf("TLS certificate file does not exist: %s", tls.CertFile)
	}
	if _, err := os.Stat(tls.KeyFile); os.IsNotExist(err) {
		return fmt.Errorf("TLS key file does not exist: %s", tls.KeyFile)
	}

	if tls.MinVersion != "" && tls.MinVersion != "1.2" && tls.MinVersion != "1.3" {
		return fmt.Errorf("TLS min_version must be either \"1.2\" or \"1.3\", got: %s", tls.MinVersion)
	}

	return nil
}

// setupGracefulShutdown handles graceful shutdown on SIGINT/SIGTERM
func setupGracefulShutdown(server *api.Server, timeout time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		log.Println("Shutting down API server...")
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Error during server shutdown: %v", err)
		}

		log.Println("Graceful shutdown completed")
		os.Exit(0)
	}()
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	return fallback
}
