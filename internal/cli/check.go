package cli

import (
	"fmt"

	"github.com/profilegate/profilegate/internal/api"
	"github.com/profilegate/profilegate/internal/config"
	"github.com/profilegate/profilegate/internal/credentials"
	"github.com/spf13/cobra"
)

// checkCmd validates the configuration without starting the server.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and print the OAuth consent URL",
	Long: `Load and validate the configuration file, then print the Google
consent URL the configured OAuth client produces. Useful for verifying a
deployment before starting the server.`,
	RunE: runCheck,
}

func init() {
	RootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Printf("Configuration OK: %s\n", globalFlags.Config)
	fmt.Printf("  server:    %s:%d (tls=%v)\n", cfg.Server.Host, cfg.Server.HTTPPort, cfg.Server.TLS.Enabled)
	fmt.Printf("  audit:     enabled=%v\n", cfg.Audit.Enabled)
	fmt.Printf("  telegram:  enabled=%v\n", cfg.Telegram.Enabled)
	if len(cfg.API.Auth.APIKeys) > 0 {
		fmt.Printf("  api keys:  %v\n", api.MaskAPIKeys(cfg.API.Auth.APIKeys))
	}
	if cfg.Places.APIKey == "" {
		fmt.Println("  warning:   places api_key is empty, /get-place-id will fail")
	}

	broker := credentials.NewBroker(cfg.OAuth)
	fmt.Printf("\nOAuth consent URL:\n%s\n", broker.AuthURL())

	return nil
}
