package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/terraconstructs/pluggableauth/cmd/pauthd/cmd/groups"
	"github.com/terraconstructs/pluggableauth/cmd/pauthd/cmd/principals"
	"github.com/terraconstructs/pluggableauth/internal/config"
)

var (
	cfg        *config.Config
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "pauthd",
	Short: "Pluggable authentication server",
	Long: `pauthd authenticates HTTP requests through configurable credentials and
authenticator plugins, and manages the principal and group folders they use.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

func init() {
	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to a YAML, TOML or JSON config file")
	flags.String("db-url", "", "Database connection URL (env: PAUTH_DATABASE_URL)")
	flags.String("server-addr", "", "Server bind address (env: PAUTH_SERVER_ADDR)")
	flags.Bool("debug", false, "Enable debug logging (env: PAUTH_DEBUG)")
	flags.String("log-format", "", "Log encoding, json or console (env: PAUTH_LOG_FORMAT)")

	for key, flag := range map[string]string{
		"database_url": "db-url",
		"server_addr":  "server-addr",
		"debug":        "debug",
		"log_format":   "log-format",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	// Add subcommands
	rootCmd.AddCommand(groups.GroupsCmd)
	rootCmd.AddCommand(principals.PrincipalsCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
