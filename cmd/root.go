package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/FranLegon/drive-web/internal/config"
	"github.com/FranLegon/drive-web/internal/logger"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	// settings is loaded before any subcommand runs.
	settings *config.Settings
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "drive-web",
	Short: "A small web front-end for browsing a Google Drive folder.",
	Long: `drive-web serves a browser UI over one Google Drive: list folders by path or ID,
download files and upload new ones into any folder.

Client credentials and the session secret are stored encrypted next to the settings
file (secrets.json.enc), protected by a master password. Run 'drive-web init' first.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.LoadSettings(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			s.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			s.LogFormat = logFormat
		}
		settings = s

		return logger.Init(logger.Config{Level: s.LogLevel, Format: s.LogFormat})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is the main entry point for the CLI application.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultSettingsFile, "Path to the settings file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log format (json, console)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(purgeSessionsCmd)
	rootCmd.AddCommand(versionCmd)
}

// secretsDir is where the encrypted secrets live: next to the settings file.
func secretsDir() string {
	return filepath.Dir(configPath)
}
