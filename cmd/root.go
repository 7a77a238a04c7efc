package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"smart/internal/config"
	"smart/pkg/logging"
	"smart/pkg/smart"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authorization is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the authorization flow failed.
	ExitCodeAuthFailed = 3
)

// Global flags
var (
	configPath string
	serverName string
	logLevel   string
)

// rootCmd represents the base command for the smart application.
var rootCmd = &cobra.Command{
	Use:   "smart",
	Short: "Authorize against SMART on FHIR servers and read FHIR resources",
	Long: `smart discovers a FHIR server's SMART authorization endpoints, runs the
OAuth2 authorization code flow in your browser and keeps the resulting tokens
so that FHIR resources can be read on your behalf.

Servers are configured in ~/.config/smart/config.yaml.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage:      true,
	PersistentPreRunE: initLogging,
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "smart version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	switch {
	case errors.Is(err, smart.ErrNoActiveState),
		errors.Is(err, smart.ErrNotAuthorized):
		return ExitCodeAuthRequired
	case errors.Is(err, smart.ErrAuthorizationFailed),
		errors.Is(err, smart.ErrStateMismatch),
		errors.Is(err, smart.ErrSessionCanceled):
		return ExitCodeAuthFailed
	default:
		return ExitCodeError
	}
}

// initLogging sets up CLI logging. The --log-level flag wins over the
// configured level.
func initLogging(cmd *cobra.Command, _ []string) error {
	level := logLevel
	if level == "" {
		if cfg, err := config.LoadConfig(configPath); err == nil {
			level = cfg.LogLevel
		}
	}

	parsed, err := logging.ParseLevel(level)
	if err != nil {
		return err
	}
	logging.InitForCLI(parsed, cmd.ErrOrStderr())
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/smart/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&serverName, "server", "s", "", "configured server name (default is defaultServer)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newDiscoverCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newGetCmd())
}
