package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"smart/internal/config"
	"smart/pkg/smart"
)

var logoutAll bool

func newLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget stored authorization state",
		Long: `Delete the stored tokens for the selected server, or for every configured
server with --all.`,
		Args: cobra.NoArgs,
		RunE: runLogout,
	}
	cmd.Flags().BoolVar(&logoutAll, "all", false, "log out of every configured server")
	return cmd
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	servers := cfg.Servers
	if !logoutAll {
		sc, err := cfg.Server(serverName)
		if err != nil {
			return err
		}
		servers = []config.ServerConfig{*sc}
	}

	for _, sc := range servers {
		aud, err := smart.Audience(sc.BaseURL)
		if err != nil {
			return err
		}
		if err := store.Delete(aud); err != nil {
			return fmt.Errorf("failed to log out of %s: %w", sc.Name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged out of %s\n", sc.Name)
	}
	return nil
}
