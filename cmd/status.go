package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"smart/internal/config"
	"smart/pkg/auth"
	"smart/pkg/smart"
	pkgstrings "smart/pkg/strings"
	"smart/pkg/tokenstore"
)

var statusOutput string

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the authorization status of configured servers",
		Long: `Show the stored authorization state for every configured server, or for
the one selected with --server. No network requests are made.

Examples:
  smart status                  # Table of all servers
  smart status --output json    # Machine-readable status`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
	cmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "output format: table or json")
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if statusOutput != "table" && statusOutput != "json" {
		return fmt.Errorf("unknown output format %q", statusOutput)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	servers := cfg.Servers
	if serverName != "" {
		sc, err := cfg.Server(serverName)
		if err != nil {
			return err
		}
		servers = []config.ServerConfig{*sc}
	}

	resp, err := collectStatus(servers, store)
	if err != nil {
		return err
	}

	if statusOutput == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if len(resp.Servers) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), text.FgYellow.Sprint("No servers configured"))
		return nil
	}
	printStatus(cmd.OutOrStdout(), resp)
	return nil
}

// collectStatus reads the stored token of every server.
func collectStatus(servers []config.ServerConfig, store tokenstore.Store) (auth.StatusResponse, error) {
	resp := auth.StatusResponse{Servers: make([]auth.ServerStatus, 0, len(servers))}
	for _, sc := range servers {
		aud, err := smart.Audience(sc.BaseURL)
		if err != nil {
			return auth.StatusResponse{}, err
		}

		stored, err := store.Load(aud)
		if err != nil && !errors.Is(err, tokenstore.ErrNotFound) {
			return auth.StatusResponse{}, fmt.Errorf("failed to load token for %s: %w", sc.Name, err)
		}
		resp.Servers = append(resp.Servers, auth.NewServerStatus(sc.Name, aud, stored))
	}
	return resp, nil
}

func printStatus(w io.Writer, resp auth.StatusResponse) {
	t := newTable(w)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("NAME"),
		text.FgHiCyan.Sprint("BASE URL"),
		text.FgHiCyan.Sprint("STATUS"),
		text.FgHiCyan.Sprint("EXPIRES"),
		text.FgHiCyan.Sprint("REFRESH"),
		text.FgHiCyan.Sprint("PATIENT"),
	})

	for _, s := range resp.Servers {
		if s.Status == auth.StatusNotAuthorized {
			t.AppendRow(table.Row{s.Name, pkgstrings.Truncate(s.Aud, pkgstrings.DefaultCellWidth), text.FgYellow.Sprint("Not authorized"), "", "", ""})
			continue
		}

		status := text.FgGreen.Sprint("Authorized")
		if s.Status == auth.StatusExpired {
			status = text.FgYellow.Sprint("Expired")
		}
		expires := formatExpiry(time.Time{})
		if s.ExpiresAt != nil {
			expires = formatExpiry(*s.ExpiresAt)
		}
		refresh := text.FgHiBlack.Sprint("no")
		if s.HasRefreshToken {
			refresh = text.FgGreen.Sprint("yes")
		}

		t.AppendRow(table.Row{s.Name, pkgstrings.Truncate(s.Aud, pkgstrings.DefaultCellWidth), status, expires, refresh, s.Patient})
	}

	t.Render()
}
