package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"smart/pkg/oauth"
	pkgstrings "smart/pkg/strings"
	"smart/pkg/tokenstore"
)

func newDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Show the authorization server configuration of a FHIR server",
		Long: `Discover the SMART authorization endpoints of a configured FHIR server.

With an issuer configured the endpoints come from the issuer's discovery
documents, otherwise from the server's CapabilityStatement.

Examples:
  smart discover                 # Discover the default server
  smart discover --server epic   # Discover a specific server`,
		Args: cobra.NoArgs,
		RunE: runDiscover,
	}
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	_, sc, err := loadServerConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), DefaultRequestTimeout)
	defer cancel()

	server, err := connect(ctx, sc, tokenstore.NewMemory())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", text.FgHiCyan.Sprint("Server:"), server.Name())
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", text.FgHiCyan.Sprint("Base URL:"), server.BaseURL())
	printConfiguration(cmd.OutOrStdout(), server.Agent().Configuration())
	return nil
}

// printConfiguration renders the populated fields of cfg as a table.
func printConfiguration(w io.Writer, cfg *oauth.Configuration) {
	t := newTable(w)
	t.AppendHeader(table.Row{text.FgHiCyan.Sprint("KEY"), text.FgHiCyan.Sprint("VALUE")})

	rows := []struct {
		key   string
		value string
	}{
		{"Issuer", cfg.Issuer},
		{"Authorization endpoint", cfg.AuthorizationEndpoint},
		{"Token endpoint", cfg.TokenEndpoint},
		{"Userinfo endpoint", cfg.UserinfoEndpoint},
		{"Registration endpoint", cfg.RegistrationEndpoint},
		{"Management endpoint", cfg.ManagementEndpoint},
		{"Introspection endpoint", cfg.IntrospectionEndpoint},
		{"Revocation endpoint", cfg.RevocationEndpoint},
		{"JWKS URI", cfg.JwksURI},
		{"Scopes", pkgstrings.Truncate(strings.Join(cfg.ScopesSupported, " "), pkgstrings.DefaultCellWidth)},
		{"Capabilities", strings.Join(cfg.Capabilities, "\n")},
	}
	for _, row := range rows {
		if row.value == "" {
			continue
		}
		t.AppendRow(table.Row{row.key, row.value})
	}

	pkce := text.FgYellow.Sprint("no")
	if cfg.SupportsPKCE() {
		pkce = text.FgGreen.Sprint("S256")
	}
	t.AppendRow(table.Row{"PKCE", pkce})

	t.Render()
}
