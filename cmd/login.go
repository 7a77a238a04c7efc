package cmd

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"smart/internal/callback"
	"smart/pkg/smart"
)

// Login-specific flags
var (
	loginNoBrowser bool
	loginTimeout   time.Duration
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize against a FHIR server",
		Long: `Authorize against a configured FHIR server using the SMART App Launch
authorization code flow.

The authorization page opens in your browser and the redirect is received
on a local callback server. Tokens are kept in the configured token store.

Examples:
  smart login                    # Authorize against the default server
  smart login --server epic      # Authorize against a specific server
  smart login --no-browser       # Print the URL instead of opening a browser`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}
	cmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "print the authorization URL instead of opening a browser")
	cmd.Flags().DurationVar(&loginTimeout, "timeout", callback.Timeout, "how long to wait for the authorization to complete")
	return cmd
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cfg, sc, err := loadServerConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), loginTimeout)
	defer cancel()

	server, err := connect(ctx, sc, store)
	if err != nil {
		return err
	}

	opts := append(callbackOptions(sc), callback.WithLabel(server.Name()))

	cb := callback.New(cfg.CallbackPort, func(ctx context.Context, redirect *url.URL) error {
		_, err := server.CompleteAuthorization(ctx, redirect)
		return err
	}, opts...)

	redirectURL, err := cb.Start(ctx)
	if err != nil {
		return err
	}
	defer cb.Stop()

	var presenter smart.Presenter = smart.BrowserPresenter{Fallback: cmd.OutOrStdout()}
	if loginNoBrowser {
		presenter = smart.WriterPresenter{W: cmd.OutOrStdout()}
	}

	session, err := server.RequestAuthorization(ctx, authorizationParameters(sc, redirectURL), presenter)
	if err != nil {
		return err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Waiting for authorization..."
	s.Writer = cmd.ErrOrStderr()
	s.Start()
	state, err := waitForAuthorization(ctx, session, cb)
	s.Stop()
	if err != nil {
		session.Cancel()
		return fmt.Errorf("authorization against %s failed: %w", server.Name(), err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Authorized against %s\n", text.FgGreen.Sprint("✓"), server.Name())
	if scope := state.Scope(); scope != "" {
		fmt.Fprintf(out, "  Scope:     %s\n", scope)
	}
	if patient := state.Patient(); patient != "" {
		fmt.Fprintf(out, "  Patient:   %s\n", patient)
	}
	if encounter := state.Encounter(); encounter != "" {
		fmt.Fprintf(out, "  Encounter: %s\n", encounter)
	}
	fmt.Fprintf(out, "  Expires:   %s\n", formatExpiry(state.Expiry()))
	return nil
}

// waitForAuthorization waits for the session to resolve. A redirect the
// session rejected ends the wait with the callback handler's error.
func waitForAuthorization(ctx context.Context, session *smart.Session, cb *callback.Server) (*smart.AuthState, error) {
	callbackErr := make(chan error, 1)
	go func() {
		callbackErr <- cb.Wait(ctx)
	}()

	select {
	case <-session.Done():
	case err := <-callbackErr:
		if err != nil {
			return nil, err
		}
	}
	return session.Wait(ctx)
}
