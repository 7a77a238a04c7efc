package smart

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/pkg/browser"
)

// Presenter shows the authorization URL to the user. The set of presenters
// is closed: BrowserPresenter, WriterPresenter and PresenterFunc.
type Presenter interface {
	present(ctx context.Context, authURL string) error
}

// openURL is replaced in tests.
var openURL = browser.OpenURL

// BrowserPresenter opens the authorization URL in the system browser.
type BrowserPresenter struct {
	// Fallback, when set, receives the URL if the browser cannot be opened.
	// Without it a browser failure fails the authorization attempt.
	Fallback io.Writer
}

func (p BrowserPresenter) present(_ context.Context, authURL string) error {
	if err := openURL(authURL); err != nil {
		if p.Fallback == nil {
			return fmt.Errorf("failed to open browser: %w", err)
		}
		slog.Warn("Failed to open browser", "error", err)
		_, werr := fmt.Fprintf(p.Fallback, "Please open this URL in your browser:\n\n  %s\n\n", authURL)
		return werr
	}
	return nil
}

// WriterPresenter prints the authorization URL for headless hosts.
type WriterPresenter struct {
	W io.Writer
}

func (p WriterPresenter) present(_ context.Context, authURL string) error {
	if p.W == nil {
		return fmt.Errorf("writer presenter has no writer")
	}
	_, err := fmt.Fprintf(p.W, "Open this URL to authorize:\n\n  %s\n\n", authURL)
	return err
}

// PresenterFunc lets the host supply its own surface, such as an embedded
// web view.
type PresenterFunc func(ctx context.Context, authURL string) error

func (f PresenterFunc) present(ctx context.Context, authURL string) error {
	return f(ctx, authURL)
}
