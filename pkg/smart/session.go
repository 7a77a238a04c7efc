package smart

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"smart/pkg/oauth"
)

// Session is one pending authorization attempt. It resolves exactly once:
// with an AuthState when the redirect completes the flow, or with an error
// when the flow fails or is canceled.
type Session struct {
	id      string
	request *oauth.AuthorizationRequest
	config  *oauth.Configuration

	// claimed is set under the agent's lock once a redirect is being processed.
	claimed bool

	once  sync.Once
	done  chan struct{}
	state *AuthState
	err   error
}

func newSession(req *oauth.AuthorizationRequest, cfg *oauth.Configuration) *Session {
	return &Session{
		id:      uuid.New().String(),
		request: req,
		config:  cfg,
		done:    make(chan struct{}),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// AuthURL returns the authorization URL handed to the presenter.
func (s *Session) AuthURL() string {
	return s.request.URL()
}

// RedirectURL returns the redirect URL the session expects to be resumed with.
func (s *Session) RedirectURL() string {
	return s.request.Config.RedirectURL
}

// Done is closed when the session resolves.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session resolves or ctx is done.
func (s *Session) Wait(ctx context.Context) (*AuthState, error) {
	select {
	case <-s.done:
		return s.state, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel resolves the session with ErrSessionCanceled if it is still pending.
func (s *Session) Cancel() {
	s.resolve(nil, ErrSessionCanceled)
}

// resolved reports whether the session has already resolved.
func (s *Session) resolved() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// resolve settles the session and reports whether this call did so.
func (s *Session) resolve(state *AuthState, err error) bool {
	settled := false
	s.once.Do(func() {
		s.state = state
		s.err = err
		close(s.done)
		settled = true
	})
	return settled
}
