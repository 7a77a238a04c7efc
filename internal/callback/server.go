// Package callback runs the loopback HTTP server that receives the
// authorization server's redirect during a CLI login.
package callback

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// DefaultPort is the default port for the local callback server.
const DefaultPort = 3000

// DefaultPath is the path the redirect is delivered to.
const DefaultPath = "/callback"

// Timeout is how long a login waits for the redirect.
const Timeout = 10 * time.Minute

var (
	//go:embed templates/success.html
	successHTML string

	//go:embed templates/error.html
	errorHTML string

	successTemplate = template.Must(template.New("success").Parse(successHTML))
	errorTemplate   = template.Must(template.New("error").Parse(errorHTML))
)

// Handler completes the authorization with the delivered redirect URL.
type Handler func(ctx context.Context, redirect *url.URL) error

// Server is a temporary local HTTP server for one redirect. It starts,
// hands the first request on its path to the Handler, then shuts down.
type Server struct {
	port    int
	host    string
	path    string
	handler Handler
	label   string

	server      *http.Server
	listener    net.Listener
	redirectURL *url.URL

	resultCh chan error
	once     sync.Once
	stopOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithPath sets the redirect path. It defaults to DefaultPath.
func WithPath(path string) Option {
	return func(s *Server) {
		s.path = path
	}
}

// WithHost sets the loopback host name used in the redirect URL. It
// defaults to localhost.
func WithHost(host string) Option {
	return func(s *Server) {
		s.host = host
	}
}

// WithLabel names the server shown on the success page.
func WithLabel(label string) Option {
	return func(s *Server) {
		s.label = label
	}
}

// New creates a callback server on port. Port 0 picks a free port.
func New(port int, handler Handler, opts ...Option) *Server {
	s := &Server{
		port:     port,
		host:     "localhost",
		path:     DefaultPath,
		handler:  handler,
		resultCh: make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start listens on the loopback interface and returns the redirect URL to
// put in the authorization request. The server stops when ctx is done.
func (s *Server) Start(ctx context.Context) (string, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.redirectURL = &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(s.host, strconv.Itoa(s.port)),
		Path:   s.path,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleRedirect)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.resultCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return s.redirectURL.String(), nil
}

// Wait blocks until the redirect was handled and returns the handler's error.
func (s *Server) Wait(ctx context.Context) error {
	select {
	case err := <-s.resultCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	handled := false
	s.once.Do(func() {
		handled = true
		s.process(w, r)
	})

	if !handled {
		http.Error(w, "Redirect already processed", http.StatusBadRequest)
	}
}

// process runs exactly once, via sync.Once.
func (s *Server) process(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	// The redirect is rebuilt on the advertised URL so that it matches the
	// authorization request regardless of the Host header the browser sent.
	redirect := *s.redirectURL
	redirect.RawQuery = r.URL.RawQuery

	err := s.handler(r.Context(), &redirect)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = errorTemplate.Execute(w, map[string]string{"Error": err.Error()})
	} else {
		_ = successTemplate.Execute(w, map[string]string{"Server": s.label})
	}

	select {
	case s.resultCh <- err:
	default:
	}

	// give the response time to reach the browser
	go func() {
		time.Sleep(time.Second)
		s.Stop()
	}()
}

// Stop shuts the server down. It is safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.server.Shutdown(ctx)
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// RedirectURL returns the URL the server receives redirects on.
func (s *Server) RedirectURL() string {
	if s.redirectURL == nil {
		return ""
	}
	return s.redirectURL.String()
}

// Port returns the port the server listens on.
func (s *Server) Port() int {
	return s.port
}
