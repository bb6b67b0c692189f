package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/snipd/internal/engine"
)

// Defaults for Options.
const (
	DefaultAdminPrefix = "/admin"
	DefaultAuthCookie  = "snipd_session"
	DefaultAPIPrefix   = "/_snipd/api"
)

// Options configures a Server.
type Options struct {
	// AdminPrefix marks administrative surfaces.
	AdminPrefix string

	// AuthCookie is the cookie whose presence means a logged-in visitor.
	AuthCookie string

	// APIPrefix is where the management API is mounted.
	APIPrefix string

	// Upstream is proxied to when set. Otherwise Root is served from disk,
	// or a blank page when Root is empty too.
	Upstream string
	Root     string

	Logger *slog.Logger
}

// Server wires the engine into an HTTP handler.
type Server struct {
	eng     *engine.Engine
	opts    Options
	logger  *slog.Logger
	handler http.Handler
}

// New builds the router.
func New(eng *engine.Engine, opts Options) (*Server, error) {
	s := newServer(eng, opts)
	backend, err := s.backend()
	if err != nil {
		return nil, err
	}
	s.mount(backend)
	return s, nil
}

func newServer(eng *engine.Engine, opts Options) *Server {
	if opts.AdminPrefix == "" {
		opts.AdminPrefix = DefaultAdminPrefix
	}
	if opts.AuthCookie == "" {
		opts.AuthCookie = DefaultAuthCookie
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = DefaultAPIPrefix
	}
	opts.AdminPrefix = "/" + strings.Trim(opts.AdminPrefix, "/")
	opts.APIPrefix = "/" + strings.Trim(opts.APIPrefix, "/")

	s := &Server{eng: eng, opts: opts, logger: opts.Logger}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *Server) mount(backend http.Handler) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Route(s.opts.APIPrefix, func(r chi.Router) {
		r.Use(middleware.Recoverer)
		newAPI(s.eng, s.logger).routes(r)
	})
	r.With(s.inject).Handle("/*", backend)

	s.handler = r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) backend() (http.Handler, error) {
	switch {
	case s.opts.Upstream != "":
		target, err := url.Parse(s.opts.Upstream)
		if err != nil {
			return nil, fmt.Errorf("parse upstream: %w", err)
		}
		if target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("parse upstream: %q is not an absolute URL", s.opts.Upstream)
		}
		proxy := httputil.NewSingleHostReverseProxy(target)
		director := proxy.Director
		proxy.Director = func(r *http.Request) {
			director(r)
			// Bodies must arrive uncompressed to be rewritten.
			r.Header.Del("Accept-Encoding")
		}
		proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			s.logger.Error("upstream request failed", "path", r.URL.Path, "error", err)
			http.Error(w, "Bad Gateway", http.StatusBadGateway)
		}
		return proxy, nil
	case s.opts.Root != "":
		return http.FileServer(http.Dir(s.opts.Root)), nil
	default:
		return http.HandlerFunc(blankPage), nil
	}
}

const blankHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>snipd</title>
</head>
<body>
</body>
</html>
`

func blankPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(blankHTML))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
