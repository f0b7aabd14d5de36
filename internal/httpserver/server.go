package httpserver

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"vortex/internal/auth"
	"vortex/internal/config"
	"vortex/internal/fsutil"
	"vortex/internal/listing"
	"vortex/internal/logger"
	"vortex/internal/metrics"
	"vortex/internal/ratelimiter"
	"vortex/internal/upload"
)

const davPrefix = "/dav"

// Options configures a Server. Metrics and Renderer are optional.
type Options struct {
	Config  *config.Config
	Metrics metrics.Metrics
	// Renderer replaces the built-in HTML directory listing.
	Renderer listing.Renderer
}

// Server maps requests onto the served directory.
type Server struct {
	cfg      *config.Config
	root     string
	metrics  metrics.Metrics
	renderer listing.Renderer
	parser   *upload.Parser
	limiter  *ratelimiter.PerClient
	thumbs   *thumbCache
	dav      http.Handler
}

// New resolves the served root and builds a Server from opts.
func New(opts Options) (*Server, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("httpserver: nil config")
	}
	root, err := fsutil.ResolveRoot(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", cfg.Root, err)
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.NewNoop()
	}

	renderer := opts.Renderer
	if renderer == nil {
		html, err := listing.NewHTML(listing.Options{
			ReadOnly:   cfg.Upload.ReadOnly,
			Thumbnails: cfg.Thumbs.Enabled,
		})
		if err != nil {
			return nil, err
		}
		renderer = html
	}

	s := &Server{
		cfg:      cfg,
		root:     root,
		metrics:  m,
		renderer: renderer,
		parser:   &upload.Parser{MaxSize: cfg.Upload.MaxSize},
	}
	if cfg.Security.RateLimit > 0 {
		s.limiter = ratelimiter.NewPerMinute(cfg.Security.RateLimit, cfg.Security.RateBurst)
	}
	if cfg.Thumbs.Enabled {
		s.thumbs = newThumbCache(thumbCacheEntries, cfg.Thumbs.MaxDim)
	}
	if cfg.WebDAV.Enabled {
		s.dav = s.davHandler()
	}
	return s, nil
}

// Root is the resolved directory being served.
func (s *Server) Root() string {
	return s.root
}

// Handler returns the full middleware chain. Outermost first: panic
// recovery, access log, security headers, rate limit, basic auth, router.
func (s *Server) Handler() http.Handler {
	var h http.Handler = http.HandlerFunc(s.route)
	h = auth.RequireAuth(s.cfg.Security, h)
	h = s.rateLimit(h)
	h = securityHeaders(h)
	h = s.accessLog(h)
	h = s.recovery(h)
	return h
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	if s.dav != nil {
		if r.URL.Path == davPrefix {
			http.Redirect(w, r, davPrefix+"/", http.StatusMovedPermanently)
			return
		}
		if strings.HasPrefix(r.URL.Path, davPrefix+"/") {
			s.dav.ServeHTTP(w, r)
			return
		}
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.handleGet(w, r)
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// resolve maps the request path below the root and answers 404 or 403
// itself when that fails.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (string, bool) {
	p, err := fsutil.Resolve(s.root, r.URL.Path)
	if err == nil {
		return p, true
	}
	if errors.Is(err, fs.ErrNotExist) {
		http.Error(w, "Not found", http.StatusNotFound)
		return "", false
	}
	logger.Info("Blocked path %q from %s: %v", r.URL.Path, r.RemoteAddr, err)
	http.Error(w, "Forbidden", http.StatusForbidden)
	return "", false
}

// dirURL is the escaped URL of a directory below the root, with a
// trailing slash.
func (s *Server) dirURL(dir string) string {
	rel := fsutil.RelURL(s.root, dir)
	if !strings.HasSuffix(rel, "/") {
		rel += "/"
	}
	return escapePath(rel)
}
