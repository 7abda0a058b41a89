package router

import (
	"bufio"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

// Router is a small method-aware mux with single-segment and trailing
// wildcards, plus request logging. Kept deliberately tiny: the admin API
// has a handful of routes and no need for a full framework.
type Router struct {
	routes map[string]HandlerFunc // key = METHOD:PATH
	paths  map[string]bool
	log    zerolog.Logger
}

func New(log zerolog.Logger) *Router {
	return &Router{
		routes: make(map[string]HandlerFunc),
		paths:  make(map[string]bool),
		log:    log,
	}
}

func (r *Router) register(method, path string, handler HandlerFunc) {
	r.routes[method+":"+path] = handler
	r.paths[path] = true
}

func (r *Router) GET(path string, handler HandlerFunc)  { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc) { r.register(http.MethodPost, path, handler) }

// Handle mounts a plain http.Handler under a path prefix (used for the
// swagger UI).
func (r *Router) Handle(prefix string, handler http.Handler) {
	r.register(http.MethodGet, strings.TrimSuffix(prefix, "/")+"/*", func(w http.ResponseWriter, req *http.Request) {
		handler.ServeHTTP(w, req)
	})
}

// ServeHTTP dispatches exact matches first, then wildcard routes.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	if h, ok := r.routes[req.Method+":"+req.URL.Path]; ok {
		h(lrw, req)
	} else if h := r.matchWildcard(req); h != nil {
		h(lrw, req)
	} else if r.paths[req.URL.Path] {
		http.Error(lrw, "Method Not Allowed", http.StatusMethodNotAllowed)
	} else {
		http.Error(lrw, "Not Found", http.StatusNotFound)
	}

	r.log.Info().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", lrw.statusCode).
		Dur("took", time.Since(start)).
		Msg("request")
}

func (r *Router) matchWildcard(req *http.Request) HandlerFunc {
	for path := range r.paths {
		if !strings.Contains(path, "*") {
			continue
		}
		if matchWildcardRoute(req.URL.Path, path) {
			if h, ok := r.routes[req.Method+":"+path]; ok {
				return h
			}
		}
	}
	return nil
}

// matchWildcardRoute matches a request path against a pattern where "*"
// matches one segment, or any remaining segments when it is the last one.
func matchWildcardRoute(requestPath, pattern string) bool {
	reqSegs := strings.Split(strings.Trim(requestPath, "/"), "/")
	patSegs := strings.Split(strings.Trim(pattern, "/"), "/")

	if len(patSegs) > 0 && patSegs[len(patSegs)-1] == "*" {
		if len(reqSegs) < len(patSegs)-1 {
			return false
		}
		for i := 0; i < len(patSegs)-1; i++ {
			if reqSegs[i] != patSegs[i] {
				return false
			}
		}
		return true
	}

	if len(reqSegs) != len(patSegs) {
		return false
	}
	for i, seg := range patSegs {
		if seg != "*" && reqSegs[i] != seg {
			return false
		}
	}
	return true
}

// Start runs the HTTP server.
func (r *Router) Start(addr string) error {
	r.log.Info().Str("addr", addr).Msg("server listening")
	return http.ListenAndServe(addr, r)
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// Flush passes through so SSE handlers can stream incrementally.
func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack passes through so websocket upgrades work behind the logger.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := lrw.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}
