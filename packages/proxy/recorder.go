// Package proxy provides a reverse proxy that records every exchange it
// forwards as a HAR trace entry.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"

	livehttp "github.com/abdul-hamid-achik/livespec/packages/http"
	"github.com/abdul-hamid-achik/livespec/packages/openapi"
	"github.com/abdul-hamid-achik/livespec/packages/trace"
)

// ErrTargetRequired is returned when the recorder has no upstream to forward to.
var ErrTargetRequired = errors.New("target URL is required")

// DefaultSanitize lists the headers redacted unless WithSanitize overrides it.
var DefaultSanitize = []string{"Authorization", "Cookie", "Set-Cookie", "X-Api-Key", "Api-Key"}

type contextKey struct{}

// pending is the request side of an exchange, captured before forwarding.
type pending struct {
	start  time.Time
	url    string
	method string
	header http.Header
	body   []byte
}

// Recorder is a reverse proxy that appends every forwarded exchange to a
// trace recorder.
type Recorder struct {
	port        int
	targetURL   string
	trace       *trace.Recorder
	verbose     bool
	exclude     []string
	sanitize    []string
	deduplicate bool
	logf        func(format string, args ...any)

	mutex sync.Mutex
	seen  map[string]bool
}

// Option is a functional option for Recorder
type Option func(*Recorder)

// WithPort sets the proxy port
func WithPort(port int) Option {
	return func(r *Recorder) {
		r.port = port
	}
}

// WithTargetURL sets the target URL to proxy to
func WithTargetURL(target string) Option {
	return func(r *Recorder) {
		r.targetURL = target
	}
}

// WithTraceRecorder shares an existing trace recorder instead of creating one.
func WithTraceRecorder(t *trace.Recorder) Option {
	return func(r *Recorder) {
		r.trace = t
	}
}

// WithVerbose enables verbose logging
func WithVerbose(verbose bool) Option {
	return func(r *Recorder) {
		r.verbose = verbose
	}
}

// WithExclude sets path prefixes that are forwarded but not recorded.
func WithExclude(prefixes []string) Option {
	return func(r *Recorder) {
		r.exclude = prefixes
	}
}

// WithSanitize sets headers to redact. An empty list records every header
// as sent.
func WithSanitize(headers []string) Option {
	return func(r *Recorder) {
		r.sanitize = headers
	}
}

// WithDeduplicate keeps only the first exchange per method and path template.
func WithDeduplicate(enabled bool) Option {
	return func(r *Recorder) {
		r.deduplicate = enabled
	}
}

// WithLogger replaces log.Printf for proxy diagnostics.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(r *Recorder) {
		r.logf = logf
	}
}

// NewRecorder creates a new recording proxy
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		port:     8080,
		sanitize: DefaultSanitize,
		seen:     make(map[string]bool),
		logf:     log.Printf,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.trace == nil {
		r.trace = trace.NewRecorder()
	}
	return r
}

// Trace returns the recorder entries are appended to.
func (r *Recorder) Trace() *trace.Recorder {
	return r.trace
}

// Handler returns the proxying handler without binding a listener.
func (r *Recorder) Handler() (http.Handler, error) {
	if r.targetURL == "" {
		return nil, ErrTargetRequired
	}
	target, err := url.Parse(r.targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid target URL: %q has no scheme or host", r.targetURL)
	}

	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			req.Host = target.Host
			req.URL.Path = singleJoin(target.Path, req.URL.Path)
			req.URL.RawPath = ""
			// Bodies are recorded as text, so ask upstream not to compress.
			req.Header.Del("Accept-Encoding")
		},
		ModifyResponse: r.recordResponse,
		ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
			r.logf("Proxy error: %s %s: %v", req.Method, req.URL.Path, err)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	return r.wrap(proxy, target), nil
}

// StartWithContext serves until ctx is cancelled, then shuts down gracefully.
func (r *Recorder) StartWithContext(ctx context.Context) error {
	handler, err := r.Handler()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", r.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", r.port, err)
	}
	return r.Serve(ctx, ln, handler)
}

// Serve runs the proxy on an existing listener.
func (r *Recorder) Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	server := &http.Server{Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	r.logf("Recording proxy listening on http://%s", ln.Addr())
	r.logf("Proxying to: %s", r.targetURL)

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (r *Recorder) wrap(next http.Handler, target *url.URL) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.shouldExclude(req.URL.Path) {
			if r.verbose {
				r.logf("Excluded: %s %s", req.Method, req.URL.Path)
			}
			next.ServeHTTP(w, req)
			return
		}

		var body []byte
		if req.Body != nil {
			body, _ = io.ReadAll(req.Body)
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		upstream := *target
		upstream.Path = singleJoin(target.Path, req.URL.Path)
		upstream.RawPath = ""
		upstream.RawQuery = req.URL.RawQuery

		p := &pending{
			start:  time.Now(),
			url:    upstream.String(),
			method: req.Method,
			header: req.Header.Clone(),
			body:   body,
		}
		next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), contextKey{}, p)))
	})
}

func (r *Recorder) recordResponse(resp *http.Response) error {
	p, ok := resp.Request.Context().Value(contextKey{}).(*pending)
	if !ok {
		return nil
	}

	var body []byte
	if resp.Body != nil {
		var err error
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}

	if r.deduplicate {
		u, _ := url.Parse(p.url)
		key := p.method + " " + openapi.NormalizePath(u.EscapedPath())
		r.mutex.Lock()
		if r.seen[key] {
			r.mutex.Unlock()
			if r.verbose {
				r.logf("Skipped duplicate: %s", key)
			}
			return nil
		}
		r.seen[key] = true
		r.mutex.Unlock()
	}

	req := &livehttp.Request{
		Method:  p.method,
		URL:     p.url,
		Headers: r.sanitizeHeaders(p.header),
		Body:    string(p.body),
		HasBody: len(p.body) > 0,
	}
	result := &livehttp.Response{
		StatusCode:     resp.StatusCode,
		Status:         resp.Status,
		Reason:         reason(resp),
		Proto:          resp.Proto,
		Headers:        r.sanitizeHeaders(resp.Header),
		Body:           body,
		RequestHeaders: req.Headers,
		StartedAt:      p.start,
		Duration:       time.Since(p.start),
	}

	mime := p.header.Get("Content-Type")
	if mime == "" {
		mime = livehttp.DefaultContentType
	}
	r.trace.Add(trace.NewEntry(req, mime, result))

	if r.verbose {
		r.logf("Recorded: %s %s -> %d (%s)", p.method, p.url, resp.StatusCode, result.Duration.Round(time.Millisecond))
	}
	return nil
}

func (r *Recorder) shouldExclude(path string) bool {
	for _, prefix := range r.exclude {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// sanitizeHeaders flattens h and replaces redacted values with a
// {{HEADER_NAME}} placeholder.
func (r *Recorder) sanitizeHeaders(h http.Header) []livehttp.Header {
	headers := livehttp.FlattenHeaders(h)
	for i, hdr := range headers {
		for _, s := range r.sanitize {
			if strings.EqualFold(hdr.Name, s) {
				headers[i].Value = "{{" + strings.ToUpper(strings.ReplaceAll(hdr.Name, "-", "_")) + "}}"
				break
			}
		}
	}
	return headers
}

// Clear drops the deduplication state so previously seen routes are recorded
// again.
func (r *Recorder) Clear() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.seen = make(map[string]bool)
}

func reason(resp *http.Response) string {
	code := fmt.Sprintf("%d ", resp.StatusCode)
	if text := strings.TrimPrefix(resp.Status, code); text != resp.Status && text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func singleJoin(base, path string) string {
	switch {
	case base == "" || base == "/":
		return path
	case path == "" || path == "/":
		return base
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
