package runner

import (
	"context"
	"encoding/base64"
	"fmt"
	nethttp "net/http"
	neturl "net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/livespec/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/livespec/packages/collection"
	"github.com/abdul-hamid-achik/livespec/packages/core/env"
	"github.com/abdul-hamid-achik/livespec/packages/http"
	"github.com/abdul-hamid-achik/livespec/packages/trace"
)

// SupportedMethods is the executor's method allow-list.
var SupportedMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}

// DefaultRequestContentType is declared for sent bodies when neither a
// Content-Type header nor a body language says otherwise.
const DefaultRequestContentType = "application/json"

// languageContentTypes maps raw body languages to media types.
var languageContentTypes = map[string]string{
	"json":       "application/json",
	"xml":        "application/xml",
	"html":       "text/html",
	"text":       "text/plain",
	"javascript": "application/javascript",
	"graphql":    "application/json",
}

func isSupportedMethod(method string) bool {
	for _, m := range SupportedMethods {
		if m == method {
			return true
		}
	}
	return false
}

// ResolveTarget returns the unresolved request target. Structured URLs use
// their raw form only and yield "" without one, unless rebuild is set, in
// which case the URL is assembled from its parts.
func ResolveTarget(u collection.URL, rebuild bool) string {
	switch v := u.(type) {
	case collection.RawURL:
		return string(v)
	case *collection.StructuredURL:
		if v.Raw != "" || !rebuild {
			return v.Raw
		}
		return v.Rebuild()
	}
	return ""
}

// Executor turns one collection request into a trace entry.
type Executor struct {
	client      *http.Client
	limiter     *rate.Limiter
	rebuildURL  bool
	warnFunc    env.WarnFunc
	tokenClient *nethttp.Client
	tokens      *oauth2.TokenCache
}

// ExecutorOption is a functional option for Executor
type ExecutorOption func(*Executor)

// WithClient sets the HTTP client used to send requests.
func WithClient(c *http.Client) ExecutorOption {
	return func(e *Executor) {
		e.client = c
	}
}

// WithRateLimit limits sends to rps requests per second. Zero or negative
// disables limiting.
func WithRateLimit(rps float64) ExecutorOption {
	return func(e *Executor) {
		if rps <= 0 {
			e.limiter = nil
			return
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRebuildURL enables building structured URLs without a raw form from
// their parts.
func WithRebuildURL(rebuild bool) ExecutorOption {
	return func(e *Executor) {
		e.rebuildURL = rebuild
	}
}

// WithTokenClient sets the client used to fetch OAuth2 access tokens. Token
// requests are not recorded.
func WithTokenClient(c *nethttp.Client) ExecutorOption {
	return func(e *Executor) {
		e.tokenClient = c
	}
}

// WithExecutorWarnFunc sets the sink for non-fatal executor warnings.
func WithExecutorWarnFunc(fn env.WarnFunc) ExecutorOption {
	return func(e *Executor) {
		e.warnFunc = fn
	}
}

func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		e.client = http.NewClient()
	}
	if e.tokenClient == nil {
		e.tokenClient = &nethttp.Client{Timeout: 30 * time.Second}
	}
	e.tokens = oauth2.NewTokenCache()
	return e
}

func (e *Executor) warn(format string, args ...any) {
	if e.warnFunc != nil {
		e.warnFunc(format, args...)
	}
}

// Execute materializes item against resolver and sends it. The returned
// entry carries the item name as its comment and loc's folders. Failures are
// returned as *ExecutionError.
func (e *Executor) Execute(ctx context.Context, loc collection.Location, item *collection.RequestItem, resolver *env.Resolver) (*trace.Entry, error) {
	fail := func(err error) (*trace.Entry, error) {
		return nil, &ExecutionError{Request: item.Name, Err: err}
	}

	full, ok := item.Request.(*collection.FullRequest)
	if !ok {
		return fail(ErrUnsupportedRequestForm)
	}

	method := strings.ToUpper(full.Method)
	if !isSupportedMethod(method) {
		return fail(fmt.Errorf("%w: %q", ErrUnsupportedMethod, full.Method))
	}

	req := http.NewRequest(method, resolver.Resolve(ResolveTarget(full.URL, e.rebuildURL)))
	for _, h := range full.Headers {
		if h.Disabled {
			continue
		}
		req.AddHeader(h.Key, resolver.Resolve(h.Value))
	}

	if full.Body != nil {
		switch full.Body.Mode {
		case collection.BodyRaw:
			if full.Body.Raw != nil {
				req.SetBody(resolver.Resolve(*full.Body.Raw))
			}
		case collection.BodyURLEncoded, collection.BodyFormData:
			e.warn("request %q: %s body is not sent", item.Name, full.Body.Mode)
		}
	}

	auth := full.Auth
	if auth == nil {
		auth = loc.Auth
	}
	if err := e.applyAuth(ctx, req, auth, resolver); err != nil {
		return fail(err)
	}

	mime := req.ContentType()
	if mime == "" {
		mime = languageContentTypes[strings.ToLower(full.Body.Language())]
	}
	if mime == "" {
		mime = DefaultRequestContentType
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return fail(err)
		}
	}

	resp, err := e.client.Do(ctx, req)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrTransport, err))
	}

	entry := trace.NewEntry(req, mime, resp)
	entry.Comment = item.Name
	entry.Folders = append([]string(nil), loc.Folders...)
	return &entry, nil
}

// applyAuth adds credentials from auth after substitution. Explicit request
// headers are never overwritten. Only an OAuth2 token fetch can fail.
func (e *Executor) applyAuth(ctx context.Context, req *http.Request, auth *collection.Auth, resolver *env.Resolver) error {
	if auth == nil {
		return nil
	}
	param := func(key string) string {
		return resolver.Resolve(auth.Param(key))
	}

	switch auth.Type {
	case collection.AuthBearer:
		if token := param("token"); token != "" && req.Header("Authorization") == "" {
			req.SetHeader("Authorization", "Bearer "+token)
		}
	case collection.AuthBasic:
		if req.Header("Authorization") == "" {
			creds := param("username") + ":" + param("password")
			req.SetHeader("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
		}
	case collection.AuthAPIKey:
		key, value := param("key"), param("value")
		if key == "" {
			return nil
		}
		if strings.EqualFold(param("in"), "query") {
			req.URL = appendQuery(req.URL, key, value)
			return nil
		}
		if req.Header(key) == "" {
			req.SetHeader(key, value)
		}
	case collection.AuthOAuth2:
		token := param("accessToken")
		if token == "" {
			cfg, err := oauth2.FromParams(param)
			if err != nil {
				return err
			}
			t, err := oauth2.NewProvider(cfg, oauth2.WithHTTPClient(e.tokenClient), oauth2.WithCache(e.tokens)).Token(ctx)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrTransport, err)
			}
			token = t.AccessToken
		}
		if strings.EqualFold(param("addTokenTo"), "queryParams") {
			req.URL = appendQuery(req.URL, "access_token", token)
			return nil
		}
		prefix := param("headerPrefix")
		if prefix == "" {
			prefix = "Bearer"
		}
		if req.Header("Authorization") == "" {
			req.SetHeader("Authorization", prefix+" "+token)
		}
	}
	return nil
}

func appendQuery(rawURL, key, value string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + neturl.QueryEscape(key) + "=" + neturl.QueryEscape(value)
}
