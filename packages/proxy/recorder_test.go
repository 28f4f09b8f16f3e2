package proxy

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/livespec/packages/openapi"
	"github.com/abdul-hamid-achik/livespec/packages/trace"
)

func newTarget(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/health":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write(body)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Set-Cookie", "session=abc")
			_, _ = w.Write([]byte(`{"id":42,"name":"Ada","path":"` + r.URL.Path + `"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newProxy(t *testing.T, opts ...Option) (*Recorder, *httptest.Server) {
	t.Helper()
	rec := NewRecorder(append([]Option{WithLogger(func(string, ...any) {})}, opts...)...)
	h, err := rec.Handler()
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return rec, srv
}

func TestRecorder_RecordsExchange(t *testing.T) {
	target := newTarget(t)
	rec, srv := newProxy(t, WithTargetURL(target.URL))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/users/42?expand=true", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"path":"/users/42"`)

	entries := rec.Trace().Entries()
	require.Len(t, entries, 1)
	e := entries[0]

	assert.Equal(t, "GET", e.Request.Method)
	assert.Equal(t, target.URL+"/users/42?expand=true", e.Request.URL)
	assert.Equal(t, []trace.NameValue{{Name: "expand", Value: "true"}}, e.Request.QueryString)
	assert.Nil(t, e.Request.PostData)
	assert.Contains(t, e.Request.Headers, trace.NameValue{Name: "Authorization", Value: "{{AUTHORIZATION}}"})

	assert.Equal(t, 200, e.Response.Status)
	assert.Equal(t, "OK", e.Response.StatusText)
	assert.Equal(t, "application/json", e.Response.Content.MimeType)
	assert.JSONEq(t, `{"id":42,"name":"Ada","path":"/users/42"}`, e.Response.Content.Text)
	assert.Contains(t, e.Response.Headers, trace.NameValue{Name: "Set-Cookie", Value: "{{SET_COOKIE}}"})
	assert.NotNil(t, e.Cache)
}

func TestRecorder_RecordsRequestBody(t *testing.T) {
	target := newTarget(t)
	rec, srv := newProxy(t, WithTargetURL(target.URL))

	resp, err := http.Post(srv.URL+"/users", "application/json", strings.NewReader(`{"name":"Ada"}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, `{"name":"Ada"}`, string(body), "upstream must still receive the body")

	entries := rec.Trace().Entries()
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Request.PostData)
	assert.Equal(t, "application/json", entries[0].Request.PostData.MimeType)
	assert.Equal(t, `{"name":"Ada"}`, entries[0].Request.PostData.Text)
	assert.Equal(t, "Created", entries[0].Response.StatusText)
}

func TestRecorder_Exclude(t *testing.T) {
	target := newTarget(t)
	rec, srv := newProxy(t, WithTargetURL(target.URL), WithExclude([]string{"/health"}))

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, "excluded paths are still forwarded")

	resp, err = http.Get(srv.URL + "/users")
	require.NoError(t, err)
	resp.Body.Close()

	entries := rec.Trace().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, target.URL+"/users", entries[0].Request.URL)
}

func TestRecorder_NoSanitize(t *testing.T) {
	target := newTarget(t)
	rec, srv := newProxy(t, WithTargetURL(target.URL), WithSanitize(nil))

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/users", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	entries := rec.Trace().Entries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Request.Headers, trace.NameValue{Name: "Authorization", Value: "Bearer secret"})
}

func TestRecorder_Deduplicate(t *testing.T) {
	target := newTarget(t)
	rec, srv := newProxy(t, WithTargetURL(target.URL), WithDeduplicate(true))

	for _, p := range []string{"/users/1", "/users/2", "/users"} {
		resp, err := http.Get(srv.URL + p)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, 2, rec.Trace().Len())

	rec.Clear()
	resp, err := http.Get(srv.URL + "/users/3")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 3, rec.Trace().Len())
}

func TestRecorder_TargetBasePath(t *testing.T) {
	target := newTarget(t)
	rec, srv := newProxy(t, WithTargetURL(target.URL+"/api/"))

	resp, err := http.Get(srv.URL + "/users")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Contains(t, string(body), `"path":"/api/users"`)
	entries := rec.Trace().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, target.URL+"/api/users", entries[0].Request.URL)
}

func TestRecorder_SharedTraceFeedsSynthesizer(t *testing.T) {
	target := newTarget(t)
	shared := trace.NewRecorder()
	_, srv := newProxy(t, WithTargetURL(target.URL), WithTraceRecorder(shared))

	resp, err := http.Get(srv.URL + "/users/7")
	require.NoError(t, err)
	resp.Body.Close()

	doc := openapi.NewSynthesizer().Synthesize(shared.HAR())
	item, _ := doc.Paths.Get("/users/{id}")
	require.NotNil(t, item)
	require.Len(t, doc.Servers, 1)
	assert.Equal(t, target.URL, doc.Servers[0].URL)
}

func TestRecorder_UpstreamDown(t *testing.T) {
	target := newTarget(t)
	url := target.URL
	target.Close()

	rec, srv := newProxy(t, WithTargetURL(url))
	resp, err := http.Get(srv.URL + "/users")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Zero(t, rec.Trace().Len())
}

func TestRecorder_HandlerErrors(t *testing.T) {
	_, err := NewRecorder().Handler()
	assert.ErrorIs(t, err, ErrTargetRequired)

	_, err = NewRecorder(WithTargetURL("localhost")).Handler()
	assert.Error(t, err)
}

func TestRecorder_ServeStopsOnCancel(t *testing.T) {
	target := newTarget(t)
	rec := NewRecorder(WithTargetURL(target.URL), WithLogger(func(string, ...any) {}))
	h, err := rec.Handler()
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Serve(ctx, ln, h) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/users")
	require.NoError(t, err)
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("proxy did not shut down")
	}
	assert.Equal(t, 1, rec.Trace().Len())
}

func TestSingleJoin(t *testing.T) {
	assert.Equal(t, "/users", singleJoin("", "/users"))
	assert.Equal(t, "/users", singleJoin("/", "/users"))
	assert.Equal(t, "/api", singleJoin("/api", "/"))
	assert.Equal(t, "/api/users", singleJoin("/api/", "/users"))
}
