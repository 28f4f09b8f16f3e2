package runner

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/livespec/packages/collection"
	"github.com/abdul-hamid-achik/livespec/packages/core/env"
	"github.com/abdul-hamid-achik/livespec/packages/trace"
)

type recordingReporter struct {
	mu        sync.Mutex
	events    []string
	warnings  []string
	finished  *RunResult
	succeeded []*trace.Entry
}

func (r *recordingReporter) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recordingReporter) RunStarted(name string, total int) { r.add("start %s %d", name, total) }
func (r *recordingReporter) RequestStarted(index, total int, name string) {
	r.add("request %d/%d %s", index, total, name)
}
func (r *recordingReporter) RequestSucceeded(name string, entry *trace.Entry) {
	r.succeeded = append(r.succeeded, entry)
	r.add("ok %s %d", name, entry.Response.Status)
}
func (r *recordingReporter) RequestFailed(name string, err error) { r.add("fail %s", name) }
func (r *recordingReporter) RequestSkipped(name, reason string)   { r.add("skip %s", name) }
func (r *recordingReporter) Warning(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, message)
}
func (r *recordingReporter) RunFinished(result *RunResult) { r.finished = result }

func parseCollection(t *testing.T, doc string) *collection.Collection {
	t.Helper()
	c, err := collection.Parse([]byte(doc))
	require.NoError(t, err)
	return c
}

func singleItem(t *testing.T, request string) (collection.Location, *collection.RequestItem) {
	t.Helper()
	c := parseCollection(t, `{"info":{"name":"c"},"item":[{"name":"r","request":`+request+`}]}`)
	var loc collection.Location
	var item *collection.RequestItem
	require.NoError(t, c.Walk(func(l collection.Location, it *collection.RequestItem) error {
		loc, item = l, it
		return nil
	}))
	require.NotNil(t, item)
	return loc, item
}

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Auth", r.Header.Get("Authorization"))
		w.Header().Set("X-Key", r.Header.Get("X-Api-Key"))
		w.Header().Set("X-Query", r.URL.RawQuery)
		w.Header().Set("X-Content-Type", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"path":%q,"body":%q}`, r.URL.Path, string(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func headerValue(entry *trace.Entry, name string) string {
	for _, h := range entry.Response.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func TestResolveTarget(t *testing.T) {
	structured := &collection.StructuredURL{
		Protocol: "https",
		Host:     []string{"api", "example", "com"},
		Path:     []string{"users", "7"},
	}

	assert.Equal(t, "https://x/y", ResolveTarget(collection.RawURL("https://x/y"), false))
	assert.Equal(t, "", ResolveTarget(structured, false))
	assert.Equal(t, "https://api.example.com/users/7", ResolveTarget(structured, true))

	withRaw := &collection.StructuredURL{Raw: "{{base}}/users", Host: []string{"ignored"}}
	assert.Equal(t, "{{base}}/users", ResolveTarget(withRaw, false))
	assert.Equal(t, "{{base}}/users", ResolveTarget(withRaw, true))
	assert.Equal(t, "", ResolveTarget(nil, true))
}

func TestExecutor_SubstitutesURLHeadersAndBody(t *testing.T) {
	server := echoServer(t)
	loc, item := singleItem(t, `{
		"method": "post",
		"url": {"raw": "{{base}}/users/{{id}}"},
		"header": [
			{"key": "Content-Type", "value": "application/{{fmt}}"},
			{"key": "X-Skip", "value": "{{missing}}", "disabled": true}
		],
		"body": {"mode": "raw", "raw": "{\"name\":\"{{name}}\"}"}
	}`)

	resolver := env.NewResolver(env.Scope{"base": server.URL, "id": "7", "fmt": "json", "name": "ann"})
	var warnings []string
	resolver.SetWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})

	entry, err := NewExecutor().Execute(context.Background(), loc, item, resolver)
	require.NoError(t, err)

	assert.Equal(t, "POST", entry.Request.Method)
	assert.Equal(t, server.URL+"/users/7", entry.Request.URL)
	require.NotNil(t, entry.Request.PostData)
	assert.Equal(t, `{"name":"ann"}`, entry.Request.PostData.Text)
	assert.Equal(t, "application/json", entry.Request.PostData.MimeType)
	assert.Equal(t, "r", entry.Comment)

	for _, h := range entry.Request.Headers {
		assert.NotEqual(t, "X-Skip", h.Name)
	}
	assert.Empty(t, warnings, "disabled headers are dropped before substitution")

	assert.Equal(t, 200, entry.Response.Status)
	assert.Equal(t, "OK", entry.Response.StatusText)
	assert.Equal(t, `{"path":"/users/7","body":"{\"name\":\"ann\"}"}`, entry.Response.Content.Text)
	assert.Equal(t, "application/json", entry.Response.Content.MimeType)
	assert.GreaterOrEqual(t, entry.Time, float64(0))
}

func TestExecutor_RawBodyWithoutContent(t *testing.T) {
	server := echoServer(t)
	resolver := env.NewResolver(env.Scope{"base": server.URL})

	loc, item := singleItem(t, `{"method": "GET", "url": "{{base}}/things", "body": {"mode": "raw"}}`)
	entry, err := NewExecutor().Execute(context.Background(), loc, item, resolver)
	require.NoError(t, err)
	assert.Nil(t, entry.Request.PostData, "a raw body without content is not sent")

	loc, item = singleItem(t, `{"method": "POST", "url": "{{base}}/things", "body": {"mode": "raw", "raw": ""}}`)
	entry, err = NewExecutor().Execute(context.Background(), loc, item, resolver)
	require.NoError(t, err)
	require.NotNil(t, entry.Request.PostData, "an empty raw body is still sent")
	assert.Equal(t, "", entry.Request.PostData.Text)
}

func TestExecutor_BareRequestUnsupported(t *testing.T) {
	loc, item := singleItem(t, `"https://example.com/users"`)

	entry, err := NewExecutor().Execute(context.Background(), loc, item, env.NewResolver(nil))
	assert.Nil(t, entry)
	assert.ErrorIs(t, err, ErrUnsupportedRequestForm)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "r", execErr.Request)
}

func TestExecutor_UnsupportedMethod(t *testing.T) {
	for _, method := range []string{"TRACE", "CONNECT", "PROPFIND", ""} {
		t.Run(method, func(t *testing.T) {
			loc, item := singleItem(t, `{"method":"`+method+`","url":"https://example.com"}`)
			_, err := NewExecutor().Execute(context.Background(), loc, item, env.NewResolver(nil))
			assert.ErrorIs(t, err, ErrUnsupportedMethod)
		})
	}
}

func TestExecutor_MethodsCaseInsensitive(t *testing.T) {
	server := echoServer(t)
	for _, method := range []string{"get", "Put", "DELETE", "patch", "options", "head"} {
		t.Run(method, func(t *testing.T) {
			loc, item := singleItem(t, `{"method":"`+method+`","url":"`+server.URL+`/x"}`)
			entry, err := NewExecutor().Execute(context.Background(), loc, item, env.NewResolver(nil))
			require.NoError(t, err)
			assert.Equal(t, strings.ToUpper(method), entry.Request.Method)
		})
	}
}

func TestExecutor_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	loc, item := singleItem(t, `{"method":"GET","url":"`+addr+`/gone"}`)
	_, err := NewExecutor().Execute(context.Background(), loc, item, env.NewResolver(nil))
	assert.ErrorIs(t, err, ErrTransport)
}

func TestExecutor_UnresolvedURLIsTransportError(t *testing.T) {
	loc, item := singleItem(t, `{"method":"GET","url":"{{base}}/users"}`)
	_, err := NewExecutor().Execute(context.Background(), loc, item, env.NewResolver(nil))
	assert.ErrorIs(t, err, ErrTransport)
}

func TestExecutor_FormBodiesAreNotSent(t *testing.T) {
	server := echoServer(t)
	for _, mode := range []string{"urlencoded", "formdata"} {
		t.Run(mode, func(t *testing.T) {
			loc, item := singleItem(t, `{"method":"POST","url":"`+server.URL+`/form","body":{"mode":"`+mode+`","`+mode+`":[{"key":"a","value":"1"}]}}`)

			var warnings []string
			exec := NewExecutor(WithExecutorWarnFunc(func(format string, args ...any) {
				warnings = append(warnings, fmt.Sprintf(format, args...))
			}))
			entry, err := exec.Execute(context.Background(), loc, item, env.NewResolver(nil))
			require.NoError(t, err)

			assert.Nil(t, entry.Request.PostData)
			assert.Equal(t, `{"path":"/form","body":""}`, entry.Response.Content.Text)
			require.Len(t, warnings, 1)
			assert.Contains(t, warnings[0], mode)
		})
	}
}

func TestExecutor_RequestContentType(t *testing.T) {
	server := echoServer(t)
	tests := []struct {
		name     string
		request  string
		expected string
	}{
		{
			name:     "header wins",
			request:  `{"method":"POST","url":"` + server.URL + `","header":[{"key":"content-type","value":"text/csv"}],"body":{"mode":"raw","raw":"a,b","options":{"raw":{"language":"json"}}}}`,
			expected: "text/csv",
		},
		{
			name:     "body language",
			request:  `{"method":"POST","url":"` + server.URL + `","body":{"mode":"raw","raw":"<a/>","options":{"raw":{"language":"xml"}}}}`,
			expected: "application/xml",
		},
		{
			name:     "default",
			request:  `{"method":"POST","url":"` + server.URL + `","body":{"mode":"raw","raw":"{}"}}`,
			expected: "application/json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, item := singleItem(t, tt.request)
			entry, err := NewExecutor().Execute(context.Background(), loc, item, env.NewResolver(nil))
			require.NoError(t, err)
			require.NotNil(t, entry.Request.PostData)
			assert.Equal(t, tt.expected, entry.Request.PostData.MimeType)
		})
	}
}

func TestExecutor_Auth(t *testing.T) {
	server := echoServer(t)
	resolver := env.NewResolver(env.Scope{"token": "s3cret", "user": "ann", "key": "k-1"})

	t.Run("bearer", func(t *testing.T) {
		loc, item := singleItem(t, `{"method":"GET","url":"`+server.URL+`","auth":{"type":"bearer","bearer":[{"key":"token","value":"{{token}}"}]}}`)
		entry, err := NewExecutor().Execute(context.Background(), loc, item, resolver)
		require.NoError(t, err)
		assert.Equal(t, "Bearer s3cret", headerValue(entry, "X-Auth"))
	})

	t.Run("basic", func(t *testing.T) {
		loc, item := singleItem(t, `{"method":"GET","url":"`+server.URL+`","auth":{"type":"basic","basic":[{"key":"username","value":"{{user}}"},{"key":"password","value":"pw"}]}}`)
		entry, err := NewExecutor().Execute(context.Background(), loc, item, resolver)
		require.NoError(t, err)
		assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("ann:pw")), headerValue(entry, "X-Auth"))
	})

	t.Run("apikey header", func(t *testing.T) {
		loc, item := singleItem(t, `{"method":"GET","url":"`+server.URL+`","auth":{"type":"apikey","apikey":[{"key":"key","value":"X-Api-Key"},{"key":"value","value":"{{key}}"}]}}`)
		entry, err := NewExecutor().Execute(context.Background(), loc, item, resolver)
		require.NoError(t, err)
		assert.Equal(t, "k-1", headerValue(entry, "X-Key"))
	})

	t.Run("apikey query", func(t *testing.T) {
		loc, item := singleItem(t, `{"method":"GET","url":"`+server.URL+`/q?a=1","auth":{"type":"apikey","apikey":[{"key":"key","value":"api_key"},{"key":"value","value":"{{key}}"},{"key":"in","value":"query"}]}}`)
		entry, err := NewExecutor().Execute(context.Background(), loc, item, resolver)
		require.NoError(t, err)
		assert.Equal(t, "a=1&api_key=k-1", headerValue(entry, "X-Query"))
		assert.Equal(t, []trace.NameValue{{Name: "a", Value: "1"}, {Name: "api_key", Value: "k-1"}}, entry.Request.QueryString)
	})

	t.Run("explicit header wins", func(t *testing.T) {
		loc, item := singleItem(t, `{"method":"GET","url":"`+server.URL+`","header":[{"key":"Authorization","value":"Token mine"}],"auth":{"type":"bearer","bearer":[{"key":"token","value":"x"}]}}`)
		entry, err := NewExecutor().Execute(context.Background(), loc, item, resolver)
		require.NoError(t, err)
		assert.Equal(t, "Token mine", headerValue(entry, "X-Auth"))
	})

	t.Run("inherited and noauth", func(t *testing.T) {
		c := parseCollection(t, `{
			"info": {"name": "c"},
			"auth": {"type": "bearer", "bearer": [{"key": "token", "value": "{{token}}"}]},
			"item": [
				{"name": "inherits", "request": {"method": "GET", "url": "`+server.URL+`"}},
				{"name": "opts out", "request": {"method": "GET", "url": "`+server.URL+`", "auth": {"type": "noauth"}}}
			]
		}`)
		exec := NewExecutor()
		got := map[string]string{}
		require.NoError(t, c.Walk(func(loc collection.Location, item *collection.RequestItem) error {
			entry, err := exec.Execute(context.Background(), loc, item, resolver)
			require.NoError(t, err)
			got[item.Name] = headerValue(entry, "X-Auth")
			return nil
		}))
		assert.Equal(t, map[string]string{"inherits": "Bearer s3cret", "opts out": ""}, got)
	})
}

func TestExecutor_OAuth2(t *testing.T) {
	server := echoServer(t)
	var tokenCalls int32
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"unsupported_grant_type"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fetched-1","token_type":"bearer","expires_in":3600}`))
	}))
	t.Cleanup(tokenServer.Close)
	resolver := env.NewResolver(env.Scope{"tokenUrl": tokenServer.URL})

	t.Run("stored access token", func(t *testing.T) {
		loc, item := singleItem(t, `{"method":"GET","url":"`+server.URL+`","auth":{"type":"oauth2","oauth2":[{"key":"accessToken","value":"stored"},{"key":"headerPrefix","value":"Token"}]}}`)
		entry, err := NewExecutor().Execute(context.Background(), loc, item, resolver)
		require.NoError(t, err)
		assert.Equal(t, "Token stored", headerValue(entry, "X-Auth"))
	})

	t.Run("client credentials fetched once", func(t *testing.T) {
		atomic.StoreInt32(&tokenCalls, 0)
		loc, item := singleItem(t, `{"method":"GET","url":"`+server.URL+`","auth":{"type":"oauth2","oauth2":[
			{"key":"grant_type","value":"client_credentials"},
			{"key":"accessTokenUrl","value":"{{tokenUrl}}"},
			{"key":"clientId","value":"id"},
			{"key":"clientSecret","value":"secret"}
		]}}`)
		exec := NewExecutor()
		for i := 0; i < 2; i++ {
			entry, err := exec.Execute(context.Background(), loc, item, resolver)
			require.NoError(t, err)
			assert.Equal(t, "Bearer fetched-1", headerValue(entry, "X-Auth"))
		}
		assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
	})

	t.Run("token in query", func(t *testing.T) {
		loc, item := singleItem(t, `{"method":"GET","url":"`+server.URL+`","auth":{"type":"oauth2","oauth2":[{"key":"accessToken","value":"q"},{"key":"addTokenTo","value":"queryParams"}]}}`)
		entry, err := NewExecutor().Execute(context.Background(), loc, item, resolver)
		require.NoError(t, err)
		assert.Equal(t, "access_token=q", headerValue(entry, "X-Query"))
		assert.Empty(t, headerValue(entry, "X-Auth"))
	})

	t.Run("token endpoint rejects", func(t *testing.T) {
		loc, item := singleItem(t, `{"method":"GET","url":"`+server.URL+`","auth":{"type":"oauth2","oauth2":[{"key":"grant_type","value":"password_credentials"},{"key":"accessTokenUrl","value":"{{tokenUrl}}"}]}}`)
		_, err := NewExecutor().Execute(context.Background(), loc, item, resolver)
		assert.ErrorIs(t, err, ErrTransport)
		assert.Contains(t, err.Error(), "unsupported_grant_type")
	})

	t.Run("no token and no token URL", func(t *testing.T) {
		loc, item := singleItem(t, `{"method":"GET","url":"`+server.URL+`","auth":{"type":"oauth2","oauth2":[]}}`)
		_, err := NewExecutor().Execute(context.Background(), loc, item, resolver)
		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Contains(t, err.Error(), "access token URL is required")
	})
}

func TestExecutor_RebuildURL(t *testing.T) {
	server := echoServer(t)
	host := strings.TrimPrefix(server.URL, "http://")
	hostname, port, _ := strings.Cut(host, ":")
	loc, item := singleItem(t, `{"method":"GET","url":{"protocol":"http","host":["`+hostname+`"],"port":"`+port+`","path":["a","b"],"query":[{"key":"x","value":"1"},{"key":"y","value":"2","disabled":true}]}}`)

	_, err := NewExecutor().Execute(context.Background(), loc, item, env.NewResolver(nil))
	assert.ErrorIs(t, err, ErrTransport, "structured URLs without raw resolve to an empty target")

	entry, err := NewExecutor(WithRebuildURL(true)).Execute(context.Background(), loc, item, env.NewResolver(nil))
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/a/b?x=1", entry.Request.URL)
}

func TestExecutor_RateLimit(t *testing.T) {
	server := echoServer(t)
	loc, item := singleItem(t, `{"method":"GET","url":"`+server.URL+`"}`)
	exec := NewExecutor(WithRateLimit(20))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := exec.Execute(context.Background(), loc, item, env.NewResolver(nil))
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestExecutor_RateLimitHonoursContext(t *testing.T) {
	server := echoServer(t)
	loc, item := singleItem(t, `{"method":"GET","url":"`+server.URL+`"}`)
	exec := NewExecutor(WithRateLimit(0.001))

	_, err := exec.Execute(context.Background(), loc, item, env.NewResolver(nil))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = exec.Execute(ctx, loc, item, env.NewResolver(nil))
	assert.Error(t, err)
}

const runCollection = `{
	"info": {"name": "Users API"},
	"variable": [
		{"key": "base", "value": "http://placeholder"},
		{"key": "id", "value": "1"}
	],
	"item": [
		{"name": "List users", "request": {"method": "GET", "url": "{{base}}/users"}},
		{"name": "Admin", "item": [
			{"name": "Get user", "request": {"method": "GET", "url": "{{base}}/users/{{id}}"}},
			{"name": "Bare", "request": "{{base}}/bare"},
			{"name": "Trace it", "request": {"method": "TRACE", "url": "{{base}}/trace"}}
		]},
		{"name": "Create user", "request": {"method": "POST", "url": "{{base}}/users", "body": {"mode": "raw", "raw": "{\"name\":\"x\"}"}}}
	]
}`

func TestRunner_Run(t *testing.T) {
	server := echoServer(t)
	c := parseCollection(t, runCollection)
	environment := &collection.Environment{Values: []collection.Variable{{Key: "base", Value: server.URL}}}

	reporter := &recordingReporter{}
	result, err := NewRunner(nil, WithReporter(reporter), WithVersion("1.2.3")).
		Run(context.Background(), c, environment, env.Scope{"id": "42"})
	require.NoError(t, err)

	assert.Equal(t, "Users API", result.Collection)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 0, result.Skipped)
	require.Len(t, result.Results, 5)

	assert.ErrorIs(t, result.Results[2].Error, ErrUnsupportedRequestForm)
	assert.ErrorIs(t, result.Results[3].Error, ErrUnsupportedMethod)
	assert.Equal(t, []string{"Admin"}, result.Results[1].Folders)

	require.NotNil(t, result.HAR)
	entries := result.HAR.Log.Entries
	require.Len(t, entries, 3)
	assert.Equal(t, server.URL+"/users", entries[0].Request.URL)
	assert.Equal(t, server.URL+"/users/42", entries[1].Request.URL)
	assert.Equal(t, []string{"Admin"}, entries[1].Folders)
	assert.Equal(t, "POST", entries[2].Request.Method)

	assert.Equal(t, trace.HARVersion, result.HAR.Log.Version)
	assert.Equal(t, trace.Creator{Name: trace.DefaultCreator, Version: "1.2.3"}, result.HAR.Log.Creator)
	assert.Contains(t, result.HAR.Log.Comment, result.RunID.String())

	assert.Equal(t, []string{
		"start Users API 5",
		"request 1/5 List users",
		"ok List users 200",
		"request 2/5 Get user",
		"ok Get user 200",
		"request 3/5 Bare",
		"fail Bare",
		"request 4/5 Trace it",
		"fail Trace it",
		"request 5/5 Create user",
		"ok Create user 200",
	}, reporter.events)
	assert.Same(t, result, reporter.finished)
}

func TestRunner_EnvironmentOverridesCollection(t *testing.T) {
	server := echoServer(t)
	c := parseCollection(t, `{"info":{"name":"c"},"variable":[{"key":"base","value":"http://invalid.invalid"},{"key":"p","value":"col"}],
		"item":[{"name":"r","request":{"method":"GET","url":"{{base}}/{{p}}"}}]}`)
	environment := &collection.Environment{Values: []collection.Variable{{Key: "base", Value: server.URL}, {Key: "p", Value: "env"}}}

	result, err := NewRunner(nil).Run(context.Background(), c, environment)
	require.NoError(t, err)
	require.Len(t, result.HAR.Log.Entries, 1)
	assert.Equal(t, server.URL+"/env", result.HAR.Log.Entries[0].Request.URL)
}

func TestRunner_UnresolvedVariablesWarn(t *testing.T) {
	server := echoServer(t)
	c := parseCollection(t, `{"info":{"name":"c"},"item":[{"name":"r","request":{"method":"GET","url":"`+server.URL+`/{{nope}}"}}]}`)

	reporter := &recordingReporter{}
	result, err := NewRunner(nil, WithReporter(reporter)).Run(context.Background(), c, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, []string{"unresolved variable: nope"}, reporter.warnings)
}

func TestRunner_DynamicVariables(t *testing.T) {
	server := echoServer(t)
	c := parseCollection(t, `{"info":{"name":"c"},"item":[{"name":"r","request":{"method":"GET","url":"`+server.URL+`/",
		"header":[{"key":"X-Api-Key","value":"{{$guid}}"}]}}]}`)

	result, err := NewRunner(&Config{DynamicVariables: true}).Run(context.Background(), c, nil)
	require.NoError(t, err)
	require.Len(t, result.HAR.Log.Entries, 1)
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-`, headerValue(&result.HAR.Log.Entries[0], "X-Key"))

	result, err = NewRunner(nil).Run(context.Background(), c, nil)
	require.NoError(t, err)
	require.Len(t, result.HAR.Log.Entries, 1)
	assert.Equal(t, "{{$guid}}", headerValue(&result.HAR.Log.Entries[0], "X-Key"))
}

func TestRunner_Bail(t *testing.T) {
	server := echoServer(t)
	c := parseCollection(t, runCollection)
	environment := &collection.Environment{Values: []collection.Variable{{Key: "base", Value: server.URL}}}

	result, err := NewRunner(&Config{Bail: true}).Run(context.Background(), c, environment)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.Results, 3)
}

func TestRunner_NameFilter(t *testing.T) {
	server := echoServer(t)
	c := parseCollection(t, runCollection)
	environment := &collection.Environment{Values: []collection.Variable{{Key: "base", Value: server.URL}}}

	reporter := &recordingReporter{}
	result, err := NewRunner(&Config{NameFilter: "*user"}, WithReporter(reporter)).Run(context.Background(), c, environment)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 3, result.Skipped)
	assert.Equal(t, "filtered out", result.Results[0].SkipReason)
	assert.Contains(t, reporter.events, "skip List users")
}

func TestRunner_EmptyCollection(t *testing.T) {
	c := parseCollection(t, `{"info":{"name":"empty"},"item":[]}`)

	result, err := NewRunner(nil).Run(context.Background(), c, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Results)
	assert.NotNil(t, result.HAR.Log.Entries)
	assert.Empty(t, result.HAR.Log.Entries)
}

func TestRunner_CancelledContext(t *testing.T) {
	c := parseCollection(t, runCollection)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewRunner(nil).Run(ctx, c, nil)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_ConfigHeadersAreSent(t *testing.T) {
	got := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("X-Trace")
	}))
	defer server.Close()

	c := parseCollection(t, `{"info":{"name":"c"},"item":[{"name":"r","request":{"method":"GET","url":"`+server.URL+`"}}]}`)
	_, err := NewRunner(&Config{Headers: map[string]string{"X-Trace": "abc"}}).Run(context.Background(), c, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", <-got)
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		expected bool
	}{
		{"anything", "", true},
		{"Get user", "Get user", true},
		{"Get user", "Get", false},
		{"Get user", "Get*", true},
		{"Get user", "*user", true},
		{"Get user", "*t u*", true},
		{"Get user", "*x*", false},
		{"Get user", "*", true},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.expected, matchesPattern(tt.name, tt.pattern))
		})
	}
}
