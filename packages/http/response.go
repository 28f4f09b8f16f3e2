package http

import (
	"net/http"
	"sort"
	"time"
)

// DefaultContentType is reported when a response carries no Content-Type.
const DefaultContentType = "application/octet-stream"

type Response struct {
	StatusCode int
	Status     string
	Reason     string
	Proto      string
	Headers    []Header
	Body       []byte
	// RequestHeaders are the headers actually put on the wire by the client,
	// request headers first and then unshadowed defaults.
	RequestHeaders []Header
	StartedAt      time.Time
	Duration       time.Duration
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

func (r *Response) Header(key string) string {
	return lookupHeader(r.Headers, key)
}

// ContentType returns the response Content-Type, or DefaultContentType when
// the server sent none.
func (r *Response) ContentType() string {
	if ct := r.Header("Content-Type"); ct != "" {
		return ct
	}
	return DefaultContentType
}

// FlattenHeaders turns a header map into a list sorted by name so traces are
// stable across runs. Multi-valued headers produce one entry per value.
func FlattenHeaders(h http.Header) []Header {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]Header, 0, len(names))
	for _, name := range names {
		for _, v := range h[name] {
			out = append(out, Header{Name: name, Value: v})
		}
	}
	return out
}
