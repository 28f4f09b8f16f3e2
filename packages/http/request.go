package http

import (
	"sort"
	"strings"
)

// Header is a single header line. Order is kept as given.
type Header struct {
	Name  string
	Value string
}

// Request is a fully materialized outgoing request: every placeholder has
// already been substituted.
type Request struct {
	Method  string
	URL     string
	Headers []Header
	Body    string
	// HasBody distinguishes an empty body that is sent from no body at all.
	HasBody bool
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method: method,
		URL:    requestURL,
	}
}

// SetHeader replaces any header with the same name (case-insensitive) or
// appends a new one.
func (r *Request) SetHeader(key, value string) *Request {
	for i, h := range r.Headers {
		if strings.EqualFold(h.Name, key) {
			r.Headers[i].Value = value
			return r
		}
	}
	r.Headers = append(r.Headers, Header{Name: key, Value: value})
	return r
}

// AddHeader appends a header, keeping earlier ones with the same name.
func (r *Request) AddHeader(key, value string) *Request {
	r.Headers = append(r.Headers, Header{Name: key, Value: value})
	return r
}

func (r *Request) Header(key string) string {
	return lookupHeader(r.Headers, key)
}

func (r *Request) SetBody(body string) *Request {
	r.Body = body
	r.HasBody = true
	return r
}

// ContentType returns the declared Content-Type header, or "".
func (r *Request) ContentType() string {
	return r.Header("Content-Type")
}

func lookupHeader(headers []Header, key string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, key) {
			return h.Value
		}
	}
	return ""
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
