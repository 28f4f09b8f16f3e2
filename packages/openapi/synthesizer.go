// Package openapi synthesizes an OpenAPI 3.0 document from a recorded trace.
package openapi

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/livespec/packages/schema"
	"github.com/abdul-hamid-achik/livespec/packages/trace"
)

const (
	DefaultTitle       = "Generated API"
	DefaultVersion     = "1.0.0"
	DefaultDescription = "API specification generated from live responses"

	// defaultRequestMime is assumed for request bodies recorded without a
	// MIME type.
	defaultRequestMime = "application/json"
)

// Synthesizer folds trace entries into an OpenAPI document.
type Synthesizer struct {
	title           string
	version         string
	description     string
	examples        bool
	queryParameters bool
	pathParameters  bool
	summaries       bool
}

// SynthesizerOption is a functional option for Synthesizer
type SynthesizerOption func(*Synthesizer)

func WithTitle(title string) SynthesizerOption {
	return func(s *Synthesizer) {
		s.title = title
	}
}

func WithVersion(version string) SynthesizerOption {
	return func(s *Synthesizer) {
		s.version = version
	}
}

func WithDescription(description string) SynthesizerOption {
	return func(s *Synthesizer) {
		s.description = description
	}
}

// WithExamples controls whether observed JSON payloads are attached as
// examples next to their schemas.
func WithExamples(enabled bool) SynthesizerOption {
	return func(s *Synthesizer) {
		s.examples = enabled
	}
}

// WithQueryParameters controls whether recorded query strings become
// optional query parameters.
func WithQueryParameters(enabled bool) SynthesizerOption {
	return func(s *Synthesizer) {
		s.queryParameters = enabled
	}
}

// WithPathParameters controls whether templated segments are declared as
// required path parameters.
func WithPathParameters(enabled bool) SynthesizerOption {
	return func(s *Synthesizer) {
		s.pathParameters = enabled
	}
}

// WithSummaries controls whether entry comments and folders become operation
// summaries and tags.
func WithSummaries(enabled bool) SynthesizerOption {
	return func(s *Synthesizer) {
		s.summaries = enabled
	}
}

func NewSynthesizer(opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		title:           DefaultTitle,
		version:         DefaultVersion,
		description:     DefaultDescription,
		examples:        true,
		queryParameters: true,
		pathParameters:  true,
		summaries:       true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize builds a document from har. Entries are processed in order;
// entries with unusable URLs or methods without an operation slot are
// skipped. A later entry for the same path and method replaces the earlier
// operation entirely.
func (s *Synthesizer) Synthesize(har *trace.HAR) *Document {
	doc := &Document{
		OpenAPI: Version,
		Info: Info{
			Title:       s.title,
			Version:     s.version,
			Description: s.description,
		},
		Servers: []Server{},
		Paths:   NewPaths(),
	}
	if har == nil {
		return doc
	}

	servers := make(map[string]struct{})
	for i := range har.Log.Entries {
		entry := &har.Log.Entries[i]

		u, ok := parseEntryURL(entry.Request.URL)
		if !ok {
			continue
		}
		servers[u.Scheme+"://"+u.Host] = struct{}{}

		method := strings.ToLower(entry.Request.Method)
		if !IsOperationMethod(method) {
			continue
		}

		template := NormalizePath(entryPath(u))
		doc.Paths.Item(template).SetOperation(method, s.operation(template, entry))
	}

	for server := range servers {
		doc.Servers = append(doc.Servers, Server{URL: server})
	}
	sort.Slice(doc.Servers, func(i, j int) bool {
		return doc.Servers[i].URL < doc.Servers[j].URL
	})

	return doc
}

func (s *Synthesizer) operation(template string, entry *trace.Entry) *Operation {
	op := &Operation{Responses: NewResponses()}

	if s.summaries {
		op.Summary = entry.Comment
		if len(entry.Folders) > 0 {
			op.Tags = []string{entry.Folders[0]}
		}
	}

	if s.pathParameters && strings.Contains(template, PathParam) {
		op.Parameters = append(op.Parameters, Parameter{
			Name:     strings.Trim(PathParam, "{}"),
			In:       "path",
			Required: true,
			Schema:   schema.String(),
		})
	}
	if s.queryParameters {
		seen := make(map[string]bool)
		for _, q := range entry.Request.QueryString {
			if q.Name == "" || seen[q.Name] {
				continue
			}
			seen[q.Name] = true
			op.Parameters = append(op.Parameters, Parameter{
				Name:   q.Name,
				In:     "query",
				Schema: schema.String(),
			})
		}
	}

	if pd := entry.Request.PostData; pd != nil {
		mime := pd.MimeType
		if mime == "" {
			mime = defaultRequestMime
		}
		op.RequestBody = &RequestBody{
			Content:  map[string]*MediaType{mime: s.mediaType(pd.Text, mime)},
			Required: true,
		}
	}

	resp := &Response{Description: entry.Response.StatusText}
	if text := entry.Response.Content.Text; text != "" {
		mime := entry.Response.Content.MimeType
		resp.Content = map[string]*MediaType{mime: s.mediaType(text, mime)}
	}
	op.Responses.Set(strconv.Itoa(entry.Response.Status), resp)

	return op
}

func (s *Synthesizer) mediaType(body, mime string) *MediaType {
	mt := &MediaType{Schema: schema.Infer(body, mime)}
	if s.examples {
		mt.Example = schema.ParseExample(body, mime)
	}
	return mt
}

// parseEntryURL accepts only absolute URLs with a scheme and a host.
func parseEntryURL(raw string) (*url.URL, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false
	}
	return u, true
}

func entryPath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		return "/"
	}
	return p
}
