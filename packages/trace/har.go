// Package trace records executed exchanges as a HAR 1.2 document.
package trace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/livespec/packages/http"
)

// HARVersion is the HAR format version written by the recorder.
const HARVersion = "1.2"

var (
	// ErrParse is returned when a HAR document cannot be decoded.
	ErrParse = errors.New("parse error")
	// ErrSerialization is returned when a HAR document cannot be encoded.
	ErrSerialization = errors.New("serialization error")
)

type HAR struct {
	Log Log `json:"log"`
}

type Log struct {
	Version string  `json:"version"`
	Creator Creator `json:"creator"`
	Entries []Entry `json:"entries"`
	Comment string  `json:"comment,omitempty"`
}

type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Entry is one executed request/response pair.
type Entry struct {
	StartedDateTime string         `json:"startedDateTime"`
	Time            float64        `json:"time"`
	Request         Request        `json:"request"`
	Response        Response       `json:"response"`
	Cache           map[string]any `json:"cache"`
	Timings         Timings        `json:"timings"`
	Comment         string         `json:"comment,omitempty"`
	// Folders is the collection folder path of the request that produced the
	// entry. Custom HAR fields carry a leading underscore.
	Folders []string `json:"_folders,omitempty"`
}

type Request struct {
	Method      string      `json:"method"`
	URL         string      `json:"url"`
	HTTPVersion string      `json:"httpVersion"`
	Headers     []NameValue `json:"headers"`
	QueryString []NameValue `json:"queryString"`
	HeadersSize int         `json:"headersSize"`
	BodySize    int         `json:"bodySize"`
	PostData    *PostData   `json:"postData,omitempty"`
}

type Response struct {
	Status      int         `json:"status"`
	StatusText  string      `json:"statusText"`
	HTTPVersion string      `json:"httpVersion"`
	Headers     []NameValue `json:"headers"`
	Content     Content     `json:"content"`
	RedirectURL string      `json:"redirectURL"`
	HeadersSize int         `json:"headersSize"`
	BodySize    int         `json:"bodySize"`
}

type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type PostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

type Content struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// Timings carries no phase breakdown: Send and Receive are always zero and
// Wait holds the whole measured duration.
type Timings struct {
	Send    float64 `json:"send"`
	Wait    float64 `json:"wait"`
	Receive float64 `json:"receive"`
}

// NewEntry builds a trace entry from a sent request and its response.
// requestMime is the declared content type of the outgoing body and is only
// used when the request carried one.
func NewEntry(req *http.Request, requestMime string, resp *http.Response) Entry {
	ms := float64(resp.Duration.Microseconds()) / 1000
	if ms < 0 {
		ms = 0
	}

	headers := resp.RequestHeaders
	if headers == nil {
		headers = req.Headers
	}

	harReq := Request{
		Method:      req.Method,
		URL:         req.URL,
		HTTPVersion: "HTTP/1.1",
		Headers:     toNameValues(headers),
		QueryString: queryString(req.URL),
		HeadersSize: -1,
	}
	if req.HasBody {
		harReq.BodySize = len(req.Body)
		harReq.PostData = &PostData{MimeType: requestMime, Text: req.Body}
	}

	proto := resp.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}

	return Entry{
		StartedDateTime: resp.StartedAt.UTC().Format(time.RFC3339Nano),
		Time:            ms,
		Request:         harReq,
		Response: Response{
			Status:      resp.StatusCode,
			StatusText:  resp.Reason,
			HTTPVersion: proto,
			Headers:     toNameValues(resp.Headers),
			Content: Content{
				Size:     len(resp.Body),
				MimeType: resp.ContentType(),
				Text:     resp.BodyString(),
			},
			RedirectURL: resp.Header("Location"),
			HeadersSize: -1,
			BodySize:    len(resp.Body),
		},
		Cache:   map[string]any{},
		Timings: Timings{Wait: ms},
	}
}

func toNameValues(headers []http.Header) []NameValue {
	out := make([]NameValue, 0, len(headers))
	for _, h := range headers {
		out = append(out, NameValue{Name: h.Name, Value: h.Value})
	}
	return out
}

// queryString lists the URL's query parameters in the order they appear.
func queryString(rawURL string) []NameValue {
	out := []NameValue{}
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return out
	}
	for _, part := range strings.Split(u.RawQuery, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		out = append(out, NameValue{Name: unescape(key), Value: unescape(value)})
	}
	return out
}

func unescape(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return s
}

// Encode writes har as indented JSON.
func Encode(w io.Writer, har *HAR) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(har); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return nil
}

// Decode reads a HAR document.
func Decode(r io.Reader) (*HAR, error) {
	var har HAR
	if err := json.NewDecoder(r).Decode(&har); err != nil {
		return nil, fmt.Errorf("%w: har: %v", ErrParse, err)
	}
	return &har, nil
}

// WriteFile encodes har into path. Nothing is written if encoding fails.
func WriteFile(path string, har *HAR) error {
	data, err := json.MarshalIndent(har, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write HAR file: %w", err)
	}
	return nil
}

// ReadFile loads a HAR document from path.
func ReadFile(path string) (*HAR, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open HAR file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
