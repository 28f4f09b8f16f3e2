package collection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Item is a node of the collection tree: either a *RequestItem or a *Folder.
type Item interface {
	ItemName() string
}

// Items is an ordered list of tree nodes. Decoding inspects each element: an
// object carrying an "item" key is a folder, anything else is a request leaf.
type Items []Item

func (items *Items) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(Items, 0, len(raws))
	for i, raw := range raws {
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(raw, &keys); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		if _, ok := keys["item"]; ok {
			var f Folder
			if err := json.Unmarshal(raw, &f); err != nil {
				return fmt.Errorf("folder %d: %w", i, err)
			}
			out = append(out, &f)
			continue
		}
		var r RequestItem
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("request %d: %w", i, err)
		}
		out = append(out, &r)
	}
	*items = out
	return nil
}

// Folder groups child items.
type Folder struct {
	Name        string      `json:"name"`
	Items       Items       `json:"item"`
	Description Description `json:"description,omitempty"`
	Auth        *Auth       `json:"auth,omitempty"`
}

func (f *Folder) ItemName() string { return f.Name }

// RequestItem is a named request leaf. Saved example responses are kept
// undecoded.
type RequestItem struct {
	Name      string            `json:"name"`
	Request   Request           `json:"request"`
	Responses []json.RawMessage `json:"response,omitempty"`
}

func (r *RequestItem) ItemName() string { return r.Name }

// Request is either a BareRequest (just a URL) or a *FullRequest.
type Request interface {
	isRequest()
}

// BareRequest is the shorthand form where the request is only a URL string.
type BareRequest string

func (BareRequest) isRequest() {}

// FullRequest is the complete request definition.
type FullRequest struct {
	Method      string      `json:"method"`
	URL         URL         `json:"-"`
	Headers     []Header    `json:"header,omitempty"`
	Body        *Body       `json:"body,omitempty"`
	Auth        *Auth       `json:"auth,omitempty"`
	Description Description `json:"description,omitempty"`
}

func (*FullRequest) isRequest() {}

func (r *FullRequest) UnmarshalJSON(data []byte) error {
	type plain FullRequest
	var aux struct {
		plain
		RawURL json.RawMessage `json:"url"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = FullRequest(aux.plain)
	u, err := decodeURL(aux.RawURL)
	if err != nil {
		return fmt.Errorf("url: %w", err)
	}
	r.URL = u
	return nil
}

func (r *FullRequest) MarshalJSON() ([]byte, error) {
	type plain FullRequest
	return json.Marshal(struct {
		plain
		URL URL `json:"url,omitempty"`
	}{plain: plain(*r), URL: r.URL})
}

func (ri *RequestItem) UnmarshalJSON(data []byte) error {
	var aux struct {
		Name      string            `json:"name"`
		Request   json.RawMessage   `json:"request"`
		Responses []json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	ri.Name = aux.Name
	ri.Responses = aux.Responses
	req, err := decodeRequest(aux.Request)
	if err != nil {
		return fmt.Errorf("request %q: %w", aux.Name, err)
	}
	ri.Request = req
	return nil
}

func decodeRequest(raw json.RawMessage) (Request, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("missing request definition")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return BareRequest(s), nil
	}
	var full FullRequest
	if err := json.Unmarshal(raw, &full); err != nil {
		return nil, err
	}
	return &full, nil
}

// URL is either a RawURL string or a *StructuredURL.
type URL interface {
	isURL()
}

// RawURL is a request target given as a plain string.
type RawURL string

func (RawURL) isURL() {}

// StructuredURL is the decomposed request target.
type StructuredURL struct {
	Raw      string       `json:"raw,omitempty"`
	Protocol string       `json:"protocol,omitempty"`
	Host     stringOrList `json:"host,omitempty"`
	Port     string       `json:"port,omitempty"`
	Path     stringOrList `json:"path,omitempty"`
	Query    []QueryParam `json:"query,omitempty"`
}

func (*StructuredURL) isURL() {}

// Rebuild assembles a URL from the structured parts, ignoring Raw. Disabled
// query parameters are left out.
func (u *StructuredURL) Rebuild() string {
	var sb strings.Builder
	if u.Protocol != "" {
		sb.WriteString(u.Protocol)
		sb.WriteString("://")
	}
	sb.WriteString(strings.Join(u.Host, "."))
	if u.Port != "" {
		sb.WriteString(":")
		sb.WriteString(u.Port)
	}
	if len(u.Path) > 0 {
		sb.WriteString("/")
		sb.WriteString(strings.TrimPrefix(strings.Join(u.Path, "/"), "/"))
	}
	sep := "?"
	for _, q := range u.Query {
		if q.Disabled {
			continue
		}
		sb.WriteString(sep)
		sb.WriteString(q.Key)
		sb.WriteString("=")
		sb.WriteString(q.Value)
		sep = "&"
	}
	return sb.String()
}

func decodeURL(raw json.RawMessage) (URL, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return RawURL(""), nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return RawURL(s), nil
	}
	var su StructuredURL
	if err := json.Unmarshal(raw, &su); err != nil {
		return nil, err
	}
	return &su, nil
}

// Header is a request header. Disabled headers are never sent.
type Header struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Disabled bool   `json:"disabled,omitempty"`
}

// QueryParam is one query-string parameter of a structured URL.
type QueryParam struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Disabled bool   `json:"disabled,omitempty"`
}

// Body modes.
const (
	BodyRaw        = "raw"
	BodyURLEncoded = "urlencoded"
	BodyFormData   = "formdata"
)

// Body is the request payload definition. Only BodyRaw is materialized by
// the executor.
type Body struct {
	Mode       string       `json:"mode"`
	Raw        *string      `json:"raw,omitempty"` // nil when the raw key is absent
	URLEncoded []KeyValue   `json:"urlencoded,omitempty"`
	FormData   []KeyValue   `json:"formdata,omitempty"`
	Options    *BodyOptions `json:"options,omitempty"`
}

// BodyOptions carries the editor hints Postman stores next to a raw body.
type BodyOptions struct {
	Raw struct {
		Language string `json:"language,omitempty"`
	} `json:"raw"`
}

// Language returns the declared raw body language ("json", "xml", ...).
func (b *Body) Language() string {
	if b == nil || b.Options == nil {
		return ""
	}
	return b.Options.Raw.Language
}

// KeyValue is a form field.
type KeyValue struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Type     string `json:"type,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// Auth types understood by the executor.
const (
	AuthNone   = "noauth"
	AuthBearer = "bearer"
	AuthBasic  = "basic"
	AuthAPIKey = "apikey"
	AuthOAuth2 = "oauth2"
)

// Auth is a collection, folder or request authorization block.
type Auth struct {
	Type   string      `json:"type"`
	Bearer []AuthParam `json:"bearer,omitempty"`
	Basic  []AuthParam `json:"basic,omitempty"`
	APIKey []AuthParam `json:"apikey,omitempty"`
	OAuth2 []AuthParam `json:"oauth2,omitempty"`
}

// AuthParam is a single key/value of an Auth block.
type AuthParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

func (p *AuthParam) UnmarshalJSON(data []byte) error {
	var raw struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
		Type  string          `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Key = raw.Key
	p.Type = raw.Type
	p.Value = scalarString(raw.Value)
	return nil
}

// Param looks up a parameter of the given auth type's block.
func (a *Auth) Param(key string) string {
	if a == nil {
		return ""
	}
	var params []AuthParam
	switch a.Type {
	case AuthBearer:
		params = a.Bearer
	case AuthBasic:
		params = a.Basic
	case AuthAPIKey:
		params = a.APIKey
	case AuthOAuth2:
		params = a.OAuth2
	}
	for _, p := range params {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}
