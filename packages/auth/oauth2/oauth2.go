// Package oauth2 obtains OAuth2 access tokens for collections whose auth
// block asks for one instead of carrying it.
package oauth2

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrTokenURL is returned when a token must be fetched but no token URL is set.
var ErrTokenURL = errors.New("oauth2: access token URL is required")

// GrantType represents the OAuth2 grant type
type GrantType string

const (
	// ClientCredentials is the client_credentials grant type
	ClientCredentials GrantType = "client_credentials"
	// Password is the password (resource owner) grant type
	Password GrantType = "password"
)

// ParseGrantType accepts both OAuth2 grant names and the names collection
// tools store, such as password_credentials.
func ParseGrantType(s string) (GrantType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "client_credentials":
		return ClientCredentials, nil
	case "password", "password_credentials":
		return Password, nil
	}
	return "", fmt.Errorf("unsupported OAuth2 grant type: %s", s)
}

// Config holds OAuth2 configuration
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Username     string // For password grant
	Password     string // For password grant
	GrantType    GrantType
	// CredentialsInBody sends client_id and client_secret as form fields
	// instead of a Basic Authorization header.
	CredentialsInBody bool
}

// FromParams builds a Config from auth block parameters, looked up through
// param after variable substitution.
func FromParams(param func(key string) string) (*Config, error) {
	grant, err := ParseGrantType(param("grant_type"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		TokenURL:          param("accessTokenUrl"),
		ClientID:          param("clientId"),
		ClientSecret:      param("clientSecret"),
		Username:          param("username"),
		Password:          param("password"),
		GrantType:         grant,
		CredentialsInBody: strings.EqualFold(param("client_authentication"), "body"),
	}
	if cfg.TokenURL == "" {
		return nil, ErrTokenURL
	}
	if scope := strings.TrimSpace(param("scope")); scope != "" {
		cfg.Scopes = strings.Fields(strings.ReplaceAll(scope, ",", " "))
	}
	return cfg, nil
}

// Token represents an OAuth2 access token
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// IsExpired checks if the token is expired
func (t *Token) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	// Add a small buffer (30 seconds) to account for clock skew
	return time.Now().Add(30 * time.Second).After(t.ExpiresAt)
}

// Provider handles OAuth2 token acquisition
type Provider struct {
	config     *Config
	httpClient *http.Client
	cache      *TokenCache
}

// ProviderOption is a functional option for Provider
type ProviderOption func(*Provider)

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithCache shares a token cache between providers, so one run fetches each
// token once.
func WithCache(c *TokenCache) ProviderOption {
	return func(p *Provider) {
		p.cache = c
	}
}

// NewProvider creates a new OAuth2 provider
func NewProvider(config *Config, opts ...ProviderOption) *Provider {
	p := &Provider{config: config}
	for _, opt := range opts {
		opt(p)
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if p.cache == nil {
		p.cache = NewTokenCache()
	}
	return p
}

// Token returns a valid access token, fetching a new one if necessary.
func (p *Provider) Token(ctx context.Context) (*Token, error) {
	cacheKey := p.cacheKey()
	if token := p.cache.Get(cacheKey); token != nil && !token.IsExpired() {
		return token, nil
	}

	token, err := p.fetchToken(ctx)
	if err != nil {
		return nil, err
	}

	p.cache.Set(cacheKey, token)
	return token, nil
}

func (p *Provider) cacheKey() string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", p.config.GrantType, p.config.TokenURL, p.config.ClientID, p.config.Username, strings.Join(p.config.Scopes, ","))
}

func (p *Provider) fetchToken(ctx context.Context) (*Token, error) {
	data := url.Values{}
	data.Set("grant_type", string(p.config.GrantType))
	if p.config.GrantType == Password {
		data.Set("username", p.config.Username)
		data.Set("password", p.config.Password)
	}
	if len(p.config.Scopes) > 0 {
		data.Set("scope", strings.Join(p.config.Scopes, " "))
	}
	if p.config.CredentialsInBody {
		data.Set("client_id", p.config.ClientID)
		data.Set("client_secret", p.config.ClientSecret)
	}

	return p.doTokenRequest(ctx, data)
}

func (p *Provider) doTokenRequest(ctx context.Context, data url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	if !p.config.CredentialsInBody && p.config.ClientID != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(p.config.ClientID + ":" + p.config.ClientSecret))
		req.Header.Set("Authorization", "Basic "+auth)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("token request failed: %s - %s", errResp.Error, errResp.ErrorDescription)
		}
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("token response has no access_token")
	}

	if token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	return &token, nil
}
