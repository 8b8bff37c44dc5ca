package oauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Etsy identity provider endpoints.
const (
	DefaultAuthURL  = "https://www.etsy.com/oauth/connect"
	DefaultTokenURL = "https://api.etsy.com/v3/public/oauth/token"
)

// SessionTTL is how long an in-flight authorization session stays valid.
const SessionTTL = 10 * time.Minute

const (
	verifierBytes = 32
	stateBytes    = 24
	maxTokenBody  = 64 * 1024
)

// Config configures a flow client.
type Config struct {
	ClientID    string
	RedirectURI string
	Scopes      []string

	// AuthURL and TokenURL default to the Etsy endpoints.
	AuthURL  string
	TokenURL string

	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// PKCE is a verifier/challenge pair. The verifier stays local; only the
// challenge travels in the authorization URL.
type PKCE struct {
	Verifier  string
	Challenge string
}

// Session is the in-flight authorization state. It is created when an
// authorization URL is issued, consumed exactly once by the callback and
// discarded after SessionTTL.
type Session struct {
	State     string    `json:"state"`
	Verifier  string    `json:"code_verifier"`
	Challenge string    `json:"code_challenge"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session is past its validity window.
func (s *Session) Expired(now time.Time) bool {
	return now.Sub(s.CreatedAt) > SessionTTL
}

// Client drives the PKCE authorization-code flow. Safe for concurrent use;
// one authorization session is in flight per Client at a time.
type Client struct {
	cfg   Config
	httpc *http.Client

	mu       sync.Mutex
	session  *Session
	consumed bool

	now func() time.Time
}

// New creates a flow client. ClientID and RedirectURI are required.
func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("oauth: ClientID is required")
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("oauth: RedirectURI is required")
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, httpc: httpc, now: time.Now}, nil
}

// GeneratePKCE produces a fresh verifier (32 random bytes, base64url, no
// padding) and its S256 challenge. Every call returns a new pair.
func GeneratePKCE() (PKCE, error) {
	raw := make([]byte, verifierBytes)
	if _, err := rand.Read(raw); err != nil {
		return PKCE{}, fmt.Errorf("oauth: generate verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(raw)
	digest := sha256.Sum256([]byte(verifier))
	return PKCE{
		Verifier:  verifier,
		Challenge: base64.RawURLEncoding.EncodeToString(digest[:]),
	}, nil
}

// GenerateState produces a cryptographically random state token, base64url,
// unique per call.
func GenerateState() (string, error) {
	raw := make([]byte, stateBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("oauth: generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// AuthOptions overrides parts of the authorization URL. All fields are
// optional.
type AuthOptions struct {
	State       string
	Scopes      []string
	RedirectURI string
}

// AuthorizationURL builds the provider's authorization endpoint URL and
// begins a new session. A PKCE pair and state are generated as a side effect
// when not supplied.
func (c *Client) AuthorizationURL(opts *AuthOptions) (string, error) {
	if opts == nil {
		opts = &AuthOptions{}
	}

	state := opts.State
	if state == "" {
		var err error
		state, err = GenerateState()
		if err != nil {
			return "", err
		}
	}
	pkce, err := GeneratePKCE()
	if err != nil {
		return "", err
	}

	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = c.cfg.Scopes
	}
	redirectURI := opts.RedirectURI
	if redirectURI == "" {
		redirectURI = c.cfg.RedirectURI
	}

	c.mu.Lock()
	c.session = &Session{
		State:     state,
		Verifier:  pkce.Verifier,
		Challenge: pkce.Challenge,
		CreatedAt: c.now(),
	}
	c.consumed = false
	c.mu.Unlock()

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", strings.Join(scopes, " "))
	q.Set("state", state)
	q.Set("code_challenge", pkce.Challenge)
	q.Set("code_challenge_method", "S256")

	return c.cfg.AuthURL + "?" + q.Encode(), nil
}

// Session returns a copy of the in-flight session, or nil when none exists.
// Hosts that complete the callback in another process persist this and
// restore it there.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// RestoreSession installs a previously persisted session.
func (c *Client) RestoreSession(s Session) {
	c.mu.Lock()
	c.session = &s
	c.consumed = false
	c.mu.Unlock()
}

// ParseAuthorizationResponse validates the provider redirect parameters and
// returns the authorization code. An "access_denied" error parameter maps to
// ErrUserDenied, any other error value to a FlowError with the raw
// description. The state must constant-time-compare equal to the session's;
// a mismatched, missing or expired state fails with ErrInvalidState.
func (c *Client) ParseAuthorizationResponse(params url.Values) (string, error) {
	if e := params.Get("error"); e != "" {
		if e == "access_denied" {
			return "", ErrUserDenied
		}
		desc := params.Get("error_description")
		if desc == "" {
			desc = e
		}
		return "", &FlowError{Op: "callback", Code: e, Description: desc}
	}

	code := params.Get("code")
	if code == "" {
		return "", ErrNoAuthCode
	}
	if !c.ValidateState(params.Get("state")) {
		return "", ErrInvalidState
	}

	// A session is consumed exactly once; replaying the same callback must
	// be rejected.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consumed {
		return "", ErrInvalidState
	}
	c.consumed = true
	return code, nil
}

// ValidateState constant-time-compares received against the session state.
// Returns false (not an error) when no unexpired session exists.
func (c *Client) ValidateState(received string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || c.session.Expired(c.now()) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.session.State), []byte(received)) == 1
}

// ExchangeCode trades an authorization code for tokens. The verifier
// defaults to the session's; PKCE is mandatory, so having neither fails with
// ErrNoVerifier. The session is consumed on success.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*Tokens, error) {
	if verifier == "" {
		c.mu.Lock()
		if c.session != nil && !c.session.Expired(c.now()) {
			verifier = c.session.Verifier
		}
		c.mu.Unlock()
	}
	if verifier == "" {
		return nil, ErrNoVerifier
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("redirect_uri", c.cfg.RedirectURI)
	form.Set("code", code)
	form.Set("code_verifier", verifier)

	tokens, err := c.tokenRequest(ctx, "exchange", form, ErrTokenExchange)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()

	return tokens, nil
}

// Refresh trades a refresh token for a new access token. Provider rejection
// fails with a FlowError wrapping ErrTokenRefresh; whether to delete the
// stored credential on that failure is the caller's policy (TokenSource
// deletes).
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("refresh_token", refreshToken)

	return c.tokenRequest(ctx, "refresh", form, ErrTokenRefresh)
}

func (c *Client) tokenRequest(ctx context.Context, op string, form url.Values, sentinel error) (*Tokens, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("oauth: build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauth: %s request: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		return nil, fmt.Errorf("oauth: read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ferr := &FlowError{Op: op, Description: http.StatusText(resp.StatusCode), HTTPStatus: resp.StatusCode, Err: sentinel}
		var payload struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			ferr.Code = payload.Error
			if payload.ErrorDescription != "" {
				ferr.Description = payload.ErrorDescription
			} else {
				ferr.Description = payload.Error
			}
		}
		return nil, ferr
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		TokenType    string `json:"token_type"`
		Scope        string `json:"scope"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &FlowError{Op: op, Description: "malformed token response", HTTPStatus: resp.StatusCode, Err: sentinel}
	}
	if payload.AccessToken == "" {
		return nil, &FlowError{Op: op, Description: "token response missing access_token", HTTPStatus: resp.StatusCode, Err: sentinel}
	}

	return &Tokens{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresAt:    c.now().Add(time.Duration(payload.ExpiresIn) * time.Second),
		TokenType:    payload.TokenType,
		Scope:        payload.Scope,
	}, nil
}
