package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/DrBalls/etsy-manager-sub000/internal/singleflight"
)

// DefaultExpiryBuffer is how close to expiry an access token may get before
// a refresh is triggered.
const DefaultExpiryBuffer = 5 * time.Minute

// TokenSource adapts a TokenStore into the API client's TokenProvider
// contract for a single credential owner: it returns the stored access
// token, refreshing first when it is within the expiry buffer. Concurrent
// refreshes for the same owner collapse into one provider call.
//
// A provider-rejected refresh deletes the stored credential, so the next
// AccessToken call fails instead of looping; the host then prompts for
// re-authorization. Transient network failures during refresh leave the
// credential in place.
type TokenSource struct {
	client *Client
	store  TokenStore
	owner  string
	buffer time.Duration
	group  *singleflight.Group

	onRefresh RefreshObserver

	now func() time.Time
}

// RefreshObserver is invoked synchronously after every refresh attempt
// against the provider; err is nil on success. Hosts typically feed it into
// the API client's token-refresh metric.
type RefreshObserver func(err error)

// SourceOption configures a TokenSource.
type SourceOption func(*TokenSource)

// WithExpiryBuffer overrides DefaultExpiryBuffer.
func WithExpiryBuffer(d time.Duration) SourceOption {
	return func(s *TokenSource) {
		s.buffer = d
	}
}

// WithRefreshObserver registers a refresh-outcome callback.
func WithRefreshObserver(fn RefreshObserver) SourceOption {
	return func(s *TokenSource) {
		s.onRefresh = fn
	}
}

// NewTokenSource creates a token source for one owner.
func NewTokenSource(client *Client, store TokenStore, owner string, opts ...SourceOption) *TokenSource {
	s := &TokenSource{
		client: client,
		store:  store,
		owner:  owner,
		buffer: DefaultExpiryBuffer,
		group:  singleflight.New(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AccessToken implements the etsyapi.TokenProvider contract.
func (s *TokenSource) AccessToken(ctx context.Context) (string, error) {
	tokens, err := s.store.Get(ctx, s.owner)
	if err != nil {
		return "", err
	}
	if !tokens.ExpiresWithin(s.now(), s.buffer) {
		return tokens.AccessToken, nil
	}

	v, err := s.group.Do(s.owner, func() (any, error) {
		return s.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(*Tokens).AccessToken, nil
}

func (s *TokenSource) refresh(ctx context.Context) (*Tokens, error) {
	// Re-read under the flight: a caller we coalesced behind may already
	// have stored a fresh credential.
	tokens, err := s.store.Get(ctx, s.owner)
	if err != nil {
		return nil, err
	}
	if !tokens.ExpiresWithin(s.now(), s.buffer) {
		return tokens, nil
	}

	if tokens.RefreshToken == "" {
		// Nothing to renew with; drop the credential so the host re-runs
		// the authorization flow instead of retrying forever.
		_ = s.store.Delete(ctx, s.owner)
		return nil, ErrNoRefreshToken
	}

	fresh, err := s.client.Refresh(ctx, tokens.RefreshToken)
	if s.onRefresh != nil {
		s.onRefresh(err)
	}
	if err != nil {
		if errors.Is(err, ErrTokenRefresh) {
			// Definitive provider rejection: the refresh token is dead.
			_ = s.store.Delete(ctx, s.owner)
		}
		return nil, err
	}

	// Providers may omit the refresh token on renewal; keep the old one.
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tokens.RefreshToken
	}
	if err := s.store.Put(ctx, s.owner, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}
