package oauth

import "time"

// Tokens is a stored OAuth credential. The API client never persists these;
// ownership stays with the host's TokenStore.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
	Scope        string    `json:"scope"`
}

// ExpiresWithin reports whether the access token expires before now+buffer.
func (t *Tokens) ExpiresWithin(now time.Time, buffer time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return true
	}
	return !t.ExpiresAt.After(now.Add(buffer))
}
