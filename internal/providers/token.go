package providers

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type TokenState int

const (
	TokenUnset TokenState = iota
	TokenValid
	TokenExpired
)

func (s TokenState) String() string {
	switch s {
	case TokenUnset:
		return "unset"
	case TokenValid:
		return "valid"
	case TokenExpired:
		return "expired"
	}
	return fmt.Sprintf("TokenState(%d)", int(s))
}

// RefreshFunc obtains a new bearer token and its expiry.
type RefreshFunc func(ctx context.Context) (token string, expiry time.Time, err error)

// TokenSource holds the auth state of one provider client. The state moves
// Unset -> Valid on Refresh, Valid -> Expired on MarkExpired or when the
// expiry passes, and Expired -> Valid on the next Refresh.
type TokenSource struct {
	refresh RefreshFunc
	now     func() time.Time
	// skew refreshes a little before the provider would reject the token.
	skew time.Duration

	mu     sync.Mutex
	state  TokenState
	token  string
	expiry time.Time
}

func NewTokenSource(refresh RefreshFunc) *TokenSource {
	return &TokenSource{refresh: refresh, now: time.Now, skew: 30 * time.Second}
}

// State reports the current state without refreshing.
func (s *TokenSource) State() TokenState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *TokenSource) stateLocked() TokenState {
	if s.state == TokenValid && !s.now().Add(s.skew).Before(s.expiry) {
		s.state = TokenExpired
	}
	return s.state
}

// Token returns a valid token, refreshing first when the state is not Valid.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.stateLocked() == TokenValid {
		tok := s.token
		s.mu.Unlock()
		return tok, nil
	}
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// Refresh fetches a new token. A failed refresh leaves the state unchanged.
func (s *TokenSource) Refresh(ctx context.Context) (string, error) {
	tok, exp, err := s.refresh(ctx)
	if err != nil {
		return "", fmt.Errorf("token refresh: %w", err)
	}
	s.mu.Lock()
	s.state, s.token, s.expiry = TokenValid, tok, exp
	s.mu.Unlock()
	return tok, nil
}

// MarkExpired is called when the provider rejects the current token.
func (s *TokenSource) MarkExpired() {
	s.mu.Lock()
	if s.state == TokenValid {
		s.state = TokenExpired
	}
	s.mu.Unlock()
}
