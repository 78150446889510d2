package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultTokenMargin = 60 * time.Second

// Token is one grant answer from the provider.
type Token struct {
	IDToken      string
	RefreshToken string
	ExpiresIn    time.Duration
}

// TokenSource performs the grant and refresh calls. The client implements it.
type TokenSource interface {
	GrantToken(ctx context.Context) (*Token, error)
	RefreshToken(ctx context.Context, refreshToken string) (*Token, error)
}

// TokenCache keeps the provider access token of the process.
// Refreshes are serialized: concurrent callers wait for the one grant in flight and reuse its token.
type TokenCache struct {
	source TokenSource
	margin time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu           sync.Mutex
	token        string
	refreshToken string
	expiresAt    time.Time
}

func NewTokenCache(source TokenSource, margin time.Duration, now func() time.Time, logger *zap.Logger) *TokenCache {
	if margin <= 0 {
		margin = DefaultTokenMargin
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenCache{
		source: source,
		margin: margin,
		now:    now,
		logger: logger,
	}
}

func (c *TokenCache) GetToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.usableLocked() {
		return c.token, nil
	}

	issuedAt := c.now()
	tok, err := c.fetchLocked(ctx)
	if err != nil {
		return "", err
	}

	c.token = tok.IDToken
	c.refreshToken = tok.RefreshToken
	c.expiresAt = issuedAt.Add(tok.ExpiresIn)
	c.logger.Debug("gateway token refreshed", zap.Time("expires_at", c.expiresAt))
	return c.token, nil
}

// Invalidate drops the cached access token. The refresh token is kept for the next grant.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *TokenCache) usableLocked() bool {
	if c.token == "" {
		return false
	}
	return c.now().Before(c.expiresAt.Add(-c.margin))
}

func (c *TokenCache) fetchLocked(ctx context.Context) (*Token, error) {
	if c.refreshToken != "" {
		tok, err := c.source.RefreshToken(ctx, c.refreshToken)
		if err == nil {
			if err = checkToken(tok); err == nil {
				return tok, nil
			}
		}
		c.logger.Warn("gateway token refresh failed, falling back to grant", zap.Error(err))
	}

	tok, err := c.source.GrantToken(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkToken(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

var errEmptyToken = errors.New("grant response has no id_token")

func checkToken(tok *Token) error {
	if tok == nil || tok.IDToken == "" {
		return errEmptyToken
	}
	return nil
}
