package enrich

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Limited decorates a Suggester with a token-bucket rate limiter and a TTL
// response cache. Both are instance state with injected configuration, so
// tests can substitute tight budgets without touching process-wide globals.
type Limited struct {
	inner   Suggester
	limiter *rate.Limiter
	cache   *gocache.Cache
	logger  *slog.Logger
}

// NewLimited wraps inner with the given budget. requestsPerSecond and burst
// bound calls through to the collaborator; identical requests within ttl are
// served from cache without consuming budget.
func NewLimited(inner Suggester, requestsPerSecond float64, burst int, ttl time.Duration, logger *slog.Logger) *Limited {
	return &Limited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		cache:   gocache.New(ttl, 2*ttl),
		logger:  logger,
	}
}

// SuggestFixes serves from cache when possible, otherwise consumes a rate
// token and forwards to the collaborator.
func (l *Limited) SuggestFixes(ctx context.Context, req SuggestRequest) (SuggestResponse, error) {
	key, err := cacheKey(req)
	if err != nil {
		return SuggestResponse{}, err
	}

	if cached, ok := l.cache.Get(key); ok {
		l.logger.Debug("suggestion served from cache", "key", key)
		return cached.(SuggestResponse), nil
	}

	if !l.limiter.Allow() {
		return SuggestResponse{}, ErrRateLimited
	}

	resp, err := l.inner.SuggestFixes(ctx, req)
	if err != nil {
		return SuggestResponse{}, err
	}

	l.cache.SetDefault(key, resp)
	return resp, nil
}

func cacheKey(req SuggestRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("hash suggestion request: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
