// Package queue implements the boundary between synchronous request handling
// and asynchronous execution on top of a Redis list. Producers push named
// work units; a separate consumer process pops and runs them, so submissions
// survive while no worker is up.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/csvflow/csvflow/internal/core"
)

// workKey is the Redis list shared by all producers and consumers.
// processingKey holds units a consumer has claimed but not yet finished, so
// a crash mid-handler leaves the unit recoverable instead of lost.
const (
	workKey       = "csvflow:work"
	processingKey = workKey + ":processing"
)

// Work is one dispatched unit as it travels over the wire. Args carry only
// plain JSON values; no live handles cross this boundary.
type Work struct {
	ID   string         `json:"id"`
	Fn   string         `json:"fn"`
	Args map[string]any `json:"args"`
}

type redisDispatcher struct {
	client *redis.Client
	logger *slog.Logger
}

// NewDispatcher creates a Redis-backed core.Dispatcher.
func NewDispatcher(client *redis.Client, logger *slog.Logger) core.Dispatcher {
	return &redisDispatcher{client: client, logger: logger}
}

// Enqueue pushes a work unit and returns its submission id. The unit persists
// in Redis until a consumer claims it.
func (d *redisDispatcher) Enqueue(ctx context.Context, fn string, args map[string]any) (string, error) {
	work := Work{
		ID:   uuid.NewString(),
		Fn:   fn,
		Args: args,
	}

	data, err := json.Marshal(work)
	if err != nil {
		return "", fmt.Errorf("marshal work unit %s: %w", fn, err)
	}

	if err := d.client.LPush(ctx, workKey, data).Err(); err != nil {
		return "", fmt.Errorf("enqueue work unit %s: %w", fn, err)
	}

	d.logger.Debug("queued work unit", "fn", fn, "submission_id", work.ID)
	return work.ID, nil
}

// NewClient builds a Redis client and verifies connectivity.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}
