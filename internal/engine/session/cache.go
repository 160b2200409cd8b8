// Package session keeps short-lived per-session disambiguation state in
// Redis so a follow-up turn can be matched against the candidates the user
// was just shown.
package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	stderrors "trade-assistant/internal/common/errors"
	"trade-assistant/internal/common/logger"
)

// State is the pending disambiguation snapshot for one session.
type State struct {
	Dimension  string    `json:"dimension"`
	Candidates []string  `json:"candidates"`
	AskedAt    time.Time `json:"asked_at"`
}

// Cache stores session state with a TTL; entries expire on their own, no
// explicit cleanup pass exists.
type Cache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    logger.Logger
}

func NewCache(client *redis.Client, keyPrefix string, ttl time.Duration, log logger.Logger) *Cache {
	return &Cache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    log.WithFields(map[string]interface{}{"component": "session"}),
	}
}

func (c *Cache) key(sessionID string) string {
	return c.keyPrefix + sessionID
}

// Put stores the pending disambiguation for a session, resetting its TTL.
func (c *Cache) Put(ctx context.Context, sessionID string, state State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return sessionError(err)
	}
	if err := c.client.Set(ctx, c.key(sessionID), payload, c.ttl).Err(); err != nil {
		c.logger.Error("session write failed", map[string]interface{}{
			"session": sessionID,
			"error":   err.Error(),
		})
		return sessionError(err)
	}
	return nil
}

// Get returns the pending state for a session, or nil when none exists or it
// has expired.
func (c *Cache) Get(ctx context.Context, sessionID string) (*State, error) {
	payload, err := c.client.Get(ctx, c.key(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, sessionError(err)
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, sessionError(err)
	}
	return &state, nil
}

// Clear drops a session's pending state, typically after the user picked a
// candidate.
func (c *Cache) Clear(ctx context.Context, sessionID string) error {
	if err := c.client.Del(ctx, c.key(sessionID)).Err(); err != nil {
		return sessionError(err)
	}
	return nil
}

func sessionError(err error) *stderrors.StandardError {
	return &stderrors.StandardError{
		Code:      stderrors.ErrCodeSessionStoreFailed,
		Message:   "Session store operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
