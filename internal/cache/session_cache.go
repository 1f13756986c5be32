package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"uistudio/internal/model"
)

// SessionCache is a read-through cache of session records. A dirty marker is
// set while an asynchronous write is pending so readers don't repopulate the
// cache with a record that is about to change.
type SessionCache struct {
	client         *redisv9.Client
	recordTTL      time.Duration
	dirtyMarkerTTL time.Duration
}

func NewSessionCache(client *redisv9.Client, recordTTL, dirtyMarkerTTL time.Duration) *SessionCache {
	if recordTTL <= 0 {
		recordTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &SessionCache{
		client:         client,
		recordTTL:      recordTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *SessionCache) GetSession(ctx context.Context, userID, sessionID uint) (*model.Session, bool, error) {
	raw, err := c.client.Get(ctx, c.recordKey(userID, sessionID)).Bytes()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get session failed: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached session failed: %w", err)
	}
	session.Normalize()
	return &session, true, nil
}

func (c *SessionCache) SetSession(ctx context.Context, session *model.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.recordKey(session.UserID, session.ID), payload, c.recordTTL).Err(); err != nil {
		return fmt.Errorf("redis set session failed: %w", err)
	}
	return nil
}

func (c *SessionCache) DeleteSession(ctx context.Context, userID, sessionID uint) error {
	if err := c.client.Del(ctx, c.recordKey(userID, sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete session failed: %w", err)
	}
	return nil
}

func (c *SessionCache) MarkDirty(ctx context.Context, sessionID uint) error {
	if err := c.client.Set(ctx, c.dirtyKey(sessionID), "1", c.dirtyMarkerTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

func (c *SessionCache) ClearDirty(ctx context.Context, sessionID uint) error {
	if err := c.client.Del(ctx, c.dirtyKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis clear dirty marker failed: %w", err)
	}
	return nil
}

func (c *SessionCache) IsDirty(ctx context.Context, sessionID uint) (bool, error) {
	exists, err := c.client.Exists(ctx, c.dirtyKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func (c *SessionCache) recordKey(userID, sessionID uint) string {
	return fmt.Sprintf("studio:session:%d:%d", userID, sessionID)
}

func (c *SessionCache) dirtyKey(sessionID uint) string {
	return fmt.Sprintf("studio:session:dirty:%d", sessionID)
}
