package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"branchrate/internal/session/models"
	"branchrate/pkg/platform/sentinel"
)

const keyPrefix = "session:"

// Redis stores sessions as JSON with a TTL matching the session expiry.
type Redis struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client, now: time.Now}
}

func key(id uuid.UUID) string {
	return keyPrefix + id.String()
}

func (s *Redis) Save(ctx context.Context, session *models.Session) error {
	ttl := session.TTL(s.now())
	if ttl <= 0 {
		return fmt.Errorf("save session %s: %w", session.ID, sentinel.ErrExpired)
	}
	body, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, key(session.ID), body, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Redis) Find(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	body, err := s.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	var session models.Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session.IsExpired(s.now()) {
		return nil, sentinel.ErrNotFound
	}
	return &session, nil
}

func (s *Redis) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
