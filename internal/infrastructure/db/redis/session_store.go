package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/roadbook/planner-api/internal/core/domain"
)

// SessionStore keeps sessions in Redis.
//
// Keys:
//
//	session:<refresh token>   JSON session, expires with the refresh token
//	user_sessions:<user id>   set of the user's refresh tokens
//
// The raw token is the key, so whoever holds it holds the session.
type SessionStore struct {
	client redis.Cmdable
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
}

// NewSessionStore returns a store whose keys live for ttl, normally the
// refresh token lifetime.
func NewSessionStore(client redis.Cmdable, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl, now: time.Now, newID: uuid.NewString}
}

type sessionDoc struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	CreatedAt int64  `json:"created_at"`
}

func sessionKey(token string) string  { return "session:" + token }
func userSetKey(userID string) string { return "user_sessions:" + userID }

func (s *SessionStore) Create(ctx context.Context, userID, token string) (*domain.Session, error) {
	sess := &domain.Session{
		ID:        s.newID(),
		UserID:    userID,
		Token:     token,
		CreatedAt: s.now().UTC().Truncate(time.Second),
	}
	payload, err := json.Marshal(sessionDoc{ID: sess.ID, UserID: userID, CreatedAt: sess.CreatedAt.Unix()})
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(token), string(payload), s.ttl)
		pipe.SAdd(ctx, userSetKey(userID), token)
		pipe.Expire(ctx, userSetKey(userID), s.ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) Get(ctx context.Context, token string) (*domain.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var doc sessionDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &domain.Session{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Token:     token,
		CreatedAt: time.Unix(doc.CreatedAt, 0).UTC(),
	}, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	sess, err := s.Get(ctx, token)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(token))
		pipe.SRem(ctx, userSetKey(sess.UserID), token)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteByUser revokes every session of userID.
func (s *SessionStore) DeleteByUser(ctx context.Context, userID string) error {
	tokens, err := s.client.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, t := range tokens {
		keys = append(keys, sessionKey(t))
	}
	keys = append(keys, userSetKey(userID))

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}
