package cache

import (
	"context"
	"encoding/json"
	"fungily.io/fungily-score/internal/walletconnect"
	"fungily.io/fungily-score/pkg/errors"
	"github.com/go-redis/redis/v8"
	"time"
)

const sessionKeyPrefix = "walletconnect:session:"

// SessionStorage keeps bridge pairing handles in Redis so a restarted
// process can restore them.
type SessionStorage struct {
	client *redis.Client
	ttl    time.Duration
}

var _ walletconnect.Storage = (*SessionStorage)(nil)

// NewSessionStorage stores sessions without expiry when ttl is 0.
func NewSessionStorage(client *redis.Client, ttl time.Duration) *SessionStorage {
	return &SessionStorage{client: client, ttl: ttl}
}

func (s *SessionStorage) Load(ctx context.Context, key string) (*walletconnect.Session, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, walletconnect.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "load wallet connect session")
	}
	var session walletconnect.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, errors.Wrap(err, "decode wallet connect session")
	}
	return &session, nil
}

func (s *SessionStorage) Save(ctx context.Context, key string, session *walletconnect.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "encode wallet connect session")
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+key, raw, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "save wallet connect session")
	}
	return nil
}

func (s *SessionStorage) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+key).Err(); err != nil {
		return errors.Wrap(err, "remove wallet connect session")
	}
	return nil
}
