package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInvalidID is returned for blank session identifiers.
var ErrInvalidID = errors.New("session id is required")

// Store persists one JSON document per session id. Reads extend the TTL so
// active sessions do not expire mid-sale.
type Store struct {
	R      redis.Cmdable
	Prefix string
	TTL    time.Duration
}

func (s Store) key(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrInvalidID
	}
	return s.Prefix + id, nil
}

// Load decodes the document for id into dst and reports whether it existed.
func (s Store) Load(ctx context.Context, id string, dst any) (bool, error) {
	if s.R == nil {
		return false, errors.New("session: redis client not configured")
	}
	key, err := s.key(id)
	if err != nil {
		return false, err
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	if s.TTL > 0 {
		_ = s.R.Expire(ctx, key, s.TTL).Err()
	}
	return true, nil
}

// Save stores v as the document for id.
func (s Store) Save(ctx context.Context, id string, v any) error {
	if s.R == nil {
		return errors.New("session: redis client not configured")
	}
	key, err := s.key(id)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.R.Set(ctx, key, data, s.TTL).Err()
}

// Delete removes the document for id.
func (s Store) Delete(ctx context.Context, id string) error {
	if s.R == nil {
		return errors.New("session: redis client not configured")
	}
	key, err := s.key(id)
	if err != nil {
		return err
	}
	return s.R.Del(ctx, key).Err()
}
