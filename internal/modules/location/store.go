// README: Recent-location store backed by Redis lists.
package location

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"geotag/internal/types"
)

const (
	recentKeyPrefix = "locations:recent:%s"
	recentTTL       = 30 * 24 * time.Hour
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// PushRecent prepends loc to the owner's history and trims it to limit entries.
func (s *Store) PushRecent(ctx context.Context, owner types.ID, loc Location, limit int) error {
	b, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	key := recentKey(owner)
	pipe := s.redis.TxPipeline()
	pipe.LRem(ctx, key, 0, b)
	pipe.LPush(ctx, key, b)
	pipe.LTrim(ctx, key, 0, int64(limit-1))
	pipe.Expire(ctx, key, recentTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) Recent(ctx context.Context, owner types.ID, limit int) ([]Location, error) {
	raw, err := s.redis.LRange(ctx, recentKey(owner), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Location, 0, len(raw))
	for _, r := range raw {
		var l Location
		if err := json.Unmarshal([]byte(r), &l); err != nil {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func recentKey(owner types.ID) string {
	return fmt.Sprintf(recentKeyPrefix, string(owner))
}
