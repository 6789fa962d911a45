package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

const keyPrefix = "demakai:history:"

// Open parses a redis:// URL, falling back to a plain host:port address.
func Open(ctx context.Context, url string) (*goredis.Client, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		opt = &goredis.Options{Addr: url}
	}
	client := goredis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// HistoryStore keeps each user's history in a capped list that expires after idleTTL.
type HistoryStore struct {
	client  goredis.UniversalClient
	idleTTL time.Duration
}

func NewHistoryStore(client goredis.UniversalClient, idleTTL time.Duration) *HistoryStore {
	if idleTTL <= 0 {
		idleTTL = 24 * time.Hour
	}
	return &HistoryStore{client: client, idleTTL: idleTTL}
}

func (s *HistoryStore) Recent(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := s.client.LRange(ctx, keyPrefix+userID, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis recent history: %w", err)
	}
	out := make([]domain.HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var e domain.HistoryEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// AppendTurn pushes, trims and refreshes the TTL in one MULTI block.
func (s *HistoryStore) AppendTurn(ctx context.Context, userID string, entries []domain.HistoryEntry, max int) error {
	if len(entries) == 0 {
		return nil
	}
	values := make([]any, 0, len(entries))
	for _, e := range entries {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode history entry: %w", err)
		}
		values = append(values, raw)
	}

	key := keyPrefix + userID
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if max > 0 {
			pipe.LTrim(ctx, key, int64(-max), -1)
		}
		pipe.Expire(ctx, key, s.idleTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append history: %w", err)
	}
	return nil
}

func (s *HistoryStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("redis clear history: %w", err)
	}
	return nil
}

// ClearIdle is a no-op: every history key expires idleTTL after its last append.
func (s *HistoryStore) ClearIdle(context.Context, time.Time) (int64, error) {
	return 0, nil
}
