package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"trivia-quiz/internal/domain"
	"github.com/redis/go-redis/v9"
)

// HistoryStore keeps each key's recent rounds in a Redis list, newest at the head:
//
//	LPUSH {key} {json}; LTRIM {key} 0 capacity-1
type HistoryStore struct {
	client *redis.Client
}

func NewHistoryStore(client *redis.Client) *HistoryStore {
	return &HistoryStore{client: client}
}

func (s *HistoryStore) Append(ctx context.Context, key string, record domain.HistoryRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, domain.HistoryCapacity-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *HistoryStore) LoadAll(ctx context.Context, key string) ([]domain.HistoryRecord, error) {
	raw, err := s.client.LRange(ctx, key, 0, domain.HistoryCapacity-1).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	records := make([]domain.HistoryRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.HistoryRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal history: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// unavailable marks connection-level failures so play continues without history.
func unavailable(err error) error {
	if err == redis.Nil {
		return nil
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}
