package postgres

import (
	"context"
	"fmt"

	"trivia-quiz/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// HistoryStore keeps recent rounds in the quiz_history table, trimmed to
// domain.HistoryCapacity rows per key on every append.
type HistoryStore struct {
	pool *pgxpool.Pool
}

func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

func (s *HistoryStore) Append(ctx context.Context, key string, record domain.HistoryRecord) error {
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO quiz_history (history_key, played_at, difficulty, time_spent, score) VALUES ($1, $2, $3, $4, $5)`,
			key, record.Timestamp, string(record.Difficulty), record.TimeSpent, record.Score,
		); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM quiz_history
			WHERE history_key = $1 AND id NOT IN (
				SELECT id FROM quiz_history WHERE history_key = $1
				ORDER BY played_at DESC, id DESC LIMIT $2
			)`, key, domain.HistoryCapacity,
		); err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
		return nil
	})
	return err
}

func (s *HistoryStore) LoadAll(ctx context.Context, key string) ([]domain.HistoryRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT played_at, difficulty, time_spent, score FROM quiz_history
		WHERE history_key = $1 ORDER BY played_at DESC, id DESC LIMIT $2`, key, domain.HistoryCapacity)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	records := []domain.HistoryRecord{}
	for rows.Next() {
		var (
			rec        domain.HistoryRecord
			difficulty string
		)
		if err := rows.Scan(&rec.Timestamp, &difficulty, &rec.TimeSpent, &rec.Score); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		rec.Difficulty = domain.Difficulty(difficulty)
		records = append(records, rec)
	}
	return records, rows.Err()
}
