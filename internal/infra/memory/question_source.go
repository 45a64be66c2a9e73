package memory

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"

	"trivia-quiz/internal/domain"
)

//go:embed questions.json
var offlineBankJSON []byte

// StaticSource serves questions from an in-memory bank keyed by difficulty
// (useful for tests, demos and offline play).
type StaticSource struct {
	bank   map[domain.Difficulty][]domain.Question
	amount int

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewStaticSource returns the first amount questions of each pool in order.
func NewStaticSource(bank map[domain.Difficulty][]domain.Question, amount int) *StaticSource {
	if amount <= 0 {
		amount = domain.QuestionsPerSession
	}
	return &StaticSource{bank: bank, amount: amount}
}

// NewOfflineSource serves a random sample of the embedded question bank.
func NewOfflineSource(rnd *rand.Rand, amount int) (*StaticSource, error) {
	var bank map[domain.Difficulty][]domain.Question
	if err := json.Unmarshal(offlineBankJSON, &bank); err != nil {
		return nil, fmt.Errorf("decode offline questions: %w", err)
	}
	src := NewStaticSource(bank, amount)
	src.rnd = rnd
	return src, nil
}

func (s *StaticSource) Fetch(ctx context.Context, difficulty domain.Difficulty) ([]domain.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchTransport, Err: err}
	}
	pool := s.bank[difficulty]
	if len(pool) < s.amount {
		return nil, &domain.FetchError{Kind: domain.FetchProvider, Code: domain.CodeNoResults}
	}

	out := append([]domain.Question(nil), pool...)
	if s.rnd != nil {
		s.mu.Lock()
		s.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		s.mu.Unlock()
	}
	return out[:s.amount], nil
}
