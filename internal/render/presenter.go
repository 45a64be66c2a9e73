// Package render turns fetched questions into presentations and defines the
// messages a presentation sends back to the quiz session.
package render

import (
	"html"
	"math/rand"
	"sync"
	"time"

	"trivia-quiz/internal/domain"
)

// Presentation is one question as shown to the player.
type Presentation struct {
	ID       uint64
	Category string
	Question string
	Answers  []string
}

// ShuffleFunc reorders answers in place.
type ShuffleFunc func(answers []string)

// Presenter decodes and shuffles questions for display.
type Presenter struct {
	mu      sync.Mutex
	shuffle ShuffleFunc
}

// NewPresenter returns a presenter with a time-seeded Fisher-Yates shuffle.
func NewPresenter() *Presenter {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	return NewPresenterWithShuffle(func(answers []string) {
		Shuffle(rnd, answers)
	})
}

// NewPresenterWithShuffle is used by tests that need a known answer order.
func NewPresenterWithShuffle(shuffle ShuffleFunc) *Presenter {
	return &Presenter{shuffle: shuffle}
}

// Present builds the presentation for q. Every answer is decoded before the
// shuffle so the strings a player selects are the strings compared on submit.
func (p *Presenter) Present(id uint64, q domain.Question) Presentation {
	answers := q.Answers()
	for i := range answers {
		answers[i] = Decode(answers[i])
	}

	p.mu.Lock()
	p.shuffle(answers)
	p.mu.Unlock()

	return Presentation{
		ID:       id,
		Category: Decode(q.Category),
		Question: Decode(q.Text),
		Answers:  answers,
	}
}

// Decode resolves named and numeric HTML entities.
func Decode(s string) string {
	return html.UnescapeString(s)
}

// Shuffle is an in-place Fisher-Yates shuffle.
func Shuffle(rnd *rand.Rand, items []string) {
	for i := len(items) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// KeepOrder is a ShuffleFunc that leaves answers as given (correct first).
func KeepOrder([]string) {}
