package domain

import (
	"strings"
	"time"
)

const (
	// DefaultDuration is the countdown length of a session in seconds.
	DefaultDuration = 30
	// QuestionsPerSession is how many questions a session asks for.
	QuestionsPerSession = 5
	// HistoryCapacity bounds the number of stored session summaries per key.
	HistoryCapacity = 5
	// HistoryKey is the application key history records are stored under.
	HistoryKey = "QUIZ-GAME"
)

// Difficulty selects the question pool.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists every supported difficulty in display order.
func Difficulties() []Difficulty {
	return []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}
}

// ParseDifficulty validates a user supplied difficulty.
func ParseDifficulty(raw string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(raw)))
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	}
	return "", ErrInvalidDifficulty
}

// Question is one multiple-choice question as fetched from the provider.
// Text fields may still contain HTML entities.
type Question struct {
	Category         string   `json:"category,omitempty"`
	Text             string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

// Answers returns the answer set with the correct answer first.
func (q Question) Answers() []string {
	answers := make([]string, 0, len(q.IncorrectAnswers)+1)
	answers = append(answers, q.CorrectAnswer)
	return append(answers, q.IncorrectAnswers...)
}

// Status is the lifecycle position of a session.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusInProgress
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusInProgress:
		return "in_progress"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// SessionState is a snapshot of one quiz session.
type SessionState struct {
	Status               Status     `json:"status"`
	Difficulty           Difficulty `json:"difficulty"`
	Questions            []Question `json:"questions"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	Score                int        `json:"score"`
	TimeRemaining        int        `json:"timeRemaining"`
	SelectedAnswer       *string    `json:"selectedAnswer,omitempty"`
	LastError            string     `json:"lastError,omitempty"`
}

// HistoryKeyFor scopes HistoryKey to one player. An empty player uses the bare key.
func HistoryKeyFor(player string) string {
	if player == "" {
		return HistoryKey
	}
	return HistoryKey + ":" + player
}

// HistoryRecord summarizes a finished session.
type HistoryRecord struct {
	Timestamp  time.Time  `json:"dateTime"`
	Difficulty Difficulty `json:"difficulty"`
	TimeSpent  int        `json:"timeSpent"`
	Score      int        `json:"score"`
}

// PrependHistory puts record in front of records and drops everything beyond
// HistoryCapacity. The input slice is not modified.
func PrependHistory(records []HistoryRecord, record HistoryRecord) []HistoryRecord {
	out := make([]HistoryRecord, 0, HistoryCapacity)
	out = append(out, record)
	for _, r := range records {
		if len(out) == HistoryCapacity {
			break
		}
		out = append(out, r)
	}
	return out
}
