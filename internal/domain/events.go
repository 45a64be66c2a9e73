package domain

// Event is something the presentation layer should react to.
// The concrete types below are the only implementations.
type Event interface {
	eventName() string
}

// EventName returns the wire name of an event.
func EventName(e Event) string {
	return e.eventName()
}

// LoadingChanged brackets the question fetch.
type LoadingChanged struct {
	Loading bool `json:"loading"`
}

// QuestionShown carries a freshly rendered question. Previous presentations become inert.
type QuestionShown struct {
	PresentationID uint64   `json:"presentationId"`
	Index          int      `json:"index"`
	Total          int      `json:"total"`
	Category       string   `json:"category,omitempty"`
	Question       string   `json:"question"`
	Answers        []string `json:"answers"`
}

// TimerTicked reports the countdown after each elapsed second.
type TimerTicked struct {
	TimeRemaining int `json:"timeRemaining"`
}

// ScoreChanged reports the score after a submission.
type ScoreChanged struct {
	Score   int  `json:"score"`
	Correct bool `json:"correct"`
}

// SessionFinished is emitted once per session, on exhaustion or timeout.
type SessionFinished struct {
	Record   HistoryRecord   `json:"record"`
	TimedOut bool            `json:"timedOut"`
	History  []HistoryRecord `json:"history"`
}

// SessionFailed is emitted when a start could not load questions.
type SessionFailed struct {
	Message string `json:"message"`
}

func (LoadingChanged) eventName() string  { return "loading" }
func (QuestionShown) eventName() string   { return "question" }
func (TimerTicked) eventName() string     { return "tick" }
func (ScoreChanged) eventName() string    { return "score" }
func (SessionFinished) eventName() string { return "finished" }
func (SessionFailed) eventName() string   { return "error" }
