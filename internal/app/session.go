package app

import (
	"sync"
	"time"

	"trivia-quiz/internal/domain"
	"trivia-quiz/internal/render"
)

// Session is one player's quiz state machine: Idle -> Loading -> InProgress -> Finished.
// All mutation happens under mu; out-of-state submits and ticks are no-ops.
type Session struct {
	id  string
	now func() time.Time

	mu    sync.Mutex
	state domain.SessionState
	// generation is bumped by every start so stale fetches and ticks can be recognised.
	generation   uint64
	presentation uint64
	nextID       uint64
	run          run
	stopTimer    func()
	subscribers  map[chan domain.Event]struct{}
}

// run holds the collaborators of the round currently in progress.
type run struct {
	duration  int
	presenter *render.Presenter
	onFinish  func(domain.HistoryRecord, bool) []domain.HistoryRecord
}

// finishing is produced under the lock when a round ends and completed outside it.
type finishing struct {
	generation uint64
	record     domain.HistoryRecord
	timedOut   bool
	onFinish   func(domain.HistoryRecord, bool) []domain.HistoryRecord
}

func newSession(id string) *Session {
	return newSessionWithClock(id, time.Now)
}

// newSessionWithClock allows deterministic timestamps in tests.
func newSessionWithClock(id string, now func() time.Time) *Session {
	return &Session{
		id:          id,
		now:         now,
		state:       domain.SessionState{Status: domain.StatusIdle, TimeRemaining: domain.DefaultDuration},
		subscribers: make(map[chan domain.Event]struct{}),
	}
}

// ID returns the session key.
func (s *Session) ID() string {
	return s.id
}

// prepare cancels any running round, resets the counters and enters Loading.
func (s *Session) prepare(duration int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
	s.generation++
	s.presentation = 0
	s.run = run{}
	s.state = domain.SessionState{
		Status:        domain.StatusLoading,
		TimeRemaining: duration,
	}
	s.broadcastLocked(domain.LoadingChanged{Loading: true})
	return s.generation
}

// fail returns a loading session to Idle. It reports false when a newer start owns the session.
func (s *Session) fail(generation uint64, difficulty domain.Difficulty, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || s.state.Status != domain.StatusLoading {
		return false
	}
	s.state.Status = domain.StatusIdle
	s.state.Difficulty = difficulty
	s.state.LastError = err.Error()
	s.broadcastLocked(domain.LoadingChanged{Loading: false})
	s.broadcastLocked(domain.SessionFailed{Message: "Error loading quiz. Please try again."})
	return true
}

// begin stores the fetched questions, shows the first one and starts the countdown.
func (s *Session) begin(generation uint64, difficulty domain.Difficulty, questions []domain.Question, r run, timer Timer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || s.state.Status != domain.StatusLoading {
		return false
	}
	s.run = r
	s.state.Status = domain.StatusInProgress
	s.state.Difficulty = difficulty
	s.state.Questions = append([]domain.Question(nil), questions...)
	s.state.CurrentQuestionIndex = 0
	s.state.Score = 0
	s.state.TimeRemaining = r.duration

	s.broadcastLocked(domain.LoadingChanged{Loading: false})
	s.presentLocked()
	s.stopTimer = timer.Start(func() { s.tick(generation) })
	return true
}

// dispatch applies a message from the presentation layer.
func (s *Session) dispatch(msg render.Message) {
	s.mu.Lock()
	f := s.dispatchLocked(msg)
	s.mu.Unlock()
	s.complete(f)
}

// submitAnswer selects answer on the current presentation and submits it.
func (s *Session) submitAnswer(answer string) {
	s.mu.Lock()
	id := s.presentation
	s.dispatchLocked(render.SelectionChanged{PresentationID: id, Answer: answer})
	f := s.dispatchLocked(render.Submitted{PresentationID: id})
	s.mu.Unlock()
	s.complete(f)
}

func (s *Session) dispatchLocked(msg render.Message) *finishing {
	if s.state.Status != domain.StatusInProgress {
		return nil
	}
	// Messages from an earlier presentation are inert.
	if render.PresentationOf(msg) != s.presentation {
		return nil
	}

	switch m := msg.(type) {
	case render.SelectionChanged:
		answer := m.Answer
		s.state.SelectedAnswer = &answer
		return nil
	case render.Submitted:
		return s.gradeLocked()
	}
	return nil
}

func (s *Session) gradeLocked() *finishing {
	q := s.state.Questions[s.state.CurrentQuestionIndex]
	selected := s.state.SelectedAnswer
	correct := selected != nil && *selected == render.Decode(q.CorrectAnswer)
	if correct {
		s.state.Score++
	}
	s.broadcastLocked(domain.ScoreChanged{Score: s.state.Score, Correct: correct})

	if len(s.state.Questions) > s.state.CurrentQuestionIndex {
		s.state.CurrentQuestionIndex++
	}
	// The round ends the moment the last question is answered.
	if s.state.CurrentQuestionIndex >= len(s.state.Questions) {
		return s.finishLocked(false)
	}
	s.presentLocked()
	return nil
}

// tick is the timer callback. Ticks from an earlier generation, or that arrive
// after the round has finished, are ignored.
func (s *Session) tick(generation uint64) {
	s.mu.Lock()
	var f *finishing
	if generation == s.generation {
		f = s.tickLocked()
	}
	s.mu.Unlock()
	s.complete(f)
}

// tickCurrent ticks whatever round is running.
func (s *Session) tickCurrent() {
	s.mu.Lock()
	f := s.tickLocked()
	s.mu.Unlock()
	s.complete(f)
}

func (s *Session) tickLocked() *finishing {
	if s.state.Status != domain.StatusInProgress {
		return nil
	}
	if s.state.TimeRemaining > 0 {
		s.state.TimeRemaining--
	}
	s.broadcastLocked(domain.TimerTicked{TimeRemaining: s.state.TimeRemaining})
	if s.state.TimeRemaining == 0 {
		return s.finishLocked(true)
	}
	return nil
}

func (s *Session) presentLocked() {
	s.nextID++
	s.presentation = s.nextID
	s.state.SelectedAnswer = nil

	q := s.state.Questions[s.state.CurrentQuestionIndex]
	p := s.run.presenter.Present(s.presentation, q)
	s.broadcastLocked(domain.QuestionShown{
		PresentationID: p.ID,
		Index:          s.state.CurrentQuestionIndex,
		Total:          len(s.state.Questions),
		Category:       p.Category,
		Question:       p.Question,
		Answers:        p.Answers,
	})
}

func (s *Session) finishLocked(timedOut bool) *finishing {
	s.stopTimerLocked()
	s.state.Status = domain.StatusFinished
	s.state.SelectedAnswer = nil
	s.presentation = 0

	return &finishing{
		generation: s.generation,
		timedOut:   timedOut,
		onFinish:   s.run.onFinish,
		record: domain.HistoryRecord{
			Timestamp:  s.now(),
			Difficulty: s.state.Difficulty,
			TimeSpent:  s.run.duration - s.state.TimeRemaining,
			Score:      s.state.Score,
		},
	}
}

// complete records history outside the lock, then announces the result.
func (s *Session) complete(f *finishing) {
	if f == nil {
		return
	}
	var history []domain.HistoryRecord
	if f.onFinish != nil {
		history = f.onFinish(f.record, f.timedOut)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if f.generation != s.generation {
		return
	}
	s.broadcastLocked(domain.SessionFinished{Record: f.record, TimedOut: f.timedOut, History: history})
}

func (s *Session) stopTimerLocked() {
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
}

// close stops the countdown and invalidates anything still in flight.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.generation++
	s.presentation = 0
	s.state.Status = domain.StatusIdle
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) snapshot() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.state
	state.Questions = append([]domain.Question(nil), s.state.Questions...)
	if s.state.SelectedAnswer != nil {
		answer := *s.state.SelectedAnswer
		state.SelectedAnswer = &answer
	}
	return state
}

// currentPresentation returns the id messages must carry to be accepted.
func (s *Session) currentPresentation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presentation
}

func (s *Session) subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 32)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked(ev domain.Event) {
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop its oldest event rather than block the round.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
