package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"trivia-quiz/internal/app"
	"trivia-quiz/internal/domain"
	"trivia-quiz/internal/infra/memory"
	"trivia-quiz/internal/render"
)

func TestStartPresentsFirstQuestion(t *testing.T) {
	for _, d := range domain.Difficulties() {
		f := newFixture(t)
		state, err := f.service.Start(context.Background(), "alice", d)
		if err != nil {
			t.Fatalf("start %s: %v", d, err)
		}
		if len(state.Questions) != domain.QuestionsPerSession || state.CurrentQuestionIndex != 0 {
			t.Fatalf("expected 5 questions at index 0, got %d at %d", len(state.Questions), state.CurrentQuestionIndex)
		}
		if state.Status != domain.StatusInProgress || state.TimeRemaining != domain.DefaultDuration || state.Score != 0 {
			t.Fatalf("unexpected state after start: %+v", state)
		}
		if f.timer.Running() != 1 {
			t.Fatalf("expected one running countdown, got %d", f.timer.Running())
		}
	}
}

func TestAllCorrectWithTenSecondsElapsed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.service.Start(ctx, "alice", domain.DifficultyEasy); err != nil {
		t.Fatalf("start: %v", err)
	}

	f.timer.Advance(10)
	for i := 0; i < domain.QuestionsPerSession; i++ {
		if err := f.service.SubmitAnswer("alice", fmt.Sprintf("right %d", i)); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	state, _ := f.service.State("alice")
	if state.Status != domain.StatusFinished || state.Score != 5 {
		t.Fatalf("expected finished with score 5, got %+v", state)
	}
	if f.timer.Running() != 0 {
		t.Fatalf("expected countdown stopped")
	}
	history, _ := f.service.History(ctx, "alice")
	if len(history) != 1 {
		t.Fatalf("expected one history record, got %d", len(history))
	}
	if got := history[0]; got.Score != 5 || got.TimeSpent != 10 || got.Difficulty != domain.DifficultyEasy || !got.Timestamp.Equal(fixedNow) {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestThirtyTicksTimeOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.service.Start(ctx, "alice", domain.DifficultyMedium); err != nil {
		t.Fatalf("start: %v", err)
	}

	f.timer.Advance(29)
	if state, _ := f.service.State("alice"); state.Status != domain.StatusInProgress || state.TimeRemaining != 1 {
		t.Fatalf("expected 1s left in progress, got %+v", state)
	}
	f.timer.Advance(1)

	state, _ := f.service.State("alice")
	if state.Status != domain.StatusFinished || state.TimeRemaining != 0 || state.Score != 0 {
		t.Fatalf("expected timeout, got %+v", state)
	}
	history, _ := f.service.History(ctx, "alice")
	if len(history) != 1 || history[0].TimeSpent != 30 || history[0].Score != 0 {
		t.Fatalf("expected timeSpent 30 score 0, got %+v", history)
	}

	// Late ticks and submits are swallowed.
	_ = f.service.Tick("alice")
	_ = f.service.SubmitAnswer("alice", "right 0")
	after, _ := f.service.State("alice")
	if after.TimeRemaining != 0 || after.Score != 0 || after.Status != domain.StatusFinished {
		t.Fatalf("expected no change after finish, got %+v", after)
	}
	if history, _ := f.service.History(ctx, "alice"); len(history) != 1 {
		t.Fatalf("expected history written once, got %d", len(history))
	}
}

func TestScoreCountsCorrectSubmissions(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.Start(context.Background(), "alice", domain.DifficultyHard); err != nil {
		t.Fatalf("start: %v", err)
	}

	answers := []string{"right 0", "wrong", "right 2", "", "right 4"}
	lastScore := 0
	for i, answer := range answers {
		_ = f.service.SubmitAnswer("alice", answer)
		state, _ := f.service.State("alice")
		if state.Score < lastScore {
			t.Fatalf("score decreased from %d to %d", lastScore, state.Score)
		}
		if state.CurrentQuestionIndex != i+1 {
			t.Fatalf("expected index %d, got %d", i+1, state.CurrentQuestionIndex)
		}
		if state.Score > state.CurrentQuestionIndex || state.CurrentQuestionIndex > len(state.Questions) {
			t.Fatalf("invariant broken: %+v", state)
		}
		lastScore = state.Score
	}
	if lastScore != 3 {
		t.Fatalf("expected 3 correct, got %d", lastScore)
	}
}

func TestProviderFailureLeavesSessionIdle(t *testing.T) {
	f := newFixture(t)
	f.source.err = &domain.FetchError{Kind: domain.FetchProvider, Code: domain.CodeNoResults}

	state, err := f.service.Start(context.Background(), "alice", domain.DifficultyEasy)
	if !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if state.Status != domain.StatusIdle || state.LastError == "" {
		t.Fatalf("expected idle with error, got %+v", state)
	}
	if f.timer.Running() != 0 {
		t.Fatalf("expected no countdown after failed start")
	}
	if history, _ := f.service.History(context.Background(), "alice"); len(history) != 0 {
		t.Fatalf("expected no history, got %+v", history)
	}
}

func TestTransportFailureIsDistinct(t *testing.T) {
	f := newFixture(t)
	f.source.err = &domain.FetchError{Kind: domain.FetchTransport, Err: errors.New("connection refused")}

	_, err := f.service.Start(context.Background(), "alice", domain.DifficultyEasy)
	if !errors.Is(err, domain.ErrTransport) || errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected transport error only, got %v", err)
	}
}

func TestEmptyResultIsProviderError(t *testing.T) {
	f := newFixture(t)
	f.source.empty = true
	if _, err := f.service.Start(context.Background(), "alice", domain.DifficultyEasy); !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestInvalidDifficultyRejected(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.Start(context.Background(), "alice", domain.Difficulty("extreme")); !errors.Is(err, domain.ErrInvalidDifficulty) {
		t.Fatalf("expected invalid difficulty, got %v", err)
	}
}

func TestStalePresentationIsInert(t *testing.T) {
	f := newFixture(t)
	events, cancel, _ := f.service.Subscribe(context.Background(), "alice")
	defer cancel()

	if _, err := f.service.Start(context.Background(), "alice", domain.DifficultyEasy); err != nil {
		t.Fatalf("start: %v", err)
	}
	first := nextEvent[domain.QuestionShown](t, events)
	if first.Index != 0 || first.Total != 5 || first.Answers[0] != "right 0" {
		t.Fatalf("unexpected first question %+v", first)
	}

	_ = f.service.Dispatch("alice", render.SelectionChanged{PresentationID: first.PresentationID, Answer: "right 0"})
	_ = f.service.Dispatch("alice", render.Submitted{PresentationID: first.PresentationID})
	second := nextEvent[domain.QuestionShown](t, events)
	if second.PresentationID == first.PresentationID || second.Index != 1 {
		t.Fatalf("expected a new presentation, got %+v", second)
	}

	// The old form is inert: neither selecting nor submitting on it counts.
	_ = f.service.Dispatch("alice", render.SelectionChanged{PresentationID: first.PresentationID, Answer: "right 1"})
	_ = f.service.Dispatch("alice", render.Submitted{PresentationID: first.PresentationID})
	state, _ := f.service.State("alice")
	if state.CurrentQuestionIndex != 1 || state.Score != 1 || state.SelectedAnswer != nil {
		t.Fatalf("stale messages changed state: %+v", state)
	}

	current, _ := f.service.CurrentPresentation("alice")
	if current != second.PresentationID {
		t.Fatalf("expected current presentation %d, got %d", second.PresentationID, current)
	}
}

func TestSubmitWithoutSelectionIsWrongButAdvances(t *testing.T) {
	f := newFixture(t)
	events, cancel, _ := f.service.Subscribe(context.Background(), "alice")
	defer cancel()
	_, _ = f.service.Start(context.Background(), "alice", domain.DifficultyEasy)
	q := nextEvent[domain.QuestionShown](t, events)

	_ = f.service.Dispatch("alice", render.Submitted{PresentationID: q.PresentationID})
	score := nextEvent[domain.ScoreChanged](t, events)
	if score.Correct || score.Score != 0 {
		t.Fatalf("expected wrong answer, got %+v", score)
	}
	if state, _ := f.service.State("alice"); state.CurrentQuestionIndex != 1 {
		t.Fatalf("expected to advance, got index %d", state.CurrentQuestionIndex)
	}
}

func TestDecodedAnswerMatches(t *testing.T) {
	f := newFixture(t)
	f.source.questions = questionSet(5)
	f.source.questions[0].CorrectAnswer = "Rock &amp; Roll"
	_, _ = f.service.Start(context.Background(), "alice", domain.DifficultyEasy)

	_ = f.service.SubmitAnswer("alice", "Rock & Roll")
	if state, _ := f.service.State("alice"); state.Score != 1 {
		t.Fatalf("expected decoded answer to score, got %d", state.Score)
	}

	// Comparison is case-sensitive.
	_ = f.service.SubmitAnswer("alice", "RIGHT 1")
	if state, _ := f.service.State("alice"); state.Score != 1 {
		t.Fatalf("expected case-sensitive comparison, got %d", state.Score)
	}
}

func TestSubmitOutsideSessionIsRejectedOrIgnored(t *testing.T) {
	f := newFixture(t)
	if err := f.service.SubmitAnswer("nobody", "x"); err != domain.ErrSessionNotFound {
		t.Fatalf("expected session error, got %v", err)
	}
	if err := f.service.Tick("nobody"); err != domain.ErrSessionNotFound {
		t.Fatalf("expected session error, got %v", err)
	}

	_, cancel, _ := f.service.Subscribe(context.Background(), "alice")
	defer cancel()
	if err := f.service.SubmitAnswer("alice", "x"); err != nil {
		t.Fatalf("idle submit should be a silent no-op, got %v", err)
	}
	if err := f.service.Tick("alice"); err != nil {
		t.Fatalf("idle tick should be a silent no-op, got %v", err)
	}
	if state, _ := f.service.State("alice"); state.Status != domain.StatusIdle || state.TimeRemaining != domain.DefaultDuration {
		t.Fatalf("expected untouched idle session, got %+v", state)
	}
}

func TestRestartCancelsRunningRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.service.Start(ctx, "alice", domain.DifficultyEasy)
	f.timer.Advance(5)
	_ = f.service.SubmitAnswer("alice", "right 0")

	state, err := f.service.Start(ctx, "alice", domain.DifficultyHard)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if state.Score != 0 || state.CurrentQuestionIndex != 0 || state.TimeRemaining != 30 || state.Difficulty != domain.DifficultyHard {
		t.Fatalf("expected fresh round, got %+v", state)
	}
	if f.timer.Running() != 1 {
		t.Fatalf("expected exactly one countdown, got %d", f.timer.Running())
	}
	if history, _ := f.service.History(ctx, "alice"); len(history) != 0 {
		t.Fatalf("abandoned round must not be recorded, got %+v", history)
	}
}

func TestTickQueuedBeforeRestartIsIgnored(t *testing.T) {
	timer := &leakyTimer{}
	f := newFixture(t, app.WithTimer(timer))
	ctx := context.Background()

	_, _ = f.service.Start(ctx, "alice", domain.DifficultyEasy)
	_, _ = f.service.Start(ctx, "alice", domain.DifficultyEasy)

	timer.fire(0) // the first round's countdown, stopped but already queued
	if state, _ := f.service.State("alice"); state.TimeRemaining != 30 {
		t.Fatalf("stale tick leaked into new round: %d", state.TimeRemaining)
	}
	timer.fire(1)
	if state, _ := f.service.State("alice"); state.TimeRemaining != 29 {
		t.Fatalf("expected current tick to count, got %d", state.TimeRemaining)
	}
	if timer.stops[0] != 1 {
		t.Fatalf("expected first countdown stopped exactly once, got %d", timer.stops[0])
	}
}

func TestFinishedEventCarriesHistory(t *testing.T) {
	f := newFixture(t)
	events, cancel, _ := f.service.Subscribe(context.Background(), "alice")
	defer cancel()

	_, _ = f.service.Start(context.Background(), "alice", domain.DifficultyEasy)
	if ev := nextEvent[domain.LoadingChanged](t, events); !ev.Loading {
		t.Fatalf("expected loading start, got %+v", ev)
	}
	if ev := nextEvent[domain.LoadingChanged](t, events); ev.Loading {
		t.Fatalf("expected loading end, got %+v", ev)
	}
	for i := 0; i < 5; i++ {
		_ = f.service.SubmitAnswer("alice", fmt.Sprintf("right %d", i))
	}
	finished := nextEvent[domain.SessionFinished](t, events)
	if finished.TimedOut || finished.Record.Score != 5 || len(finished.History) != 1 {
		t.Fatalf("unexpected finished event %+v", finished)
	}
}

func TestStorageUnavailableDoesNotBlockPlay(t *testing.T) {
	f := newFixtureWithHistory(t, memory.UnavailableHistory{})
	events, cancel, _ := f.service.Subscribe(context.Background(), "alice")
	defer cancel()

	_, _ = f.service.Start(context.Background(), "alice", domain.DifficultyEasy)
	f.timer.Advance(30)

	finished := nextEvent[domain.SessionFinished](t, events)
	if !finished.TimedOut || finished.History != nil || finished.Record.TimeSpent != 30 {
		t.Fatalf("unexpected finished event %+v", finished)
	}
}

func TestFailedStartEmitsError(t *testing.T) {
	f := newFixture(t)
	f.source.err = &domain.FetchError{Kind: domain.FetchTransport, Code: 503}
	events, cancel, _ := f.service.Subscribe(context.Background(), "alice")
	defer cancel()

	_, _ = f.service.Start(context.Background(), "alice", domain.DifficultyEasy)
	if ev := nextEvent[domain.SessionFailed](t, events); ev.Message == "" {
		t.Fatalf("expected a user-facing message")
	}
}

func TestCloseStopsCountdown(t *testing.T) {
	f := newFixture(t)
	events, _, _ := f.service.Subscribe(context.Background(), "alice")
	_, _ = f.service.Start(context.Background(), "alice", domain.DifficultyEasy)

	f.service.Close("alice")
	if f.timer.Running() != 0 {
		t.Fatalf("expected countdown stopped on close")
	}
	if _, err := f.service.State("alice"); err != domain.ErrSessionNotFound {
		t.Fatalf("expected session gone, got %v", err)
	}
	for range events {
		// drained until the channel is closed
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	f := newFixture(t)
	_, _ = f.service.Start(context.Background(), "alice", domain.DifficultyEasy)
	_, _ = f.service.Start(context.Background(), "bob", domain.DifficultyHard)

	_ = f.service.SubmitAnswer("alice", "right 0")
	alice, _ := f.service.State("alice")
	bob, _ := f.service.State("bob")
	if alice.Score != 1 || bob.Score != 0 || bob.CurrentQuestionIndex != 0 {
		t.Fatalf("sessions leaked into each other: alice=%+v bob=%+v", alice, bob)
	}
}

var fixedNow = time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)

type fixture struct {
	service *app.QuizService
	source  *stubSource
	timer   *app.ManualTimer
}

func newFixture(t *testing.T, opts ...app.Option) fixture {
	return newFixtureWithHistory(t, memory.NewHistoryStore(), opts...)
}

func newFixtureWithHistory(t *testing.T, history app.HistoryStore, opts ...app.Option) fixture {
	t.Helper()
	source := &stubSource{questions: questionSet(domain.QuestionsPerSession)}
	timer := app.NewManualTimer()
	base := []app.Option{
		app.WithTimer(timer),
		app.WithPresenter(render.NewPresenterWithShuffle(render.KeepOrder)),
	}
	service := app.NewQuizService(clockedStore{memory.NewSessionStore()}, source, history, append(base, opts...)...)
	return fixture{service: service, source: source, timer: timer}
}

// clockedStore seeds sessions with a fixed clock.
type clockedStore struct {
	*memory.SessionStore
}

func (s clockedStore) GetOrCreate(id string) *app.Session {
	if session, ok := s.SessionStore.Get(id); ok {
		return session
	}
	return s.SessionStore.Put(app.NewSessionWithClock(id, func() time.Time { return fixedNow }))
}

type stubSource struct {
	questions []domain.Question
	err       error
	empty     bool
}

func (s *stubSource) Fetch(context.Context, domain.Difficulty) ([]domain.Question, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.empty {
		return nil, nil
	}
	return s.questions, nil
}

func questionSet(n int) []domain.Question {
	questions := make([]domain.Question, n)
	for i := range questions {
		questions[i] = domain.Question{
			Text:             fmt.Sprintf("Question %d?", i),
			CorrectAnswer:    fmt.Sprintf("right %d", i),
			IncorrectAnswers: []string{"wrong", "also wrong", "still wrong"},
		}
	}
	return questions
}

// leakyTimer keeps every tick func reachable after stop, like a tick already queued.
type leakyTimer struct {
	mu    sync.Mutex
	ticks []func()
	stops []int
}

func (l *leakyTimer) Start(tick func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := len(l.ticks)
	l.ticks = append(l.ticks, tick)
	l.stops = append(l.stops, 0)
	return func() {
		l.mu.Lock()
		l.stops[idx]++
		l.mu.Unlock()
	}
}

func (l *leakyTimer) fire(i int) {
	l.mu.Lock()
	tick := l.ticks[i]
	l.mu.Unlock()
	tick()
}

func nextEvent[T domain.Event](t *testing.T, events <-chan domain.Event) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event channel closed")
			}
			if want, ok := ev.(T); ok {
				return want
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
		}
	}
}
