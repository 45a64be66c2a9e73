package app

import (
	"context"
	"errors"
	"time"

	"trivia-quiz/internal/domain"
	"trivia-quiz/internal/render"

	"go.uber.org/zap"
)

// SessionRepository abstracts where quiz sessions live (in-memory, Redis-marked, etc).
type SessionRepository interface {
	GetOrCreate(sessionID string) *Session
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// QuestionSource fetches the questions for one round.
type QuestionSource interface {
	Fetch(ctx context.Context, difficulty domain.Difficulty) ([]domain.Question, error)
}

// HistoryStore keeps the most recent session summaries per key, newest first.
type HistoryStore interface {
	Append(ctx context.Context, key string, record domain.HistoryRecord) error
	LoadAll(ctx context.Context, key string) ([]domain.HistoryRecord, error)
}

// Recorder receives session lifecycle counts (prometheus in production).
type Recorder interface {
	SessionStarted(difficulty domain.Difficulty)
	FetchFailed(difficulty domain.Difficulty, err error)
	SessionFinished(record domain.HistoryRecord, timedOut bool)
}

// QuizService contains the quiz use cases.
type QuizService struct {
	sessions  SessionRepository
	source    QuestionSource
	history   HistoryStore
	presenter *render.Presenter
	timer     Timer
	recorder  Recorder
	log       *zap.Logger
	duration  int

	historyTimeout time.Duration
}

// Option customises a QuizService.
type Option func(*QuizService)

func WithLogger(log *zap.Logger) Option {
	return func(s *QuizService) { s.log = log }
}

func WithPresenter(p *render.Presenter) Option {
	return func(s *QuizService) { s.presenter = p }
}

func WithTimer(t Timer) Option {
	return func(s *QuizService) { s.timer = t }
}

func WithRecorder(r Recorder) Option {
	return func(s *QuizService) { s.recorder = r }
}

// WithDuration sets the countdown length in seconds; values outside (0, DefaultDuration] are ignored.
func WithDuration(seconds int) Option {
	return func(s *QuizService) {
		if seconds > 0 && seconds <= domain.DefaultDuration {
			s.duration = seconds
		}
	}
}

func NewQuizService(store SessionRepository, source QuestionSource, history HistoryStore, opts ...Option) *QuizService {
	s := &QuizService{
		sessions:       store,
		source:         source,
		history:        history,
		presenter:      render.NewPresenter(),
		timer:          NewSecondTimer(),
		recorder:       nopRecorder{},
		log:            zap.NewNop(),
		duration:       domain.DefaultDuration,
		historyTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.history == nil {
		s.history = unavailableHistory{}
	}
	return s
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id string) *Session {
	return newSession(id)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(id string, now func() time.Time) *Session {
	return newSessionWithClock(id, now)
}

// Start begins a new round on sessionID. Any round in progress is cancelled
// first. When the questions cannot be loaded the session is left Idle and the
// error matches domain.ErrTransport or domain.ErrProvider.
func (s *QuizService) Start(ctx context.Context, sessionID string, difficulty domain.Difficulty) (domain.SessionState, error) {
	if _, err := domain.ParseDifficulty(string(difficulty)); err != nil {
		return domain.SessionState{}, err
	}
	log := s.log.With(zap.String("session", sessionID), zap.String("difficulty", string(difficulty)))

	session := s.sessions.GetOrCreate(sessionID)
	generation := session.prepare(s.duration)

	log.Debug("fetching questions")
	questions, err := s.source.Fetch(ctx, difficulty)
	if err == nil && len(questions) == 0 {
		err = &domain.FetchError{Kind: domain.FetchProvider, Code: domain.CodeNoResults}
	}
	if err != nil {
		log.Warn("could not load quiz", zap.Error(err))
		s.recorder.FetchFailed(difficulty, err)
		session.fail(generation, difficulty, err)
		return session.snapshot(), err
	}

	r := run{
		duration:  s.duration,
		presenter: s.presenter,
		onFinish: func(record domain.HistoryRecord, timedOut bool) []domain.HistoryRecord {
			return s.finish(sessionID, record, timedOut)
		},
	}
	if !session.begin(generation, difficulty, questions, r, s.timer) {
		log.Debug("start superseded by a newer start")
		return session.snapshot(), domain.ErrSuperseded
	}

	s.recorder.SessionStarted(difficulty)
	log.Info("quiz started", zap.Int("questions", len(questions)))
	return session.snapshot(), nil
}

// Dispatch delivers a presentation message to the session.
func (s *QuizService) Dispatch(sessionID string, msg render.Message) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.dispatch(msg)
	return nil
}

// SubmitAnswer selects and submits answer for the question currently shown.
func (s *QuizService) SubmitAnswer(sessionID, answer string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.submitAnswer(answer)
	return nil
}

// Tick advances the countdown of sessionID by one second. Callers that drive
// their own clock use this instead of the service timer.
func (s *QuizService) Tick(sessionID string) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.tickCurrent()
	return nil
}

// State returns a snapshot of the session.
func (s *QuizService) State(sessionID string) (domain.SessionState, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.SessionState{}, domain.ErrSessionNotFound
	}
	return session.snapshot(), nil
}

// CurrentPresentation returns the presentation id the session accepts messages for, 0 if none.
func (s *QuizService) CurrentPresentation(sessionID string) (uint64, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return 0, domain.ErrSessionNotFound
	}
	return session.currentPresentation(), nil
}

// Subscribe returns a channel of session events, creating the session if needed.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan domain.Event, func(), error) {
	session := s.sessions.GetOrCreate(sessionID)
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// History returns the recent rounds recorded for a player.
func (s *QuizService) History(ctx context.Context, sessionID string) ([]domain.HistoryRecord, error) {
	return s.history.LoadAll(ctx, domain.HistoryKeyFor(sessionID))
}

// Close stops the session's countdown and forgets it.
func (s *QuizService) Close(sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.close()
	s.sessions.Delete(sessionID)
}

// finish persists a round summary and returns the refreshed history.
// Storage failures never block play.
func (s *QuizService) finish(sessionID string, record domain.HistoryRecord, timedOut bool) []domain.HistoryRecord {
	log := s.log.With(zap.String("session", sessionID))
	log.Info("quiz finished",
		zap.Int("score", record.Score),
		zap.Int("time_spent", record.TimeSpent),
		zap.String("difficulty", string(record.Difficulty)),
		zap.Bool("timed_out", timedOut))
	s.recorder.SessionFinished(record, timedOut)

	ctx, cancel := context.WithTimeout(context.Background(), s.historyTimeout)
	defer cancel()

	key := domain.HistoryKeyFor(sessionID)
	if err := s.history.Append(ctx, key, record); err != nil {
		if errors.Is(err, domain.ErrStorageUnavailable) {
			log.Debug("history disabled", zap.Error(err))
		} else {
			log.Warn("record history", zap.Error(err))
		}
		return nil
	}
	history, err := s.history.LoadAll(ctx, key)
	if err != nil {
		log.Warn("load history", zap.Error(err))
		return nil
	}
	return history
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted(domain.Difficulty)           {}
func (nopRecorder) FetchFailed(domain.Difficulty, error)       {}
func (nopRecorder) SessionFinished(domain.HistoryRecord, bool) {}

type unavailableHistory struct{}

func (unavailableHistory) Append(context.Context, string, domain.HistoryRecord) error {
	return domain.ErrStorageUnavailable
}

func (unavailableHistory) LoadAll(context.Context, string) ([]domain.HistoryRecord, error) {
	return nil, domain.ErrStorageUnavailable
}
