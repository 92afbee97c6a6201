package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"mission-quiz-service/internal/domain"
	"mission-quiz-service/internal/engine"
)

// AttemptRepository abstracts where running attempts live (in-memory, Redis-marked, etc).
type AttemptRepository interface {
	Add(session *Session)
	Get(attemptID string) (*Session, bool)
	Delete(attemptID string)
}

// ContentRepository loads mission content (from cache/backing store).
type ContentRepository interface {
	GetContent(ctx context.Context, missionID string) (domain.MissionContent, error)
}

// MissionService hosts mission attempts for a presentation layer.
type MissionService struct {
	attempts AttemptRepository
	contents ContentRepository
	fallback ContentRepository
	sink     engine.ResultSink
	newClock func() engine.Clock
	newRand  func() *rand.Rand
	now      func() time.Time
	log      zerolog.Logger
}

// Option configures a MissionService.
type Option func(*MissionService)

// WithFallbackContent sets the alternate content source used when the primary one is
// unavailable or too small for the mission rules.
func WithFallbackContent(repo ContentRepository) Option {
	return func(s *MissionService) { s.fallback = repo }
}

// WithClockFactory replaces the wall clock given to each attempt; used in tests.
func WithClockFactory(fn func() engine.Clock) Option {
	return func(s *MissionService) { s.newClock = fn }
}

func WithRandFactory(fn func() *rand.Rand) Option {
	return func(s *MissionService) { s.newRand = fn }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *MissionService) { s.log = log }
}

func NewMissionService(attempts AttemptRepository, contents ContentRepository, sink engine.ResultSink, opts ...Option) *MissionService {
	s := &MissionService{
		attempts: attempts,
		contents: contents,
		sink:     sink,
		newClock: func() engine.Clock { return engine.NewTickerClock() },
		newRand:  func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) },
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartAttempt loads the mission content and creates an attempt in INTRO.
func (s *MissionService) StartAttempt(ctx context.Context, missionID, playerID string) (domain.Snapshot, error) {
	content, err := s.contents.GetContent(ctx, missionID)
	var session *Session
	if err == nil {
		session, err = s.build(content, playerID)
	}
	if err != nil {
		if s.fallback == nil || !fallbackWorthy(err) {
			return domain.Snapshot{}, err
		}
		s.log.Warn().Err(err).Str("mission", missionID).Msg("primary content unusable, trying fallback")
		content, err = s.fallback.GetContent(ctx, missionID)
		if err != nil {
			return domain.Snapshot{}, err
		}
		if session, err = s.build(content, playerID); err != nil {
			return domain.Snapshot{}, err
		}
	}

	s.attempts.Add(session)
	s.log.Info().Str("attempt", session.ID()).Str("mission", missionID).Str("player", playerID).Msg("attempt created")
	return session.Last(), nil
}

// Begin leaves the intro and starts the first question's clock.
func (s *MissionService) Begin(_ context.Context, attemptID string) (domain.Snapshot, error) {
	session, err := s.session(attemptID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return session.attempt.Start()
}

func (s *MissionService) Answer(_ context.Context, attemptID string, choice int) (domain.Snapshot, error) {
	session, err := s.session(attemptID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return session.attempt.Answer(choice)
}

func (s *MissionService) Timeout(_ context.Context, attemptID string) (domain.Snapshot, error) {
	session, err := s.session(attemptID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return session.attempt.Timeout()
}

func (s *MissionService) Advance(ctx context.Context, attemptID string) (domain.Snapshot, error) {
	session, err := s.session(attemptID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap, err := session.attempt.Advance(ctx)
	if snap.Phase.Terminal() && err == nil {
		s.log.Info().Str("attempt", attemptID).Str("phase", string(snap.Phase)).Int("correct", snap.CorrectCount).Msg("attempt finished")
	}
	return snap, err
}

func (s *MissionService) RedeemBonus(_ context.Context, attemptID string) (domain.Snapshot, error) {
	session, err := s.session(attemptID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return session.attempt.RedeemBonus()
}

func (s *MissionService) Decline(_ context.Context, attemptID string) (domain.Snapshot, error) {
	session, err := s.session(attemptID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return session.attempt.Decline()
}

// Retry replaces the attempt with a brand-new one drawn from the same content.
func (s *MissionService) Retry(_ context.Context, attemptID string) (domain.Snapshot, error) {
	old, err := s.session(attemptID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	next := newSession()
	a, err := old.attempt.Retry(s.newRand(), engine.WithClock(s.newClock()), engine.WithObserver(next.publish))
	if err != nil {
		return domain.Snapshot{}, err
	}
	next.bind(a)

	s.attempts.Delete(attemptID)
	old.closeSubscribers()
	s.attempts.Add(next)
	s.log.Info().Str("attempt", a.ID()).Str("previous", attemptID).Msg("attempt retried")
	return next.Last(), nil
}

// Abandon stops the attempt's clock and drops it.
func (s *MissionService) Abandon(_ context.Context, attemptID string) {
	session, ok := s.attempts.Get(attemptID)
	if !ok {
		return
	}
	session.attempt.Abandon()
	s.attempts.Delete(attemptID)
	session.closeSubscribers()
}

func (s *MissionService) Snapshot(_ context.Context, attemptID string) (domain.Snapshot, error) {
	session, err := s.session(attemptID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return session.attempt.Snapshot(), nil
}

// Result returns the pass record of a finished attempt.
func (s *MissionService) Result(_ context.Context, attemptID string) (domain.AttemptResult, error) {
	session, err := s.session(attemptID)
	if err != nil {
		return domain.AttemptResult{}, err
	}
	result, ok := session.attempt.Result()
	if !ok {
		return domain.AttemptResult{}, fmt.Errorf("%w: attempt %s has not passed", domain.ErrPhaseRejected, attemptID)
	}
	return result, nil
}

// Subscribe returns a channel of snapshots for an attempt, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *MissionService) Subscribe(_ context.Context, attemptID string) (<-chan domain.Snapshot, func(), error) {
	session, err := s.session(attemptID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

func (s *MissionService) session(attemptID string) (*Session, error) {
	session, ok := s.attempts.Get(attemptID)
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	return session, nil
}

func (s *MissionService) build(content domain.MissionContent, playerID string) (*Session, error) {
	session := newSession()
	a, err := engine.New(content, s.newRand(),
		engine.WithPlayer(playerID),
		engine.WithClock(s.newClock()),
		engine.WithSink(s.sink),
		engine.WithObserver(session.publish),
		engine.WithNow(s.now),
		engine.WithLogger(s.log),
	)
	if err != nil {
		return nil, err
	}
	session.bind(a)
	return session, nil
}

func fallbackWorthy(err error) bool {
	return errors.Is(err, domain.ErrContentUnavailable) || errors.Is(err, domain.ErrInsufficientQuestions)
}
