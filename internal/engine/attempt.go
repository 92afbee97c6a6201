package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mission-quiz-service/internal/domain"
)

// ResultSink persists the result of a passed attempt.
type ResultSink interface {
	Record(ctx context.Context, result domain.AttemptResult) error
}

// Option configures an Attempt.
type Option func(*Attempt)

// WithID overrides the generated attempt ID.
func WithID(id string) Option {
	return func(a *Attempt) { a.id = id }
}

// WithPlayer tags the attempt and its result with a player ID.
func WithPlayer(playerID string) Option {
	return func(a *Attempt) { a.playerID = playerID }
}

// WithClock replaces the wall clock; used for deterministic tests.
func WithClock(c Clock) Option {
	return func(a *Attempt) { a.clock = c }
}

func WithSink(sink ResultSink) Option {
	return func(a *Attempt) { a.sink = sink }
}

func WithLogger(log zerolog.Logger) Option {
	return func(a *Attempt) { a.log = log }
}

// WithObserver registers a callback invoked with a fresh snapshot after every state change.
// It runs while the attempt is locked and must not call back into the attempt.
func WithObserver(fn func(domain.Snapshot)) Option {
	return func(a *Attempt) { a.observer = fn }
}

func WithNow(now func() time.Time) Option {
	return func(a *Attempt) { a.now = now }
}

type attemptState struct {
	workingSet      []domain.Question
	currentIndex    int
	correctCount    int
	lives           lives
	bonus           ledger
	phase           domain.Phase
	narrative       narrativeQueue
	timeRemaining   int
	awaitingAdvance bool
	reveal          *domain.Reveal
}

// Attempt runs one mission attempt from INTRO to PASSED or FAILED.
// All operations are serialized; the clock's callbacks take the same lock.
type Attempt struct {
	id       string
	playerID string
	content  domain.MissionContent
	clock    Clock
	sink     ResultSink
	log      zerolog.Logger
	observer func(domain.Snapshot)
	now      func() time.Time
	opts     []Option

	mu       sync.Mutex
	st       attemptState
	clockGen uint64
	closed   bool
	gateRuns int
	result   *domain.AttemptResult
}

// New validates the content, draws the working set and returns an attempt in INTRO.
func New(content domain.MissionContent, rnd *rand.Rand, opts ...Option) (*Attempt, error) {
	if err := content.Validate(); err != nil {
		return nil, err
	}
	set, err := Draw(content.QuestionPool, content.Rules, rnd)
	if err != nil {
		return nil, fmt.Errorf("mission %q: %w", content.ID, err)
	}

	a := &Attempt{
		content: content,
		log:     zerolog.Nop(),
		now:     time.Now,
		opts:    opts,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.id == "" {
		a.id = uuid.NewString()
	}
	if a.clock == nil {
		a.clock = NewTickerClock()
	}
	a.st = attemptState{
		workingSet:    set,
		lives:         lives{remaining: content.Rules.StartingLives},
		phase:         domain.PhaseIntro,
		timeRemaining: content.Rules.SecondsPerQuestion,
	}
	a.log = a.log.With().Str("attempt", a.id).Str("mission", content.ID).Logger()
	return a, nil
}

func (a *Attempt) ID() string { return a.id }

func (a *Attempt) PlayerID() string { return a.playerID }

func (a *Attempt) Content() domain.MissionContent { return a.content }

// Retry abandons this attempt and builds a brand-new one from the same content.
// extra options are applied after the original ones.
func (a *Attempt) Retry(rnd *rand.Rand, extra ...Option) (*Attempt, error) {
	a.Abandon()
	opts := append(append([]Option(nil), a.opts...), WithID(uuid.NewString()))
	opts = append(opts, extra...)
	return New(a.content, rnd, opts...)
}

// Start leaves INTRO and arms the clock for the first question.
func (a *Attempt) Start() (domain.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.accepts(a.st.phase == domain.PhaseIntro, "start"); err != nil {
		return a.snapshotLocked(), err
	}
	a.setPhase(domain.PhaseInProgress)
	a.armClock()
	a.notify()
	return a.snapshotLocked(), nil
}

// Answer resolves the current question with the given choice index.
func (a *Attempt) Answer(choice int) (domain.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.accepts(a.awaitingAnswer(), "answer"); err != nil {
		return a.snapshotLocked(), err
	}
	q := a.current()
	if choice < 0 || choice >= len(q.Choices) {
		return a.snapshotLocked(), fmt.Errorf("%w: %d not in 0..%d", domain.ErrInvalidChoice, choice, len(q.Choices)-1)
	}

	left := a.st.timeRemaining
	a.disarmClock()
	if choice == q.CorrectChoice {
		a.registerCorrect(q, left, choice)
	} else {
		a.registerMiss(q, domain.OutcomeWrong, choice)
	}
	a.notify()
	return a.snapshotLocked(), nil
}

// Timeout resolves the current question as unanswered; it is treated as a wrong answer.
func (a *Attempt) Timeout() (domain.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.accepts(a.awaitingAnswer(), "timeout"); err != nil {
		return a.snapshotLocked(), err
	}
	a.timeoutLocked()
	return a.snapshotLocked(), nil
}

// Advance moves past a revealed answer or narrative to the next question or the gate.
// A sink failure after a pass is returned wrapped in ErrResultNotRecorded; the attempt stays PASSED.
func (a *Attempt) Advance(ctx context.Context) (domain.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case a.closed:
		return a.snapshotLocked(), domain.ErrAttemptClosed
	case a.st.phase == domain.PhaseNarrativeInterstitial:
		a.st.narrative.clear()
	case a.st.phase == domain.PhaseInProgress && a.st.awaitingAdvance:
	default:
		return a.snapshotLocked(), fmt.Errorf("%w: advance in %s", domain.ErrPhaseRejected, a.st.phase)
	}
	a.st.awaitingAdvance = false

	next := a.st.currentIndex + 1
	rules := a.content.Rules
	early := rules.EarlyExitOnThresholdReached && a.st.correctCount >= rules.MinCorrectToPass
	if next >= len(a.st.workingSet) || early {
		a.st.currentIndex = next
		err := a.gateCheck(ctx)
		a.notify()
		return a.snapshotLocked(), err
	}

	a.st.currentIndex = next
	a.st.reveal = nil
	if a.st.phase != domain.PhaseInProgress {
		a.setPhase(domain.PhaseInProgress)
	}
	a.armClock()
	a.notify()
	return a.snapshotLocked(), nil
}

// RedeemBonus spends banked seconds to restore one life and replays the same question.
func (a *Attempt) RedeemBonus() (domain.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return a.snapshotLocked(), domain.ErrAttemptClosed
	}
	cost := a.content.Rules.BonusRedemptionCost
	if a.st.phase != domain.PhaseRescueOffered {
		return a.snapshotLocked(), fmt.Errorf("%w: no rescue offered in %s", domain.ErrInsufficientBonus, a.st.phase)
	}
	if !a.st.bonus.redeem(cost) {
		return a.snapshotLocked(), fmt.Errorf("%w: have %ds, need %ds", domain.ErrInsufficientBonus, a.st.bonus.seconds, cost)
	}

	a.st.lives.remaining = 1
	a.st.reveal = nil
	a.st.awaitingAdvance = false
	a.setPhase(domain.PhaseInProgress)
	a.armClock()
	a.log.Debug().Int("cost", cost).Int("bonus", a.st.bonus.seconds).Msg("rescue redeemed")
	a.notify()
	return a.snapshotLocked(), nil
}

// Decline refuses the rescue offer and fails the attempt.
func (a *Attempt) Decline() (domain.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.accepts(a.st.phase == domain.PhaseRescueOffered, "decline"); err != nil {
		return a.snapshotLocked(), err
	}
	a.fail()
	a.notify()
	return a.snapshotLocked(), nil
}

// Abandon stops the clock and rejects every later operation.
func (a *Attempt) Abandon() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.disarmClock()
	a.closed = true
	a.log.Debug().Str("phase", string(a.st.phase)).Msg("attempt abandoned")
}

// Closed reports whether the attempt was abandoned.
func (a *Attempt) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *Attempt) Snapshot() domain.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Result returns the emitted result once the attempt has passed.
func (a *Attempt) Result() (domain.AttemptResult, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.result == nil {
		return domain.AttemptResult{}, false
	}
	return *a.result, true
}

func (a *Attempt) accepts(ok bool, op string) error {
	if a.closed {
		return domain.ErrAttemptClosed
	}
	if !ok {
		return fmt.Errorf("%w: %s in %s", domain.ErrPhaseRejected, op, a.st.phase)
	}
	return nil
}

func (a *Attempt) awaitingAnswer() bool {
	return a.st.phase == domain.PhaseInProgress && !a.st.awaitingAdvance
}

func (a *Attempt) current() domain.Question {
	return a.st.workingSet[a.st.currentIndex]
}

func (a *Attempt) registerCorrect(q domain.Question, secondsLeft, choice int) {
	a.st.correctCount++
	a.st.bonus.deposit(secondsLeft)
	a.st.reveal = a.revealFor(q, domain.OutcomeCorrect, choice)
	if a.st.narrative.push(q.ID, q.NarrativeUnlock) {
		a.setPhase(domain.PhaseNarrativeInterstitial)
		return
	}
	a.st.awaitingAdvance = true
}

func (a *Attempt) registerMiss(q domain.Question, outcome domain.Outcome, choice int) {
	a.st.reveal = a.revealFor(q, outcome, choice)
	if q.IsCritical() {
		a.log.Debug().Str("question", q.ID).Msg("critical question missed")
		a.fail()
		return
	}
	a.st.lives.lose()
	switch {
	case !a.st.lives.exhausted():
		a.st.awaitingAdvance = true
	case a.st.bonus.canAfford(a.content.Rules.BonusRedemptionCost):
		a.setPhase(domain.PhaseRescueOffered)
	default:
		a.fail()
	}
}

func (a *Attempt) timeoutLocked() {
	a.disarmClock()
	a.st.timeRemaining = 0
	a.registerMiss(a.current(), domain.OutcomeTimeout, -1)
	a.notify()
}

func (a *Attempt) revealFor(q domain.Question, outcome domain.Outcome, choice int) *domain.Reveal {
	return &domain.Reveal{
		QuestionID:    q.ID,
		Outcome:       outcome,
		Chosen:        choice,
		CorrectChoice: q.CorrectChoice,
		Explanation:   q.Explanation,
	}
}

// gateCheck runs exactly once per attempt.
func (a *Attempt) gateCheck(ctx context.Context) error {
	a.gateRuns++
	if a.gateRuns > 1 {
		panic(fmt.Sprintf("attempt %s: gate evaluated twice", a.id))
	}
	a.setPhase(domain.PhaseGateCheck)
	a.notify()

	verdict := Evaluate(a.st.correctCount, a.content.Rules)
	a.log.Debug().Int("correct", a.st.correctCount).Stringer("verdict", verdict).Msg("gate evaluated")
	if verdict == Fail {
		a.fail()
		return nil
	}

	a.setPhase(domain.PhasePassed)
	result := a.buildResult()
	a.result = &result
	if a.sink == nil {
		return nil
	}
	if err := a.sink.Record(ctx, result); err != nil {
		a.log.Warn().Err(err).Msg("record attempt result")
		return fmt.Errorf("%w: %v", domain.ErrResultNotRecorded, err)
	}
	return nil
}

func (a *Attempt) buildResult() domain.AttemptResult {
	unlocked := make([]string, 0, len(a.st.narrative.unlocked))
	for id := range a.st.narrative.unlocked {
		unlocked = append(unlocked, id)
	}
	sort.Strings(unlocked)
	return domain.AttemptResult{
		AttemptID:             a.id,
		MissionID:             a.content.ID,
		PlayerID:              a.playerID,
		Reward:                a.content.Reward,
		CorrectCount:          a.st.correctCount,
		TotalQuestions:        len(a.st.workingSet),
		LivesRemaining:        a.st.lives.remaining,
		BonusSecondsRemaining: a.st.bonus.seconds,
		UnlockedNarrativeIDs:  unlocked,
		CompletedAt:           a.now(),
	}
}

func (a *Attempt) fail() {
	a.disarmClock()
	a.st.awaitingAdvance = false
	a.st.narrative.clear()
	a.setPhase(domain.PhaseFailed)
}

// setPhase is the only writer of the phase.
func (a *Attempt) setPhase(p domain.Phase) {
	a.log.Debug().Str("from", string(a.st.phase)).Str("to", string(p)).Int("index", a.st.currentIndex).Msg("phase transition")
	a.st.phase = p
}

// armClock starts the countdown for the current question. The clock must already be disarmed:
// every phase exit disarms it, so finding it armed here is a bug in the controller.
func (a *Attempt) armClock() {
	if a.clock.Armed() {
		panic(fmt.Sprintf("attempt %s: clock still armed entering question %d", a.id, a.st.currentIndex))
	}
	a.clockGen++
	gen := a.clockGen
	a.st.timeRemaining = a.content.Rules.SecondsPerQuestion
	err := a.clock.Arm(a.content.Rules.SecondsPerQuestion,
		func(remaining int) { a.onTick(gen, remaining) },
		func() { a.onExpire(gen) },
	)
	if err != nil {
		panic(fmt.Sprintf("attempt %s: %v", a.id, err))
	}
}

// disarmClock stops the countdown and invalidates callbacks already in flight.
func (a *Attempt) disarmClock() {
	a.clockGen++
	a.clock.Disarm()
}

func (a *Attempt) onTick(gen uint64, remaining int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.clockGen || a.closed || !a.awaitingAnswer() {
		return
	}
	a.st.timeRemaining = remaining
	a.notify()
}

func (a *Attempt) onExpire(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.clockGen || a.closed || !a.awaitingAnswer() {
		return
	}
	a.log.Debug().Int("index", a.st.currentIndex).Msg("question timed out")
	a.timeoutLocked()
}

func (a *Attempt) notify() {
	if a.observer != nil {
		a.observer(a.snapshotLocked())
	}
}

func (a *Attempt) snapshotLocked() domain.Snapshot {
	s := domain.Snapshot{
		AttemptID:        a.id,
		MissionID:        a.content.ID,
		Phase:            a.st.phase,
		CurrentIndex:     a.st.currentIndex,
		TotalQuestions:   len(a.st.workingSet),
		CorrectCount:     a.st.correctCount,
		LivesRemaining:   a.st.lives.remaining,
		LastLife:         a.st.lives.critical(),
		BonusSeconds:     a.st.bonus.seconds,
		TimeRemaining:    a.st.timeRemaining,
		PendingNarrative: a.st.narrative.pending,
		AwaitingAdvance:  a.st.awaitingAdvance,
	}
	if a.st.reveal != nil {
		r := *a.st.reveal
		s.LastReveal = &r
	}
	if a.st.phase != domain.PhaseIntro && !a.st.phase.Terminal() && a.st.phase != domain.PhaseGateCheck &&
		a.st.currentIndex < len(a.st.workingSet) {
		q := a.current()
		s.Question = &domain.QuestionView{
			ID:          q.ID,
			Prompt:      q.Prompt,
			Choices:     append([]string(nil), q.Choices...),
			Critical:    q.IsCritical(),
			Index:       a.st.currentIndex,
			TotalInBank: len(a.st.workingSet),
		}
	}
	return s
}
