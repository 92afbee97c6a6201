package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"mission-quiz-service/internal/domain"
)

func scenarioRules() domain.MissionRules {
	return domain.MissionRules{
		QuestionCount:       6,
		MinCorrectToPass:    5,
		StartingLives:       2,
		SecondsPerQuestion:  120,
		BonusRedemptionCost: 120,
	}
}

func pool(normal, critical int) []domain.Question {
	qs := make([]domain.Question, 0, normal+critical)
	for i := 0; i < normal; i++ {
		qs = append(qs, domain.Question{
			ID:            fmt.Sprintf("n%d", i),
			Criticality:   domain.Normal,
			Prompt:        "normal",
			Choices:       []string{"right", "wrong", "other"},
			CorrectChoice: 0,
		})
	}
	for i := 0; i < critical; i++ {
		qs = append(qs, domain.Question{
			ID:            fmt.Sprintf("c%d", i),
			Criticality:   domain.Critical,
			Prompt:        "critical",
			Choices:       []string{"right", "wrong"},
			CorrectChoice: 0,
		})
	}
	return qs
}

type recordingSink struct {
	results []domain.AttemptResult
	err     error
}

func (s *recordingSink) Record(_ context.Context, r domain.AttemptResult) error {
	s.results = append(s.results, r)
	return s.err
}

type harness struct {
	attempt *Attempt
	clock   *ManualClock
	sink    *recordingSink
	phases  []domain.Phase
}

func newHarness(t *testing.T, content domain.MissionContent) *harness {
	t.Helper()
	h := &harness{clock: NewManualClock(), sink: &recordingSink{}}
	a, err := New(content, rand.New(rand.NewSource(7)),
		WithClock(h.clock),
		WithSink(h.sink),
		WithPlayer("p1"),
		WithObserver(func(s domain.Snapshot) { h.phases = append(h.phases, s.Phase) }),
	)
	if err != nil {
		t.Fatalf("new attempt: %v", err)
	}
	h.attempt = a
	if _, err := a.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return h
}

func (h *harness) count(p domain.Phase) int {
	n := 0
	for _, got := range h.phases {
		if got == p {
			n++
		}
	}
	return n
}

func mustAnswer(t *testing.T, a *Attempt, choice int) domain.Snapshot {
	t.Helper()
	s, err := a.Answer(choice)
	if err != nil {
		t.Fatalf("answer %d: %v", choice, err)
	}
	return s
}

func mustAdvance(t *testing.T, a *Attempt) domain.Snapshot {
	t.Helper()
	s, err := a.Advance(context.Background())
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	return s
}

func TestScenarioPassWithOneMistake(t *testing.T) {
	h := newHarness(t, domain.MissionContent{ID: "m1", Reward: "K", Rules: scenarioRules(), QuestionPool: pool(6, 0)})
	a := h.attempt

	var last domain.Snapshot
	for i := 0; i < 6; i++ {
		if i == 2 {
			s := mustAnswer(t, a, 1)
			if s.LivesRemaining != 1 || !s.AwaitingAdvance || s.Phase != domain.PhaseInProgress {
				t.Fatalf("after mistake got %+v", s)
			}
		} else {
			h.clock.Tick(30)
			mustAnswer(t, a, 0)
		}
		last = mustAdvance(t, a)
	}

	if last.Phase != domain.PhasePassed {
		t.Fatalf("expected PASSED, got %s", last.Phase)
	}
	if last.CorrectCount != 5 || last.LivesRemaining != 1 || last.BonusSeconds != 450 {
		t.Fatalf("unexpected final state %+v", last)
	}
	if last.CurrentIndex != 6 {
		t.Fatalf("expected index at bank length, got %d", last.CurrentIndex)
	}
	if h.count(domain.PhaseGateCheck) != 1 {
		t.Fatalf("expected one gate check, got %d", h.count(domain.PhaseGateCheck))
	}
	if len(h.sink.results) != 1 {
		t.Fatalf("expected sink called once, got %d", len(h.sink.results))
	}
	res := h.sink.results[0]
	if res.PlayerID != "p1" || res.Reward != "K" || res.TotalQuestions != 6 || res.BonusSecondsRemaining != 450 {
		t.Fatalf("unexpected result %+v", res)
	}
	if h.clock.Armed() {
		t.Fatalf("clock left armed after pass")
	}
}

func TestScenarioTwoTimeoutsFailWithoutBonus(t *testing.T) {
	h := newHarness(t, domain.MissionContent{ID: "m1", Rules: scenarioRules(), QuestionPool: pool(6, 0)})
	a := h.attempt

	h.clock.Expire()
	s := a.Snapshot()
	if s.LivesRemaining != 1 || s.LastReveal == nil || s.LastReveal.Outcome != domain.OutcomeTimeout {
		t.Fatalf("after first timeout got %+v", s)
	}
	mustAdvance(t, a)

	h.clock.Expire()
	s = a.Snapshot()
	if s.Phase != domain.PhaseFailed || s.LivesRemaining != 0 {
		t.Fatalf("expected FAILED with 0 lives, got %+v", s)
	}
	if h.count(domain.PhaseRescueOffered) != 0 {
		t.Fatalf("rescue must not be offered without bonus")
	}
	if len(h.sink.results) != 0 {
		t.Fatalf("sink must not be called on failure")
	}
}

func TestScenarioRescueRedeemed(t *testing.T) {
	h := newHarness(t, domain.MissionContent{ID: "m1", Rules: scenarioRules(), QuestionPool: pool(6, 0)})
	a := h.attempt

	mustAnswer(t, a, 0) // 120s banked
	mustAdvance(t, a)
	h.clock.Tick(110)
	mustAnswer(t, a, 0) // 10s banked
	mustAdvance(t, a)
	mustAnswer(t, a, 1)
	mustAdvance(t, a)
	s := mustAnswer(t, a, 2)

	if s.Phase != domain.PhaseRescueOffered || s.BonusSeconds != 130 || s.LivesRemaining != 0 {
		t.Fatalf("expected rescue offer with 130s, got %+v", s)
	}
	if h.clock.Armed() {
		t.Fatalf("clock must be disarmed while rescue is offered")
	}
	index := s.CurrentIndex

	s, err := a.RedeemBonus()
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if s.Phase != domain.PhaseInProgress || s.LivesRemaining != 1 || s.BonusSeconds != 10 || s.CurrentIndex != index {
		t.Fatalf("unexpected state after redeem %+v", s)
	}
	if !h.clock.Armed() || h.clock.Remaining() != 120 {
		t.Fatalf("expected clock rearmed for the same question")
	}

	// The replayed question can be answered again.
	s = mustAnswer(t, a, 0)
	if s.CorrectCount != 3 || !s.AwaitingAdvance {
		t.Fatalf("expected replayed question answered, got %+v", s)
	}
}

func TestScenarioCriticalMissFailsImmediately(t *testing.T) {
	h := newHarness(t, domain.MissionContent{ID: "m1", Rules: scenarioRules(), QuestionPool: pool(5, 1)})
	a := h.attempt

	for i := 0; i < 6; i++ {
		s := a.Snapshot()
		if s.Question == nil {
			t.Fatalf("no question at index %d", i)
		}
		if s.Question.Critical {
			s = mustAnswer(t, a, 1)
			if s.Phase != domain.PhaseFailed {
				t.Fatalf("expected FAILED, got %s", s.Phase)
			}
			if s.LivesRemaining != 2 {
				t.Fatalf("critical miss must not touch lives, got %d", s.LivesRemaining)
			}
			if h.clock.Armed() {
				t.Fatalf("clock left armed after failure")
			}
			return
		}
		mustAnswer(t, a, 0)
		mustAdvance(t, a)
	}
	t.Fatalf("critical question never reached")
}

func TestCriticalTimeoutFails(t *testing.T) {
	rules := scenarioRules()
	rules.QuestionCount, rules.MinCorrectToPass = 1, 1
	h := newHarness(t, domain.MissionContent{ID: "m1", Rules: rules, QuestionPool: pool(0, 1)})

	h.clock.Expire()
	if s := h.attempt.Snapshot(); s.Phase != domain.PhaseFailed || s.LivesRemaining != 2 {
		t.Fatalf("expected critical timeout to fail with lives intact, got %+v", s)
	}
}

func TestGateFailsBelowThreshold(t *testing.T) {
	rules := scenarioRules()
	rules.StartingLives = 3
	h := newHarness(t, domain.MissionContent{ID: "m1", Rules: rules, QuestionPool: pool(6, 0)})
	a := h.attempt

	var s domain.Snapshot
	for i := 0; i < 6; i++ {
		if i < 2 {
			mustAnswer(t, a, 1)
		} else {
			mustAnswer(t, a, 0)
		}
		s = mustAdvance(t, a)
	}
	if s.Phase != domain.PhaseFailed || s.CorrectCount != 4 || s.LivesRemaining != 1 {
		t.Fatalf("expected gate failure with lives left, got %+v", s)
	}
	if h.count(domain.PhaseGateCheck) != 1 {
		t.Fatalf("gate should run once")
	}
}

func TestNoEarlyWinByDefault(t *testing.T) {
	rules := scenarioRules()
	rules.MinCorrectToPass = 2
	h := newHarness(t, domain.MissionContent{ID: "m1", Rules: rules, QuestionPool: pool(6, 0)})
	a := h.attempt

	for i := 0; i < 3; i++ {
		mustAnswer(t, a, 0)
		if s := mustAdvance(t, a); s.Phase != domain.PhaseInProgress {
			t.Fatalf("threshold reached early must not end attempt, got %s", s.Phase)
		}
	}
}

func TestEarlyExitOnThreshold(t *testing.T) {
	rules := scenarioRules()
	rules.MinCorrectToPass = 2
	rules.EarlyExitOnThresholdReached = true
	h := newHarness(t, domain.MissionContent{ID: "m1", Rules: rules, QuestionPool: pool(6, 0)})
	a := h.attempt

	mustAnswer(t, a, 0)
	mustAdvance(t, a)
	mustAnswer(t, a, 0)
	s := mustAdvance(t, a)
	if s.Phase != domain.PhasePassed || s.CorrectCount != 2 {
		t.Fatalf("expected early pass, got %+v", s)
	}
	if len(h.sink.results) != 1 {
		t.Fatalf("expected result recorded once")
	}
}

func TestNarrativeInterstitial(t *testing.T) {
	qs := pool(2, 0)
	qs[0].NarrativeUnlock = "The first letter glows."
	qs[1].NarrativeUnlock = "A map fragment appears."
	rules := domain.MissionRules{QuestionCount: 2, MinCorrectToPass: 1, StartingLives: 1, SecondsPerQuestion: 30, BonusRedemptionCost: 30}
	h := newHarness(t, domain.MissionContent{ID: "m1", Rules: rules, QuestionPool: qs})
	a := h.attempt

	s := mustAnswer(t, a, 0)
	if s.Phase != domain.PhaseNarrativeInterstitial || s.PendingNarrative == "" {
		t.Fatalf("expected narrative interstitial, got %+v", s)
	}
	if _, err := a.Answer(0); !errors.Is(err, domain.ErrPhaseRejected) {
		t.Fatalf("answer during narrative should be rejected, got %v", err)
	}
	if h.clock.Armed() {
		t.Fatalf("clock must stay disarmed during narrative")
	}

	s = mustAdvance(t, a)
	if s.Phase != domain.PhaseInProgress || s.PendingNarrative != "" || s.CurrentIndex != 1 {
		t.Fatalf("expected next question, got %+v", s)
	}
	mustAnswer(t, a, 0)
	s = mustAdvance(t, a)
	if s.Phase != domain.PhasePassed {
		t.Fatalf("expected pass, got %s", s.Phase)
	}
	res, ok := a.Result()
	if !ok || !reflect.DeepEqual(res.UnlockedNarrativeIDs, []string{"n0", "n1"}) {
		t.Fatalf("unexpected unlocked narratives %+v", res.UnlockedNarrativeIDs)
	}
}

func TestDuplicateEventsAreRejected(t *testing.T) {
	h := newHarness(t, domain.MissionContent{ID: "m1", Rules: scenarioRules(), QuestionPool: pool(6, 0)})
	a := h.attempt

	if _, err := a.Start(); !errors.Is(err, domain.ErrPhaseRejected) {
		t.Fatalf("second start should be rejected, got %v", err)
	}
	if _, err := a.Advance(context.Background()); !errors.Is(err, domain.ErrPhaseRejected) {
		t.Fatalf("advance before answering should be rejected, got %v", err)
	}

	mustAnswer(t, a, 0)
	before := a.Snapshot()
	if _, err := a.Answer(0); !errors.Is(err, domain.ErrPhaseRejected) {
		t.Fatalf("double answer should be rejected, got %v", err)
	}
	if _, err := a.Timeout(); !errors.Is(err, domain.ErrPhaseRejected) {
		t.Fatalf("timeout after answer should be rejected, got %v", err)
	}
	if got := a.Snapshot(); !reflect.DeepEqual(before, got) {
		t.Fatalf("rejected events changed state:\nbefore %+v\nafter  %+v", before, got)
	}

	mustAdvance(t, a)
	after := a.Snapshot()
	if _, err := a.Advance(context.Background()); !errors.Is(err, domain.ErrPhaseRejected) {
		t.Fatalf("double advance should be rejected, got %v", err)
	}
	if got := a.Snapshot(); !reflect.DeepEqual(after, got) {
		t.Fatalf("second advance changed state")
	}
}

func TestInvalidChoiceLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, domain.MissionContent{ID: "m1", Rules: scenarioRules(), QuestionPool: pool(6, 0)})
	before := h.attempt.Snapshot()
	if _, err := h.attempt.Answer(5); !errors.Is(err, domain.ErrInvalidChoice) {
		t.Fatalf("expected invalid choice, got %v", err)
	}
	if got := h.attempt.Snapshot(); !reflect.DeepEqual(before, got) || !h.clock.Armed() {
		t.Fatalf("invalid choice changed state")
	}
}

func TestRedeemRejectedOutOfTurn(t *testing.T) {
	h := newHarness(t, domain.MissionContent{ID: "m1", Rules: scenarioRules(), QuestionPool: pool(6, 0)})
	a := h.attempt
	mustAnswer(t, a, 0)

	before := a.Snapshot()
	if _, err := a.RedeemBonus(); !errors.Is(err, domain.ErrInsufficientBonus) {
		t.Fatalf("expected insufficient bonus, got %v", err)
	}
	if got := a.Snapshot(); !reflect.DeepEqual(before, got) {
		t.Fatalf("rejected redeem changed state")
	}
	if _, err := a.Decline(); !errors.Is(err, domain.ErrPhaseRejected) {
		t.Fatalf("decline outside rescue should be rejected, got %v", err)
	}
}

func TestRescueDeclined(t *testing.T) {
	rules := scenarioRules()
	rules.StartingLives = 1
	h := newHarness(t, domain.MissionContent{ID: "m1", Rules: rules, QuestionPool: pool(6, 0)})
	a := h.attempt

	mustAnswer(t, a, 0)
	mustAdvance(t, a)
	s := mustAnswer(t, a, 1)
	if s.Phase != domain.PhaseRescueOffered {
		t.Fatalf("expected rescue offer, got %s", s.Phase)
	}
	s, err := a.Decline()
	if err != nil || s.Phase != domain.PhaseFailed {
		t.Fatalf("expected decline to fail attempt, got %s (%v)", s.Phase, err)
	}
	if s.BonusSeconds != 120 {
		t.Fatalf("declining must not spend bonus, got %d", s.BonusSeconds)
	}
}

func TestLivesAndBonusMonotonic(t *testing.T) {
	rules := scenarioRules()
	rules.StartingLives = 4
	h := newHarness(t, domain.MissionContent{ID: "m1", Rules: rules, QuestionPool: pool(6, 0)})
	a := h.attempt

	prev := a.Snapshot()
	for i := 0; i < 6; i++ {
		correct := i%2 == 0
		h.clock.Tick(i * 10)
		var s domain.Snapshot
		if correct {
			s = mustAnswer(t, a, 0)
			if s.LivesRemaining != prev.LivesRemaining {
				t.Fatalf("correct answer changed lives")
			}
		} else {
			s = mustAnswer(t, a, 1)
			if s.LivesRemaining != prev.LivesRemaining-1 {
				t.Fatalf("wrong answer should cost exactly one life")
			}
		}
		if s.BonusSeconds < prev.BonusSeconds {
			t.Fatalf("bonus decreased without a redeem")
		}
		prev = mustAdvance(t, a)
	}
}

func TestAbandonStopsClockAndRejects(t *testing.T) {
	h := newHarness(t, domain.MissionContent{ID: "m1", Rules: scenarioRules(), QuestionPool: pool(6, 0)})
	a := h.attempt

	a.Abandon()
	if h.clock.Armed() {
		t.Fatalf("abandon must disarm the clock")
	}
	if _, err := a.Answer(0); !errors.Is(err, domain.ErrAttemptClosed) {
		t.Fatalf("expected closed attempt, got %v", err)
	}
	if _, err := a.Advance(context.Background()); !errors.Is(err, domain.ErrAttemptClosed) {
		t.Fatalf("expected closed attempt, got %v", err)
	}
}

func TestStaleExpiryIsIgnored(t *testing.T) {
	h := newHarness(t, domain.MissionContent{ID: "m1", Rules: scenarioRules(), QuestionPool: pool(6, 0)})
	a := h.attempt

	a.mu.Lock()
	gen := a.clockGen
	a.mu.Unlock()

	mustAnswer(t, a, 0)
	a.onExpire(gen)
	if s := a.Snapshot(); s.LivesRemaining != 2 || s.CorrectCount != 1 {
		t.Fatalf("stale expiry mutated state: %+v", s)
	}
}

func TestClockArmedOncePerQuestion(t *testing.T) {
	h := newHarness(t, domain.MissionContent{ID: "m1", Rules: scenarioRules(), QuestionPool: pool(6, 0)})
	a := h.attempt
	for i := 0; i < 6; i++ {
		mustAnswer(t, a, 0)
		mustAdvance(t, a)
	}
	if h.clock.Arms() != 6 {
		t.Fatalf("expected 6 arms, got %d", h.clock.Arms())
	}
}

func TestSinkFailureKeepsPass(t *testing.T) {
	rules := domain.MissionRules{QuestionCount: 1, MinCorrectToPass: 1, StartingLives: 1, SecondsPerQuestion: 10}
	h := newHarness(t, domain.MissionContent{ID: "m1", Rules: rules, QuestionPool: pool(1, 0)})
	h.sink.err = errors.New("db down")

	mustAnswer(t, h.attempt, 0)
	s, err := h.attempt.Advance(context.Background())
	if !errors.Is(err, domain.ErrResultNotRecorded) {
		t.Fatalf("expected result not recorded, got %v", err)
	}
	if s.Phase != domain.PhasePassed {
		t.Fatalf("sink failure must not change the verdict, got %s", s.Phase)
	}
}

func TestRetryBuildsFreshAttempt(t *testing.T) {
	h := newHarness(t, domain.MissionContent{ID: "m1", Rules: scenarioRules(), QuestionPool: pool(6, 0)})
	old := h.attempt
	mustAnswer(t, old, 1)

	next, err := old.Retry(rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if next.ID() == old.ID() {
		t.Fatalf("retry must produce a new attempt ID")
	}
	if !old.Closed() {
		t.Fatalf("retry must abandon the old attempt")
	}
	s := next.Snapshot()
	if s.Phase != domain.PhaseIntro || s.LivesRemaining != 2 || s.CorrectCount != 0 {
		t.Fatalf("expected fresh INTRO state, got %+v", s)
	}
	if _, err := next.Start(); err != nil {
		t.Fatalf("start retried attempt: %v", err)
	}
}

func TestNewRejectsInvalidRules(t *testing.T) {
	rules := scenarioRules()
	rules.MinCorrectToPass = 7
	_, err := New(domain.MissionContent{ID: "m1", Rules: rules, QuestionPool: pool(6, 0)}, rand.New(rand.NewSource(1)))
	if !errors.Is(err, domain.ErrInvalidRules) {
		t.Fatalf("expected invalid rules, got %v", err)
	}
}
