package domain

// Phase is the attempt state machine position.
type Phase string

const (
	PhaseIntro                 Phase = "INTRO"
	PhaseInProgress            Phase = "IN_PROGRESS"
	PhaseNarrativeInterstitial Phase = "NARRATIVE_INTERSTITIAL"
	PhaseGateCheck             Phase = "GATE_CHECK"
	PhaseRescueOffered         Phase = "RESCUE_OFFERED"
	PhasePassed                Phase = "PASSED"
	PhaseFailed                Phase = "FAILED"
)

// Terminal reports whether no further gameplay operation is accepted.
func (p Phase) Terminal() bool {
	return p == PhasePassed || p == PhaseFailed
}

// Outcome describes how the last question was resolved.
type Outcome string

const (
	OutcomeCorrect Outcome = "correct"
	OutcomeWrong   Outcome = "wrong"
	OutcomeTimeout Outcome = "timeout"
)

// QuestionView is a question as shown to the player, without the answer key.
type QuestionView struct {
	ID          string   `json:"id"`
	Prompt      string   `json:"prompt"`
	Choices     []string `json:"choices"`
	Critical    bool     `json:"critical"`
	Index       int      `json:"index"`
	TotalInBank int      `json:"total"`
}

// Reveal is shown after a question is resolved.
type Reveal struct {
	QuestionID    string  `json:"questionId"`
	Outcome       Outcome `json:"outcome"`
	Chosen        int     `json:"chosen"` // -1 on timeout
	CorrectChoice int     `json:"correctChoice"`
	Explanation   string  `json:"explanation,omitempty"`
}

// Snapshot is a read-only copy of an attempt's state.
type Snapshot struct {
	AttemptID        string        `json:"attemptId"`
	MissionID        string        `json:"missionId"`
	Phase            Phase         `json:"phase"`
	CurrentIndex     int           `json:"currentIndex"`
	TotalQuestions   int           `json:"totalQuestions"`
	CorrectCount     int           `json:"correctCount"`
	LivesRemaining   int           `json:"livesRemaining"`
	LastLife         bool          `json:"lastLife"`
	BonusSeconds     int           `json:"bonusSeconds"`
	TimeRemaining    int           `json:"timeRemaining"`
	PendingNarrative string        `json:"pendingNarrative,omitempty"`
	AwaitingAdvance  bool          `json:"awaitingAdvance"`
	Question         *QuestionView `json:"question,omitempty"`
	LastReveal       *Reveal       `json:"lastReveal,omitempty"`
}
