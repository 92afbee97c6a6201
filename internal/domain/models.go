package domain

import (
	"fmt"
	"time"
)

// Criticality marks whether a wrong answer ends the attempt outright.
type Criticality string

const (
	Normal   Criticality = "normal"
	Critical Criticality = "critical"
)

// Question models an MCQ prompt with exactly one correct choice.
type Question struct {
	ID              string      `json:"id" yaml:"id"`
	Category        string      `json:"category,omitempty" yaml:"category,omitempty"`
	Criticality     Criticality `json:"criticality,omitempty" yaml:"criticality,omitempty"`
	Prompt          string      `json:"prompt" yaml:"prompt"`
	Choices         []string    `json:"choices" yaml:"choices"`
	CorrectChoice   int         `json:"correctChoice" yaml:"correctChoice"`
	NarrativeUnlock string      `json:"narrativeUnlock,omitempty" yaml:"narrativeUnlock,omitempty"`
	Explanation     string      `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// IsCritical reports whether the question bypasses the lives mechanic.
func (q Question) IsCritical() bool {
	return q.Criticality == Critical
}

// CategoryKey is the bucket the selector draws from; it defaults to the criticality.
func (q Question) CategoryKey() string {
	if q.Category != "" {
		return q.Category
	}
	if q.Criticality == "" {
		return string(Normal)
	}
	return string(q.Criticality)
}

// Validate checks choice bounds and that the correct text is unambiguous.
func (q Question) Validate() error {
	if len(q.Choices) < 2 || len(q.Choices) > 6 {
		return fmt.Errorf("%w: question %q has %d choices", ErrInvalidQuestion, q.ID, len(q.Choices))
	}
	if q.CorrectChoice < 0 || q.CorrectChoice >= len(q.Choices) {
		return fmt.Errorf("%w: question %q correct choice %d out of range", ErrInvalidQuestion, q.ID, q.CorrectChoice)
	}
	correct := q.Choices[q.CorrectChoice]
	for i, c := range q.Choices {
		if i != q.CorrectChoice && c == correct {
			return fmt.Errorf("%w: question %q repeats the correct text", ErrInvalidQuestion, q.ID)
		}
	}
	switch q.Criticality {
	case "", Normal, Critical:
	default:
		return fmt.Errorf("%w: question %q has criticality %q", ErrInvalidQuestion, q.ID, q.Criticality)
	}
	return nil
}

// CategoryDraw asks the selector for Count questions of one category.
type CategoryDraw struct {
	Category string `json:"category" yaml:"category"`
	Count    int    `json:"count" yaml:"count"`
}

// MissionRules configures one attempt; read-only for the attempt's lifetime.
type MissionRules struct {
	QuestionCount       int            `json:"questionCount" yaml:"questionCount"`
	MinCorrectToPass    int            `json:"minCorrectToPass" yaml:"minCorrectToPass"`
	StartingLives       int            `json:"startingLives" yaml:"startingLives"`
	SecondsPerQuestion  int            `json:"secondsPerQuestion" yaml:"secondsPerQuestion"`
	BonusRedemptionCost int            `json:"bonusRedemptionCost" yaml:"bonusRedemptionCost"`
	Distribution        []CategoryDraw `json:"distribution,omitempty" yaml:"distribution,omitempty"`
	// EarlyExitOnThresholdReached ends the attempt at the first advance after the gate threshold is met.
	EarlyExitOnThresholdReached bool `json:"earlyExitOnThresholdReached,omitempty" yaml:"earlyExitOnThresholdReached,omitempty"`
	ShuffleChoices              bool `json:"shuffleChoices,omitempty" yaml:"shuffleChoices,omitempty"`
}

// Validate enforces the constructor-time invariants of the rules.
func (r MissionRules) Validate() error {
	switch {
	case r.QuestionCount < 1:
		return fmt.Errorf("%w: questionCount must be positive", ErrInvalidRules)
	case r.MinCorrectToPass < 0 || r.MinCorrectToPass > r.QuestionCount:
		return fmt.Errorf("%w: minCorrectToPass %d not within 0..%d", ErrInvalidRules, r.MinCorrectToPass, r.QuestionCount)
	case r.StartingLives < 1:
		return fmt.Errorf("%w: startingLives must be at least 1", ErrInvalidRules)
	case r.SecondsPerQuestion <= 0:
		return fmt.Errorf("%w: secondsPerQuestion must be positive", ErrInvalidRules)
	case r.BonusRedemptionCost < 0:
		return fmt.Errorf("%w: bonusRedemptionCost must not be negative", ErrInvalidRules)
	}
	if len(r.Distribution) == 0 {
		return nil
	}
	total := 0
	seen := make(map[string]struct{}, len(r.Distribution))
	for _, d := range r.Distribution {
		if d.Category == "" || d.Count < 1 {
			return fmt.Errorf("%w: distribution entry %+v", ErrInvalidRules, d)
		}
		if _, dup := seen[d.Category]; dup {
			return fmt.Errorf("%w: category %q listed twice", ErrInvalidRules, d.Category)
		}
		seen[d.Category] = struct{}{}
		total += d.Count
	}
	if total != r.QuestionCount {
		return fmt.Errorf("%w: distribution draws %d questions, questionCount is %d", ErrInvalidRules, total, r.QuestionCount)
	}
	return nil
}

// MissionContent is the opaque payload produced by a content loader.
type MissionContent struct {
	ID           string       `json:"id" yaml:"id"`
	Title        string       `json:"title,omitempty" yaml:"title,omitempty"`
	Country      string       `json:"country,omitempty" yaml:"country,omitempty"`
	Reward       string       `json:"reward,omitempty" yaml:"reward,omitempty"` // puzzle fragment granted on pass
	Rules        MissionRules `json:"rules" yaml:"rules"`
	QuestionPool []Question   `json:"questionPool" yaml:"questionPool"`
}

// Validate checks the rules and every pooled question.
func (c MissionContent) Validate() error {
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("mission %q: %w", c.ID, err)
	}
	seen := make(map[string]struct{}, len(c.QuestionPool))
	for _, q := range c.QuestionPool {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("mission %q: %w", c.ID, err)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("mission %q: %w: question id %q used twice", c.ID, ErrInvalidQuestion, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

// AttemptResult is emitted once per passed attempt.
type AttemptResult struct {
	AttemptID             string    `json:"attemptId"`
	MissionID             string    `json:"missionId"`
	PlayerID              string    `json:"playerId"`
	Reward                string    `json:"reward,omitempty"`
	CorrectCount          int       `json:"correctCount"`
	TotalQuestions        int       `json:"totalQuestions"`
	LivesRemaining        int       `json:"livesRemaining"`
	BonusSecondsRemaining int       `json:"bonusSecondsRemaining"`
	UnlockedNarrativeIDs  []string  `json:"unlockedNarrativeIds"`
	CompletedAt           time.Time `json:"completedAt"`
}
