package engine

import "mission-quiz-service/internal/domain"

// Verdict is the gate decision.
type Verdict bool

const (
	Pass Verdict = true
	Fail Verdict = false
)

func (v Verdict) String() string {
	if v {
		return "PASS"
	}
	return "FAIL"
}

// Evaluate passes iff correctCount reaches the rules threshold.
func Evaluate(correctCount int, rules domain.MissionRules) Verdict {
	return Verdict(correctCount >= rules.MinCorrectToPass)
}
