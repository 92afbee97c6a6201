package domain

import "errors"

var (
	// ErrInsufficientQuestions is returned when a pool cannot satisfy the requested draw.
	ErrInsufficientQuestions = errors.New("insufficient questions in pool")
	// ErrContentUnavailable indicates mission content could not be loaded.
	ErrContentUnavailable = errors.New("mission content unavailable")
	// ErrInsufficientBonus is returned when a rescue is redeemed out of turn or underfunded.
	ErrInsufficientBonus = errors.New("insufficient bonus to redeem")
	// ErrPhaseRejected indicates an operation the current phase does not accept.
	ErrPhaseRejected = errors.New("operation not accepted in current phase")
	// ErrInvalidChoice indicates a submitted choice index is out of range.
	ErrInvalidChoice = errors.New("invalid choice")
	// ErrInvalidRules indicates mission rules violate their invariants.
	ErrInvalidRules = errors.New("invalid mission rules")
	// ErrInvalidQuestion indicates a malformed question entry.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrUnknownPreset indicates a rules preset name that is not registered.
	ErrUnknownPreset = errors.New("unknown rules preset")
	// ErrAttemptNotFound is returned when an attempt ID is unknown to the store.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptClosed is returned for operations on an abandoned attempt.
	ErrAttemptClosed = errors.New("attempt closed")
	// ErrResultNotRecorded wraps a failure of the result sink after a passed attempt.
	ErrResultNotRecorded = errors.New("attempt result not recorded")
)
