package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAttemptNotFound is returned when no attempt exists for the given id.
	ErrAttemptNotFound = errors.New("quiz attempt not found")
	// ErrForbidden is returned when an attempt belongs to a different user.
	ErrForbidden = errors.New("attempt belongs to a different user")
	// ErrAttemptCompleted is returned when acting on an already-completed attempt.
	ErrAttemptCompleted = errors.New("quiz attempt already completed")
	// ErrQuestionNotInAttempt is returned when the question is not part of the
	// attempt's selected question set.
	ErrQuestionNotInAttempt = errors.New("question not part of this quiz attempt")
	// ErrInvalidArgument flags malformed scoring inputs (e.g. a non-positive
	// time limit). Callers must not clamp around it.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDuplicateAnswer is the store-level unique violation on
	// (attempt_id, question_id). The coordinator absorbs it; it never reaches
	// callers.
	ErrDuplicateAnswer = errors.New("answer already recorded for this question")
	// ErrBonusAlreadyAwarded is the unique violation on the per-(quiz, user)
	// completion bonus award.
	ErrBonusAlreadyAwarded = errors.New("completion bonus already awarded")
)

// AttemptLimitError signals that a user has exhausted their attempts for a
// quiz in the current reset window. It carries enough metadata for clients
// to display when a retry becomes valid.
type AttemptLimitError struct {
	Max     int
	Period  ResetPeriod
	ResetAt *time.Time // nil when the limit never resets
}

func (e *AttemptLimitError) Error() string {
	if e.ResetAt == nil {
		return fmt.Sprintf("attempt limit of %d reached", e.Max)
	}
	return fmt.Sprintf("attempt limit of %d reached, resets at %s", e.Max, e.ResetAt.UTC().Format(time.RFC3339))
}
