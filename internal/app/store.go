package app

import (
	"context"
	"time"

	"quiz-attempt-service/internal/domain"
)

// AttemptStore abstracts how attempts and answers are persisted (in-memory,
// Postgres, etc). The store is the single source of truth for "has this
// question been answered in this attempt": InsertAnswer must enforce a real
// unique constraint on (attempt_id, question_id) and fail with
// domain.ErrDuplicateAnswer on conflict, and both increment operations must
// be atomic at the store layer, never read-modify-write.
type AttemptStore interface {
	FindAttempt(ctx context.Context, id string) (*domain.QuizAttempt, error)
	InsertAttempt(ctx context.Context, attempt *domain.QuizAttempt) error
	// CompleteAttempt sets completed_at exactly once. It fails with
	// domain.ErrAttemptCompleted when the attempt is already terminal.
	CompleteAttempt(ctx context.Context, attemptID string, completedAt time.Time) error

	FindAnswer(ctx context.Context, attemptID, questionID string) (*domain.UserAnswer, error)
	CountAnswers(ctx context.Context, attemptID string) (int, error)
	// InsertAnswer persists the answer row, failing with
	// domain.ErrDuplicateAnswer when the (attempt, question) pair already has
	// one. Exactly one concurrent writer can succeed.
	InsertAnswer(ctx context.Context, answer *domain.UserAnswer) error

	IncrementAttemptPoints(ctx context.Context, attemptID string, delta int) error
	IncrementQuestionStats(ctx context.Context, questionID string, wasCorrect bool) error

	// CountAttempts counts non-practice attempts by the user on the quiz with
	// startedAt >= startedAtGte; a nil bound counts all of them.
	CountAttempts(ctx context.Context, userID, quizID string, startedAtGte *time.Time) (int, error)

	// AwardCompletionBonus records the one-time completion bonus for
	// (quizID, userID) and adds its points to the attempt in a single atomic
	// step. Fails with domain.ErrBonusAlreadyAwarded when the user has
	// already earned it, leaving the attempt untouched.
	AwardCompletionBonus(ctx context.Context, quizID, userID, attemptID string, points int, awardedAt time.Time) error
}

// QuizCatalog loads quiz and question content (from cache/backing store).
// Nothing in this service mutates catalog content except the per-question
// aggregate counters, which go through AttemptStore.
type QuizCatalog interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	GetQuestion(ctx context.Context, quizID, questionID string) (domain.Question, error)
}
