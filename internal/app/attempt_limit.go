package app

import (
	"context"
	"time"

	"quiz-attempt-service/internal/domain"
)

// Window math runs entirely in UTC wall-clock so that the count query's
// lower bound and the window-start computation can never drift apart. The
// window is half-open on the left and unbounded on the right relative to
// the reference instant, which callers thread through explicitly; nothing
// here reads the clock.

// WindowStart returns the start of the current reset window, or nil when the
// period never resets. WEEKLY windows start on the most recent Sunday
// 00:00:00 UTC (day-of-week based, not ISO weeks).
func WindowStart(period domain.ResetPeriod, ref time.Time) *time.Time {
	ref = ref.UTC()
	switch period {
	case domain.ResetDaily:
		start := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
		return &start
	case domain.ResetWeekly:
		midnight := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
		start := midnight.AddDate(0, 0, -int(ref.Weekday()))
		return &start
	case domain.ResetMonthly:
		start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
		return &start
	default:
		return nil
	}
}

// NextResetAt returns the instant the current window closes: the window
// start plus exactly one period length, or nil when the period never resets.
func NextResetAt(period domain.ResetPeriod, ref time.Time) *time.Time {
	start := WindowStart(period, ref)
	if start == nil {
		return nil
	}
	var next time.Time
	switch period {
	case domain.ResetDaily:
		next = start.AddDate(0, 0, 1)
	case domain.ResetWeekly:
		next = start.AddDate(0, 0, 7)
	case domain.ResetMonthly:
		next = start.AddDate(0, 1, 0)
	default:
		return nil
	}
	return &next
}

// AttemptCounter is the single read query the limit guard depends on.
type AttemptCounter interface {
	CountAttempts(ctx context.Context, userID, quizID string, startedAtGte *time.Time) (int, error)
}

// LimitGuard decides whether a user may start another attempt at a quiz. It
// never mutates state; its only failure mode is the explicit limit-exceeded
// signal.
type LimitGuard struct {
	attempts AttemptCounter
}

func NewLimitGuard(attempts AttemptCounter) *LimitGuard {
	return &LimitGuard{attempts: attempts}
}

// Status reports where the user stands against the quiz's attempt limit at
// the reference instant. It returns (nil, nil) when no limit applies:
// practice-mode attempts and quizzes without MaxAttemptsPerUser are
// unrestricted. Practice attempts are also excluded from the count itself
// by the store query.
func (g *LimitGuard) Status(ctx context.Context, userID string, quiz domain.Quiz, isPracticeMode bool, ref time.Time) (*domain.AttemptLimitStatus, error) {
	if isPracticeMode || quiz.MaxAttemptsPerUser <= 0 {
		return nil, nil
	}

	windowStart := WindowStart(quiz.AttemptResetPeriod, ref)
	used, err := g.attempts.CountAttempts(ctx, userID, quiz.ID, windowStart)
	if err != nil {
		return nil, err
	}

	remaining := quiz.MaxAttemptsPerUser - used
	if remaining < 0 {
		remaining = 0
	}
	return &domain.AttemptLimitStatus{
		Max:          quiz.MaxAttemptsPerUser,
		Used:         used,
		Remaining:    remaining,
		Period:       quiz.AttemptResetPeriod,
		WindowStart:  windowStart,
		ResetAt:      NextResetAt(quiz.AttemptResetPeriod, ref),
		LimitReached: used >= quiz.MaxAttemptsPerUser,
	}, nil
}

// Check is the enforcement entry point: identical to Status, except a
// reached limit fails with *domain.AttemptLimitError carrying the metadata
// clients need to display when a retry becomes valid.
func (g *LimitGuard) Check(ctx context.Context, userID string, quiz domain.Quiz, isPracticeMode bool, ref time.Time) (*domain.AttemptLimitStatus, error) {
	status, err := g.Status(ctx, userID, quiz, isPracticeMode, ref)
	if err != nil || status == nil {
		return status, err
	}
	if status.LimitReached {
		return nil, &domain.AttemptLimitError{
			Max:     status.Max,
			Period:  status.Period,
			ResetAt: status.ResetAt,
		}
	}
	return status, nil
}
