package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-attempt-service/internal/domain"
)

func TestInsertAnswerEnforcesUniquePair(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()

	answer := func() *domain.UserAnswer {
		return &domain.UserAnswer{AttemptID: "attempt-1", QuestionID: "q1", IsCorrect: true}
	}

	if err := store.InsertAnswer(ctx, answer()); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := store.InsertAnswer(ctx, answer()); !errors.Is(err, domain.ErrDuplicateAnswer) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	// A different question in the same attempt is fine.
	if err := store.InsertAnswer(ctx, &domain.UserAnswer{AttemptID: "attempt-1", QuestionID: "q2"}); err != nil {
		t.Fatalf("different question: %v", err)
	}

	count, err := store.CountAnswers(ctx, "attempt-1")
	if err != nil || count != 2 {
		t.Fatalf("expected 2 answers, got %d (%v)", count, err)
	}
}

func TestInsertAnswerConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()

	const workers = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.InsertAnswer(ctx, &domain.UserAnswer{AttemptID: "attempt-1", QuestionID: "q1"})
			if err == nil {
				wins <- struct{}{}
			} else if !errors.Is(err, domain.ErrDuplicateAnswer) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for range wins {
		winners++
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestCountAttemptsFilters(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	insert := func(userID string, startedAt time.Time, practice bool) {
		t.Helper()
		err := store.InsertAttempt(ctx, &domain.QuizAttempt{
			UserID: userID, QuizID: "quiz-1", StartedAt: startedAt, IsPracticeMode: practice,
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	insert("u1", base.Add(2*time.Hour), false)
	insert("u1", base.Add(-time.Second), false) // before the bound
	insert("u1", base.Add(3*time.Hour), true)   // practice
	insert("u2", base.Add(4*time.Hour), false)  // other user

	count, err := store.CountAttempts(ctx, "u1", "quiz-1", &base)
	if err != nil || count != 1 {
		t.Fatalf("expected 1 bounded attempt, got %d (%v)", count, err)
	}
	count, err = store.CountAttempts(ctx, "u1", "quiz-1", nil)
	if err != nil || count != 2 {
		t.Fatalf("expected 2 unbounded attempts, got %d (%v)", count, err)
	}
}

func TestCompleteAttemptIsTerminal(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()

	attempt := &domain.QuizAttempt{UserID: "u1", QuizID: "quiz-1", StartedAt: time.Now()}
	if err := store.InsertAttempt(ctx, attempt); err != nil {
		t.Fatalf("insert: %v", err)
	}

	now := time.Now().UTC()
	if err := store.CompleteAttempt(ctx, attempt.ID, now); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := store.CompleteAttempt(ctx, attempt.ID, now.Add(time.Minute)); !errors.Is(err, domain.ErrAttemptCompleted) {
		t.Fatalf("expected terminal error, got %v", err)
	}
	if err := store.CompleteAttempt(ctx, "missing", now); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAwardCompletionBonusOncePerUser(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()
	now := time.Now().UTC()

	insert := func(userID string) string {
		t.Helper()
		attempt := &domain.QuizAttempt{UserID: userID, QuizID: "quiz-1", StartedAt: now}
		if err := store.InsertAttempt(ctx, attempt); err != nil {
			t.Fatalf("insert attempt: %v", err)
		}
		return attempt.ID
	}
	points := func(attemptID string) int {
		t.Helper()
		attempt, err := store.FindAttempt(ctx, attemptID)
		if err != nil {
			t.Fatalf("find attempt: %v", err)
		}
		return attempt.TotalPoints
	}

	first := insert("u1")
	if err := store.AwardCompletionBonus(ctx, "quiz-1", "u1", first, 5, now); err != nil {
		t.Fatalf("first award: %v", err)
	}
	if got := points(first); got != 5 {
		t.Fatalf("expected 5 points after award, got %d", got)
	}
	if err := store.AwardCompletionBonus(ctx, "quiz-1", "u1", first, 5, now); !errors.Is(err, domain.ErrBonusAlreadyAwarded) {
		t.Fatalf("expected already-awarded error, got %v", err)
	}
	if got := points(first); got != 5 {
		t.Fatalf("duplicate award must not add points, got %d", got)
	}

	other := insert("u2")
	if err := store.AwardCompletionBonus(ctx, "quiz-1", "u2", other, 5, now); err != nil {
		t.Fatalf("different user: %v", err)
	}

	if err := store.AwardCompletionBonus(ctx, "quiz-1", "u3", "missing", 5, now); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
