package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-attempt-service/internal/domain"
)

func TestCatalogCaches(t *testing.T) {
	loader := &countingLoader{
		CatalogLoader: NewStaticCatalogLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	catalog := NewCatalog(loader, time.Minute)

	if _, err := catalog.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := catalog.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestCatalogGetQuestion(t *testing.T) {
	catalog := NewCatalog(NewStaticCatalogLoader(map[string]domain.Quiz{
		"quiz-1": sampleQuiz(),
	}), time.Minute)

	question, err := catalog.GetQuestion(context.Background(), "quiz-1", "q1")
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if question.CorrectAnswerID() != "a2" {
		t.Fatalf("expected correct answer a2, got %q", question.CorrectAnswerID())
	}

	if _, err := catalog.GetQuestion(context.Background(), "quiz-1", "missing"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
	if _, err := catalog.GetQuestion(context.Background(), "missing", "q1"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

type countingLoader struct {
	CatalogLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.CatalogLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:              "quiz-1",
		TimePerQuestion: 20,
		PointsScale:     10,
		Questions: []domain.Question{
			{
				ID:         "q1",
				Prompt:     "What is 2 + 2?",
				Difficulty: domain.DifficultyEasy,
				Answers: []domain.Answer{
					{ID: "a1", Text: "3", Correct: false},
					{ID: "a2", Text: "4", Correct: true},
				},
			},
		},
	}
}
