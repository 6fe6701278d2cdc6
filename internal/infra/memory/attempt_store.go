package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quiz-attempt-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore, used by
// unit tests and the demo server mode. The single mutex gives it the same
// observable guarantees the Postgres store gets from its unique constraint
// and atomic UPDATEs: exactly one insert per (attempt, question) pair wins,
// and increments never lose updates.
type AttemptStore struct {
	mu       sync.Mutex
	seq      int
	attempts map[string]*domain.QuizAttempt
	answers  map[string]*domain.UserAnswer // keyed attemptID + "/" + questionID
	stats    map[string]*questionStats
	awards   map[string]time.Time // keyed quizID + "/" + userID
}

type questionStats struct {
	timesAnswered int
	timesCorrect  int
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[string]*domain.QuizAttempt),
		answers:  make(map[string]*domain.UserAnswer),
		stats:    make(map[string]*questionStats),
		awards:   make(map[string]time.Time),
	}
}

func (s *AttemptStore) FindAttempt(_ context.Context, id string) (*domain.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return nil, nil
	}
	clone := *attempt
	clone.SelectedQuestionIDs = append([]string(nil), attempt.SelectedQuestionIDs...)
	return &clone, nil
}

func (s *AttemptStore) InsertAttempt(_ context.Context, attempt *domain.QuizAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if attempt.ID == "" {
		s.seq++
		attempt.ID = fmt.Sprintf("attempt-%d", s.seq)
	}
	if _, ok := s.attempts[attempt.ID]; ok {
		return fmt.Errorf("attempt %s already exists", attempt.ID)
	}
	clone := *attempt
	clone.SelectedQuestionIDs = append([]string(nil), attempt.SelectedQuestionIDs...)
	s.attempts[attempt.ID] = &clone
	return nil
}

func (s *AttemptStore) CompleteAttempt(_ context.Context, attemptID string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if attempt.CompletedAt != nil {
		return domain.ErrAttemptCompleted
	}
	attempt.CompletedAt = &completedAt
	return nil
}

func (s *AttemptStore) FindAnswer(_ context.Context, attemptID, questionID string) (*domain.UserAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	answer, ok := s.answers[attemptID+"/"+questionID]
	if !ok {
		return nil, nil
	}
	clone := *answer
	return &clone, nil
}

func (s *AttemptStore) CountAnswers(_ context.Context, attemptID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, answer := range s.answers {
		if answer.AttemptID == attemptID {
			count++
		}
	}
	return count, nil
}

func (s *AttemptStore) InsertAnswer(_ context.Context, answer *domain.UserAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := answer.AttemptID + "/" + answer.QuestionID
	if _, ok := s.answers[key]; ok {
		return domain.ErrDuplicateAnswer
	}
	if answer.ID == "" {
		s.seq++
		answer.ID = fmt.Sprintf("answer-%d", s.seq)
	}
	clone := *answer
	s.answers[key] = &clone
	return nil
}

func (s *AttemptStore) IncrementAttemptPoints(_ context.Context, attemptID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	attempt.TotalPoints += delta
	return nil
}

func (s *AttemptStore) IncrementQuestionStats(_ context.Context, questionID string, wasCorrect bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, ok := s.stats[questionID]
	if !ok {
		stats = &questionStats{}
		s.stats[questionID] = stats
	}
	stats.timesAnswered++
	if wasCorrect {
		stats.timesCorrect++
	}
	return nil
}

func (s *AttemptStore) CountAttempts(_ context.Context, userID, quizID string, startedAtGte *time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, attempt := range s.attempts {
		if attempt.UserID != userID || attempt.QuizID != quizID || attempt.IsPracticeMode {
			continue
		}
		if startedAtGte != nil && attempt.StartedAt.Before(*startedAtGte) {
			continue
		}
		count++
	}
	return count, nil
}

func (s *AttemptStore) AwardCompletionBonus(_ context.Context, quizID, userID, attemptID string, points int, awardedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := quizID + "/" + userID
	if _, ok := s.awards[key]; ok {
		return domain.ErrBonusAlreadyAwarded
	}
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	s.awards[key] = awardedAt
	attempt.TotalPoints += points
	return nil
}

// QuestionStats exposes the aggregate counters for assertions in tests.
func (s *AttemptStore) QuestionStats(questionID string) (timesAnswered, timesCorrect int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, ok := s.stats[questionID]
	if !ok {
		return 0, 0
	}
	return stats.timesAnswered, stats.timesCorrect
}
