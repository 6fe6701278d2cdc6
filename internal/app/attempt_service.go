package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/scoring"
)

// AttemptService contains the attempt-answer-scoring use cases. Each request
// runs on its own goroutine with no shared in-process state between them;
// all coordination happens through the store's unique constraints and atomic
// increments, so correctness holds across multiple stateless instances.
type AttemptService struct {
	store   AttemptStore
	catalog QuizCatalog
	scale   scoring.ScaleProvider
	guard   *LimitGuard
	hub     *ProgressHub
	now     func() time.Time
}

func NewAttemptService(store AttemptStore, catalog QuizCatalog, scale scoring.ScaleProvider, hub *ProgressHub) *AttemptService {
	return &AttemptService{
		store:   store,
		catalog: catalog,
		scale:   scale,
		guard:   NewLimitGuard(store),
		hub:     hub,
		now:     time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *AttemptService) WithClock(now func() time.Time) *AttemptService {
	s.now = now
	return s
}

// Start creates a new attempt after the limit guard approves it. The ordered
// question set is fixed here and never changes afterwards. Practice attempts
// bypass the limit check entirely.
func (s *AttemptService) Start(ctx context.Context, userID, quizID string, isPracticeMode bool) (*domain.QuizAttempt, error) {
	quiz, err := s.catalog.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if _, err := s.guard.Check(ctx, userID, quiz, isPracticeMode, now); err != nil {
		return nil, err
	}

	selected := make([]string, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		selected = append(selected, q.ID)
	}

	attempt := &domain.QuizAttempt{
		UserID:              userID,
		QuizID:              quizID,
		SelectedQuestionIDs: selected,
		IsPracticeMode:      isPracticeMode,
		StartedAt:           now,
	}
	if err := s.store.InsertAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("insert attempt: %w", err)
	}
	return attempt, nil
}

// LimitStatus is the read-only introspection entry point, used for
// "2 of 3 attempts remaining" displays. Returns nil when no limit applies.
func (s *AttemptService) LimitStatus(ctx context.Context, userID, quizID string) (*domain.AttemptLimitStatus, error) {
	quiz, err := s.catalog.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return s.guard.Status(ctx, userID, quiz, false, s.now().UTC())
}

// Submit records one answer for a question in an attempt, exactly once.
//
// The (attempt, question) pair transitions {no-answer} -> {answer-recorded}
// and is terminal once recorded. Repeated submissions, sequential or
// concurrent, are indistinguishable successes reporting AlreadySubmitted:
// the store's unique constraint picks the single winning writer and the
// loser simply re-reads the recorded outcome. Only the winner touches the
// question aggregates and the attempt's running total.
func (s *AttemptService) Submit(ctx context.Context, attemptID, userID, questionID string, answerID *string, timeSpentSeconds int) (domain.SubmissionResult, error) {
	if timeSpentSeconds < 0 {
		return domain.SubmissionResult{}, fmt.Errorf("%w: negative time spent %d", domain.ErrInvalidArgument, timeSpentSeconds)
	}

	attempt, err := s.store.FindAttempt(ctx, attemptID)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	if attempt == nil {
		return domain.SubmissionResult{}, domain.ErrAttemptNotFound
	}
	if attempt.UserID != userID {
		return domain.SubmissionResult{}, domain.ErrForbidden
	}
	if attempt.CompletedAt != nil {
		return domain.SubmissionResult{}, domain.ErrAttemptCompleted
	}
	if !attempt.HasQuestion(questionID) {
		return domain.SubmissionResult{}, domain.ErrQuestionNotInAttempt
	}

	// Fast path: a previous request (or a retry of this one whose response
	// was lost) already recorded the answer.
	existing, err := s.store.FindAnswer(ctx, attemptID, questionID)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	if existing != nil {
		return resultFromAnswer(existing, true), nil
	}

	quiz, err := s.catalog.GetQuiz(ctx, attempt.QuizID)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	question, err := s.catalog.GetQuestion(ctx, attempt.QuizID, questionID)
	if err != nil {
		return domain.SubmissionResult{}, err
	}

	wasSkipped := answerID == nil
	isCorrect := !wasSkipped && *answerID == question.CorrectAnswerID() && question.CorrectAnswerID() != ""

	quizScale, err := s.scale.QuizScale(ctx, quiz)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	points, err := scoring.Compute(scoring.Input{
		IsCorrect:           isCorrect,
		ResponseTimeSeconds: timeSpentSeconds,
		TimeLimitSeconds:    question.EffectiveTimeLimit(quiz),
		Difficulty:          question.Difficulty,
		QuizScale:           quizScale,
	})
	if err != nil {
		return domain.SubmissionResult{}, err
	}

	answer := &domain.UserAnswer{
		AttemptID:   attemptID,
		QuestionID:  questionID,
		AnswerID:    answerID,
		IsCorrect:   isCorrect,
		WasSkipped:  wasSkipped,
		TimeSpent:   timeSpentSeconds,
		TimeBonus:   points,
		TotalPoints: points,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.InsertAnswer(ctx, answer); err != nil {
		// Slow path: a concurrent request won the race between the existence
		// check and the insert. Not an error; report the recorded outcome.
		if errors.Is(err, domain.ErrDuplicateAnswer) {
			winner, findErr := s.store.FindAnswer(ctx, attemptID, questionID)
			if findErr != nil {
				return domain.SubmissionResult{}, findErr
			}
			if winner == nil {
				return domain.SubmissionResult{}, fmt.Errorf("answer conflict for attempt %s question %s but no row found", attemptID, questionID)
			}
			return resultFromAnswer(winner, true), nil
		}
		return domain.SubmissionResult{}, fmt.Errorf("insert answer: %w", err)
	}

	// This request won the insert; it alone applies the secondary mutations.
	// Practice attempts keep their running total but stay out of the
	// persistent question aggregates.
	if !attempt.IsPracticeMode {
		if err := s.store.IncrementQuestionStats(ctx, questionID, isCorrect); err != nil {
			return domain.SubmissionResult{}, fmt.Errorf("increment question stats: %w", err)
		}
	}
	if points > 0 {
		if err := s.store.IncrementAttemptPoints(ctx, attemptID, points); err != nil {
			return domain.SubmissionResult{}, fmt.Errorf("increment attempt points: %w", err)
		}
	}

	s.publishProgress(ctx, attempt)

	return resultFromAnswer(answer, false), nil
}

// Complete marks the attempt terminal exactly once and, for non-practice
// attempts, awards the quiz's completion bonus at most once per (quiz, user)
// via the same unique-constraint pattern the answer insert uses.
func (s *AttemptService) Complete(ctx context.Context, attemptID, userID string) (*domain.QuizAttempt, error) {
	attempt, err := s.store.FindAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, domain.ErrAttemptNotFound
	}
	if attempt.UserID != userID {
		return nil, domain.ErrForbidden
	}
	if attempt.CompletedAt != nil {
		return nil, domain.ErrAttemptCompleted
	}

	now := s.now().UTC()

	// The bonus lands before the completion mark: a retry after a failure in
	// between still passes the completed check above and reaches the award,
	// whose unique key keeps it at most once per (quiz, user).
	if !attempt.IsPracticeMode {
		quiz, err := s.catalog.GetQuiz(ctx, attempt.QuizID)
		if err != nil {
			return nil, err
		}
		if quiz.CompletionBonus > 0 {
			err := s.store.AwardCompletionBonus(ctx, attempt.QuizID, userID, attemptID, quiz.CompletionBonus, now)
			if err != nil && !errors.Is(err, domain.ErrBonusAlreadyAwarded) {
				return nil, fmt.Errorf("award completion bonus: %w", err)
			}
		}
	}

	if err := s.store.CompleteAttempt(ctx, attemptID, now); err != nil {
		return nil, err
	}

	final, err := s.store.FindAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return final, nil
}

// SubscribeProgress returns a live feed of progress snapshots for one
// attempt, after validating it exists and belongs to the user.
func (s *AttemptService) SubscribeProgress(ctx context.Context, attemptID, userID string) (<-chan domain.AttemptProgress, func(), error) {
	attempt, err := s.store.FindAttempt(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}
	if attempt == nil {
		return nil, nil, domain.ErrAttemptNotFound
	}
	if attempt.UserID != userID {
		return nil, nil, domain.ErrForbidden
	}
	ch, cancel := s.hub.Subscribe(attemptID)
	return ch, cancel, nil
}

// publishProgress is best-effort: a failed read only costs subscribers one
// snapshot, never the submission itself.
func (s *AttemptService) publishProgress(ctx context.Context, attempt *domain.QuizAttempt) {
	if s.hub == nil {
		return
	}
	answered, err := s.store.CountAnswers(ctx, attempt.ID)
	if err != nil {
		return
	}
	current, err := s.store.FindAttempt(ctx, attempt.ID)
	if err != nil || current == nil {
		return
	}
	s.hub.Publish(domain.AttemptProgress{
		AttemptID:      attempt.ID,
		AnsweredCount:  answered,
		TotalQuestions: len(attempt.SelectedQuestionIDs),
		TotalPoints:    current.TotalPoints,
		UpdatedAt:      s.now().UTC(),
	})
}

func resultFromAnswer(answer *domain.UserAnswer, already bool) domain.SubmissionResult {
	return domain.SubmissionResult{
		AlreadySubmitted: already,
		QuestionID:       answer.QuestionID,
		IsCorrect:        answer.IsCorrect,
		WasSkipped:       answer.WasSkipped,
		PointsAwarded:    answer.TotalPoints,
	}
}
