package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quiz-attempt-service/internal/domain"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const uniqueViolation = "23505"

// AttemptStore persists attempts and answers in Postgres. The unique index
// on (attempt_id, question_id) is the coordination mechanism for concurrent
// duplicate submissions, and all counter updates are single atomic UPDATE
// statements, so correctness holds across multiple service instances
// without any in-process locking.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) FindAttempt(ctx context.Context, id string) (*domain.QuizAttempt, error) {
	var attempt domain.QuizAttempt
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, quiz_id, selected_question_ids, is_practice_mode,
		       total_points, started_at, completed_at
		FROM quiz_attempts WHERE id = $1`, id).Scan(
		&attempt.ID, &attempt.UserID, &attempt.QuizID, &attempt.SelectedQuestionIDs,
		&attempt.IsPracticeMode, &attempt.TotalPoints, &attempt.StartedAt, &attempt.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find attempt: %w", err)
	}
	return &attempt, nil
}

func (s *AttemptStore) InsertAttempt(ctx context.Context, attempt *domain.QuizAttempt) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO quiz_attempts (user_id, quiz_id, selected_question_ids, is_practice_mode, started_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		attempt.UserID, attempt.QuizID, attempt.SelectedQuestionIDs, attempt.IsPracticeMode, attempt.StartedAt,
	).Scan(&attempt.ID)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) CompleteAttempt(ctx context.Context, attemptID string, completedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE quiz_attempts SET completed_at = $2
		WHERE id = $1 AND completed_at IS NULL`, attemptID, completedAt)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	// Distinguish "missing" from "lost the completion race".
	existing, err := s.FindAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrAttemptNotFound
	}
	return domain.ErrAttemptCompleted
}

func (s *AttemptStore) FindAnswer(ctx context.Context, attemptID, questionID string) (*domain.UserAnswer, error) {
	var answer domain.UserAnswer
	err := s.pool.QueryRow(ctx, `
		SELECT id, attempt_id, question_id, answer_id, is_correct, was_skipped,
		       time_spent, base_points, streak_bonus, time_bonus, total_points, created_at
		FROM user_answers WHERE attempt_id = $1 AND question_id = $2`, attemptID, questionID).Scan(
		&answer.ID, &answer.AttemptID, &answer.QuestionID, &answer.AnswerID,
		&answer.IsCorrect, &answer.WasSkipped, &answer.TimeSpent,
		&answer.BasePoints, &answer.StreakBonus, &answer.TimeBonus, &answer.TotalPoints, &answer.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find answer: %w", err)
	}
	return &answer, nil
}

func (s *AttemptStore) CountAnswers(ctx context.Context, attemptID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM user_answers WHERE attempt_id = $1`, attemptID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count answers: %w", err)
	}
	return count, nil
}

func (s *AttemptStore) InsertAnswer(ctx context.Context, answer *domain.UserAnswer) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO user_answers (attempt_id, question_id, answer_id, is_correct, was_skipped,
		                          time_spent, base_points, streak_bonus, time_bonus, total_points, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		answer.AttemptID, answer.QuestionID, answer.AnswerID, answer.IsCorrect, answer.WasSkipped,
		answer.TimeSpent, answer.BasePoints, answer.StreakBonus, answer.TimeBonus, answer.TotalPoints, answer.CreatedAt,
	).Scan(&answer.ID)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateAnswer
	}
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

func (s *AttemptStore) IncrementAttemptPoints(ctx context.Context, attemptID string, delta int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE quiz_attempts SET total_points = total_points + $2 WHERE id = $1`, attemptID, delta)
	if err != nil {
		return fmt.Errorf("increment attempt points: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (s *AttemptStore) IncrementQuestionStats(ctx context.Context, questionID string, wasCorrect bool) error {
	correct := 0
	if wasCorrect {
		correct = 1
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO question_stats (question_id, times_answered, times_correct)
		VALUES ($1, 1, $2)
		ON CONFLICT (question_id) DO UPDATE SET
			times_answered = question_stats.times_answered + 1,
			times_correct  = question_stats.times_correct + $2`, questionID, correct)
	if err != nil {
		return fmt.Errorf("increment question stats: %w", err)
	}
	return nil
}

func (s *AttemptStore) CountAttempts(ctx context.Context, userID, quizID string, startedAtGte *time.Time) (int, error) {
	query := `
		SELECT count(*) FROM quiz_attempts
		WHERE user_id = $1 AND quiz_id = $2 AND NOT is_practice_mode`
	args := []interface{}{userID, quizID}
	if startedAtGte != nil {
		query += ` AND started_at >= $3`
		args = append(args, *startedAtGte)
	}
	var count int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}

func (s *AttemptStore) AwardCompletionBonus(ctx context.Context, quizID, userID, attemptID string, points int, awardedAt time.Time) error {
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO completion_bonus_awards (quiz_id, user_id, awarded_at)
			VALUES ($1, $2, $3)`, quizID, userID, awardedAt)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE quiz_attempts SET total_points = total_points + $2 WHERE id = $1`, attemptID, points)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrAttemptNotFound
		}
		return nil
	})
	if isUniqueViolation(err) {
		return domain.ErrBonusAlreadyAwarded
	}
	if errors.Is(err, domain.ErrAttemptNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("award completion bonus: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
