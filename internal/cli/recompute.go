package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
	pgstore "quiz-attempt-service/internal/infra/postgres"
	"quiz-attempt-service/internal/scoring"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewRecomputeCmd rebuilds per-answer points and attempt totals for all
// completed attempts from the recorded answers. Because the scorer is pure,
// replaying it over historical rows is a straight database walk: useful
// after a scoring-formula fix or a suspect migration.
func NewRecomputeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute",
		Short: "Recompute answer points and attempt totals for completed attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			return recomputeAttemptPoints(cmd.Context(), cfg)
		},
	}
}

type completedAttempt struct {
	id          string
	userID      string
	quizID      string
	startedAt   time.Time
	completedAt time.Time
}

func recomputeAttemptPoints(ctx context.Context, cfg config.Config) error {
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	loader := pgstore.NewCatalogLoader(pool)

	defaultScale := cfg.Scoring.DefaultScale
	if defaultScale <= 0 {
		defaultScale = 10
	}
	scale := scoring.StoredScaleProvider{DefaultScale: defaultScale}

	attempts, err := listCompletedAttempts(ctx, pool)
	if err != nil {
		return err
	}

	quizzes := make(map[string]domain.Quiz)
	updated := 0
	for _, attempt := range attempts {
		quiz, ok := quizzes[attempt.quizID]
		if !ok {
			quiz, err = loader.LoadQuiz(ctx, attempt.quizID)
			if err != nil {
				return fmt.Errorf("attempt %s: %w", attempt.id, err)
			}
			quizzes[attempt.quizID] = quiz
		}
		if err := recomputeOne(ctx, pool, attempt, quiz, scale); err != nil {
			return fmt.Errorf("attempt %s: %w", attempt.id, err)
		}
		updated++
	}
	log.Printf("recomputed points for %d attempts", updated)
	return nil
}

func listCompletedAttempts(ctx context.Context, pool *pgxpool.Pool) ([]completedAttempt, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, user_id, quiz_id, started_at, completed_at
		FROM quiz_attempts WHERE completed_at IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []completedAttempt
	for rows.Next() {
		var a completedAttempt
		if err := rows.Scan(&a.id, &a.userID, &a.quizID, &a.startedAt, &a.completedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func recomputeOne(ctx context.Context, pool *pgxpool.Pool, attempt completedAttempt, quiz domain.Quiz, scale scoring.ScaleProvider) error {
	questions := make(map[string]domain.Question, len(quiz.Questions))
	for _, q := range quiz.Questions {
		questions[q.ID] = q
	}
	quizScale, err := scale.QuizScale(ctx, quiz)
	if err != nil {
		return err
	}

	return pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, question_id, is_correct, was_skipped, time_spent, total_points
			FROM user_answers WHERE attempt_id = $1 ORDER BY created_at`, attempt.id)
		if err != nil {
			return err
		}

		type recomputed struct {
			id     string
			points int
		}
		var answers []recomputed
		total := 0
		for rows.Next() {
			var (
				id, questionID        string
				isCorrect, wasSkipped bool
				timeSpent, stored     int
			)
			if err := rows.Scan(&id, &questionID, &isCorrect, &wasSkipped, &timeSpent, &stored); err != nil {
				rows.Close()
				return err
			}
			question, ok := questions[questionID]
			if !ok {
				// Question no longer on the quiz; keep the stored value.
				total += stored
				continue
			}
			limit := question.EffectiveTimeLimit(quiz)
			if limit <= 0 {
				// Legacy rows predating per-quiz time limits.
				limit = 60
			}
			points, err := scoring.Compute(scoring.Input{
				IsCorrect:           isCorrect && !wasSkipped,
				ResponseTimeSeconds: timeSpent,
				TimeLimitSeconds:    limit,
				Difficulty:          question.Difficulty,
				QuizScale:           quizScale,
			})
			if err != nil {
				rows.Close()
				return fmt.Errorf("answer %s: %w", id, err)
			}
			answers = append(answers, recomputed{id: id, points: points})
			total += points
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, a := range answers {
			if _, err := tx.Exec(ctx, `
				UPDATE user_answers
				SET base_points = 0, streak_bonus = 0, time_bonus = $2, total_points = $2
				WHERE id = $1`, a.id, a.points); err != nil {
				return err
			}
		}

		// Keep a bonus earned during this attempt inside the new total.
		var awardedAt *time.Time
		err = tx.QueryRow(ctx, `
			SELECT awarded_at FROM completion_bonus_awards
			WHERE quiz_id = $1 AND user_id = $2`, attempt.quizID, attempt.userID).Scan(&awardedAt)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if awardedAt != nil && !awardedAt.Before(attempt.startedAt) && !awardedAt.After(attempt.completedAt) {
			total += quiz.CompletionBonus
		}

		_, err = tx.Exec(ctx, `UPDATE quiz_attempts SET total_points = $2 WHERE id = $1`, attempt.id, total)
		return err
	})
}
