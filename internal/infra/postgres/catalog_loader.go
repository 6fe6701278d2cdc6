package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"quiz-attempt-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// CatalogLoader loads quiz JSONB from Postgres. Quiz content, including
// attempt-limit configuration and per-question scoring inputs, lives in one
// document per quiz; the aggregate counters live in question_stats and are
// merged in on load.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id = $1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	quiz.ID = quizID

	rows, err := l.pool.Query(ctx, `
		SELECT question_id, times_answered, times_correct
		FROM question_stats WHERE question_id = ANY($1)`, questionIDs(quiz))
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load question stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string][2]int)
	for rows.Next() {
		var id string
		var answered, correct int
		if err := rows.Scan(&id, &answered, &correct); err != nil {
			return domain.Quiz{}, fmt.Errorf("scan question stats: %w", err)
		}
		stats[id] = [2]int{answered, correct}
	}
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("read question stats: %w", err)
	}
	for i := range quiz.Questions {
		if s, ok := stats[quiz.Questions[i].ID]; ok {
			quiz.Questions[i].TimesAnswered = s[0]
			quiz.Questions[i].TimesCorrect = s[1]
		}
	}
	return quiz, nil
}

func questionIDs(quiz domain.Quiz) []string {
	ids := make([]string, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		ids = append(ids, q.ID)
	}
	return ids
}
