// Package scoring computes per-question point values. Everything here is
// pure: no clock reads, no I/O, safe for concurrent use and for offline
// recomputation against historical answers.
package scoring

import (
	"fmt"
	"math"

	"quiz-attempt-service/internal/domain"
)

// Input carries one answer's scoring signal.
type Input struct {
	IsCorrect           bool
	ResponseTimeSeconds int
	TimeLimitSeconds    int
	Difficulty          domain.Difficulty
	QuizScale           float64 // point ceiling for an EASY question
}

// Compute returns the integer point value for one answered question.
//
// Wrong answers score 0, as do answers arriving at or after the time limit;
// the score does not distinguish "wrong" from "timed out". Otherwise the
// ceiling is QuizScale scaled by the difficulty weight (EASY=1, MEDIUM=2,
// HARD=3), decayed linearly by elapsed time and rounded to the nearest
// integer, so an instant answer earns the full ceiling and an answer one
// second before expiry still earns a positive score.
func Compute(in Input) (int, error) {
	if in.TimeLimitSeconds <= 0 {
		return 0, fmt.Errorf("%w: time limit must be positive, got %d", domain.ErrInvalidArgument, in.TimeLimitSeconds)
	}
	if in.ResponseTimeSeconds < 0 {
		return 0, fmt.Errorf("%w: negative response time %d", domain.ErrInvalidArgument, in.ResponseTimeSeconds)
	}
	if in.QuizScale < 0 {
		return 0, fmt.Errorf("%w: negative quiz scale %v", domain.ErrInvalidArgument, in.QuizScale)
	}
	weight := in.Difficulty.Weight()
	if weight == 0 {
		return 0, fmt.Errorf("%w: unknown difficulty %q", domain.ErrInvalidArgument, in.Difficulty)
	}

	if !in.IsCorrect || in.ResponseTimeSeconds >= in.TimeLimitSeconds {
		return 0, nil
	}

	pMax := in.QuizScale * float64(weight)
	speed := float64(in.TimeLimitSeconds-in.ResponseTimeSeconds) / float64(in.TimeLimitSeconds)
	if speed > 1 {
		speed = 1
	}
	score := int(math.Round(pMax * speed))
	if score < 0 {
		score = 0
	}
	return score, nil
}
