package scoring

import (
	"context"

	"quiz-attempt-service/internal/domain"
)

// ScaleProvider supplies the quiz-level point scale consumed by Compute.
// Its derivation is opaque to this service; the only contract is a
// non-negative number representing the EASY-difficulty point ceiling.
type ScaleProvider interface {
	QuizScale(ctx context.Context, quiz domain.Quiz) (float64, error)
}

// StoredScaleProvider reads the scale fixed on the quiz record at publish
// time. Quizzes published without one fall back to DefaultScale.
type StoredScaleProvider struct {
	DefaultScale float64
}

func (p StoredScaleProvider) QuizScale(_ context.Context, quiz domain.Quiz) (float64, error) {
	if quiz.PointsScale > 0 {
		return quiz.PointsScale, nil
	}
	return p.DefaultScale, nil
}
