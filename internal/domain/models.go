package domain

import "time"

// Difficulty buckets a question for scoring purposes.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Weight is the multiplier applied to a quiz's point scale to derive the
// question's point ceiling. Unknown difficulties weigh 0.
func (d Difficulty) Weight() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyMedium:
		return 2
	case DifficultyHard:
		return 3
	default:
		return 0
	}
}

// ResetPeriod is the cadence at which a user's attempt count against a quiz
// resets. All window math runs in UTC.
type ResetPeriod string

const (
	ResetNever   ResetPeriod = "NEVER"
	ResetDaily   ResetPeriod = "DAILY"
	ResetWeekly  ResetPeriod = "WEEKLY"
	ResetMonthly ResetPeriod = "MONTHLY"
)

// Quiz is the read-only slice of quiz configuration this service consumes.
type Quiz struct {
	ID                 string      `json:"id"`
	Title              string      `json:"title"`
	Questions          []Question  `json:"questions"`
	MaxAttemptsPerUser int         `json:"maxAttemptsPerUser"` // 0 = unlimited
	AttemptResetPeriod ResetPeriod `json:"attemptResetPeriod"`
	TimePerQuestion    int         `json:"timePerQuestion"` // seconds, fallback limit
	CompletionBonus    int         `json:"completionBonus"`
	PointsScale        float64     `json:"pointsScale"` // fixed at publish time
}

// Answer is one selectable option of a question.
type Answer struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question with exactly one correct answer.
type Question struct {
	ID            string     `json:"id"`
	Prompt        string     `json:"prompt"`
	Answers       []Answer   `json:"answers"`
	Difficulty    Difficulty `json:"difficulty"`
	TimeLimit     int        `json:"timeLimit"` // seconds; 0 = use quiz default
	TimesAnswered int        `json:"timesAnswered"`
	TimesCorrect  int        `json:"timesCorrect"`
}

// CorrectAnswerID returns the id of the correct answer, or "" if none is
// flagged (malformed content).
func (q Question) CorrectAnswerID() string {
	for _, a := range q.Answers {
		if a.Correct {
			return a.ID
		}
	}
	return ""
}

// EffectiveTimeLimit resolves the per-question override against the quiz
// fallback.
func (q Question) EffectiveTimeLimit(quiz Quiz) int {
	if q.TimeLimit > 0 {
		return q.TimeLimit
	}
	return quiz.TimePerQuestion
}

// QuizAttempt is one instance of a user taking a quiz. SelectedQuestionIDs
// is fixed at creation and defines both answer order and total count.
type QuizAttempt struct {
	ID                  string     `json:"id"`
	UserID              string     `json:"userId"`
	QuizID              string     `json:"quizId"`
	SelectedQuestionIDs []string   `json:"selectedQuestionIds"`
	IsPracticeMode      bool       `json:"isPracticeMode"`
	TotalPoints         int        `json:"totalPoints"`
	StartedAt           time.Time  `json:"startedAt"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
}

// HasQuestion reports whether questionID is part of this attempt.
func (a QuizAttempt) HasQuestion(questionID string) bool {
	for _, id := range a.SelectedQuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// UserAnswer records one answered (or skipped) question within an attempt.
// At most one row exists per (AttemptID, QuestionID); the store enforces it.
type UserAnswer struct {
	ID          string    `json:"id"`
	AttemptID   string    `json:"attemptId"`
	QuestionID  string    `json:"questionId"`
	AnswerID    *string   `json:"answerId"` // nil when skipped
	IsCorrect   bool      `json:"isCorrect"`
	WasSkipped  bool      `json:"wasSkipped"`
	TimeSpent   int       `json:"timeSpent"` // seconds
	BasePoints  int       `json:"basePoints"`
	StreakBonus int       `json:"streakBonus"`
	TimeBonus   int       `json:"timeBonus"`
	TotalPoints int       `json:"totalPoints"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AttemptLimitStatus describes where a user stands against a quiz's attempt
// limit inside the current reset window.
type AttemptLimitStatus struct {
	Max          int         `json:"max"`
	Used         int         `json:"used"`
	Remaining    int         `json:"remaining"`
	Period       ResetPeriod `json:"period"`
	WindowStart  *time.Time  `json:"windowStart"`
	ResetAt      *time.Time  `json:"resetAt"`
	LimitReached bool        `json:"limitReached"`
}

// SubmissionResult is the caller-visible outcome of an answer submission.
// Duplicate submissions are successes with AlreadySubmitted set.
type SubmissionResult struct {
	AlreadySubmitted bool   `json:"alreadySubmitted"`
	QuestionID       string `json:"questionId"`
	IsCorrect        bool   `json:"isCorrect"`
	WasSkipped       bool   `json:"wasSkipped"`
	PointsAwarded    int    `json:"pointsAwarded"`
}

// AttemptProgress is the snapshot pushed to progress subscribers after each
// recorded answer.
type AttemptProgress struct {
	AttemptID      string    `json:"attemptId"`
	AnsweredCount  int       `json:"answeredCount"`
	TotalQuestions int       `json:"totalQuestions"`
	TotalPoints    int       `json:"totalPoints"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
