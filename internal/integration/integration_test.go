package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
	pgstore "quiz-attempt-service/internal/infra/postgres"
	pgmigrations "quiz-attempt-service/internal/infra/postgres/migrations"
	infraredis "quiz-attempt-service/internal/infra/redis"
	"quiz-attempt-service/internal/scoring"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

// Exercises the full stack against real Postgres and Redis: the unique
// constraint on user_answers must pick a single winner under concurrent
// duplicate submissions, and the aggregates must move exactly once.
func TestConcurrentSubmissionsEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	store := pgstore.NewAttemptStore(pool)
	catalog := infraredis.NewCatalog(redisClient, pgstore.NewCatalogLoader(pool), 5*time.Minute)
	service := app.NewAttemptService(store, catalog, scoring.StoredScaleProvider{DefaultScale: 10}, app.NewProgressHub())

	attempt, err := service.Start(ctx, "u1", "quiz-1", false)
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}

	const workers = 12
	answerID := "a2"
	results := make([]domain.SubmissionResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = service.Submit(ctx, attempt.ID, "u1", "q1", &answerID, 0)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if !results[i].AlreadySubmitted {
			winners++
		}
		if !results[i].IsCorrect || results[i].PointsAwarded != 10 {
			t.Fatalf("worker %d saw wrong outcome: %+v", i, results[i])
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning insert, got %d", winners)
	}

	count, err := store.CountAnswers(ctx, attempt.ID)
	if err != nil || count != 1 {
		t.Fatalf("expected a single answer row, got %d (%v)", count, err)
	}
	current, err := store.FindAttempt(ctx, attempt.ID)
	if err != nil || current == nil {
		t.Fatalf("find attempt: %v", err)
	}
	if current.TotalPoints != 10 {
		t.Fatalf("attempt total moved more than once: %d", current.TotalPoints)
	}

	var answered, correct int
	err = pool.QueryRow(ctx, `SELECT times_answered, times_correct FROM question_stats WHERE question_id = 'q1'`).Scan(&answered, &correct)
	if err != nil {
		t.Fatalf("read question stats: %v", err)
	}
	if answered != 1 || correct != 1 {
		t.Fatalf("question stats moved more than once: %d/%d", answered, correct)
	}
}

func TestAttemptLimitEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	quiz := sampleQuiz()
	quiz.MaxAttemptsPerUser = 2
	seedQuiz(t, ctx, pgURL, quiz)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := pgstore.NewAttemptStore(pool)
	catalog := memory.NewCatalog(pgstore.NewCatalogLoader(pool), time.Minute)
	service := app.NewAttemptService(store, catalog, scoring.StoredScaleProvider{DefaultScale: 10}, app.NewProgressHub())

	for i := 0; i < 2; i++ {
		if _, err := service.Start(ctx, "u1", "quiz-1", false); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
	}
	_, err = service.Start(ctx, "u1", "quiz-1", false)
	var limitErr *domain.AttemptLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected limit error, got %v", err)
	}
	if limitErr.Max != 2 || limitErr.Period != domain.ResetDaily {
		t.Fatalf("wrong limit metadata: %+v", limitErr)
	}

	// Practice attempts slip past the limit and stay out of the count.
	if _, err := service.Start(ctx, "u1", "quiz-1", true); err != nil {
		t.Fatalf("practice start: %v", err)
	}
	used, err := store.CountAttempts(ctx, "u1", "quiz-1", nil)
	if err != nil || used != 2 {
		t.Fatalf("expected 2 counted attempts, got %d (%v)", used, err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:                 "quiz-1",
		Title:              "Integration quiz",
		MaxAttemptsPerUser: 0,
		AttemptResetPeriod: domain.ResetDaily,
		TimePerQuestion:    20,
		CompletionBonus:    5,
		PointsScale:        10,
		Questions: []domain.Question{
			{
				ID:         "q1",
				Prompt:     "What is 2 + 2?",
				Difficulty: domain.DifficultyEasy,
				Answers: []domain.Answer{
					{ID: "a1", Text: "3", Correct: false},
					{ID: "a2", Text: "4", Correct: true},
					{ID: "a3", Text: "5", Correct: false},
				},
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
