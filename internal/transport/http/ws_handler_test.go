package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"quiz-attempt-service/internal/domain"

	"github.com/gorilla/websocket"
)

func TestWebSocketProgressFeed(t *testing.T) {
	server, service := newTestServer(t)

	attempt, err := service.Start(context.Background(), "u1", "quiz-1", false)
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}

	u := "ws" + server.URL[len("http"):] + "/ws?attemptId=" + attempt.ID
	header := http.Header{"X-User-ID": []string{"u1"}}
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	answerID := "a2"
	if _, err := service.Submit(context.Background(), attempt.ID, "u1", "q1", &answerID, 0); err != nil {
		t.Fatalf("submit: %v", err)
	}

	var progress domain.AttemptProgress
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&progress); err != nil {
		t.Fatalf("read progress: %v", err)
	}
	if progress.AttemptID != attempt.ID || progress.AnsweredCount != 1 || progress.TotalPoints != 10 {
		t.Fatalf("unexpected progress: %+v", progress)
	}
}

func TestWebSocketRejectsForeignAttempt(t *testing.T) {
	server, service := newTestServer(t)

	attempt, err := service.Start(context.Background(), "u1", "quiz-1", false)
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}

	u := "ws" + server.URL[len("http"):] + "/ws?attemptId=" + attempt.ID
	header := http.Header{"X-User-ID": []string{"intruder"}}
	if _, resp, err := websocket.DefaultDialer.Dial(u, header); err == nil {
		t.Fatalf("expected dial to fail for foreign attempt")
	} else if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 handshake response, got %+v", resp)
	}
}
