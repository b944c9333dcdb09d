package services_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MegaGrindStone/docstring-web-ui/internal/models"
	"github.com/MegaGrindStone/docstring-web-ui/internal/services"
)

func newBoltDB(t *testing.T) services.BoltDB {
	t.Helper()

	db, err := services.NewBoltDB(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("NewBoltDB() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBoltDBSubmissions(t *testing.T) {
	db := newBoltDB(t)
	ctx := context.Background()

	firstID, err := db.AddSubmission(ctx, models.Submission{
		ID:        "first",
		Code:      "x = 1",
		Chatbots:  []string{"openai"},
		Verbosity: models.DefaultVerbosity,
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("AddSubmission() error = %v", err)
	}
	secondID, err := db.AddSubmission(ctx, models.Submission{ID: "second", Code: "y = 2"})
	if err != nil {
		t.Fatalf("AddSubmission() error = %v", err)
	}
	if !strings.HasSuffix(firstID, "-first") || firstID == secondID {
		t.Errorf("AddSubmission() ids = %q, %q, want unique ids keeping the original suffix", firstID, secondID)
	}

	subs, err := db.Submissions(ctx)
	if err != nil {
		t.Fatalf("Submissions() error = %v", err)
	}
	if len(subs) != 2 || subs[0].ID != secondID || subs[1].ID != firstID {
		t.Errorf("Submissions() = %+v, want newest first", subs)
	}

	if err := db.SetResponse(ctx, firstID, "openai", models.BotResponse{Content: "docs"}); err != nil {
		t.Fatalf("SetResponse() error = %v", err)
	}
	sub, err := db.Submission(ctx, firstID)
	if err != nil {
		t.Fatalf("Submission() error = %v", err)
	}
	if sub.Code != "x = 1" || sub.Responses["openai"].Content != "docs" {
		t.Errorf("Submission() = %+v, want stored code and response", sub)
	}
	if sub.Verbosity != models.DefaultVerbosity {
		t.Errorf("Submission() verbosity = %+v, want %+v", sub.Verbosity, models.DefaultVerbosity)
	}

	if _, err := db.Submission(ctx, "missing"); !errors.Is(err, models.ErrSubmissionNotFound) {
		t.Errorf("Submission(missing) error = %v, want ErrSubmissionNotFound", err)
	}
	if err := db.SetResponse(ctx, "missing", "openai", models.BotResponse{}); !errors.Is(err, models.ErrSubmissionNotFound) {
		t.Errorf("SetResponse(missing) error = %v, want ErrSubmissionNotFound", err)
	}
}

func TestFileBot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classTest.response.json")
	if err := os.WriteFile(path, []byte("line one\nline two\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var got []string
	for chunk, err := range services.NewFileBot(path).Chat(context.Background(), nil) {
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		got = append(got, chunk)
	}
	if strings.Join(got, "") != "line one\nline two\n" || len(got) != 2 {
		t.Errorf("Chat() = %q, want the file line by line", got)
	}

	for _, err := range services.NewFileBot(filepath.Join(t.TempDir(), "missing")).Chat(context.Background(), nil) {
		if err == nil {
			t.Error("Chat() on a missing file yielded no error")
		}
	}
}

func TestAnthropicChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" || r.Header.Get("x-api-key") != "key" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, text := range []string{"def f():", "\n    pass"} {
			fmt.Fprintf(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"text\":%q}}\n\n", text)
		}
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer srv.Close()

	bot := services.NewAnthropic("key", srv.URL, "claude", 1024)
	got, err := collect(bot.Chat(context.Background(), []models.Message{
		{Role: models.RoleSystem, Content: "document"},
		{Role: models.RoleUser, Content: "def f(): pass"},
	}))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got != "def f():\n    pass" {
		t.Errorf("Chat() = %q", got)
	}
}

func TestAnthropicChatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer srv.Close()

	_, err := collect(services.NewAnthropic("bad", srv.URL, "claude", 1024).Chat(context.Background(), nil))
	if err == nil || !strings.Contains(err.Error(), "invalid x-api-key") {
		t.Errorf("Chat() error = %v, want the API's message", err)
	}
}

func TestAnthropicChatTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"delta\":{\"text\":\"def f():\"}}\n\n")
		fmt.Fprint(w, "event: message_delta\ndata: {\"delta\":{\"stop_reason\":\"max_tokens\"}}\n\n")
		fmt.Fprint(w, "event: message_stop\ndata: {}\n\n")
	}))
	defer srv.Close()

	got, err := collect(services.NewAnthropic("key", srv.URL, "claude", 1).Chat(context.Background(), nil))
	if !errors.Is(err, services.ErrTruncated) {
		t.Errorf("Chat() error = %v, want %v", err, services.ErrTruncated)
	}
	if got != "def f():" {
		t.Errorf("Chat() = %q, want the text before truncation", got)
	}
}

func TestOpenRouterChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer key" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": OPENROUTER PROCESSING\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\",\"content\":\"Hello\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\" world\"},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	got, err := collect(services.NewOpenRouter("key", srv.URL, "model", logger).Chat(context.Background(), nil))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got != "Hello world" {
		t.Errorf("Chat() = %q, want %q", got, "Hello world")
	}
}

func collect(seq iter.Seq2[string, error]) (string, error) {
	var sb strings.Builder
	for chunk, err := range seq {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(chunk)
	}
	return sb.String(), nil
}
