package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/MegaGrindStone/docstring-web-ui/internal/client"
	"github.com/MegaGrindStone/docstring-web-ui/internal/models"
)

type streamFunc func(ctx context.Context, send func(data string))

type fakeServer struct {
	status int
	body   string

	streams map[string]streamFunc

	mu        sync.Mutex
	submitted []models.SubmissionRequest
	opened    []string
	streamIDs []string
}

type staticEditor string

func (e staticEditor) Text() string { return string(e) }

func newFakeServer(t *testing.T, f *fakeServer) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /process_code", func(w http.ResponseWriter, r *http.Request) {
		var req models.SubmissionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode submission: %v", err)
		}
		f.mu.Lock()
		f.submitted = append(f.submitted, req)
		f.mu.Unlock()

		status := f.status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, f.body)
	})
	mux.HandleFunc("GET /stream/{bot}", func(w http.ResponseWriter, r *http.Request) {
		bot := r.PathValue("bot")
		f.mu.Lock()
		f.opened = append(f.opened, bot)
		f.streamIDs = append(f.streamIDs, r.URL.Query().Get("submission"))
		fn, ok := f.streams[bot]
		f.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		flusher.Flush()

		if !ok {
			return
		}
		fn(r.Context(), func(data string) {
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeServer) openedBots() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.opened)
}

func (f *fakeServer) streamSubmissionIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.streamIDs)
}

func (f *fakeServer) submissions() []models.SubmissionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.submitted)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCoordinator(t *testing.T, url string, page *client.Page, opts ...client.Option) *client.Coordinator {
	t.Helper()

	opts = append([]client.Option{client.WithLogger(discardLogger())}, opts...)
	c, err := client.NewCoordinator(url, page, opts...)
	if err != nil {
		t.Fatalf("NewCoordinator() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

const acceptedBody = `{"is_valid": true, "submission_id": "sub-1"}`

func TestNewCoordinator(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "Valid url", url: "http://localhost:5000"},
		{name: "Missing scheme", url: "localhost:5000", wantErr: true},
		{name: "Unparseable", url: "http://[::1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.NewCoordinator(tt.url, client.NewPage())
			if (err != nil) != tt.wantErr {
				t.Errorf("NewCoordinator() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubmitAccepted(t *testing.T) {
	send := func(text string) streamFunc {
		return func(_ context.Context, send func(string)) {
			send(text)
		}
	}
	f := &fakeServer{
		body: acceptedBody,
		streams: map[string]streamFunc{
			"openai":    send("from openai"),
			"anthropic": send("from anthropic"),
			"google":    send("from google"),
		},
	}
	srv := newFakeServer(t, f)
	page := client.NewPage()
	c := newCoordinator(t, srv.URL, page)

	code := "def add(a, b):\n    return a + b\n"
	bots := []string{"openai", "anthropic", "google"}

	streams, err := c.Submit(context.Background(), code, bots)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(streams) != len(bots) {
		t.Fatalf("Submit() opened %d streams, want %d", len(streams), len(bots))
	}
	for i, s := range streams {
		if s.Bot() != bots[i] {
			t.Errorf("stream %d bot = %s, want %s", i, s.Bot(), bots[i])
		}
		if err := s.Wait(); err != nil {
			t.Errorf("stream %s Wait() error = %v", s.Bot(), err)
		}
	}

	if got := page.ProcessedCode(); got != code {
		t.Errorf("ProcessedCode() = %q, want %q", got, code)
	}

	opened := f.openedBots()
	slices.Sort(opened)
	want := slices.Clone(bots)
	slices.Sort(want)
	if !slices.Equal(opened, want) {
		t.Errorf("opened streams = %v, want %v", opened, want)
	}
	for _, id := range f.streamSubmissionIDs() {
		if id != "sub-1" {
			t.Errorf("stream opened for submission %q, want %q", id, "sub-1")
		}
	}

	for _, bot := range bots {
		if got, want := page.BotOutput(bot), "from "+bot+client.LineBreak; got != want {
			t.Errorf("BotOutput(%s) = %q, want %q", bot, got, want)
		}
	}

	if msg, visible := page.Error(); visible {
		t.Errorf("Error() visible with %q, want hidden", msg)
	}

	submitted := f.submissions()
	if len(submitted) != 1 {
		t.Fatalf("server received %d submissions, want 1", len(submitted))
	}
	if submitted[0].Code != code || !slices.Equal(submitted[0].Chatbots, bots) {
		t.Errorf("server received %+v, want code and bots verbatim", submitted[0])
	}
}

func TestSubmitFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
		wantErr any
	}{
		{
			name:    "Rejected by server",
			body:    `{"is_valid": false, "error_message": "X"}`,
			wantMsg: "X",
			wantErr: &client.RejectedError{},
		},
		{
			name:    "Rejected without message",
			body:    `{"is_valid": false}`,
			wantMsg: "server responded with status 200",
			wantErr: &client.RejectedError{},
		},
		{
			name:    "Bad request with message",
			status:  http.StatusBadRequest,
			body:    `{"is_valid": false, "error_message": "No code provided"}`,
			wantMsg: "No code provided",
			wantErr: &client.RejectedError{},
		},
		{
			name:    "Server error without body",
			status:  http.StatusInternalServerError,
			body:    "internal error",
			wantMsg: "server responded with status 500",
			wantErr: &client.UnparseableResponseError{},
		},
		{
			name:    "Success status with garbage",
			body:    "<html>oops</html>",
			wantMsg: "server responded with status 200",
			wantErr: &client.UnparseableResponseError{},
		},
		{
			name:    "Success status without flag",
			body:    `{"error_message": "ignored"}`,
			wantMsg: "server responded with status 200",
			wantErr: &client.UnparseableResponseError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeServer{status: tt.status, body: tt.body}
			srv := newFakeServer(t, f)
			page := client.NewPage()
			c := newCoordinator(t, srv.URL, page)

			streams, err := c.Submit(context.Background(), "print(1)", []string{"openai", "google"})
			if err == nil {
				t.Fatal("Submit() error = nil, want error")
			}

			switch want := tt.wantErr.(type) {
			case *client.RejectedError:
				if !errors.As(err, &want) {
					t.Errorf("Submit() error = %T, want %T", err, tt.wantErr)
				}
			case *client.UnparseableResponseError:
				if !errors.As(err, &want) {
					t.Errorf("Submit() error = %T, want %T", err, tt.wantErr)
				}
			}

			if len(streams) != 0 {
				t.Errorf("Submit() returned %d streams, want 0", len(streams))
			}
			if opened := f.openedBots(); len(opened) != 0 {
				t.Errorf("server saw streams %v, want none", opened)
			}

			msg, visible := page.Error()
			if !visible {
				t.Error("error region is hidden, want visible")
			}
			if msg != tt.wantMsg {
				t.Errorf("error region = %q, want %q", msg, tt.wantMsg)
			}
			if page.ProcessedCode() != "" {
				t.Errorf("ProcessedCode() = %q, want empty", page.ProcessedCode())
			}
		})
	}
}

func TestSubmitUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	page := client.NewPage()
	c := newCoordinator(t, url, page)

	streams, err := c.Submit(context.Background(), "print(1)", []string{"openai"})

	var transportErr *client.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Submit() error = %v, want TransportError", err)
	}
	if len(streams) != 0 {
		t.Errorf("Submit() returned %d streams, want 0", len(streams))
	}
	msg, visible := page.Error()
	if !visible || msg == "" {
		t.Errorf("Error() = (%q, %v), want a visible non-empty message", msg, visible)
	}
}

func TestSubmitZeroBots(t *testing.T) {
	f := &fakeServer{body: acceptedBody}
	srv := newFakeServer(t, f)
	page := client.NewPage()
	c := newCoordinator(t, srv.URL, page)

	streams, err := c.Submit(context.Background(), "x = 1", nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(streams) != 0 {
		t.Errorf("Submit() returned %d streams, want 0", len(streams))
	}
	if opened := f.openedBots(); len(opened) != 0 {
		t.Errorf("server saw streams %v, want none", opened)
	}
	if _, visible := page.Error(); visible {
		t.Error("error region is visible, want hidden")
	}
	if page.ProcessedCode() != "x = 1" {
		t.Errorf("ProcessedCode() = %q, want %q", page.ProcessedCode(), "x = 1")
	}
}

func TestSubmitEditor(t *testing.T) {
	f := &fakeServer{body: acceptedBody}
	srv := newFakeServer(t, f)

	t.Run("Without editor", func(t *testing.T) {
		c := newCoordinator(t, srv.URL, client.NewPage())
		if _, err := c.SubmitEditor(context.Background(), nil); err == nil {
			t.Error("SubmitEditor() error = nil, want error")
		}
	})

	t.Run("With editor", func(t *testing.T) {
		page := client.NewPage()
		c := newCoordinator(t, srv.URL, page, client.WithEditor(staticEditor("class A:\n    pass\n")))
		if _, err := c.SubmitEditor(context.Background(), nil); err != nil {
			t.Fatalf("SubmitEditor() error = %v", err)
		}
		if page.ProcessedCode() != "class A:\n    pass\n" {
			t.Errorf("ProcessedCode() = %q, want the editor text", page.ProcessedCode())
		}
	})
}

func TestSubmitSendsVerbosity(t *testing.T) {
	f := &fakeServer{body: acceptedBody}
	srv := newFakeServer(t, f)
	c := newCoordinator(t, srv.URL, client.NewPage())

	v := &models.Verbosity{ClassDoc: 1, FunctionDoc: 4, Example: 0}
	if _, err := c.SubmitWithVerbosity(context.Background(), "x = 1", nil, v); err != nil {
		t.Fatalf("SubmitWithVerbosity() error = %v", err)
	}

	got := f.submissions()[0].Verbosity
	if got == nil || *got != *v {
		t.Errorf("server received verbosity %+v, want %+v", got, v)
	}
}

func TestCoordinatorClose(t *testing.T) {
	released := make(chan string, 2)
	block := func(ctx context.Context, send func(string)) {
		send("started")
		<-ctx.Done()
		released <- "done"
	}
	f := &fakeServer{
		body:    acceptedBody,
		streams: map[string]streamFunc{"a": block, "b": block},
	}
	srv := newFakeServer(t, f)
	page := client.NewPage()
	c := newCoordinator(t, srv.URL, page)

	streams, err := c.Submit(context.Background(), "x = 1", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	waitFor(t, func() bool {
		return page.BotOutput("a") != "" && page.BotOutput("b") != ""
	})

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	for _, s := range streams {
		select {
		case <-s.Done():
		default:
			t.Errorf("stream %s still running after Close()", s.Bot())
		}
		if err := s.Wait(); err != nil {
			t.Errorf("stream %s Wait() error = %v, want nil after teardown", s.Bot(), err)
		}
	}

	for range 2 {
		select {
		case <-released:
		case <-time.After(5 * time.Second):
			t.Fatal("server did not observe the stream disconnect")
		}
	}

	if _, visible := page.Error(); visible {
		t.Error("teardown reported an error, want none")
	}
}

func TestSubmitAfterClose(t *testing.T) {
	f := &fakeServer{body: acceptedBody}
	srv := newFakeServer(t, f)
	page := client.NewPage()
	c := newCoordinator(t, srv.URL, page)

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	streams, err := c.Submit(context.Background(), "x = 1", []string{"a"})
	if !errors.Is(err, client.ErrClosed) {
		t.Errorf("Submit() error = %v, want %v", err, client.ErrClosed)
	}
	if len(streams) != 0 {
		t.Errorf("Submit() returned %d streams, want 0", len(streams))
	}
	if got := f.submissions(); len(got) != 0 {
		t.Errorf("server saw %d submissions, want none", len(got))
	}
	if msg, visible := page.Error(); !visible || msg != client.ErrClosed.Error() {
		t.Errorf("Error() = %q, %v, want %q shown", msg, visible, client.ErrClosed.Error())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
