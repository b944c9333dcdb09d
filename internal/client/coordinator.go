// Package client implements the browser side of the comparison tool: submitting code to the server
// and following every selected bot's response stream into a Display.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/MegaGrindStone/docstring-web-ui/internal/models"
)

// Coordinator submits code to the server and, once the server accepts it, opens one BotStream per
// selected bot. Streams outlive the Submit call; they end on their own or when the Coordinator is
// closed.
type Coordinator struct {
	baseURL *url.URL
	client  *http.Client
	editor  Editor

	display  Display
	reporter ErrorReporter

	// ctx bounds every stream opened by this Coordinator, cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	streams []*BotStream

	logger *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

const errLoggerKey = "err"

// WithHTTPClient sets the HTTP client used for the submission and for every stream. Streams are
// long-lived, so the client must not carry an overall request timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Coordinator) {
		c.client = client
	}
}

// WithEditor sets the editor SubmitEditor reads the code from.
func WithEditor(editor Editor) Option {
	return func(c *Coordinator) {
		c.editor = editor
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator creates a Coordinator talking to the server at baseURL and rendering into display.
func NewCoordinator(baseURL string, display Display, opts ...Option) (*Coordinator, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: scheme and host are required", baseURL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		baseURL: u,
		client:  &http.Client{},
		display: display,
		ctx:     ctx,
		cancel:  cancel,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With(slog.String("module", "coordinator"))
	c.reporter = NewErrorReporter(display, c.logger)

	return c, nil
}

// Submit sends code and the selected bots to the server. Both are sent as given; the server is the one
// deciding what is acceptable. Any failure is reported through the error region and returned, and no
// stream is opened. On acceptance the code is shown in the processed-code region and one stream per
// bot is opened in order. Submit does not wait for the streams.
func (c *Coordinator) Submit(ctx context.Context, code string, bots []string) ([]*BotStream, error) {
	return c.SubmitWithVerbosity(ctx, code, bots, nil)
}

// SubmitWithVerbosity is Submit with explicit documentation levels.
func (c *Coordinator) SubmitWithVerbosity(
	ctx context.Context,
	code string,
	bots []string,
	verbosity *models.Verbosity,
) ([]*BotStream, error) {
	if c.ctx.Err() != nil {
		c.reporter.Report(ErrClosed.Error())
		return nil, ErrClosed
	}

	req := models.SubmissionRequest{
		Code:      code,
		Chatbots:  bots,
		Verbosity: verbosity,
	}

	res, err := c.send(ctx, req)
	if err != nil {
		c.logger.Error("Submission failed", slog.String(errLoggerKey, err.Error()))
		c.reporter.Report(err.Error())
		return nil, err
	}

	c.logger.Info("Submission accepted",
		slog.String("submissionID", res.SubmissionID),
		slog.Int("bots", len(bots)))

	c.display.ShowProcessedCode(code)

	streams := make([]*BotStream, 0, len(bots))
	for _, bot := range bots {
		streams = append(streams, c.openStream(bot, res.SubmissionID))
	}
	return streams, nil
}

// SubmitEditor submits the editor's current text.
func (c *Coordinator) SubmitEditor(ctx context.Context, bots []string) ([]*BotStream, error) {
	if c.editor == nil {
		return nil, errors.New("no editor configured")
	}
	return c.Submit(ctx, c.editor.Text(), bots)
}

// Wait blocks until every stream opened so far has ended.
func (c *Coordinator) Wait() {
	c.mu.Lock()
	streams := append([]*BotStream(nil), c.streams...)
	c.mu.Unlock()

	for _, s := range streams {
		<-s.Done()
	}
}

// Close tears down every open stream and waits until their connections are released. Submit fails with
// ErrClosed afterwards.
func (c *Coordinator) Close() error {
	c.cancel()
	c.Wait()
	return nil
}

// openStream follows bot's stream for the given submission. The submission ID travels as a query
// parameter so the server hands out that submission's run and not another one queued for the same bot.
func (c *Coordinator) openStream(bot, submissionID string) *BotStream {
	u := c.baseURL.JoinPath("stream", url.PathEscape(bot))
	if submissionID != "" {
		u.RawQuery = url.Values{"submission": {submissionID}}.Encode()
	}

	s := openBotStream(c.ctx, u.String(), bot, streamDeps{
		client:   c.client,
		display:  c.display,
		reporter: c.reporter,
		logger:   c.logger,
	})

	c.mu.Lock()
	c.streams = append(c.streams, s)
	c.mu.Unlock()

	return s
}

func (c *Coordinator) send(ctx context.Context, sr models.SubmissionRequest) (models.SubmissionResponse, error) {
	body, err := json.Marshal(sr)
	if err != nil {
		return models.SubmissionResponse{}, fmt.Errorf("error marshaling request: %w", err)
	}

	u := c.baseURL.JoinPath("process_code")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return models.SubmissionResponse{}, &TransportError{Op: "submit", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return models.SubmissionResponse{}, &TransportError{Op: "submit", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.SubmissionResponse{}, &TransportError{Op: "submit", Err: err}
	}

	return parseSubmissionResponse(raw, resp.StatusCode)
}

// parseSubmissionResponse turns a /process_code answer into either an accepted response or one of the
// submission errors. A failure always carries a non-empty message.
func parseSubmissionResponse(raw []byte, status int) (models.SubmissionResponse, error) {
	var res models.SubmissionResponse
	decodeErr := json.Unmarshal(raw, &res)

	if status < 200 || status > 299 {
		if decodeErr == nil && res.ErrorMessage != "" {
			return models.SubmissionResponse{}, &RejectedError{Status: status, Message: res.ErrorMessage}
		}
		return models.SubmissionResponse{}, &UnparseableResponseError{Status: status, Err: decodeErr}
	}

	if decodeErr != nil {
		return models.SubmissionResponse{}, &UnparseableResponseError{Status: status, Err: decodeErr}
	}
	if res.IsValid == nil {
		return models.SubmissionResponse{}, &UnparseableResponseError{
			Status: status,
			Err:    errors.New("response has no is_valid field"),
		}
	}
	if !*res.IsValid {
		msg := res.ErrorMessage
		if msg == "" {
			msg = statusMessage(status)
		}
		return models.SubmissionResponse{}, &RejectedError{Status: status, Message: msg}
	}

	return res, nil
}

// failureMessage extracts the server's error message from a failed response body, falling back to the
// status.
func failureMessage(raw []byte, status int) string {
	var res models.SubmissionResponse
	if err := json.Unmarshal(raw, &res); err == nil && res.ErrorMessage != "" {
		return res.ErrorMessage
	}
	return statusMessage(status)
}
