package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"

	"github.com/tmaxmax/go-sse"
)

// EventKind distinguishes the two kinds of frame a bot stream carries.
type EventKind int

const (
	// EventText is display text for the bot's region.
	EventText EventKind = iota
	// EventError is a structured error that ends the stream.
	EventError
)

// StreamEvent is one decoded frame of a bot stream. Content is the text to display for EventText and
// the error message for EventError.
type StreamEvent struct {
	Kind    EventKind
	Content string
}

// BotStream consumes the event stream of a single bot. It runs in its own goroutine from the moment it
// is opened until the server ends the stream, a structured error arrives, or it is closed. It never
// reconnects.
type BotStream struct {
	bot string

	cancel context.CancelFunc
	done   chan struct{}
	err    error

	logger *slog.Logger
}

type streamDeps struct {
	client   *http.Client
	display  Display
	reporter ErrorReporter
	logger   *slog.Logger
}

// DecodeEvent classifies a raw frame payload. A payload is an error only when it decodes as a JSON
// object carrying an explicit is_valid flag set to false; anything else is text, shown verbatim.
func DecodeEvent(data string) StreamEvent {
	var payload struct {
		IsValid *bool  `json:"is_valid"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err != nil || payload.IsValid == nil || *payload.IsValid {
		return StreamEvent{Kind: EventText, Content: data}
	}
	return StreamEvent{Kind: EventError, Content: payload.Error}
}

// Events returns an iterator over the message events read from r, in arrival order. Named events are
// skipped, as a browser's onmessage handler would.
func Events(r io.Reader) iter.Seq2[StreamEvent, error] {
	return func(yield func(StreamEvent, error) bool) {
		for ev, err := range sse.Read(r, nil) {
			if err != nil {
				yield(StreamEvent{}, err)
				return
			}
			if ev.Type != "" && ev.Type != "message" {
				continue
			}
			if !yield(DecodeEvent(ev.Data), nil) {
				return
			}
		}
	}
}

func openBotStream(ctx context.Context, url, bot string, deps streamDeps) *BotStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &BotStream{
		bot:    bot,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: deps.logger.With(slog.String("bot", bot)),
	}

	go s.run(ctx, url, deps)

	return s
}

// Bot returns the bot identifier this stream belongs to.
func (s *BotStream) Bot() string {
	return s.bot
}

// Done is closed once the stream has ended and its connection is released.
func (s *BotStream) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the stream ends and returns why it ended. A stream the server ended normally, or
// one that was closed by the caller, returns nil.
func (s *BotStream) Wait() error {
	<-s.done
	return s.err
}

// Close stops the stream and waits for its connection to be released. It is safe to call more than once.
func (s *BotStream) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *BotStream) run(ctx context.Context, url string, deps streamDeps) {
	defer close(s.done)
	defer s.cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		s.fail(deps.reporter, &TransportError{Op: "stream " + s.bot, Err: err})
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := deps.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.fail(deps.reporter, &TransportError{Op: "stream " + s.bot, Err: err})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		s.fail(deps.reporter, &TransportError{
			Op:  "stream " + s.bot,
			Err: errors.New(failureMessage(body, resp.StatusCode)),
		})
		return
	}

	s.logger.Debug("Stream opened")

	for ev, err := range Events(resp.Body) {
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.fail(deps.reporter, &TransportError{Op: "stream " + s.bot, Err: err})
			return
		}

		switch ev.Kind {
		case EventText:
			deps.display.AppendBotOutput(s.bot, ev.Content)
		case EventError:
			s.err = &StreamError{Bot: s.bot, Message: ev.Content}
			s.logger.Error("Bot reported an error", slog.String(errLoggerKey, ev.Content))
			deps.reporter.Report(ev.Content)
			deps.reporter.ReportBot(s.bot, ev.Content)
			return
		}
	}

	s.logger.Debug("Stream ended by server")
}

func (s *BotStream) fail(reporter ErrorReporter, err error) {
	s.err = err
	s.logger.Error("Stream failed", slog.String(errLoggerKey, err.Error()))
	reporter.Report(err.Error())
}
