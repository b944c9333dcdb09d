package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MegaGrindStone/docstring-web-ui/internal/models"
	"github.com/tmaxmax/go-sse"
)

const endEvent = "end"

// lineBuffer groups the bot's chunks into whole lines, so every event the page receives ends at a
// line break. Trailing line breaks are held back and lead the next event, since a data field cannot
// end with an empty line.
type lineBuffer struct {
	pending string
}

// write adds chunk and returns the complete lines buffered so far, without the final line breaks.
func (l *lineBuffer) write(chunk string) (string, bool) {
	l.pending += chunk
	i := strings.LastIndexByte(l.pending, '\n')
	if i <= 0 {
		return "", false
	}
	end := len(strings.TrimRight(l.pending[:i], "\n"))
	if end == 0 {
		return "", false
	}
	lines := l.pending[:end]
	l.pending = l.pending[end+1:]
	return lines, true
}

func (l *lineBuffer) flush() (string, bool) {
	rest := strings.TrimRight(l.pending, "\n")
	l.pending = ""
	return rest, rest != ""
}

// HandleStream serves the event stream of one bot. The submission query parameter names the
// submission whose run to serve; without it the stream waits for the bot's oldest queued run. The
// bot's answer goes out as one event per group of complete lines. Once it passes the Python check an
// "end" event closes the stream. A failing bot, or an answer that is not valid Python, is reported with
// a single {"is_valid": false, "error": ...} event.
func (m Main) HandleStream(w http.ResponseWriter, r *http.Request) {
	botName := r.PathValue("bot")
	bot, ok := m.bots[botName]
	if !ok {
		m.logger.Error("Invalid bot name", slog.String("bot", botName))
		m.respondInvalid(w, http.StatusBadRequest, "Invalid bot name")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(m.ctx, cancel)
	defer stop()

	logger := m.logger.With(slog.String("bot", botName))

	var rn run
	submissionID := r.URL.Query().Get("submission")
	if submissionID != "" {
		var err error
		rn, err = m.queue.next(ctx, botName, submissionID)
		if err != nil {
			logger.Error("No run for submission",
				slog.String("submissionID", submissionID),
				slog.String(errLoggerKey, err.Error()))
			m.respondInvalid(w, http.StatusNotFound, "Unknown submission")
			return
		}
	}

	sess, err := sse.Upgrade(w, r)
	if err != nil {
		logger.Error("Failed to upgrade stream", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := sess.Flush(); err != nil {
		logger.Error("Failed to open stream", slog.String(errLoggerKey, err.Error()))
		return
	}

	if submissionID == "" {
		rn, err = m.queue.next(ctx, botName, "")
		if err != nil {
			logger.Debug("Stream closed while waiting for a run", slog.String(errLoggerKey, err.Error()))
			return
		}
	}
	logger = logger.With(slog.String("submissionID", rn.submissionID))
	logger.Info("Run started")

	var content strings.Builder
	var lines lineBuffer
	for chunk, err := range bot.Chat(ctx, promptMessages(rn, m.maxLineLength)) {
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("Bot failed", slog.String(errLoggerKey, err.Error()))
			m.saveResponse(rn, models.BotResponse{Content: content.String(), Error: err.Error()}, logger)
			m.sendError(sess, err.Error(), logger)
			return
		}

		content.WriteString(chunk)
		if text, ok := lines.write(chunk); ok {
			if err := send(sess, text); err != nil {
				logger.Warn("Stream closed by client", slog.String(errLoggerKey, err.Error()))
				return
			}
		}
	}
	if ctx.Err() != nil {
		return
	}

	if text, ok := lines.flush(); ok {
		if err := send(sess, text); err != nil {
			logger.Warn("Stream closed by client", slog.String(errLoggerKey, err.Error()))
		}
	}

	if err := checkAnswer(content.String()); err != nil {
		logger.Warn("Bot answer rejected", slog.String(errLoggerKey, err.Error()))
		m.saveResponse(rn, models.BotResponse{Content: content.String(), Error: err.Error()}, logger)
		m.sendError(sess, err.Error(), logger)
		return
	}

	m.saveResponse(rn, models.BotResponse{Content: content.String()}, logger)
	if err := sendEnd(sess); err != nil {
		logger.Warn("Failed to end stream", slog.String(errLoggerKey, err.Error()))
	}
	logger.Info("Run finished")
}

// sendEnd tells the page the answer is complete, so it can tell a finished stream from a broken one.
// Events with a type are ignored by message handlers.
func sendEnd(sess *sse.Session) error {
	e := &sse.Message{Type: sse.Type(endEvent)}
	e.AppendData(endEvent)
	if err := sess.Send(e); err != nil {
		return err
	}
	return sess.Flush()
}

func send(sess *sse.Session, text string) error {
	e := &sse.Message{}
	e.AppendData(text)
	if err := sess.Send(e); err != nil {
		return err
	}
	return sess.Flush()
}

func (m Main) sendError(sess *sse.Session, message string, logger *slog.Logger) {
	payload, err := json.Marshal(models.StreamError{IsValid: false, Error: message})
	if err != nil {
		logger.Error("Failed to marshal stream error", slog.String(errLoggerKey, err.Error()))
		return
	}
	if err := send(sess, string(payload)); err != nil {
		logger.Warn("Failed to send stream error", slog.String(errLoggerKey, err.Error()))
	}
}

func (m Main) saveResponse(rn run, res models.BotResponse, logger *slog.Logger) {
	res.Finished = time.Now()
	// The request context may already be gone; the response is stored regardless.
	if err := m.store.SetResponse(context.Background(), rn.submissionID, rn.bot, res); err != nil {
		logger.Error("Failed to save response", slog.String(errLoggerKey, err.Error()))
	}
}
