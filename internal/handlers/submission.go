package handlers

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/docstring-web-ui/internal/models"
)

type botAnswer struct {
	Bot      string
	Content  template.HTML
	Error    string
	Finished string
	Pending  bool
}

type submissionPageData struct {
	ID        string
	Timestamp string
	Verbosity models.Verbosity
	Code      template.HTML
	Answers   []botAnswer
}

// HandleSubmission renders a stored submission: the highlighted code and every bot's answer so far.
func (m Main) HandleSubmission(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sub, err := m.store.Submission(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrSubmissionNotFound) {
			http.NotFound(w, r)
			return
		}
		m.logger.Error("Failed to get submission",
			slog.String("submissionID", id),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	code, err := m.renderer.Code(sub.Code, "python")
	if err != nil {
		m.logger.Error("Failed to render code", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	answers := make([]botAnswer, 0, len(sub.Chatbots))
	for _, bot := range sub.Chatbots {
		res, ok := sub.Responses[bot]
		if !ok {
			answers = append(answers, botAnswer{Bot: bot, Pending: true})
			continue
		}
		content, err := m.renderer.Answer(res.Content)
		if err != nil {
			m.logger.Error("Failed to render answer",
				slog.String("bot", bot),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		answers = append(answers, botAnswer{
			Bot:      bot,
			Content:  content,
			Error:    res.Error,
			Finished: res.Finished.Format("2006-01-02 15:04:05"),
		})
	}

	data := submissionPageData{
		ID:        sub.ID,
		Timestamp: sub.Timestamp.Format("2006-01-02 15:04:05"),
		Verbosity: sub.Verbosity,
		Code:      code,
		Answers:   answers,
	}
	if err := m.templates.ExecuteTemplate(w, "submission.html", data); err != nil {
		m.logger.Error("Failed to render submission", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
