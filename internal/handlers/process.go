package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MegaGrindStone/docstring-web-ui/internal/models"
	"github.com/MegaGrindStone/docstring-web-ui/internal/pycheck"
	"github.com/google/uuid"
)

// HandleProcessCode accepts a code submission. It checks the request and the code, stores the
// submission and queues one run per selected bot; the runs start when the bots' streams connect.
//
// Malformed requests are answered with 400, code that does not pass the Python check with 200 and
// is_valid false, and a full queue with 503. Every failure carries an error_message.
func (m Main) HandleProcessCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		m.respondInvalid(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.SubmissionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil {
		m.logger.Error("Failed to decode submission", slog.String(errLoggerKey, err.Error()))
		m.respondInvalid(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Code) == "" {
		m.respondInvalid(w, http.StatusBadRequest, "No code provided")
		return
	}

	seen := make(map[string]bool, len(req.Chatbots))
	for _, bot := range req.Chatbots {
		if _, ok := m.bots[bot]; !ok {
			m.respondInvalid(w, http.StatusBadRequest, fmt.Sprintf("Unknown chatbot: %s", bot))
			return
		}
		if seen[bot] {
			m.respondInvalid(w, http.StatusBadRequest, fmt.Sprintf("Duplicate chatbot: %s", bot))
			return
		}
		seen[bot] = true
	}

	verbosity := m.verbosity
	if req.Verbosity != nil {
		verbosity = *req.Verbosity
	}
	if err := verbosity.Validate(); err != nil {
		m.respondInvalid(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := pycheck.Check(req.Code); err != nil {
		m.logger.Info("Rejected invalid code", slog.String(errLoggerKey, err.Error()))
		m.respondInvalid(w, http.StatusOK, fmt.Sprintf("Invalid Python code: %s", err))
		return
	}

	sub := models.Submission{
		ID:        uuid.New().String(),
		Code:      req.Code,
		Chatbots:  req.Chatbots,
		Verbosity: verbosity,
		Timestamp: time.Now(),
	}
	subID, err := m.store.AddSubmission(r.Context(), sub)
	if err != nil {
		m.logger.Error("Failed to add submission", slog.String(errLoggerKey, err.Error()))
		m.respondInvalid(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred: %s", err))
		return
	}

	runs := make([]run, len(req.Chatbots))
	for i, bot := range req.Chatbots {
		runs[i] = run{
			submissionID: subID,
			bot:          bot,
			code:         req.Code,
			verbosity:    verbosity,
		}
	}
	if err := m.queue.push(runs...); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errQueueFull) {
			status = http.StatusServiceUnavailable
		}
		m.logger.Error("Failed to queue runs",
			slog.String("submissionID", subID),
			slog.String(errLoggerKey, err.Error()))
		m.respondInvalid(w, status, err.Error())
		return
	}

	m.logger.Info("Submission accepted",
		slog.String("submissionID", subID),
		slog.Any("bots", req.Chatbots))

	m.respondJSON(w, http.StatusOK, models.SubmissionResponse{
		IsValid:      models.Valid(true),
		SubmissionID: subID,
	})
}
