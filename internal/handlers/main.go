package handlers

import (
	"context"
	"encoding/json"
	"html/template"
	"iter"
	"log/slog"
	"net/http"
	"slices"
	"time"

	docstringwebui "github.com/MegaGrindStone/docstring-web-ui"
	"github.com/MegaGrindStone/docstring-web-ui/internal/models"
)

// Bot represents a chatbot backend that documents code. It accepts a context and the prompt messages,
// returning an iterator that yields response chunks and potential errors.
type Bot interface {
	Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error]
}

// Store defines the interface for persisting submissions and the bots' final responses.
type Store interface {
	Submissions(ctx context.Context) ([]models.Submission, error)
	Submission(ctx context.Context, id string) (models.Submission, error)
	AddSubmission(ctx context.Context, sub models.Submission) (string, error)
	SetResponse(ctx context.Context, submissionID, bot string, res models.BotResponse) error
}

// Options tunes a Main. Zero values fall back to defaults.
type Options struct {
	Verbosity     models.Verbosity
	MaxLineLength int
	QueueSize     int
	Logger        *slog.Logger

	// RunTTL is how long a queued run waits for its bot's stream before it is dropped.
	RunTTL time.Duration
}

// Main handles the web interface and the submission protocol: the home page, code submission,
// the per-bot event streams and the stored submission pages.
type Main struct {
	templates *template.Template
	renderer  Renderer

	bots     map[string]Bot
	botNames []string
	store    Store
	queue    *runQueue

	verbosity     models.Verbosity
	maxLineLength int

	// ctx is cancelled by Shutdown to end every open stream.
	ctx    context.Context
	cancel context.CancelFunc

	logger *slog.Logger
}

const (
	errLoggerKey = "err"

	defaultMaxLineLength = 79
	defaultQueueSize     = 8
	defaultRunTTL        = 2 * time.Minute
	maxRequestBodySize   = 1 << 20
)

// NewMain creates a new Main serving the given bots, keyed by the name users select them with. It parses
// the HTML templates from the embedded filesystem.
func NewMain(bots map[string]Bot, store Store, opts Options) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		docstringwebui.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	botNames := make([]string, 0, len(bots))
	for name := range bots {
		botNames = append(botNames, name)
	}
	slices.Sort(botNames)

	if opts.Verbosity == (models.Verbosity{}) {
		opts.Verbosity = models.DefaultVerbosity
	}
	if err := opts.Verbosity.Validate(); err != nil {
		return Main{}, err
	}
	if opts.MaxLineLength <= 0 {
		opts.MaxLineLength = defaultMaxLineLength
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.RunTTL <= 0 {
		opts.RunTTL = defaultRunTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return Main{
		templates:     tmpl,
		renderer:      NewRenderer(),
		bots:          bots,
		botNames:      botNames,
		store:         store,
		queue:         newRunQueue(botNames, opts.QueueSize, opts.RunTTL),
		verbosity:     opts.Verbosity,
		maxLineLength: opts.MaxLineLength,
		ctx:           ctx,
		cancel:        cancel,
		logger:        logger.With(slog.String("module", "main")),
	}, nil
}

// Shutdown ends every open bot stream. Runs still waiting in the queue are dropped.
func (m Main) Shutdown(context.Context) error {
	m.cancel()
	return nil
}

func (m Main) respondJSON(w http.ResponseWriter, status int, res models.SubmissionResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		m.logger.Error("Failed to encode response", slog.String(errLoggerKey, err.Error()))
	}
}

func (m Main) respondInvalid(w http.ResponseWriter, status int, message string) {
	m.respondJSON(w, status, models.SubmissionResponse{
		IsValid:      models.Valid(false),
		ErrorMessage: message,
	})
}
