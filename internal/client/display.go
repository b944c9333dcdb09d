package client

import (
	"log/slog"
)

// Display is the rendering target the client writes into. Implementations must be safe for concurrent
// use: every bot stream writes from its own goroutine.
type Display interface {
	// ShowProcessedCode replaces the processed-code region with code.
	ShowProcessedCode(code string)
	// AppendBotOutput appends text followed by a line break to the bot's output region.
	AppendBotOutput(bot, text string)
	// ShowError replaces the error region text and makes the region visible.
	ShowError(message string)
	// ShowBotError replaces the bot-scoped error region text, makes it visible and marks the bot's
	// output region as failed.
	ShowBotError(bot, message string)
}

// Editor is the code editor the user types into.
type Editor interface {
	Text() string
}

// ErrorReporter is the single sink every failure goes through before reaching the user.
type ErrorReporter struct {
	display Display
	logger  *slog.Logger
}

// NewErrorReporter creates an ErrorReporter writing into display.
func NewErrorReporter(display Display, logger *slog.Logger) ErrorReporter {
	return ErrorReporter{
		display: display,
		logger:  logger.With(slog.String("module", "reporter")),
	}
}

// Report overwrites the displayed error with message.
func (r ErrorReporter) Report(message string) {
	r.logger.Warn("Reporting error", slog.String("message", message))
	r.display.ShowError(message)
}

// ReportBot overwrites the bot-scoped error region with message attributed to bot.
func (r ErrorReporter) ReportBot(bot, message string) {
	r.logger.Warn("Reporting bot error",
		slog.String("bot", bot),
		slog.String("message", message))
	r.display.ShowBotError(bot, botErrorMessage(bot, message))
}
