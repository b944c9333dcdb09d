package models

import (
	"errors"
	"time"
)

// ErrSubmissionNotFound is returned by stores when no submission has the requested ID.
var ErrSubmissionNotFound = errors.New("submission not found")

// SubmissionRequest is the body of POST /process_code. Code and Chatbots are sent exactly as the user
// entered them, the server decides whether they are acceptable.
type SubmissionRequest struct {
	Code     string   `json:"code"`
	Chatbots []string `json:"chatbots"`

	// Verbosity overrides the server's default documentation levels when set.
	Verbosity *Verbosity `json:"verbosity,omitempty"`
}

// SubmissionResponse is the body returned by POST /process_code, on success and on failure alike.
// IsValid is a pointer so a response without the flag can be told apart from a rejection.
type SubmissionResponse struct {
	IsValid      *bool  `json:"is_valid"`
	ErrorMessage string `json:"error_message,omitempty"`
	SubmissionID string `json:"submission_id,omitempty"`
}

// StreamError is the structured payload a bot stream sends in place of text when the bot failed.
type StreamError struct {
	IsValid bool   `json:"is_valid"`
	Error   string `json:"error"`
}

// Submission is a stored code submission together with every bot's answer.
type Submission struct {
	ID        string
	Code      string
	Chatbots  []string
	Verbosity Verbosity
	Responses map[string]BotResponse
	Timestamp time.Time
}

// BotResponse is the final output of one bot for a submission. Error is set instead of Content when the
// bot failed.
type BotResponse struct {
	Content  string
	Error    string
	Finished time.Time
}

// Valid returns a SubmissionResponse flag value.
func Valid(v bool) *bool {
	return &v
}
