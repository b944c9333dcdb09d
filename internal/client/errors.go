package client

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Submit once the Coordinator has been closed. Nothing is sent to the server.
var ErrClosed = errors.New("coordinator is closed")

// TransportError is returned when a request to the server could not complete, either the submission
// itself or the connection of a bot stream.
type TransportError struct {
	Op  string
	Err error
}

// RejectedError is returned when the server explicitly refused the submission. Message is the reason the
// server gave and is what the user sees.
type RejectedError struct {
	Status  int
	Message string
}

// UnparseableResponseError is returned when the server answered with a body that does not match the
// expected structure, or with a failure status that carries no message.
type UnparseableResponseError struct {
	Status int
	Err    error
}

// StreamError is returned by BotStream.Wait when the bot sent a structured error mid-stream.
type StreamError struct {
	Bot     string
	Message string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *RejectedError) Error() string {
	return e.Message
}

func (e *UnparseableResponseError) Error() string {
	return statusMessage(e.Status)
}

func (e *UnparseableResponseError) Unwrap() error {
	return e.Err
}

func (e *StreamError) Error() string {
	return botErrorMessage(e.Bot, e.Message)
}

func statusMessage(status int) string {
	return fmt.Sprintf("server responded with status %d", status)
}

func botErrorMessage(bot, message string) string {
	return fmt.Sprintf("Error in %s: %s", bot, message)
}
