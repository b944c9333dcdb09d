package client

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Console is a Display that writes to a terminal. Bot output lines are prefixed with the bot name so
// interleaved streams stay readable.
type Console struct {
	mu sync.Mutex

	out    io.Writer
	errOut io.Writer

	failed bool
}

// NewConsole creates a Console writing bot output to out and errors to errOut.
func NewConsole(out, errOut io.Writer) *Console {
	return &Console{
		out:    out,
		errOut: errOut,
	}
}

// ShowProcessedCode implements Display.
func (c *Console) ShowProcessedCode(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.out, "--- processed code ---")
	fmt.Fprintln(c.out, strings.TrimRight(code, "\n"))
	fmt.Fprintln(c.out, "----------------------")
}

// AppendBotOutput implements Display.
func (c *Console) AppendBotOutput(bot, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(c.out, "[%s] %s\n", bot, line)
	}
}

// ShowError implements Display.
func (c *Console) ShowError(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failed = true
	fmt.Fprintf(c.errOut, "error: %s\n", message)
}

// ShowBotError implements Display.
func (c *Console) ShowBotError(_, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failed = true
	fmt.Fprintln(c.errOut, message)
}

// Failed reports whether any error was shown.
func (c *Console) Failed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.failed
}
