package services

import (
	"bufio"
	"context"
	"fmt"
	"iter"
	"os"

	"github.com/MegaGrindStone/docstring-web-ui/internal/models"
)

// FileBot answers every request with the content of a prepared file, one line at a time. It lets the
// page and the stream protocol be exercised without calling a real model.
type FileBot struct {
	path string
}

// NewFileBot creates a FileBot replaying the file at path.
func NewFileBot(path string) FileBot {
	return FileBot{path: path}
}

// Chat ignores messages and yields the file's lines, each with its line break.
func (f FileBot) Chat(ctx context.Context, _ []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		file, err := os.Open(f.path)
		if err != nil {
			yield("", fmt.Errorf("error opening response file: %w", err))
			return
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				return
			}
			if !yield(scanner.Text()+"\n", nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("error reading response file: %w", err))
		}
	}
}
