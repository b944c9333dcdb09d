// Command docbot submits Python code to a docstring-web-ui server and prints every selected bot's
// answer as it streams in.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MegaGrindStone/docstring-web-ui/internal/client"
	"github.com/MegaGrindStone/docstring-web-ui/internal/models"
	"github.com/joho/godotenv"
)

type source struct {
	text string
}

func (s source) Text() string {
	return s.text
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error loading .env file: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("docbot", flag.ContinueOnError)
	fs.SetOutput(stderr)

	server := fs.String("server", envOr("DOCBOT_SERVER", "http://localhost:8080"), "server base URL")
	botList := fs.String("bots", os.Getenv("DOCBOT_BOTS"), "comma separated bots to ask")
	file := fs.String("file", "", "Python file to document, stdin when empty")
	classDoc := fs.Int("class-doc", models.DefaultVerbosity.ClassDoc, "class docstring verbosity")
	functionDoc := fs.Int("function-doc", models.DefaultVerbosity.FunctionDoc, "function docstring verbosity")
	example := fs.Int("example", models.DefaultVerbosity.Example, "example verbosity")
	verbose := fs.Bool("v", false, "log protocol details")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	code, err := readSource(*file, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	// Only send levels when asked to, so the server's defaults apply otherwise.
	var verbosity *models.Verbosity
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "class-doc", "function-doc", "example":
			verbosity = &models.Verbosity{ClassDoc: *classDoc, FunctionDoc: *functionDoc, Example: *example}
		}
	})

	console := client.NewConsole(stdout, stderr)
	c, err := client.NewCoordinator(*server, console,
		client.WithEditor(source{text: code}),
		client.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	stopTeardown := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stopTeardown()

	bots := splitBots(*botList)
	if verbosity != nil {
		_, err = c.SubmitWithVerbosity(ctx, code, bots, verbosity)
	} else {
		_, err = c.SubmitEditor(ctx, bots)
	}
	if err != nil {
		if ctx.Err() != nil {
			return 130
		}
		return 1
	}

	c.Wait()

	if ctx.Err() != nil {
		return 130
	}
	if console.Failed() {
		return 1
	}
	return 0
}

func readSource(path string, stdin io.Reader) (string, error) {
	if path == "" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(b), nil
}

func splitBots(list string) []string {
	bots := []string{}
	for _, bot := range strings.Split(list, ",") {
		if bot = strings.TrimSpace(bot); bot != "" {
			bots = append(bots, bot)
		}
	}
	return bots
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
