package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MegaGrindStone/docstring-web-ui/internal/models"
	"github.com/MegaGrindStone/docstring-web-ui/internal/pycheck"
)

func docstringPrompt(v models.Verbosity, maxLineLength int) string {
	var sb strings.Builder
	sb.WriteString("You document Python source code. Answer with the complete source code, ")
	sb.WriteString("with docstrings added, and nothing else.\n\n")
	sb.WriteString("Rules:\n")
	fmt.Fprintf(&sb, "- Keep every line at most %d characters long.\n", maxLineLength)
	fmt.Fprintf(&sb, "- Class docstrings (level %d of %d): %s\n",
		v.ClassDoc, models.MaxVerbosity, models.Describe(models.VerbosityClassDoc, v.ClassDoc))
	fmt.Fprintf(&sb, "- Function docstrings (level %d of %d): %s\n",
		v.FunctionDoc, models.MaxVerbosity, models.Describe(models.VerbosityFunctionDoc, v.FunctionDoc))
	fmt.Fprintf(&sb, "- Examples (level %d of %d): %s\n",
		v.Example, models.MaxVerbosity, models.Describe(models.VerbosityExample, v.Example))
	sb.WriteString("- Replace existing docstrings, do not change any code.\n")
	return sb.String()
}

func promptMessages(r run, maxLineLength int) []models.Message {
	return []models.Message{
		{Role: models.RoleSystem, Content: docstringPrompt(r.verbosity, maxLineLength)},
		{Role: models.RoleUser, Content: r.code},
	}
}

// answerCode returns the Python code in a bot's answer: the first fenced block when the answer uses
// markdown fences, the whole answer otherwise.
func answerCode(answer string) string {
	start := strings.Index(answer, "```")
	if start < 0 {
		return answer
	}
	body := answer[start+3:]
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return ""
	}
	body = body[nl+1:]
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return body
}

// checkAnswer rejects answers that carry no code or code that does not pass the Python check.
func checkAnswer(answer string) error {
	code := answerCode(answer)
	if strings.TrimSpace(code) == "" {
		return errors.New("bot returned no code")
	}
	if err := pycheck.Check(code); err != nil {
		return fmt.Errorf("bot returned invalid Python: %w", err)
	}
	return nil
}
