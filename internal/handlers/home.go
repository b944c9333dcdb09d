package handlers

import (
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/docstring-web-ui/internal/models"
)

type verbositySlider struct {
	Kind         models.VerbosityKind
	Label        string
	Value        int
	Description  string
	Descriptions []string
}

type submissionLink struct {
	ID        string
	Timestamp string
	Bots      []string
}

type homePageData struct {
	Bots        []string
	Sliders     []verbositySlider
	Submissions []submissionLink
	Min, Max    int
}

const recentSubmissions = 10

func newSlider(kind models.VerbosityKind, label string, value int) verbositySlider {
	descs := make([]string, 0, models.MaxVerbosity-models.MinVerbosity+1)
	for level := models.MinVerbosity; level <= models.MaxVerbosity; level++ {
		descs = append(descs, models.Describe(kind, level))
	}
	return verbositySlider{
		Kind:         kind,
		Label:        label,
		Value:        value,
		Description:  models.Describe(kind, value),
		Descriptions: descs,
	}
}

// HandleHome renders the comparison page: the code editor, the bot selection, the verbosity sliders
// and links to the most recent submissions.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	subs, err := m.store.Submissions(r.Context())
	if err != nil {
		m.logger.Error("Failed to get submissions", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	links := make([]submissionLink, 0, min(len(subs), recentSubmissions))
	for _, sub := range subs[:min(len(subs), recentSubmissions)] {
		links = append(links, submissionLink{
			ID:        sub.ID,
			Timestamp: sub.Timestamp.Format("2006-01-02 15:04:05"),
			Bots:      sub.Chatbots,
		})
	}

	data := homePageData{
		Bots: m.botNames,
		Sliders: []verbositySlider{
			newSlider(models.VerbosityClassDoc, "Class docstrings", m.verbosity.ClassDoc),
			newSlider(models.VerbosityFunctionDoc, "Function docstrings", m.verbosity.FunctionDoc),
			newSlider(models.VerbosityExample, "Examples", m.verbosity.Example),
		},
		Submissions: links,
		Min:         models.MinVerbosity,
		Max:         models.MaxVerbosity,
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to render home", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
