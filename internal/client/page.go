package client

import (
	"strings"
	"sync"
)

// Page is an in-memory Display. It holds every region of the comparison page the way the browser would
// show them, and is what the tests and headless callers inspect.
type Page struct {
	mu sync.Mutex

	processedCode string

	errorText    string
	errorVisible bool

	botErrorText    string
	botErrorVisible bool

	bots map[string]*botRegion
}

type botRegion struct {
	output strings.Builder
	failed bool
}

// LineBreak is appended after every bot output chunk.
const LineBreak = "\n"

// NewPage creates an empty Page with the error regions hidden.
func NewPage() *Page {
	return &Page{
		bots: make(map[string]*botRegion),
	}
}

// ShowProcessedCode implements Display.
func (p *Page) ShowProcessedCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processedCode = code
}

// AppendBotOutput implements Display.
func (p *Page) AppendBotOutput(bot, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := p.region(bot)
	r.output.WriteString(text)
	r.output.WriteString(LineBreak)
}

// ShowError implements Display.
func (p *Page) ShowError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.errorText = message
	p.errorVisible = true
}

// ShowBotError implements Display.
func (p *Page) ShowBotError(bot, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.botErrorText = message
	p.botErrorVisible = true
	p.region(bot).failed = true
}

// ProcessedCode returns the content of the processed-code region.
func (p *Page) ProcessedCode() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.processedCode
}

// Error returns the error region text and whether the region is visible.
func (p *Page) Error() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.errorText, p.errorVisible
}

// BotError returns the bot-scoped error region text and whether the region is visible.
func (p *Page) BotError() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.botErrorText, p.botErrorVisible
}

// BotOutput returns everything appended to the bot's region so far.
func (p *Page) BotOutput(bot string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.bots[bot]
	if !ok {
		return ""
	}
	return r.output.String()
}

// BotFailed reports whether the bot's region was marked failed.
func (p *Page) BotFailed(bot string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.bots[bot]
	return ok && r.failed
}

func (p *Page) region(bot string) *botRegion {
	r, ok := p.bots[bot]
	if !ok {
		r = &botRegion{}
		p.bots[bot] = r
	}
	return r
}
