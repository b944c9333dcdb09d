package models

import "fmt"

// Verbosity holds how much documentation each bot is asked to write. Every level ranges from
// MinVerbosity to MaxVerbosity.
type Verbosity struct {
	ClassDoc    int `json:"class_doc" yaml:"classDoc"`
	FunctionDoc int `json:"function_doc" yaml:"functionDoc"`
	Example     int `json:"example" yaml:"example"`
}

// VerbosityKind names one of the three verbosity sliders.
type VerbosityKind string

const (
	// VerbosityClassDoc is the class docstring level.
	VerbosityClassDoc VerbosityKind = "class-doc"
	// VerbosityFunctionDoc is the function docstring level.
	VerbosityFunctionDoc VerbosityKind = "function-doc"
	// VerbosityExample is the usage example level.
	VerbosityExample VerbosityKind = "example"

	MinVerbosity = 0
	MaxVerbosity = 5
)

// DefaultVerbosity is used when neither the request nor the configuration sets any level.
var DefaultVerbosity = Verbosity{
	ClassDoc:    5,
	FunctionDoc: 2,
	Example:     3,
}

var docDescriptions = []string{
	"No docstrings.",
	"Very brief, one-line comments for major items only.",
	"Concise but informative docstrings, covering basic purposes and functionality.",
	"Detailed docstrings including parameters, return types, and a description of the behavior.",
	"Very detailed explanations, including usage examples in the docstrings.",
	"Extremely detailed docstrings, providing in-depth explanations, usage examples, and covering edge cases.",
}

var exampleDescriptions = []string{
	"No examples.",
	"Simple examples demonstrating basic usage.",
	"More comprehensive examples covering various use cases.",
	"Detailed examples with step-by-step explanations.",
	"Extensive examples including edge cases and error handling.",
	"Interactive examples or code playgrounds for experimentation.",
}

// Describe returns the human readable meaning of level for the given slider. Levels outside the valid
// range are clamped.
func Describe(kind VerbosityKind, level int) string {
	level = clamp(level)
	if kind == VerbosityExample {
		return exampleDescriptions[level]
	}
	return docDescriptions[level]
}

// Validate reports the first level that is out of range.
func (v Verbosity) Validate() error {
	levels := []struct {
		kind  VerbosityKind
		level int
	}{
		{VerbosityClassDoc, v.ClassDoc},
		{VerbosityFunctionDoc, v.FunctionDoc},
		{VerbosityExample, v.Example},
	}
	for _, l := range levels {
		if l.level < MinVerbosity || l.level > MaxVerbosity {
			return fmt.Errorf("%s verbosity %d is out of range %d-%d", l.kind, l.level, MinVerbosity, MaxVerbosity)
		}
	}
	return nil
}

func clamp(level int) int {
	return min(max(level, MinVerbosity), MaxVerbosity)
}
