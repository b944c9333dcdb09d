// Package pycheck performs a lexical sanity check of Python source before it is sent to the bots. It
// catches the mistakes that make a submission pointless to document: unterminated strings, unbalanced
// brackets and broken indentation. It is not a parser; grammatically wrong code that tokenizes cleanly
// passes.
package pycheck

import (
	"fmt"
	"strings"
)

// SyntaxError describes the first problem found in the source.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s (line %d)", e.Msg, e.Line)
}

type bracket struct {
	char byte
	line int
}

type checker struct {
	src  string
	pos  int
	line int

	brackets []bracket
	indents  []int

	// opener is the line of a logical line ending with ':' that still waits for its indented block.
	opener int

	lastSig     byte
	lineHasCode bool
}

const tabSize = 8

var closers = map[byte]byte{
	')': '(',
	']': '[',
	'}': '{',
}

var bracketNames = map[byte]string{
	'(': "parenthesis",
	')': "parenthesis",
	'[': "bracket",
	']': "bracket",
	'{': "brace",
	'}': "brace",
}

// Check returns a *SyntaxError for the first problem in src, or nil.
func Check(src string) error {
	c := checker{
		src:     strings.ReplaceAll(src, "\r\n", "\n"),
		line:    1,
		indents: []int{0},
	}
	return c.run()
}

func (c *checker) errorf(line int, format string, args ...any) error {
	return &SyntaxError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (c *checker) run() error {
	atLineStart := true
	for c.pos < len(c.src) {
		if atLineStart && len(c.brackets) == 0 {
			if err := c.indentation(); err != nil {
				return err
			}
			if c.pos >= len(c.src) {
				break
			}
		}
		atLineStart = false

		ch := c.src[c.pos]
		switch ch {
		case '\n':
			if len(c.brackets) == 0 {
				c.endLogicalLine()
			}
			c.line++
			c.pos++
			atLineStart = true
		case '#':
			for c.pos < len(c.src) && c.src[c.pos] != '\n' {
				c.pos++
			}
		case '\\':
			if c.pos+1 < len(c.src) && c.src[c.pos+1] == '\n' {
				c.pos += 2
				c.line++
				continue
			}
			return c.errorf(c.line, "unexpected character after line continuation character")
		case '\'', '"':
			if err := c.str(); err != nil {
				return err
			}
			c.code(ch)
		case '(', '[', '{':
			c.brackets = append(c.brackets, bracket{char: ch, line: c.line})
			c.code(ch)
			c.pos++
		case ')', ']', '}':
			if len(c.brackets) == 0 {
				return c.errorf(c.line, "unmatched '%c'", ch)
			}
			open := c.brackets[len(c.brackets)-1]
			if open.char != closers[ch] {
				return c.errorf(c.line, "closing %s '%c' does not match opening %s '%c'",
					bracketNames[ch], ch, bracketNames[open.char], open.char)
			}
			c.brackets = c.brackets[:len(c.brackets)-1]
			c.code(ch)
			c.pos++
		case ' ', '\t', '\f':
			c.pos++
		default:
			c.code(ch)
			c.pos++
		}
	}

	if len(c.brackets) > 0 {
		open := c.brackets[len(c.brackets)-1]
		return c.errorf(open.line, "'%c' was never closed", open.char)
	}
	c.endLogicalLine()
	if c.opener != 0 {
		return c.errorf(c.line, "expected an indented block after line %d", c.opener)
	}
	return nil
}

func (c *checker) code(ch byte) {
	c.lastSig = ch
	c.lineHasCode = true
}

func (c *checker) endLogicalLine() {
	if c.lineHasCode && c.lastSig == ':' {
		c.opener = c.line
	}
	c.lastSig = 0
	c.lineHasCode = false
}

// indentation consumes the leading whitespace of a line that starts a logical line and checks it
// against the enclosing blocks. Blank and comment-only lines are ignored.
func (c *checker) indentation() error {
	width := 0
	hasTab, hasSpace := false, false
scan:
	for ; c.pos < len(c.src); c.pos++ {
		switch c.src[c.pos] {
		case ' ':
			width++
			hasSpace = true
		case '\t':
			width = (width/tabSize + 1) * tabSize
			hasTab = true
		case '\f':
			width = 0
		default:
			break scan
		}
	}
	if c.pos >= len(c.src) || c.src[c.pos] == '\n' || c.src[c.pos] == '#' {
		return nil
	}
	if hasTab && hasSpace {
		return c.errorf(c.line, "inconsistent use of tabs and spaces in indentation")
	}

	top := c.indents[len(c.indents)-1]
	if c.opener != 0 {
		opener := c.opener
		c.opener = 0
		if width <= top {
			return c.errorf(c.line, "expected an indented block after line %d", opener)
		}
		c.indents = append(c.indents, width)
		return nil
	}

	switch {
	case width > top:
		return c.errorf(c.line, "unexpected indent")
	case width < top:
		for len(c.indents) > 1 && c.indents[len(c.indents)-1] > width {
			c.indents = c.indents[:len(c.indents)-1]
		}
		if c.indents[len(c.indents)-1] != width {
			return c.errorf(c.line, "unindent does not match any outer indentation level")
		}
	}
	return nil
}

// str consumes a string literal starting at the current quote. Prefixes such as r, b or f were already
// consumed as ordinary code; a backslash escapes the next character in every kind of string.
func (c *checker) str() error {
	quote := c.src[c.pos]
	start := c.line
	triple := strings.HasPrefix(c.src[c.pos:], strings.Repeat(string(quote), 3))
	if triple {
		c.pos += 3
	} else {
		c.pos++
	}

	for c.pos < len(c.src) {
		ch := c.src[c.pos]
		switch {
		case ch == '\\':
			if c.pos+1 < len(c.src) && c.src[c.pos+1] == '\n' {
				c.line++
			}
			c.pos += 2
			continue
		case ch == '\n':
			if !triple {
				return c.errorf(start, "unterminated string literal (detected at line %d)", c.line)
			}
			c.line++
		case ch == quote:
			if !triple {
				c.pos++
				return nil
			}
			if strings.HasPrefix(c.src[c.pos:], strings.Repeat(string(quote), 3)) {
				c.pos += 3
				return nil
			}
		}
		c.pos++
	}

	if triple {
		return c.errorf(start, "unterminated triple-quoted string literal (detected at line %d)", c.line)
	}
	return c.errorf(start, "unterminated string literal (detected at line %d)", c.line)
}
