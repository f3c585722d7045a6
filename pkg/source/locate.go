// Package source locates and rewrites pattern definitions in source text
package source

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultWindow is how many lines past the remembered line a definition may span
const DefaultWindow = 10

// DefaultCallNames are the call tokens that define a pattern
var DefaultCallNames = []string{"pattern"}

var (
	ErrSiteNotFound = errors.New("pattern definition not found near source location")
	ErrLineRange    = errors.New("source location line is outside the file")
)

// Location is a remembered definition site. Line is 1-based.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Site is the byte span of a pattern string literal's contents
type Site struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Line  int    `json:"line"` // 1-based line holding the literal
	Text  string `json:"text"`
}

// Locator finds pattern definitions by call name
type Locator struct {
	Window    int
	CallNames []string
}

// NewLocator returns a locator, applying defaults for zero values
func NewLocator(window int, callNames []string) *Locator {
	if window <= 0 {
		window = DefaultWindow
	}
	if len(callNames) == 0 {
		callNames = DefaultCallNames
	}
	return &Locator{Window: window, CallNames: callNames}
}

func (l *Locator) expr(name string) *regexp.Regexp {
	calls := make([]string, len(l.CallNames))
	for i, c := range l.CallNames {
		calls[i] = regexp.QuoteMeta(c)
	}
	// call("name", "steps"...) with optional keyword arguments, across lines
	return regexp.MustCompile(`\b(?:` + strings.Join(calls, "|") + `)\s*\(\s*(?:name\s*=\s*)?["']` +
		regexp.QuoteMeta(name) + `["']\s*,\s*(?:[A-Za-z_]+\s*=\s*)?["']([^"'\n]*)["']`)
}

// Locate searches forward from loc.Line for the definition of name, within
// Window lines. The returned site covers the literal's contents only.
func (l *Locator) Locate(text string, loc Location, name string) (Site, error) {
	starts := lineStarts(text)
	first := loc.Line - 1
	if first < 0 || first >= len(starts) {
		return Site{}, fmt.Errorf("line %d of %d: %w", loc.Line, len(starts), ErrLineRange)
	}
	last := min(first+l.Window, len(starts))

	end := len(text)
	if last < len(starts) {
		end = starts[last]
	}
	window := text[starts[first]:end]

	m := l.expr(name).FindStringSubmatchIndex(window)
	if m == nil {
		return Site{}, fmt.Errorf("%q within %d lines of %s: %w", name, l.Window, loc, ErrSiteNotFound)
	}

	start := starts[first] + m[2]
	stop := starts[first] + m[3]
	return Site{
		Start: start,
		End:   stop,
		Line:  strings.Count(text[:start], "\n") + 1,
		Text:  text[start:stop],
	}, nil
}

// Replace swaps the site's span for replacement
func Replace(text string, site Site, replacement string) string {
	return text[:site.Start] + replacement + text[site.End:]
}

func lineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' && i+1 < len(text) {
			starts = append(starts, i+1)
		}
	}
	return starts
}
