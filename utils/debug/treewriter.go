// Package debug renders intermediate structures as indented text for logs
// and debug reports.
package debug

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const defaultIndent = "  "

// TreeWriter accumulates indented lines.
type TreeWriter struct {
	sb      strings.Builder
	indent  string
	maxText int
}

type Option func(*TreeWriter)

// WithIndent replaces default two space indentation.
func WithIndent(indent string) Option {
	return func(tw *TreeWriter) {
		tw.indent = indent
	}
}

// WithMaxText limits length (in runes) of field values, 0 means no limit.
func WithMaxText(n int) Option {
	return func(tw *TreeWriter) {
		tw.maxText = max(n, 0)
	}
}

func NewTreeWriter(opts ...Option) *TreeWriter {
	tw := &TreeWriter{indent: defaultIndent}
	for _, opt := range opts {
		opt(tw)
	}
	return tw
}

func (tw *TreeWriter) String() string {
	return tw.sb.String()
}

func (tw *TreeWriter) pad(depth int) {
	for range depth {
		tw.sb.WriteString(tw.indent)
	}
}

// Line writes formatted line at requested depth.
func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.pad(depth)
	fmt.Fprintf(&tw.sb, format, args...)
	tw.sb.WriteByte('\n')
}

// Section writes heading with number of items which follow it.
func (tw *TreeWriter) Section(depth int, title string, count int, unit ...string) {
	tw.pad(depth)
	tw.sb.WriteString(title)
	tw.sb.WriteString(": ")
	tw.sb.WriteString(strconv.Itoa(count))
	if len(unit) > 0 {
		tw.sb.WriteByte(' ')
		tw.sb.WriteString(strings.Join(unit, " "))
	}
	tw.sb.WriteByte('\n')
}

// Field writes label with quoted value, so whitespace and control characters
// in values stay visible.
func (tw *TreeWriter) Field(depth int, label, value string) {
	tw.pad(depth)
	tw.sb.WriteString(label)
	tw.sb.WriteString(": ")
	tw.sb.WriteString(tw.encodeText(value))
	tw.sb.WriteByte('\n')
}

func (tw *TreeWriter) encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	if tw.maxText > 0 {
		if n := utf8.RuneCountInString(raw); n > tw.maxText {
			runes := []rune(raw)
			return strconv.Quote(string(runes[:tw.maxText])) + fmt.Sprintf("...(+%d)", n-tw.maxText)
		}
	}
	return strconv.Quote(raw)
}
