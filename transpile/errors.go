package transpile

import (
	"fmt"
	"strconv"
	"strings"

	"cssmui/css"
)

// SyntaxError is a grammar failure rendered with source context.
type SyntaxError struct {
	Line    int
	Column  int
	Reason  string
	Excerpt string // rendered diagnostic, see RenderSyntaxError
}

func (e *SyntaxError) Error() string {
	return e.Excerpt
}

// UnsupportedSelectorError is returned for selectors not starting with a class.
type UnsupportedSelectorError struct {
	Selector string
}

func (e *UnsupportedSelectorError) Error() string {
	return "only CSS class selectors are supported, received: " + e.Selector
}

// FractionalUnitError is returned for custom unit values with a decimal point.
type FractionalUnitError struct {
	Value string
}

func (e *FractionalUnitError) Error() string {
	return "custom units cannot be fractions, received: " + e.Value
}

// InvalidMediaConditionError is returned for @media conditions which are not
// wrapped into an embedded expression.
type InvalidMediaConditionError struct {
	Condition string
}

func (e *InvalidMediaConditionError) Error() string {
	return "invalid @media format, use theme breakpoints, e.g.: @media $(theme.breakpoints.down('xs')), received: " + e.Condition
}

// GeneratedCodeError is returned when generated module does not compile.
// Usually it points to broken code inside of an escape hatch.
type GeneratedCodeError struct {
	Messages []string
}

func (e *GeneratedCodeError) Error() string {
	return "generated code is invalid: " + strings.Join(e.Messages, "; ")
}

// RenderSyntaxError renders source excerpt around failure position: up to 3
// lines before the failing one and 1 line after it, with a caret under the
// failing column.
func RenderSyntaxError(source []byte, e *css.SyntaxError) *SyntaxError {
	lines := strings.Split(string(source), "\n")

	first := max(e.Line-4, 0)
	last := min(e.Line+1, len(lines))

	width := 0
	for i := first; i < last; i++ {
		width = max(width, len(strconv.Itoa(i+1)))
	}

	msg := []string{"SyntaxError: " + e.Reason, ""}
	for i := first; i < last; i++ {
		failing := i == e.Line-1

		gutter := "  "
		if failing {
			gutter = "> "
		}
		msg = append(msg, fmt.Sprintf("%s%*d | %s", gutter, width, i+1, strings.TrimRight(lines[i], "\r")))

		if failing {
			msg = append(msg, fmt.Sprintf("%s | %s^", strings.Repeat(" ", 2+width), strings.Repeat(" ", max(e.Column-1, 0))))
		}
	}

	return &SyntaxError{
		Line:    e.Line,
		Column:  e.Column,
		Reason:  e.Reason,
		Excerpt: strings.Join(msg, "\n"),
	}
}
