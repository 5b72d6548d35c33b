package css

import (
	"fmt"
	"io"
	"strings"
)

// Declaration is a single "property: value" pair in source order.
// Custom properties (--name) are kept as declarations as well.
type Declaration struct {
	Property string // Property name as written (e.g., "background-color", "--my-color")
	Value    string // Raw value text, comments removed, surrounding whitespace trimmed
	Line     int    // Line number in source for diagnostics
}

// IsCustomProperty returns true for "--name" declarations.
func (d Declaration) IsCustomProperty() bool {
	return strings.HasPrefix(d.Property, "--")
}

// Rule represents a single CSS rule: a selector group and its declarations.
type Rule struct {
	Selectors    []string      // Comma separated selectors, trimmed, in source order
	Declarations []Declaration // Declarations in source order, duplicates preserved
	Line         int
}

// MediaBlock represents a @media block with its condition and nested rules.
type MediaBlock struct {
	Condition string // Verbatim prelude text (e.g., "$(theme.breakpoints.down('xs'))")
	Rules     []Rule
	Line      int
}

// KeyframeBlock is a single step inside @keyframes ("from", "50%", "to").
type KeyframeBlock struct {
	Values       []string
	Declarations []Declaration
}

// Keyframes represents a @keyframes block, optionally vendor prefixed.
type Keyframes struct {
	Name   string
	Vendor string // Vendor prefix including dashes (e.g., "-webkit-") or empty
	Frames []KeyframeBlock
	Line   int
}

// AtRule returns at-keyword of the block (e.g., "@-webkit-keyframes").
func (k Keyframes) AtRule() string {
	return "@" + k.Vendor + "keyframes"
}

// StylesheetItem is a single top-level item in a stylesheet.
// Exactly one of Rule, MediaBlock, or Keyframes is non-nil.
type StylesheetItem struct {
	Rule       *Rule
	MediaBlock *MediaBlock
	Keyframes  *Keyframes
}

// Stylesheet represents a parsed stylesheet.
type Stylesheet struct {
	Items    []StylesheetItem // All top-level items in source order
	Warnings []string         // Warnings for skipped constructs
}

// RulesBySelector returns all top-level rules having the given selector in
// their selector group.
func (s *Stylesheet) RulesBySelector(selector string) []Rule {
	var matches []Rule
	for _, item := range s.Items {
		if item.Rule == nil {
			continue
		}
		for _, sel := range item.Rule.Selectors {
			if sel == selector {
				matches = append(matches, *item.Rule)
				break
			}
		}
	}
	return matches
}

// SyntaxError is a structural parse failure. Line and Column are 1-based.
type SyntaxError struct {
	Line   int
	Column int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s (line %d, column %d)", e.Reason, e.Line, e.Column)
}

// WriteTo writes the stylesheet to w in source order, implementing io.WriterTo.
// Unlike source text output is normalized: one declaration per line, comments dropped.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for i, item := range s.Items {
		var n int
		var err error

		switch {
		case item.MediaBlock != nil:
			n, err = writeMediaBlock(w, item.MediaBlock)
		case item.Keyframes != nil:
			n, err = writeKeyframes(w, item.Keyframes)
		case item.Rule != nil:
			n, err = writeRule(w, item.Rule, "")
		}

		total += int64(n)
		if err != nil {
			return total, err
		}

		// Add blank line between items (except after last)
		if i < len(s.Items)-1 {
			n, err = fmt.Fprint(w, "\n")
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// String returns the normalized CSS text of the stylesheet.
func (s *Stylesheet) String() string {
	var sb strings.Builder
	s.WriteTo(&sb) //nolint:errcheck
	return sb.String()
}

func writeRule(w io.Writer, rule *Rule, indent string) (int, error) {
	var total int
	n, err := fmt.Fprintf(w, "%s%s {\n", indent, strings.Join(rule.Selectors, ", "))
	total += n
	if err != nil {
		return total, err
	}
	n, err = writeDeclarations(w, rule.Declarations, indent+"  ")
	total += n
	if err != nil {
		return total, err
	}
	n, err = fmt.Fprintf(w, "%s}\n", indent)
	total += n
	return total, err
}

// writeDeclarations writes declarations in source order, order is significant.
func writeDeclarations(w io.Writer, decls []Declaration, indent string) (int, error) {
	var total int
	for _, d := range decls {
		n, err := fmt.Fprintf(w, "%s%s: %s;\n", indent, d.Property, d.Value)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func writeMediaBlock(w io.Writer, mb *MediaBlock) (int, error) {
	var total int
	n, err := fmt.Fprintf(w, "@media %s {\n", mb.Condition)
	total += n
	if err != nil {
		return total, err
	}
	for i := range mb.Rules {
		n, err = writeRule(w, &mb.Rules[i], "  ")
		total += n
		if err != nil {
			return total, err
		}
	}
	n, err = fmt.Fprint(w, "}\n")
	total += n
	return total, err
}

func writeKeyframes(w io.Writer, kf *Keyframes) (int, error) {
	var total int
	n, err := fmt.Fprintf(w, "%s %s {\n", kf.AtRule(), kf.Name)
	total += n
	if err != nil {
		return total, err
	}
	for _, f := range kf.Frames {
		n, err = fmt.Fprintf(w, "  %s {\n", strings.Join(f.Values, ", "))
		total += n
		if err != nil {
			return total, err
		}
		n, err = writeDeclarations(w, f.Declarations, "    ")
		total += n
		if err != nil {
			return total, err
		}
		n, err = fmt.Fprint(w, "  }\n")
		total += n
		if err != nil {
			return total, err
		}
	}
	n, err = fmt.Fprint(w, "}\n")
	total += n
	return total, err
}
