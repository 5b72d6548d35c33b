package transpile

import (
	"strings"
)

// FragmentKind distinguishes literal text from raw code in a lexed value.
type FragmentKind int

const (
	FragmentLiteral FragmentKind = iota // Text to be quoted by emitter
	FragmentCode                        // Expression inlined verbatim
)

// Fragment is a piece of lexed property value.
type Fragment struct {
	Kind   FragmentKind
	Text   string
	Suffix string // literal unit following computed code (e.g., "px")
}

// Lexer scans property values for dialect extensions: custom spacing units
// (10su), variable references (var(--name)) and escape hatches ($(code)).
type Lexer struct {
	SpacingUnit string // expression evaluating to spacing unit in pixels
}

// Lex splits value into fragments in encounter order.
func (l Lexer) Lex(value string) ([]Fragment, error) {
	var (
		frags   []Fragment
		literal strings.Builder
	)

	flush := func() {
		if literal.Len() == 0 {
			return
		}
		frags = append(frags, Fragment{Kind: FragmentLiteral, Text: collapseSpace(literal.String())})
		literal.Reset()
	}

	for pos := 0; pos < len(value); {
		rest := value[pos:]

		n, number, err := consumeCustomUnit(rest)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			flush()
			frags = append(frags, Fragment{Kind: FragmentCode, Text: l.SpacingUnit + " * " + number, Suffix: "px"})
			pos += n
			continue
		}

		if n, name := consumeVariable(rest); n > 0 {
			flush()
			frags = append(frags, Fragment{Kind: FragmentCode, Text: name})
			pos += n
			continue
		}

		if n, code := consumeEscapeHatch(rest); n > 0 {
			flush()
			frags = append(frags, Fragment{Kind: FragmentCode, Text: code})
			pos += n
			continue
		}

		literal.WriteByte(value[pos])
		pos++
	}
	flush()

	return frags, nil
}

// consumeCustomUnit matches "-?[0-9.]+su" at the start of s returning number
// of consumed bytes and the number itself.
func consumeCustomUnit(s string) (int, string, error) {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	start := i
	for i < len(s) && (isDigit(s[i]) || s[i] == '.') {
		i++
	}
	if i == start || !strings.HasPrefix(s[i:], "su") {
		return 0, "", nil
	}
	number := s[:i]
	if strings.Contains(number, ".") {
		return 0, "", &FractionalUnitError{Value: number + "su"}
	}
	return i + len("su"), number, nil
}

// consumeVariable matches "var(--name)" at the start of s returning number of
// consumed bytes and identifier the variable is known under.
func consumeVariable(s string) (int, string) {
	if !strings.HasPrefix(s, "var(") {
		return 0, ""
	}
	end := strings.IndexByte(s, ')')
	if end == -1 {
		return 0, ""
	}
	return end + 1, variableName(strings.TrimSpace(s[len("var("):end]))
}

// consumeEscapeHatch matches "$(...)" with balanced parentheses at the start
// of s returning number of consumed bytes and enclosed code.
func consumeEscapeHatch(s string) (int, string) {
	if !strings.HasPrefix(s, "$(") {
		return 0, ""
	}
	depth := 1
	for i := len("$("); i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1, s[len("$("):i]
			}
		}
	}
	return 0, ""
}

// variableName converts custom property name into identifier: "--my-color"
// becomes "myColor".
func variableName(name string) string {
	return camelCase(strings.TrimPrefix(name, "--"))
}

// camelCase converts hyphen-case to camelCase, only hyphens followed by a
// lowercase letter are removed.
func camelCase(s string) string {
	if !strings.Contains(s, "-") {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '-' && i+1 < len(s) && s[i+1] >= 'a' && s[i+1] <= 'z' {
			sb.WriteByte(s[i+1] - 'a' + 'A')
			i++
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// collapseSpace replaces every whitespace run in literal text with a single
// space, leading and trailing runs included.
func collapseSpace(s string) string {
	var (
		sb    strings.Builder
		space bool
	)
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r', '\f':
			if !space {
				sb.WriteByte(' ')
			}
			space = true
		default:
			sb.WriteByte(s[i])
			space = false
		}
	}
	return sb.String()
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
