package css

import (
	"bytes"
	"errors"
	"io"
	"sort"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Parser parses stylesheets into structured items.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new stylesheet parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// state of a single Parse call
type run struct {
	log    *zap.Logger
	sheet  *Stylesheet
	input  *parse.Input
	parser *css.Parser
	src    []byte
	lines  []int      // offsets of line starts
	tokens []rawToken // every token of src including whitespace and comments

	mark      int // input offset before the last grammar event
	lastClose int // input offset right after the last '}' that ended a block
}

// rawToken is a token span within the source.
type rawToken struct {
	tt         css.TokenType
	start, end int
}

// Parse parses stylesheet text. Any structural problem is returned as
// *SyntaxError, nothing is returned partially. The optional source parameter
// identifies what's being parsed (for debug logging).
func (p *Parser) Parse(data []byte, source ...string) (*Stylesheet, error) {
	if len(source) > 0 && source[0] != "" {
		p.log.Debug("Parsing CSS", zap.String("source", source[0]), zap.Int("bytes", len(data)))
	}

	input := parse.NewInput(bytes.NewReader(data))
	r := &run{
		log: p.log,
		sheet: &Stylesheet{
			Items:    make([]StylesheetItem, 0),
			Warnings: make([]string, 0),
		},
		input:  input,
		parser: css.NewParser(input, false),
		src:    data,
		lines:  lineStarts(data),
		tokens: lexTokens(data),
	}
	if err := r.parseStylesheet(); err != nil {
		return nil, err
	}
	return r.sheet, nil
}

func (r *run) parseStylesheet() error {
	var (
		pending    []string
		groupStart int
	)

	for {
		gt, data := r.next()

		switch gt {
		case css.ErrorGrammar:
			if err := r.parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				return r.syntaxError(err)
			}
			return nil

		case css.BeginAtRuleGrammar:
			if err := r.parseAtRule(string(data)); err != nil {
				return err
			}

		case css.AtRuleGrammar:
			// Simple @-rule without block (e.g., @import, @charset)
			r.warn("unsupported at-rule: " + string(data))

		case css.QualifiedRuleGrammar:
			// Some selectors of a group may be reported separately
			if len(pending) == 0 {
				groupStart = r.mark
			}
			pending = append(pending, selectorText(data, r.parser.Values()))

		case css.BeginRulesetGrammar:
			if len(pending) == 0 {
				groupStart = r.mark
			}
			rule, err := r.parseRuleset(r.selectorGroup(groupStart, append(pending, selectorText(data, r.parser.Values()))))
			if err != nil {
				return err
			}
			pending = nil
			r.sheet.Items = append(r.sheet.Items, StylesheetItem{Rule: &rule})

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			return r.errorAt("declaration outside of a rule: " + string(data))
		}
	}
}

func (r *run) parseAtRule(name string) error {
	line := r.line()
	prelude := r.verbatim(r.rawText(r.mark, css.AtKeywordToken), joinTokens(r.parser.Values()))

	switch {
	case name == "@media":
		rules, err := r.parseRuleList()
		if err != nil {
			return err
		}
		r.log.Debug("Parsed @media block", zap.String("condition", prelude), zap.Int("rules", len(rules)))
		r.sheet.Items = append(r.sheet.Items, StylesheetItem{
			MediaBlock: &MediaBlock{Condition: prelude, Rules: rules, Line: line},
		})
	case strings.HasSuffix(name, "keyframes"):
		kf, err := r.parseKeyframes(name, prelude)
		if err != nil {
			return err
		}
		kf.Line = line
		r.log.Debug("Parsed @keyframes block", zap.String("name", kf.Name), zap.Int("frames", len(kf.Frames)))
		r.sheet.Items = append(r.sheet.Items, StylesheetItem{Keyframes: kf})
	default:
		r.warn("unsupported at-rule: " + name)
		return r.skipBlock()
	}
	return nil
}

func (r *run) parseRuleset(group string) (Rule, error) {
	rule := Rule{Selectors: splitList(group), Line: r.line()}
	decls, err := r.parseDeclarations()
	if err != nil {
		return rule, err
	}
	rule.Declarations = decls
	return rule, nil
}

// parseDeclarations parses property declarations until EndRulesetGrammar.
func (r *run) parseDeclarations() ([]Declaration, error) {
	var decls []Declaration

	for {
		gt, data := r.next()

		switch gt {
		case css.ErrorGrammar:
			return nil, r.unexpectedEnd(r.parser.Err(), "missing '}'")

		case css.EndRulesetGrammar, css.EndAtRuleGrammar:
			if !r.closed() {
				return nil, r.unexpectedEnd(nil, "missing '}'")
			}
			return decls, nil

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			decls = append(decls, Declaration{
				Property: string(data),
				Value:    r.verbatim(r.rawText(r.mark, css.ColonToken), joinTokens(r.parser.Values())),
				Line:     r.line(),
			})

		case css.BeginRulesetGrammar, css.BeginAtRuleGrammar:
			return nil, r.errorAt("nested blocks are not supported")
		}
	}
}

// parseRuleList parses rules inside an @media block.
func (r *run) parseRuleList() ([]Rule, error) {
	var (
		rules      []Rule
		pending    []string
		groupStart int
	)

	for {
		gt, data := r.next()

		switch gt {
		case css.ErrorGrammar:
			return nil, r.unexpectedEnd(r.parser.Err(), "missing '}' for @media")

		case css.EndAtRuleGrammar:
			if !r.closed() {
				return nil, r.unexpectedEnd(nil, "missing '}' for @media")
			}
			return rules, nil

		case css.QualifiedRuleGrammar:
			if len(pending) == 0 {
				groupStart = r.mark
			}
			pending = append(pending, selectorText(data, r.parser.Values()))

		case css.BeginRulesetGrammar:
			if len(pending) == 0 {
				groupStart = r.mark
			}
			rule, err := r.parseRuleset(r.selectorGroup(groupStart, append(pending, selectorText(data, r.parser.Values()))))
			if err != nil {
				return nil, err
			}
			pending = nil
			rules = append(rules, rule)

		case css.BeginAtRuleGrammar:
			r.warn("nested at-rule inside @media: " + string(data))
			if err := r.skipBlock(); err != nil {
				return nil, err
			}
		}
	}
}

func (r *run) parseKeyframes(atRule, prelude string) (*Keyframes, error) {
	kf := &Keyframes{Name: prelude}
	if vendor := strings.TrimSuffix(strings.TrimPrefix(atRule, "@"), "keyframes"); vendor != "" {
		kf.Vendor = vendor
	}

	var (
		pending    []string
		groupStart int
	)
	for {
		gt, data := r.next()

		switch gt {
		case css.ErrorGrammar:
			return nil, r.unexpectedEnd(r.parser.Err(), "missing '}' for "+atRule)

		case css.EndAtRuleGrammar:
			if !r.closed() {
				return nil, r.unexpectedEnd(nil, "missing '}' for "+atRule)
			}
			return kf, nil

		case css.QualifiedRuleGrammar:
			if len(pending) == 0 {
				groupStart = r.mark
			}
			pending = append(pending, selectorText(data, r.parser.Values()))

		case css.BeginRulesetGrammar:
			if len(pending) == 0 {
				groupStart = r.mark
			}
			values := splitList(r.selectorGroup(groupStart, append(pending, selectorText(data, r.parser.Values()))))
			pending = nil
			decls, err := r.parseDeclarations()
			if err != nil {
				return nil, err
			}
			kf.Frames = append(kf.Frames, KeyframeBlock{Values: values, Declarations: decls})
		}
	}
}

// skipBlock skips tokens until the matching end of an @-rule block.
func (r *run) skipBlock() error {
	depth := 1
	for depth > 0 {
		gt, _ := r.next()
		switch gt {
		case css.ErrorGrammar:
			return r.unexpectedEnd(r.parser.Err(), "missing '}'")
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			if !r.closed() {
				return r.unexpectedEnd(nil, "missing '}'")
			}
			depth--
		}
	}
	return nil
}

func (r *run) next() (css.GrammarType, []byte) {
	r.mark = r.input.Offset()
	gt, _, data := r.parser.Next()
	return gt, data
}

// closed reports whether the block which just ended was terminated by its own
// '}'. The grammar parser ends open blocks silently at the end of input.
func (r *run) closed() bool {
	end := r.input.Offset()
	if end <= r.lastClose || end > len(r.src) || r.src[end-1] != '}' {
		return false
	}
	r.lastClose = end
	return true
}

func (r *run) warn(msg string) {
	r.sheet.Warnings = append(r.sheet.Warnings, msg)
	r.log.Debug("Skipping", zap.String("reason", msg))
}

// unexpectedEnd converts end of input inside of a block into a syntax error.
func (r *run) unexpectedEnd(err error, reason string) error {
	if err != nil && !errors.Is(err, io.EOF) {
		return r.syntaxError(err)
	}
	line, col := r.position(len(r.src))
	return &SyntaxError{Line: line, Column: col, Reason: reason}
}

func (r *run) syntaxError(err error) error {
	var pe *parse.Error
	if errors.As(err, &pe) {
		return &SyntaxError{Line: pe.Line, Column: pe.Column, Reason: pe.Message}
	}
	line, col := r.position(r.input.Offset())
	return &SyntaxError{Line: line, Column: col, Reason: err.Error()}
}

func (r *run) errorAt(reason string) error {
	line, col := r.position(r.input.Offset())
	return &SyntaxError{Line: line, Column: col, Reason: reason}
}

func (r *run) line() int {
	line, _ := r.position(r.input.Offset())
	return line
}

// position returns 1-based line and column for byte offset.
func (r *run) position(offset int) (int, int) {
	offset = min(max(offset, 0), len(r.src))
	i := sort.Search(len(r.lines), func(i int) bool { return r.lines[i] > offset }) - 1
	return i + 1, offset - r.lines[i] + 1
}

func lineStarts(data []byte) []int {
	starts := []int{0}
	for i, b := range data {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lexTokens splits source into tokens keeping every byte of it.
func lexTokens(data []byte) []rawToken {
	input := parse.NewInput(bytes.NewReader(data))
	lexer := css.NewLexer(input)

	var (
		tokens []rawToken
		start  int
	)
	for {
		tt, _ := lexer.Next()
		if tt == css.ErrorToken {
			return tokens
		}
		end := input.Offset()
		tokens = append(tokens, rawToken{tt: tt, start: start, end: end})
		start = end
	}
}

// rawText returns source text starting at offset up to the first ';', '{' or
// '}' outside of brackets. When after is given the text begins past the first
// token of that type. Comments are dropped, whitespace is kept as written.
func (r *run) rawText(offset int, after ...css.TokenType) string {
	i := sort.Search(len(r.tokens), func(i int) bool { return r.tokens[i].start >= offset })
	if len(after) > 0 {
		for i < len(r.tokens) && r.tokens[i].tt != after[0] {
			i++
		}
		i++
	}

	var (
		sb    strings.Builder
		depth int
	)
loop:
	for ; i < len(r.tokens); i++ {
		t := r.tokens[i]
		switch t.tt {
		case css.FunctionToken, css.LeftParenthesisToken, css.LeftBracketToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			depth = max(depth-1, 0)
		case css.LeftBraceToken:
			if depth == 0 {
				break loop
			}
			depth++
		case css.RightBraceToken:
			if depth == 0 {
				break loop
			}
			depth--
		case css.SemicolonToken:
			if depth == 0 {
				break loop
			}
		case css.CommentToken:
			continue
		}
		sb.Write(r.src[t.start:t.end])
	}
	return strings.TrimSpace(sb.String())
}

// verbatim returns raw source text when it carries the same tokens as text
// rebuilt by the grammar parser, and the rebuilt text otherwise.
func (r *run) verbatim(raw, rebuilt string) string {
	if !sameText(raw, rebuilt, spaces) {
		r.log.Debug("Source span does not match parsed tokens", zap.String("raw", raw), zap.String("parsed", rebuilt))
		return rebuilt
	}
	return raw
}

// selectorGroup returns selector group text starting at offset with
// whitespace runs collapsed. Combinators keep surrounding spaces as written.
func (r *run) selectorGroup(offset int, parts []string) string {
	raw, rebuilt := r.rawText(offset), strings.Join(parts, ",")
	if !sameText(raw, rebuilt, spaces+",") {
		r.log.Debug("Source span does not match parsed selectors", zap.String("raw", raw), zap.String("parsed", rebuilt))
		return rebuilt
	}
	return strings.Join(strings.Fields(raw), " ")
}

const spaces = " \t\n\r\f"

// sameText compares strings ignoring any of the cutset characters.
func sameText(a, b, cutset string) bool {
	drop := func(r rune) rune {
		if strings.ContainsRune(cutset, r) {
			return -1
		}
		return r
	}
	return strings.Map(drop, a) == strings.Map(drop, b)
}

// selectorText builds selector string from token data and values.
func selectorText(data []byte, values []css.Token) string {
	var sb strings.Builder
	sb.Write(data)
	for _, v := range values {
		if v.TokenType == css.CommentToken {
			continue
		}
		sb.Write(v.Data)
	}
	return sb.String()
}

// joinTokens rebuilds text of a value from tokens. Comments are dropped and
// any whitespace run becomes a single space.
func joinTokens(tokens []css.Token) string {
	var sb strings.Builder
	for _, t := range tokens {
		switch t.TokenType {
		case css.CommentToken:
		case css.WhitespaceToken:
			sb.WriteByte(' ')
		default:
			sb.Write(t.Data)
		}
	}
	return strings.TrimSpace(sb.String())
}

// splitList splits by comma for grouped selectors dropping empty parts.
func splitList(s string) []string {
	var parts []string
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
