package transpile

import (
	"fmt"
	"strings"
)

// Emitter generates module source from a rule tree.
type Emitter struct {
	Theme         string // name of the generated function parameter
	MixinProperty string // pseudo-property listing mixins
	lexer         Lexer
}

// NewEmitter returns emitter, empty arguments are replaced with defaults.
func NewEmitter(theme, spacingUnit, mixinProperty string) *Emitter {
	if theme == "" {
		theme = DefaultTheme
	}
	if spacingUnit == "" {
		spacingUnit = theme + ".spacing.unit"
	}
	if mixinProperty == "" {
		mixinProperty = DefaultMixinProperty
	}
	return &Emitter{
		Theme:         theme,
		MixinProperty: mixinProperty,
		lexer:         Lexer{SpacingUnit: spacingUnit},
	}
}

// Emit renders tree as ES module with default exported style function.
// Object entries are written in fixed order: keyframes, rules, media.
func (e *Emitter) Emit(t *Tree) (string, error) {
	w := &codeWriter{}

	w.line(0, "export default (%s) => {", e.Theme)
	for _, d := range t.Root {
		value, err := e.transpileValue(d.Value)
		if err != nil {
			return "", err
		}
		w.line(1, "const %s = %s;", variableName(d.Property), value)
	}
	if len(t.Root) > 0 {
		w.blank()
	}

	w.line(1, "return {")
	for _, k := range t.Keyframes {
		if err := e.emitKeyframes(w, 2, k); err != nil {
			return "", err
		}
	}
	if err := e.emitRules(w, 2, t.Rules); err != nil {
		return "", err
	}
	for _, m := range t.Media {
		w.line(2, "[%s]: {", m.Expression)
		if err := e.emitRules(w, 3, m.Rules); err != nil {
			return "", err
		}
		w.line(2, "},")
	}
	w.line(1, "};")
	w.line(0, "};")

	return w.String(), nil
}

func (e *Emitter) emitKeyframes(w *codeWriter, depth int, k *ParsedKeyframes) error {
	w.line(depth, "%s: {", quoteKey(k.Key()))
	for _, f := range k.Frames {
		b, err := e.transpileDeclarations(f.Declarations)
		if err != nil {
			return err
		}
		e.emitObject(w, depth+1, quoteKey(strings.Join(f.Values, ",")), b, nil)
	}
	w.line(depth, "},")
	return nil
}

func (e *Emitter) emitRules(w *codeWriter, depth int, rules *RuleSet) error {
	for _, r := range rules.All() {
		b, err := e.transpileDeclarations(r.Declarations)
		if err != nil {
			return err
		}
		children := make([]childBlock, 0, len(r.ChildRules))
		for _, c := range r.ChildRules {
			cb, err := e.transpileDeclarations(c.Declarations)
			if err != nil {
				return err
			}
			children = append(children, childBlock{key: quoteKey(childSelector(c.Selector)), block: cb})
		}
		e.emitObject(w, depth, quoteKey(r.Name()), b, children)
	}
	return nil
}

type childBlock struct {
	key   string
	block Block
}

func (e *Emitter) emitObject(w *codeWriter, depth int, key string, b Block, children []childBlock) {
	if b.IsEmpty() && len(children) == 0 {
		w.line(depth, "%s: {},", key)
		return
	}
	w.line(depth, "%s: {", key)
	writeBlock(w, depth+1, b)
	for _, c := range children {
		e.emitObject(w, depth+1, c.key, c.block, nil)
	}
	w.line(depth, "},")
}

func writeBlock(w *codeWriter, depth int, b Block) {
	for _, m := range b.Mixins {
		w.line(depth, "...%s,", m)
	}
	for _, en := range b.Entries {
		w.line(depth, "%s: %s,", quoteKey(en.Key), en.Value)
	}
}

// childSelector rewrites child rule selector to nested form: class
// references get "$" marker and the whole selector is attached to parent.
func childSelector(sel string) string {
	return "&" + classToken.ReplaceAllStringFunc(sel, func(class string) string {
		return "$" + class[1:]
	})
}

// templateLiteral joins fragments into a single template literal.
func templateLiteral(frags []Fragment) string {
	var sb strings.Builder
	sb.WriteByte('`')
	for _, f := range frags {
		switch f.Kind {
		case FragmentCode:
			sb.WriteString("${")
			sb.WriteString(f.Text)
			sb.WriteByte('}')
			sb.WriteString(escapeTemplate(f.Suffix))
		default:
			sb.WriteString(escapeTemplate(f.Text))
		}
	}
	sb.WriteByte('`')
	return sb.String()
}

var templateEscaper = strings.NewReplacer(`\`, `\\`, "`", "\\`", "${", `\${`)

func escapeTemplate(s string) string {
	return templateEscaper.Replace(s)
}

var keyEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`)

// quoteKey returns object key as is when it is a valid identifier, single
// quoted otherwise.
func quoteKey(key string) string {
	if isIdentifier(key) {
		return key
	}
	return "'" + keyEscaper.Replace(key) + "'"
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_' || c == '$':
		case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// codeWriter accumulates indented lines of generated code.
type codeWriter struct {
	sb strings.Builder
}

func (w *codeWriter) line(depth int, format string, args ...any) {
	for range depth {
		w.sb.WriteString("  ")
	}
	fmt.Fprintf(&w.sb, format, args...)
	w.sb.WriteByte('\n')
}

func (w *codeWriter) blank() {
	w.sb.WriteByte('\n')
}

func (w *codeWriter) String() string {
	return w.sb.String()
}
