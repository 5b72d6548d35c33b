package transpile

import (
	"strings"

	"cssmui/css"
)

// Entry is a single property of generated style object.
type Entry struct {
	Key   string // camelCased property name
	Value string // JS expression
}

// Block is the transpiled form of a declaration list. Mixins are merged in
// before entries, so explicit declarations override mixin defaults.
type Block struct {
	Mixins  []string
	Entries []Entry
}

// IsEmpty reports whether block has nothing to emit.
func (b Block) IsEmpty() bool {
	return len(b.Mixins) == 0 && len(b.Entries) == 0
}

// transpileDeclarations converts declarations into object entries. Duplicate
// properties are kept as is, the last one wins when object literal is
// evaluated.
func (e *Emitter) transpileDeclarations(decls []css.Declaration) (Block, error) {
	var b Block
	for _, d := range decls {
		if d.Property == e.MixinProperty {
			b.Mixins = append(b.Mixins, splitTopLevel(d.Value)...)
			continue
		}
		value, err := e.transpileValue(d.Value)
		if err != nil {
			return Block{}, err
		}
		b.Entries = append(b.Entries, Entry{Key: camelCase(d.Property), Value: value})
	}
	return b, nil
}

// transpileValue lexes CSS value into a single JS expression.
func (e *Emitter) transpileValue(value string) (string, error) {
	frags, err := e.lexer.Lex(value)
	if err != nil {
		return "", err
	}
	return templateLiteral(frags), nil
}

// splitTopLevel splits mixin list on commas outside of any brackets or
// quotes, parts are trimmed and empty ones dropped.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		quote byte
		start int
	)
	add := func(part string) {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == ',' && depth == 0:
			add(s[start:i])
			start = i + 1
		}
	}
	add(s[start:])
	return parts
}
