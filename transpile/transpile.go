// Package transpile converts stylesheets written in CSS dialect into JS
// modules exporting style function of a theme.
package transpile

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"cssmui/css"
)

const (
	DefaultTheme         = "theme"
	DefaultMixinProperty = "-mui-mixins"
)

// Options controls code generation.
type Options struct {
	Theme         string // name of theme parameter, "theme" by default
	SpacingUnit   string // spacing unit expression, "<theme>.spacing.unit" by default
	MixinProperty string // mixin pseudo-property, "-mui-mixins" by default
	Verify        bool   // compile generated code with esbuild
	Minify        bool   // return minified code, implies Verify
}

// Result of a single transpilation.
type Result struct {
	Code     []byte
	Sheet    *css.Stylesheet
	Tree     *Tree
	Warnings []string
}

// Transpiler is safe for concurrent use, every call works on its own input.
type Transpiler struct {
	opts    Options
	log     *zap.Logger
	parser  *css.Parser
	emitter *Emitter
}

// New creates transpiler.
func New(opts Options, log *zap.Logger) *Transpiler {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("transpile")
	return &Transpiler{
		opts:    opts,
		log:     log,
		parser:  css.NewParser(log),
		emitter: NewEmitter(opts.Theme, opts.SpacingUnit, opts.MixinProperty),
	}
}

// Transpile converts source into module code. Name is used for diagnostics
// only.
func (t *Transpiler) Transpile(ctx context.Context, source []byte, name string) ([]byte, error) {
	res, err := t.Run(ctx, source, name)
	if err != nil {
		return nil, err
	}
	return res.Code, nil
}

// Run is Transpile which also returns intermediate state.
func (t *Transpiler) Run(ctx context.Context, source []byte, name string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := decode(source)
	if err != nil {
		return nil, fmt.Errorf("unable to decode source: %w", err)
	}

	sheet, err := t.parser.Parse(src, name)
	if err != nil {
		var se *css.SyntaxError
		if errors.As(err, &se) {
			return nil, RenderSyntaxError(src, se)
		}
		return nil, err
	}
	for _, w := range sheet.Warnings {
		t.log.Warn("Ignoring unsupported construct", zap.String("source", name), zap.String("reason", w))
	}

	tree, err := Build(sheet)
	if err != nil {
		return nil, err
	}
	for _, w := range tree.Warnings {
		t.log.Warn("Suspicious construct", zap.String("source", name), zap.String("reason", w))
	}

	code, err := t.emitter.Emit(tree)
	if err != nil {
		return nil, err
	}

	if t.opts.Verify || t.opts.Minify {
		if code, err = verify(t.log, code, name, t.opts.Minify); err != nil {
			return nil, err
		}
	}

	t.log.Debug("Transpiled",
		zap.String("source", name),
		zap.Int("rules", tree.Rules.Len()),
		zap.Int("media", len(tree.Media)),
		zap.Int("keyframes", len(tree.Keyframes)),
		zap.Int("bytes", len(code)))

	return &Result{
		Code:     []byte(code),
		Sheet:    sheet,
		Tree:     tree,
		Warnings: append(slices.Clip(sheet.Warnings), tree.Warnings...),
	}, nil
}

// decode strips byte order mark, UTF-16 input is converted to UTF-8.
func decode(source []byte) ([]byte, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), source)
	if err != nil {
		return nil, err
	}
	return out, nil
}
