package transpile_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"cssmui/transpile"
)

func newTranspiler(t *testing.T, opts transpile.Options) *transpile.Transpiler {
	t.Helper()
	return transpile.New(opts, zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1))))
}

func mustTranspile(t *testing.T, input string) string {
	t.Helper()
	out, err := newTranspiler(t, transpile.Options{}).Transpile(context.Background(), []byte(input), "test.mui.css")
	if err != nil {
		t.Fatalf("Transpile() error = %v", err)
	}
	return string(out)
}

func TestTranspile_Output(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple class",
			input: `.test { padding: 10px; }`,
			want: "export default (theme) => {\n" +
				"  return {\n" +
				"    test: {\n" +
				"      padding: `10px`,\n" +
				"    },\n" +
				"  };\n" +
				"};\n",
		},
		{
			name:  "duplicate properties kept",
			input: ".test {\n  margin: 20px;\n  margin: 0;\n}\n",
			want: "export default (theme) => {\n" +
				"  return {\n" +
				"    test: {\n" +
				"      margin: `20px`,\n" +
				"      margin: `0`,\n" +
				"    },\n" +
				"  };\n" +
				"};\n",
		},
		{
			name:  "compound selector",
			input: `.a.b { color: red; }`,
			want: "export default (theme) => {\n" +
				"  return {\n" +
				"    b: {},\n" +
				"    a: {\n" +
				"      '&$b': {\n" +
				"        color: `red`,\n" +
				"      },\n" +
				"    },\n" +
				"  };\n" +
				"};\n",
		},
		{
			name:  "descendant selector",
			input: `.a .b { color: red; }`,
			want: "export default (theme) => {\n" +
				"  return {\n" +
				"    b: {},\n" +
				"    a: {\n" +
				"      '& $b': {\n" +
				"        color: `red`,\n" +
				"      },\n" +
				"    },\n" +
				"  };\n" +
				"};\n",
		},
		{
			name:  "child combinator",
			input: `.a > .b { color: red; }`,
			want: "export default (theme) => {\n" +
				"  return {\n" +
				"    b: {},\n" +
				"    a: {\n" +
				"      '& > $b': {\n" +
				"        color: `red`,\n" +
				"      },\n" +
				"    },\n" +
				"  };\n" +
				"};\n",
		},
		{
			name:  "root variables",
			input: ":root {\n  --my-color: blue;\n}\n.test {\n  color: var(--my-color);\n}\n",
			want: "export default (theme) => {\n" +
				"  const myColor = `blue`;\n" +
				"\n" +
				"  return {\n" +
				"    test: {\n" +
				"      color: `${myColor}`,\n" +
				"    },\n" +
				"  };\n" +
				"};\n",
		},
		{
			name:  "custom units and mixins",
			input: ".test {\n  padding: 1su;\n  -mui-mixins: theme.mixins.gutters, theme.mixins.toolbar;\n}\n",
			want: "export default (theme) => {\n" +
				"  return {\n" +
				"    test: {\n" +
				"      ...theme.mixins.gutters,\n" +
				"      ...theme.mixins.toolbar,\n" +
				"      padding: `${theme.spacing.unit * 1}px`,\n" +
				"    },\n" +
				"  };\n" +
				"};\n",
		},
		{
			name: "media merge",
			input: ".test { padding: 20px; }\n" +
				"@media $(theme.breakpoints.down('xs')) { .test { padding: 5px; } }\n" +
				"@media $(theme.breakpoints.down('xs')) { .test { margin: 0; } .other { color: red; } }\n",
			want: "export default (theme) => {\n" +
				"  return {\n" +
				"    test: {\n" +
				"      padding: `20px`,\n" +
				"    },\n" +
				"    [theme.breakpoints.down('xs')]: {\n" +
				"      test: {\n" +
				"        padding: `5px`,\n" +
				"        margin: `0`,\n" +
				"      },\n" +
				"      other: {\n" +
				"        color: `red`,\n" +
				"      },\n" +
				"    },\n" +
				"  };\n" +
				"};\n",
		},
		{
			name: "keyframes first, last one wins",
			input: ".test { animation: spin 1s; }\n" +
				"@keyframes spin { from { opacity: 0; } to { opacity: 1; } }\n" +
				"@keyframes spin { 50% { opacity: 0.5; } }\n",
			want: "export default (theme) => {\n" +
				"  return {\n" +
				"    '@keyframes spin': {\n" +
				"      '50%': {\n" +
				"        opacity: `0.5`,\n" +
				"      },\n" +
				"    },\n" +
				"    test: {\n" +
				"      animation: `spin 1s`,\n" +
				"    },\n" +
				"  };\n" +
				"};\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustTranspile(t, tt.input); got != tt.want {
				t.Errorf("Transpile() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestTranspile_EscapeHatches(t *testing.T) {
	got := mustTranspile(t, ".test {\n  border: 1px solid $(theme.utils.rgba(theme.palette.primary, .2));\n  font-size: 12px;\n}\n")

	for _, want := range []string{
		"border: `1px solid ${theme.utils.rgba(theme.palette.primary, .2)}`,",
		"fontSize: `12px`,",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output does not contain %q:\n%s", want, got)
		}
	}
}

func TestTranspile_CodeKeptVerbatim(t *testing.T) {
	got := mustTranspile(t, ".test {\n"+
		"  color: $(fn(1, 2) ? 'x' : y);\n"+
		"  transition: opacity .2s,\n    transform .3s;\n"+
		"  margin: 0 2su;\n"+
		"}\n"+
		"@media $(theme.breakpoints.between('sm', 'md')) {\n"+
		"  .test { padding: 0; }\n"+
		"}\n")

	for _, want := range []string{
		"color: `${fn(1, 2) ? 'x' : y}`,",
		"transition: `opacity .2s, transform .3s`,",
		"margin: `0 ${theme.spacing.unit * 2}px`,",
		"[theme.breakpoints.between('sm', 'md')]: {",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output does not contain %q:\n%s", want, got)
		}
	}
}

func TestTranspile_CustomTheme(t *testing.T) {
	tr := newTranspiler(t, transpile.Options{Theme: "t", MixinProperty: "-x-mixins"})
	out, err := tr.Transpile(context.Background(), []byte(".a { margin: 2su; -x-mixins: t.m; }"), "")
	if err != nil {
		t.Fatalf("Transpile() error = %v", err)
	}
	for _, want := range []string{"export default (t) => {", "...t.m,", "margin: `${t.spacing.unit * 2}px`,"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("output does not contain %q:\n%s", want, out)
		}
	}
}

func TestTranspile_StripsBOM(t *testing.T) {
	got := mustTranspile(t, "\uFEFF.test { padding: 10px; }")
	if !strings.Contains(got, "padding: `10px`") {
		t.Errorf("unexpected output:\n%s", got)
	}
}

func TestTranspile_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		target any
	}{
		{"non-class selector", `#test { padding: 10px; }`, new(*transpile.UnsupportedSelectorError)},
		{"bare media condition", `@media (min-width: 30em) { .test { padding: 5px; } }`, new(*transpile.InvalidMediaConditionError)},
		{"fractional unit", `.test { padding: 1.5su; }`, new(*transpile.FractionalUnitError)},
		{"fractional unit in root", `:root { --gap: 0.5su; } .test { padding: 0; }`, new(*transpile.FractionalUnitError)},
		{"syntax error", ".test {\n  padding 10px;\n}\n", new(*transpile.SyntaxError)},
		{"unclosed rule", ".a { color: red; }\n.b { color: blue;\n", new(*transpile.SyntaxError)},
		{"unclosed media", "@media $(a) { .x { c: d; }", new(*transpile.SyntaxError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := newTranspiler(t, transpile.Options{}).Transpile(context.Background(), []byte(tt.input), "test.mui.css")
			if err == nil {
				t.Fatalf("expected error, got output:\n%s", out)
			}
			if out != nil {
				t.Error("partial output returned")
			}
			if !errors.As(err, tt.target) {
				t.Errorf("unexpected error %T: %v", err, err)
			}
		})
	}
}

func TestTranspile_SyntaxErrorExcerpt(t *testing.T) {
	_, err := newTranspiler(t, transpile.Options{}).Transpile(context.Background(), []byte(".test {\n  padding 10px;\n}\n"), "")

	var se *transpile.SyntaxError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SyntaxError, got %T: %v", err, err)
	}
	if se.Line != 2 {
		t.Errorf("expected line 2, got %d", se.Line)
	}
	if !strings.HasPrefix(se.Error(), "SyntaxError: ") || !strings.Contains(se.Error(), "> 2 |   padding 10px;") {
		t.Errorf("unexpected excerpt:\n%s", se.Error())
	}
}

func TestTranspile_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTranspiler(t, transpile.Options{}).Transpile(ctx, []byte(`.a { color: red; }`), ""); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestTranspile_Verify(t *testing.T) {
	tr := newTranspiler(t, transpile.Options{Verify: true})

	if _, err := tr.Transpile(context.Background(), []byte(`.test { color: $(theme.palette.primary.main); }`), "ok.mui.css"); err != nil {
		t.Fatalf("Transpile() error = %v", err)
	}

	_, err := tr.Transpile(context.Background(), []byte(`.test { color: $(theme.palette..main); }`), "bad.mui.css")
	var gce *transpile.GeneratedCodeError
	if !errors.As(err, &gce) {
		t.Fatalf("expected *GeneratedCodeError, got %T: %v", err, err)
	}
	if len(gce.Messages) == 0 {
		t.Error("expected diagnostics")
	}
}

func TestTranspile_Minify(t *testing.T) {
	tr := newTranspiler(t, transpile.Options{Minify: true})
	out, err := tr.Transpile(context.Background(), []byte(".test {\n  padding: 1su;\n}\n"), "min.mui.css")
	if err != nil {
		t.Fatalf("Transpile() error = %v", err)
	}
	if !strings.Contains(string(out), "export default") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Contains(string(out), "\n  ") {
		t.Errorf("output is not minified:\n%s", out)
	}
}

func TestTranspile_Run(t *testing.T) {
	res, err := newTranspiler(t, transpile.Options{}).Run(context.Background(), []byte("@font-face { font-family: x; }\n.a { color: red; }"), "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Tree.Rules.Len() != 1 {
		t.Errorf("expected 1 rule, got %d", res.Tree.Rules.Len())
	}
	if len(res.Warnings) != 1 {
		t.Errorf("expected 1 warning, got %q", res.Warnings)
	}
	if res.Sheet == nil || len(res.Sheet.Items) != 1 {
		t.Fatalf("unexpected stylesheet %+v", res.Sheet)
	}
	if got, want := res.Sheet.String(), ".a {\n  color: red;\n}\n"; got != want {
		t.Errorf("normalized stylesheet = %q, want %q", got, want)
	}
}

func TestTranspile_RunRootWarnings(t *testing.T) {
	res, err := newTranspiler(t, transpile.Options{}).Run(context.Background(), []byte(":root {\n  --gap: 1px;\n  color: red;\n}\n"), "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "regular property color (line 3)") {
		t.Errorf("unexpected warnings %q", res.Warnings)
	}
	if !strings.Contains(string(res.Code), "const color = `red`;") {
		t.Errorf("regular property must still be emitted:\n%s", res.Code)
	}
}
