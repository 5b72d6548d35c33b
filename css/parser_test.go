package css_test

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"cssmui/css"
)

// allRules collects all top-level rules from a stylesheet's Items.
// It does NOT flatten @media blocks.
func allRules(sheet *css.Stylesheet) []css.Rule {
	var rules []css.Rule
	for _, item := range sheet.Items {
		if item.Rule != nil {
			rules = append(rules, *item.Rule)
		}
	}
	return rules
}

func mustParse(t *testing.T, input string) *css.Stylesheet {
	t.Helper()
	sheet, err := css.NewParser(zap.NewNop()).Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return sheet
}

func TestParser_ClassSelector(t *testing.T) {
	sheet := mustParse(t, `.epigraph { font-style: italic; }`)

	rules := allRules(sheet)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}

	rule := rules[0]
	if len(rule.Selectors) != 1 || rule.Selectors[0] != ".epigraph" {
		t.Errorf("expected selector '.epigraph', got %q", rule.Selectors)
	}
	if len(rule.Declarations) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(rule.Declarations))
	}
	if d := rule.Declarations[0]; d.Property != "font-style" || d.Value != "italic" {
		t.Errorf("unexpected declaration %+v", d)
	}
}

func TestParser_GroupedSelectors(t *testing.T) {
	sheet := mustParse(t, `.test1, .test2, .test3 { padding: 10px; }`)

	rules := allRules(sheet)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule for grouped selector, got %d", len(rules))
	}

	expected := []string{".test1", ".test2", ".test3"}
	if len(rules[0].Selectors) != len(expected) {
		t.Fatalf("expected %d selectors, got %q", len(expected), rules[0].Selectors)
	}
	for i, sel := range rules[0].Selectors {
		if sel != expected[i] {
			t.Errorf("selector %d: expected '%s', got '%s'", i, expected[i], sel)
		}
	}
}

func TestParser_DescendantSelectorKeepsSpace(t *testing.T) {
	sheet := mustParse(t, `.test1 .test2 { padding: 10px; }`)

	rules := allRules(sheet)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	if got := rules[0].Selectors[0]; got != ".test1 .test2" {
		t.Errorf("expected '.test1 .test2', got %q", got)
	}
}

func TestParser_CombinatorKeepsSpaces(t *testing.T) {
	sheet := mustParse(t, ".a > .b,\n.c  ~\t.d, .e+.f { padding: 10px; }")

	rules := allRules(sheet)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	want := []string{".a > .b", ".c ~ .d", ".e+.f"}
	if got := rules[0].Selectors; strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestParser_ValuesKeepSourceText(t *testing.T) {
	sheet := mustParse(t, `
.test {
  color: $(fn(1, 2) ? 'x' : y);
  transition: opacity .2s, transform .3s;
  grid-area: 1 / 2 / 3;
  margin: 0 /* inline */ auto;
}
@media $(theme.breakpoints.between('sm', 'md')) {
  .test { padding: 0; }
}
`)

	want := map[string]string{
		"color":      "$(fn(1, 2) ? 'x' : y)",
		"transition": "opacity .2s, transform .3s",
		"grid-area":  "1 / 2 / 3",
		"margin":     "0  auto",
	}
	rules := allRules(sheet)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	for _, d := range rules[0].Declarations {
		if d.Value != want[d.Property] {
			t.Errorf("%s: expected %q, got %q", d.Property, want[d.Property], d.Value)
		}
	}

	if len(sheet.Items) != 2 || sheet.Items[1].MediaBlock == nil {
		t.Fatalf("expected rule and media block, got %+v", sheet.Items)
	}
	if got := sheet.Items[1].MediaBlock.Condition; got != "$(theme.breakpoints.between('sm', 'md'))" {
		t.Errorf("unexpected media condition %q", got)
	}
}

func TestParser_DeclarationOrderAndDuplicates(t *testing.T) {
	sheet := mustParse(t, `
.test {
  margin: 20px;
  padding: 10px;
  margin: 0;
}
`)

	rules := allRules(sheet)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}

	want := []css.Declaration{
		{Property: "margin", Value: "20px"},
		{Property: "padding", Value: "10px"},
		{Property: "margin", Value: "0"},
	}
	got := rules[0].Declarations
	if len(got) != len(want) {
		t.Fatalf("expected %d declarations, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Property != want[i].Property || got[i].Value != want[i].Value {
			t.Errorf("declaration %d: expected %s: %s, got %s: %s", i, want[i].Property, want[i].Value, got[i].Property, got[i].Value)
		}
	}
	if got[0].Line < 1 {
		t.Errorf("expected declaration line to be set, got %d", got[0].Line)
	}
}

func TestParser_ValuesWithDialectExtensions(t *testing.T) {
	sheet := mustParse(t, `
.test {
  padding: 11su  12su;
  color: $(theme.palette.gray[200]);
  border: 1px solid $(theme.utils.rgba(theme.palette.primary, .2));
  background: var(--my-color);
  -mui-mixins: theme.mixins.gutters;
}
`)

	rules := allRules(sheet)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}

	want := map[string]string{
		"padding":     "11su  12su",
		"color":       "$(theme.palette.gray[200])",
		"border":      "1px solid $(theme.utils.rgba(theme.palette.primary, .2))",
		"background":  "var(--my-color)",
		"-mui-mixins": "theme.mixins.gutters",
	}
	for _, d := range rules[0].Declarations {
		if w, ok := want[d.Property]; !ok {
			t.Errorf("unexpected property %q", d.Property)
		} else if d.Value != w {
			t.Errorf("%s: expected %q, got %q", d.Property, w, d.Value)
		}
	}
}

func TestParser_RootCustomProperties(t *testing.T) {
	sheet := mustParse(t, `
:root {
  --my-color: blue;
}
`)

	rules := sheet.RulesBySelector(":root")
	if len(rules) != 1 {
		t.Fatalf("expected 1 ':root' rule, got %d", len(rules))
	}
	decls := rules[0].Declarations
	if len(decls) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(decls))
	}
	if !decls[0].IsCustomProperty() || decls[0].Property != "--my-color" || decls[0].Value != "blue" {
		t.Errorf("unexpected declaration %+v", decls[0])
	}
}

func TestParser_MediaBlockPreserved(t *testing.T) {
	sheet := mustParse(t, `
.test { padding: 20px; }
@media $(theme.breakpoints.down('xs')) {
  .test { padding: 5px; }
}
.other { color: red; }
`)

	// Should have 3 items: rule, media-block, rule
	if len(sheet.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(sheet.Items))
	}
	if sheet.Items[0].Rule == nil {
		t.Fatal("expected first item to be a Rule")
	}

	mb := sheet.Items[1].MediaBlock
	if mb == nil {
		t.Fatal("expected second item to be a MediaBlock")
	}
	if mb.Condition != "$(theme.breakpoints.down('xs'))" {
		t.Errorf("unexpected media condition %q", mb.Condition)
	}
	if len(mb.Rules) != 1 {
		t.Fatalf("expected 1 rule inside @media block, got %d", len(mb.Rules))
	}
	if mb.Rules[0].Selectors[0] != ".test" {
		t.Errorf("expected media block rule selector '.test', got %q", mb.Rules[0].Selectors)
	}

	if sheet.Items[2].Rule == nil {
		t.Fatal("expected third item to be a Rule")
	}
}

func TestParser_Keyframes(t *testing.T) {
	sheet := mustParse(t, `
@-webkit-keyframes spin {
  from { transform: rotate(0deg); }
  50%, 75% { opacity: 0.5; }
  to { transform: rotate(360deg); }
}
`)

	if len(sheet.Items) != 1 || sheet.Items[0].Keyframes == nil {
		t.Fatalf("expected single keyframes item, got %+v", sheet.Items)
	}
	kf := sheet.Items[0].Keyframes
	if kf.Name != "spin" {
		t.Errorf("expected name 'spin', got %q", kf.Name)
	}
	if kf.Vendor != "-webkit-" {
		t.Errorf("expected vendor '-webkit-', got %q", kf.Vendor)
	}
	if kf.AtRule() != "@-webkit-keyframes" {
		t.Errorf("unexpected at-rule %q", kf.AtRule())
	}
	if len(kf.Frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(kf.Frames))
	}
	if v := kf.Frames[1].Values; len(v) != 2 || v[0] != "50%" || v[1] != "75%" {
		t.Errorf("unexpected frame values %q", v)
	}
}

func TestParser_Comments(t *testing.T) {
	sheet := mustParse(t, `
/*
.todo {
  margin: 0;
}
*/
.test {
  padding: 10px; /* TODO: something */
}
`)

	rules := allRules(sheet)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	if len(rules[0].Declarations) != 1 || rules[0].Declarations[0].Value != "10px" {
		t.Errorf("unexpected declarations %+v", rules[0].Declarations)
	}
}

func TestParser_UnsupportedAtRuleWarns(t *testing.T) {
	sheet := mustParse(t, `
@font-face { font-family: "Test"; }
.test { padding: 10px; }
`)

	if len(allRules(sheet)) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(allRules(sheet)))
	}
	if len(sheet.Warnings) != 1 || !strings.Contains(sheet.Warnings[0], "@font-face") {
		t.Errorf("expected @font-face warning, got %q", sheet.Warnings)
	}
}

func TestParser_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		line   int
		reason string
	}{
		{
			name:  "missing colon",
			input: ".test {\n  padding 10px;\n}\n",
			line:  2,
		},
		{
			name:   "unclosed rule",
			input:  ".a { color: red; }\n.b { color: blue;",
			line:   2,
			reason: "missing '}'",
		},
		{
			name:   "unclosed rule without semicolon",
			input:  ".b { color: blue",
			line:   1,
			reason: "missing '}'",
		},
		{
			name:   "unclosed media",
			input:  "@media $(a) { .x { c: d; }",
			line:   1,
			reason: "missing '}' for @media",
		},
		{
			name:   "unclosed rule inside media",
			input:  "@media $(a) {\n  .x { c: d;\n",
			line:   3,
			reason: "missing '}'",
		},
		{
			name:   "unclosed keyframes",
			input:  "@keyframes spin { from { opacity: 0; }",
			line:   1,
			reason: "missing '}' for @keyframes",
		},
		{
			name:   "unclosed unsupported at-rule",
			input:  ".a { color: red; }\n@font-face { font-family: x;",
			line:   2,
			reason: "missing '}'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := css.NewParser(nil).Parse([]byte(tt.input))
			if err == nil {
				t.Fatal("expected syntax error")
			}
			var se *css.SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("expected *css.SyntaxError, got %T: %v", err, err)
			}
			if se.Line != tt.line {
				t.Errorf("expected line %d, got %d (%v)", tt.line, se.Line, se)
			}
			if se.Column < 1 {
				t.Errorf("expected positive column, got %d", se.Column)
			}
			if tt.reason != "" && se.Reason != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, se.Reason)
			}
		})
	}
}

func TestStylesheet_String(t *testing.T) {
	sheet := mustParse(t, `.a{color:red;margin:0}@media $(x){.b{padding:1px}}`)

	want := ".a {\n  color: red;\n  margin: 0;\n}\n\n@media $(x) {\n  .b {\n    padding: 1px;\n  }\n}\n"
	if got := sheet.String(); got != want {
		t.Errorf("String() =\n%s\nwant\n%s", got, want)
	}
}
