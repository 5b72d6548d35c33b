package transpile

import (
	"fmt"
	"regexp"
	"strings"

	"cssmui/css"
	"cssmui/utils/debug"
)

// RootSelector marks the block with variable declarations.
const RootSelector = ":root"

var (
	// Matches CSS class followed by anything else, for example:
	//   .test:hover
	//   .test1.test2
	//   .test1 .test2
	leadingClass = regexp.MustCompile(`(?s)^(\.-?[_a-zA-Z]+[_a-zA-Z0-9-]*)(.*)$`)
	// Matches all valid CSS classes in the child selector string
	classToken = regexp.MustCompile(`\.-?[_a-zA-Z]+[_a-zA-Z0-9-]*`)
)

// ChildRule is a nested selector fragment of its parent class, e.g. ":hover",
// ".other" or " .descendant:focus".
type ChildRule struct {
	Selector     string
	Declarations []css.Declaration
}

// ParsedRule accumulates everything defined for a single class.
type ParsedRule struct {
	Selector     string
	Declarations []css.Declaration
	ChildRules   []ChildRule
}

// Name returns class name without leading dot.
func (r *ParsedRule) Name() string {
	return strings.TrimPrefix(r.Selector, ".")
}

// RuleSet keeps parsed rules by selector in insertion order.
type RuleSet struct {
	order []string
	rules map[string]*ParsedRule
}

func newRuleSet() *RuleSet {
	return &RuleSet{rules: make(map[string]*ParsedRule)}
}

// Len returns number of rules in the set.
func (s *RuleSet) Len() int {
	return len(s.order)
}

// Get returns rule for selector.
func (s *RuleSet) Get(selector string) (*ParsedRule, bool) {
	r, ok := s.rules[selector]
	return r, ok
}

// All returns rules in insertion order.
func (s *RuleSet) All() []*ParsedRule {
	all := make([]*ParsedRule, 0, len(s.order))
	for _, sel := range s.order {
		all = append(all, s.rules[sel])
	}
	return all
}

func (s *RuleSet) getOrCreate(selector string) *ParsedRule {
	if r, ok := s.rules[selector]; ok {
		return r
	}
	r := &ParsedRule{Selector: selector}
	s.rules[selector] = r
	s.order = append(s.order, selector)
	return r
}

// add places declarations of a single selector into the set. Compound and
// descendant selectors become child rules of their leading class, and every
// class they reference gets its own (possibly empty) entry.
func (s *RuleSet) add(selector string, decls []css.Declaration) error {
	m := leadingClass.FindStringSubmatch(selector)
	if m == nil {
		return &UnsupportedSelectorError{Selector: selector}
	}
	class, rest := m[1], m[2]

	if rest == "" {
		r := s.getOrCreate(class)
		r.Declarations = append(r.Declarations, decls...)
		return nil
	}

	for _, child := range classToken.FindAllString(rest, -1) {
		s.getOrCreate(child)
	}
	r := s.getOrCreate(class)
	r.ChildRules = append(r.ChildRules, ChildRule{
		Selector:     rest,
		Declarations: append([]css.Declaration(nil), decls...),
	})
	return nil
}

// ParsedMedia is a merged set of @media blocks sharing the same condition.
type ParsedMedia struct {
	Condition  string // verbatim condition text
	Expression string // code inside of $(...) wrapper
	Rules      *RuleSet
}

// ParsedKeyframes is the last @keyframes block with a given name.
type ParsedKeyframes struct {
	css.Keyframes
}

// Key returns the object key for keyframes (e.g., "@-webkit-keyframes spin").
func (k *ParsedKeyframes) Key() string {
	return k.AtRule() + " " + k.Name
}

// Tree is a stylesheet restructured into the shape of the generated object.
type Tree struct {
	Root      []css.Declaration
	Rules     *RuleSet
	Media     []*ParsedMedia
	Keyframes []*ParsedKeyframes
	Warnings  []string
}

// Build restructures flat stylesheet into a tree.
func Build(sheet *css.Stylesheet) (*Tree, error) {
	t := &Tree{Rules: newRuleSet()}

	// root variables must be available before anything else
	for _, rule := range sheet.RulesBySelector(RootSelector) {
		for _, d := range rule.Declarations {
			if !d.IsCustomProperty() {
				t.Warnings = append(t.Warnings, fmt.Sprintf("%s declares regular property %s (line %d)", RootSelector, d.Property, d.Line))
			}
			t.Root = append(t.Root, d)
		}
	}

	media := make(map[string]*ParsedMedia)
	keyframes := make(map[string]*ParsedKeyframes)

	for _, item := range sheet.Items {
		switch {
		case item.Rule != nil:
			if err := addRule(t.Rules, item.Rule, true); err != nil {
				return nil, err
			}

		case item.MediaBlock != nil:
			pm, ok := media[item.MediaBlock.Condition]
			if !ok {
				expr, err := mediaExpression(item.MediaBlock.Condition)
				if err != nil {
					return nil, err
				}
				pm = &ParsedMedia{Condition: item.MediaBlock.Condition, Expression: expr, Rules: newRuleSet()}
				media[pm.Condition] = pm
				t.Media = append(t.Media, pm)
			}
			for i := range item.MediaBlock.Rules {
				if err := addRule(pm.Rules, &item.MediaBlock.Rules[i], false); err != nil {
					return nil, err
				}
			}

		case item.Keyframes != nil:
			kf := item.Keyframes
			pk, ok := keyframes[kf.Name]
			if !ok {
				pk = &ParsedKeyframes{}
				keyframes[kf.Name] = pk
				t.Keyframes = append(t.Keyframes, pk)
			}
			// last definition wins, no merging
			pk.Keyframes = *kf
		}
	}
	return t, nil
}

func addRule(set *RuleSet, rule *css.Rule, topLevel bool) error {
	for _, sel := range rule.Selectors {
		if topLevel && sel == RootSelector {
			continue
		}
		if err := set.add(sel, rule.Declarations); err != nil {
			return err
		}
	}
	return nil
}

// mediaExpression extracts code from "$(code)" condition.
func mediaExpression(condition string) (string, error) {
	cond := strings.TrimSpace(condition)
	n, code := consumeEscapeHatch(cond)
	if n == 0 || n != len(cond) || strings.TrimSpace(code) == "" {
		return "", &InvalidMediaConditionError{Condition: condition}
	}
	return code, nil
}

// Dump renders tree in human readable form for debugging.
func (t *Tree) Dump() string {
	tw := debug.NewTreeWriter()

	tw.Section(0, "root", len(t.Root), "variable(s)")
	for _, d := range t.Root {
		tw.Field(1, d.Property, d.Value)
	}
	tw.Section(0, "keyframes", len(t.Keyframes))
	for _, k := range t.Keyframes {
		tw.Line(1, "%s (%d frames)", k.Key(), len(k.Frames))
		for _, f := range k.Frames {
			tw.Line(2, "%s", strings.Join(f.Values, ","))
			dumpDeclarations(tw, 3, f.Declarations)
		}
	}
	tw.Section(0, "rules", t.Rules.Len())
	dumpRules(tw, 1, t.Rules)
	tw.Section(0, "media", len(t.Media))
	for _, m := range t.Media {
		tw.Field(1, "condition", m.Expression)
		dumpRules(tw, 2, m.Rules)
	}
	return tw.String()
}

func dumpRules(tw *debug.TreeWriter, depth int, rules *RuleSet) {
	for _, r := range rules.All() {
		tw.Line(depth, "%s", r.Selector)
		dumpDeclarations(tw, depth+1, r.Declarations)
		for _, c := range r.ChildRules {
			tw.Field(depth+1, "child", c.Selector)
			dumpDeclarations(tw, depth+2, c.Declarations)
		}
	}
}

func dumpDeclarations(tw *debug.TreeWriter, depth int, decls []css.Declaration) {
	for _, d := range decls {
		tw.Field(depth, d.Property, d.Value)
	}
}
