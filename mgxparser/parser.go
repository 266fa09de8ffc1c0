// Package mgxparser parses prompt orchestration sources (.mgx and .mg files)
// into the node tree executed by the lime interpreter.
//
// A source is an optional "---" front matter block followed by statements.
// Blocks opened by "if", "else" and "for" are delimited by indentation.
//
//	---
//	description: "Greeting"
//	---
//	@state names = ["Ada", "Linus"]
//	for name in names:
//	    <<Hello, ${name}!>>
//	[[ footer ]]
//	@effect run
package mgxparser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/flexigpt/lime-go/spec"
)

const tabWidth = 4

var (
	stateRe    = regexp.MustCompile(`^@state\s+([A-Za-z_]\w*)\s*=\s*(.+)$`)
	effectRe   = regexp.MustCompile(`^@effect\s+(\S.*)$`)
	includeRe  = regexp.MustCompile(`^\[\[\s*(\S.*?)\s*\]\]$`)
	ifRe       = regexp.MustCompile(`^(if|elif)\s+(.+?)\s*:$`)
	elseRe     = regexp.MustCompile(`^else\s*:$`)
	forRe      = regexp.MustCompile(`^for\s+([A-Za-z_]\w*)\s+in\s+(.+?)\s*:$`)
	variableRe = regexp.MustCompile(`^\$\{\s*([^{}]+?)\s*\}$`)
	importRe   = regexp.MustCompile(`^(import\s+\S|from\s+\S+\s+import\s+\S)`)
)

// ParseError reports the position of an unparsable statement.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, col %d: %s", e.Line, e.Col, e.Msg)
}

// Is makes every ParseError match spec.ErrUnsupportedSyntax.
func (e *ParseError) Is(target error) bool { return target == spec.ErrUnsupportedSyntax }

type Parser struct{}

func New() *Parser { return &Parser{} }

// Parse implements spec.Parser.
func (p *Parser) Parse(source string) (spec.Metadata, spec.Block, error) {
	return Parse(source)
}

// Parse parses source into front matter metadata and a node tree.
func Parse(source string) (spec.Metadata, spec.Block, error) {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	source = strings.TrimPrefix(source, "\ufeff")
	all := strings.Split(source, "\n")

	fm, bodyStart, err := splitFrontMatter(all)
	if err != nil {
		return nil, nil, err
	}
	md, err := parseMetadata(fm)
	if err != nil {
		return nil, nil, err
	}

	ps := &state{}
	for i := bodyStart; i < len(all); i++ {
		ps.lines = append(ps.lines, newLine(i+1, all[i]))
	}

	nodes, err := ps.parseBlock(0)
	if err != nil {
		return nil, nil, err
	}
	if ps.pos < len(ps.lines) {
		l := ps.lines[ps.pos]
		return nil, nil, &ParseError{Line: l.num, Col: l.indent + 1, Msg: "unexpected indent"}
	}
	return md, nodes, nil
}

type line struct {
	num    int
	indent int
	text   string // trimmed
	raw    string
}

func newLine(num int, raw string) line {
	raw = strings.TrimRight(raw, " \t\r")
	indent := 0
	for _, r := range raw {
		switch r {
		case ' ':
			indent++
			continue
		case '\t':
			indent += tabWidth
			continue
		}
		break
	}
	return line{num: num, indent: indent, text: strings.TrimSpace(raw), raw: raw}
}

func (l line) skippable() bool {
	return l.text == "" || strings.HasPrefix(l.text, "//") || strings.HasPrefix(l.text, "#")
}

type state struct {
	lines []line
	pos   int
}

func (s *state) peek() (line, bool) {
	for s.pos < len(s.lines) && s.lines[s.pos].skippable() {
		s.pos++
	}
	if s.pos >= len(s.lines) {
		return line{}, false
	}
	return s.lines[s.pos], true
}

// parseBlock parses statements at exactly indent, returning at the first
// line indented less.
func (s *state) parseBlock(indent int) (spec.Block, error) {
	out := spec.Block{}
	for {
		l, ok := s.peek()
		if !ok || l.indent < indent {
			return out, nil
		}
		if l.indent > indent {
			return nil, &ParseError{Line: l.num, Col: l.indent + 1, Msg: "unexpected indent"}
		}
		n, err := s.parseStatement(l)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
}

func (s *state) parseStatement(l line) (spec.Node, error) {
	t := l.text
	switch {
	case strings.HasPrefix(t, "<<"):
		return s.parseText(l)

	case strings.HasPrefix(t, "@state"):
		s.pos++
		m := stateRe.FindStringSubmatch(t)
		if m == nil {
			return nil, errAt(l, "malformed @state; expected '@state name = <json>'")
		}
		return spec.StateNode{Name: m[1], InitialValue: strings.TrimSpace(m[2])}, nil

	case strings.HasPrefix(t, "@effect"):
		s.pos++
		m := effectRe.FindStringSubmatch(t)
		if m == nil {
			return nil, errAt(l, "malformed @effect; expected '@effect <token> [operand]'")
		}
		return spec.EffectNode{Content: strings.TrimSpace(m[1])}, nil

	case strings.HasPrefix(t, "[["):
		s.pos++
		m := includeRe.FindStringSubmatch(t)
		if m == nil {
			return nil, errAt(l, "malformed include; expected '[[ name ]]'")
		}
		return spec.IncludeNode{TemplateName: m[1]}, nil

	case importRe.MatchString(t):
		s.pos++
		return spec.ImportNode{Statement: t}, nil

	case strings.HasPrefix(t, "if ") || strings.HasPrefix(t, "if\t"):
		return s.parseIf(l)

	case strings.HasPrefix(t, "for ") || strings.HasPrefix(t, "for\t"):
		return s.parseFor(l)

	case strings.HasPrefix(t, "elif") || elseRe.MatchString(t):
		return nil, errAt(l, "'"+strings.Fields(t)[0]+"' without matching 'if'")

	case variableRe.MatchString(t):
		s.pos++
		return spec.VariableNode{Name: variableRe.FindStringSubmatch(t)[1]}, nil
	}
	return nil, errAt(l, fmt.Sprintf("unsupported statement %q", t))
}

func (s *state) parseIf(l line) (spec.Node, error) {
	m := ifRe.FindStringSubmatch(l.text)
	if m == nil {
		return nil, errAt(l, "malformed if; expected 'if <condition>:'")
	}
	s.pos++
	body, err := s.parseBody(l)
	if err != nil {
		return nil, err
	}
	n := spec.IfNode{Condition: m[2], TrueBlock: body}

	next, ok := s.peek()
	if !ok || next.indent != l.indent {
		return n, nil
	}
	switch {
	case elseRe.MatchString(next.text):
		s.pos++
		if n.FalseBlock, err = s.parseBody(next); err != nil {
			return nil, err
		}
	case strings.HasPrefix(next.text, "elif ") || strings.HasPrefix(next.text, "elif\t"):
		nested, err := s.parseIf(next)
		if err != nil {
			return nil, err
		}
		n.FalseBlock = spec.Block{nested}
	}
	return n, nil
}

func (s *state) parseFor(l line) (spec.Node, error) {
	m := forRe.FindStringSubmatch(l.text)
	if m == nil {
		return nil, errAt(l, "malformed for; expected 'for <name> in <iterable>:'")
	}
	s.pos++
	body, err := s.parseBody(l)
	if err != nil {
		return nil, err
	}
	return spec.ForNode{Iterator: m[1], Iterable: m[2], Block: body}, nil
}

// parseBody parses the indented block that follows a header line.
func (s *state) parseBody(header line) (spec.Block, error) {
	next, ok := s.peek()
	if !ok || next.indent <= header.indent {
		return nil, errAt(header, "expected an indented block")
	}
	return s.parseBlock(next.indent)
}

// parseText consumes a "<<" ... ">>" block, inline or spanning lines.
func (s *state) parseText(l line) (spec.Node, error) {
	s.pos++
	rest := strings.TrimPrefix(l.text, "<<")
	if strings.HasSuffix(rest, ">>") {
		return spec.TextNode{Content: textContent([]string{strings.TrimSuffix(rest, ">>")}, 1)}, nil
	}

	parts := []string{rest}
	for s.pos < len(s.lines) {
		cur := s.lines[s.pos]
		s.pos++
		if strings.HasSuffix(cur.raw, ">>") {
			parts = append(parts, strings.TrimSuffix(cur.raw, ">>"))
			return spec.TextNode{Content: textContent(parts, 1)}, nil
		}
		parts = append(parts, cur.raw)
	}
	return nil, errAt(l, "unterminated text block (missing '>>')")
}

// textContent dedents lines[from:], trims trailing whitespace and outer
// blank lines, and joins the result with a trailing newline. Lines before
// from are only left-trimmed.
func textContent(lines []string, from int) string {
	common := -1
	for i := from; i < len(lines); i++ {
		l := newLine(0, lines[i])
		if l.text == "" {
			continue
		}
		if common < 0 || l.indent < common {
			common = l.indent
		}
	}

	out := make([]string, 0, len(lines))
	for i, raw := range lines {
		if i < from {
			out = append(out, strings.TrimSpace(raw))
			continue
		}
		out = append(out, strings.TrimRight(dedent(raw, common), " \t"))
	}

	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, "\n") + "\n"
}

func dedent(raw string, n int) string {
	cols := 0
	for i, r := range raw {
		if cols >= n || (r != ' ' && r != '\t') {
			return raw[i:]
		}
		if r == '\t' {
			cols += tabWidth
		} else {
			cols++
		}
	}
	return ""
}

func errAt(l line, msg string) *ParseError {
	return &ParseError{Line: l.num, Col: l.indent + 1, Msg: msg}
}
