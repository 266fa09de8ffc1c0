package mgxparser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexigpt/lime-go/spec"
)

func TestParse_FrontMatterKeepsRawValues(t *testing.T) {
	t.Parallel()

	src := "---\ndescription: \"Test file\"\nmodel: gpt # pinned\ntags: [a, b]\n---\n\n<<\nHello, World!\n>>\n"
	md, nodes, err := Parse(src)
	require.NoError(t, err)

	assert.Equal(t, spec.Metadata{
		"description": `"Test file"`,
		"model":       "gpt",
		"tags":        "[a, b]",
	}, md)
	assert.Equal(t, spec.Block{spec.TextNode{Content: "Hello, World!\n"}}, nodes)
}

func TestParse_Statements(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want spec.Block
	}{
		{
			name: "inline text trims",
			src:  "<<${x}${y} >>",
			want: spec.Block{spec.TextNode{Content: "${x}${y}\n"}},
		},
		{
			name: "multiline text dedents",
			src:  "<<\n    first\n      second\n\n    third   \n>>",
			want: spec.Block{spec.TextNode{Content: "first\n  second\n\nthird\n"}},
		},
		{
			name: "text closing on content line",
			src:  "<<Hello\n  world>>",
			want: spec.Block{spec.TextNode{Content: "Hello\nworld\n"}},
		},
		{
			name: "empty text",
			src:  "<<>>",
			want: spec.Block{spec.TextNode{Content: ""}},
		},
		{
			name: "state",
			src:  `@state items = ["apple", "banana"]`,
			want: spec.Block{spec.StateNode{Name: "items", InitialValue: `["apple", "banana"]`}},
		},
		{
			name: "effect",
			src:  "@effect test param1 param2",
			want: spec.Block{spec.EffectNode{Content: "test param1 param2"}},
		},
		{
			name: "include",
			src:  "[[ salt/template ]]",
			want: spec.Block{spec.IncludeNode{TemplateName: "salt/template"}},
		},
		{
			name: "imports",
			src:  "import math\nfrom strings import upper as up, lower",
			want: spec.Block{
				spec.ImportNode{Statement: "import math"},
				spec.ImportNode{Statement: "from strings import upper as up, lower"},
			},
		},
		{
			name: "standalone variable",
			src:  "${ items[0] }",
			want: spec.Block{spec.VariableNode{Name: "items[0]"}},
		},
		{
			name: "comments and blanks skipped",
			src:  "// note\n\n# heading\n@effect run",
			want: spec.Block{spec.EffectNode{Content: "run"}},
		},
		{
			name: "if else",
			src:  "if is_active:\n    <<Active>>\nelse:\n    <<Inactive>>\n<<After>>",
			want: spec.Block{
				spec.IfNode{
					Condition:  "is_active",
					TrueBlock:  spec.Block{spec.TextNode{Content: "Active\n"}},
					FalseBlock: spec.Block{spec.TextNode{Content: "Inactive\n"}},
				},
				spec.TextNode{Content: "After\n"},
			},
		},
		{
			name: "if without else",
			src:  "if flag:\n  <<Yes>>",
			want: spec.Block{spec.IfNode{Condition: "flag", TrueBlock: spec.Block{spec.TextNode{Content: "Yes\n"}}}},
		},
		{
			name: "elif chains into false block",
			src:  "if a:\n  <<A>>\nelif b:\n  <<B>>\nelse:\n  <<C>>",
			want: spec.Block{spec.IfNode{
				Condition: "a",
				TrueBlock: spec.Block{spec.TextNode{Content: "A\n"}},
				FalseBlock: spec.Block{spec.IfNode{
					Condition:  "b",
					TrueBlock:  spec.Block{spec.TextNode{Content: "B\n"}},
					FalseBlock: spec.Block{spec.TextNode{Content: "C\n"}},
				}},
			}},
		},
		{
			name: "nested for",
			src:  "for x in outer:\n    for y in inner:\n        <<${x}${y} >>",
			want: spec.Block{spec.ForNode{
				Iterator: "x",
				Iterable: "outer",
				Block: spec.Block{spec.ForNode{
					Iterator: "y",
					Iterable: "inner",
					Block:    spec.Block{spec.TextNode{Content: "${x}${y}\n"}},
				}},
			}},
		},
		{
			name: "for over range",
			src:  "for i in range(1, 3):\n\t<<${i}>>",
			want: spec.Block{spec.ForNode{
				Iterator: "i",
				Iterable: "range(1, 3)",
				Block:    spec.Block{spec.TextNode{Content: "${i}\n"}},
			}},
		},
		{
			name: "multiline text inside block keeps own indentation",
			src:  "if ok:\n    <<\n    line one\n      line two\n    >>\n<<end>>",
			want: spec.Block{
				spec.IfNode{Condition: "ok", TrueBlock: spec.Block{spec.TextNode{Content: "line one\n  line two\n"}}},
				spec.TextNode{Content: "end\n"},
			},
		},
		{
			name: "crlf line endings",
			src:  "<<a>>\r\n@effect run\r\n",
			want: spec.Block{spec.TextNode{Content: "a\n"}, spec.EffectNode{Content: "run"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			md, nodes, err := Parse(tt.src)
			require.NoError(t, err)
			assert.Empty(t, md)
			assert.Equal(t, tt.want, nodes)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		src      string
		wantLine int
		wantMsg  string
	}{
		{"unknown statement", "hello there", 1, "unsupported statement"},
		{"unterminated front matter", "---\na: 1\n", 1, "unterminated front matter"},
		{"unterminated text", "<<\nabc", 1, "unterminated text block"},
		{"if without body", "if x:\n<<a>>", 1, "expected an indented block"},
		{"else without if", "<<a>>\nelse:\n  <<b>>", 2, "without matching 'if'"},
		{"unexpected indent", "<<a>>\n    <<b>>", 2, "unexpected indent"},
		{"bad state", "@state = 1", 1, "malformed @state"},
		{"bare effect", "@effect", 1, "malformed @effect"},
		{"bad include", "[[ ]]", 1, "malformed include"},
		{"bad for", "for in items:\n  <<a>>", 1, "malformed for"},
		{"line numbers after front matter", "---\na: b\n---\n<<ok>>\n???", 5, "unsupported statement"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := Parse(tt.src)
			require.Error(t, err)
			assert.ErrorIs(t, err, spec.ErrUnsupportedSyntax)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.wantLine, pe.Line)
			assert.Contains(t, pe.Msg, tt.wantMsg)
		})
	}
}

func TestParser_ImplementsSpecParser(t *testing.T) {
	t.Parallel()

	var p spec.Parser = New()
	_, nodes, err := p.Parse("<<hi>>")
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}
