package spec

// Parser turns prompt source text into front matter metadata and a node tree.
type Parser interface {
	Parse(source string) (Metadata, Block, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(source string) (Metadata, Block, error)

func (f ParserFunc) Parse(source string) (Metadata, Block, error) { return f(source) }
