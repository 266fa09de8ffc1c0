package mgxparser

import (
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/flexigpt/lime-go/spec"
)

// splitFrontMatter separates a leading "---" delimited block from the body.
// bodyStart is the zero-based index of the first body line.
func splitFrontMatter(lines []string) (fm []string, bodyStart int, err error) {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return nil, 0, nil
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return lines[1:i], i + 1, nil
		}
	}
	return nil, 0, &ParseError{Line: 1, Col: 1, Msg: "unterminated front matter (missing closing ---)"}
}

// parseMetadata decodes front matter as a YAML mapping but keeps every
// scalar value as its raw source text, quotes included.
func parseMetadata(fm []string) (spec.Metadata, error) {
	md := spec.Metadata{}
	src := strings.Join(fm, "\n")
	if strings.TrimSpace(src) == "" {
		return md, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		return nil, &ParseError{Line: 2, Col: 1, Msg: "invalid front matter: " + err.Error()}
	}
	if len(doc.Content) == 0 {
		return md, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &ParseError{Line: 2, Col: 1, Msg: "front matter must be a mapping"}
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		raw, err := rawValue(fm, key, val)
		if err != nil {
			return nil, err
		}
		md[key.Value] = raw
	}
	return md, nil
}

func rawValue(fm []string, key, val *yaml.Node) (string, error) {
	block := val.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0
	if !block && val.Line == key.Line && key.Line-1 < len(fm) {
		if _, after, ok := strings.Cut(fm[key.Line-1], ":"); ok {
			raw := strings.TrimSpace(after)
			if val.LineComment != "" {
				raw = strings.TrimSpace(strings.TrimSuffix(raw, val.LineComment))
			}
			return raw, nil
		}
	}
	if val.Kind == yaml.ScalarNode {
		return val.Value, nil
	}
	out, err := yaml.Marshal(val)
	if err != nil {
		return "", errors.Wrapf(err, "front matter key %q", key.Value)
	}
	return strings.TrimSpace(string(out)), nil
}
