// Package promptxml renders execution state as XML blocks for agent prompts.
package promptxml

import (
	"encoding/xml"
	"fmt"
	"sort"

	"github.com/flexigpt/lime-go/spec"
	"github.com/flexigpt/lime-go/statetool"
)

type toolParam struct {
	Name string `xml:"name,attr"`
	Type string `xml:"type,attr"`
}

type toolItem struct {
	Name    string      `xml:"name,attr"`
	Params  []toolParam `xml:"param"`
	Returns []string    `xml:"returns,omitempty"`
}

type availableTools struct {
	XMLName xml.Name   `xml:"availableTools"` //nolint:tagliatelle // XML specific thing.
	Tools   []toolItem `xml:"tool"`           //nolint:tagliatelle // XML specific thing.
}

type runPrompt struct {
	XMLName xml.Name `xml:"prompt"`
	Turn    string   `xml:"turn,attr,omitempty"`
	Body    string   `xml:",cdata"` //nolint:tagliatelle // Cannot specify name along with cdata.
}

// AvailableToolsXML lists declared tools sorted by name, with parameter types
// mapped to JSON Schema names. Later declarations of the same name win.
func AvailableToolsXML(tools []spec.Tool) (string, error) {
	byName := map[string]spec.Tool{}
	for _, t := range tools {
		byName[t.Name] = t
	}
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)

	out := availableTools{Tools: make([]toolItem, 0, len(names))}
	for _, n := range names {
		t := byName[n]
		it := toolItem{Name: t.Name}
		for _, p := range t.Params {
			it.Params = append(it.Params, toolParam{Name: p.Name, Type: statetool.MapType(p.Type)})
		}
		for _, r := range t.ReturnTypes {
			it.Returns = append(it.Returns, statetool.MapType(r))
		}
		out.Tools = append(out.Tools, it)
	}

	b, err := xml.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("xml encode: %w", err)
	}
	return string(b), nil
}

// PromptXML wraps a context window in a <prompt> element.
func PromptXML(turnID, window string) (string, error) {
	b, err := xml.MarshalIndent(runPrompt{Turn: turnID, Body: window}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("xml encode: %w", err)
	}
	return string(b), nil
}
