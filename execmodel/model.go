package execmodel

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/flexigpt/lime-go/spec"
)

// Model is the bookkeeping of one top-level execution. It is owned by a
// single execution and never shared across concurrent executions.
type Model struct {
	ctx *Context

	metadata     spec.Metadata
	turns        []*spec.Turn
	importErrors []string
	globals      map[string]any
}

func New() *Model {
	return &Model{
		ctx:      NewContext(),
		metadata: spec.Metadata{},
		globals:  map[string]any{},
	}
}

func (m *Model) Context() *Context { return m.ctx }

func (m *Model) Metadata() spec.Metadata { return maps.Clone(m.metadata) }

// SetMetadata stores parsed front matter. It is read-only afterwards by convention.
func (m *Model) SetMetadata(md spec.Metadata) {
	m.metadata = maps.Clone(md)
	if m.metadata == nil {
		m.metadata = spec.Metadata{}
	}
}

// StartTurn appends and returns a fresh turn.
func (m *Model) StartTurn() *spec.Turn {
	t := &spec.Turn{
		ID:            uuid.Must(uuid.NewV7()).String(),
		FunctionCalls: []*spec.FunctionCall{},
	}
	m.turns = append(m.turns, t)
	return t
}

func (m *Model) Turns() []*spec.Turn { return m.turns }

// CurrentTurn returns the latest turn, or nil before the first StartTurn.
func (m *Model) CurrentTurn() *spec.Turn {
	if len(m.turns) == 0 {
		return nil
	}
	return m.turns[len(m.turns)-1]
}

// CurrentRun returns the run of the latest turn, if any.
func (m *Model) CurrentRun() *spec.Run {
	if t := m.CurrentTurn(); t != nil {
		return t.Run
	}
	return nil
}

// StartRun attaches a new run carrying the file metadata to the current turn.
func (m *Model) StartRun(prompt, provider string, status spec.RunStatus, start time.Time) *spec.Run {
	t := m.ensureTurn()
	r := &spec.Run{
		TurnID:    t.ID,
		Status:    status,
		StartTime: start,
		Provider:  provider,
		Prompt:    prompt,
		Metadata:  maps.Clone(m.metadata),
	}
	t.Run = r
	return r
}

// AddFunctionCallLog records a call on the current turn. params is stored as JSON.
func (m *Model) AddFunctionCallLog(method string, params map[string]any) *spec.FunctionCall {
	if params == nil {
		params = map[string]any{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		raw = []byte("{}")
	}
	call := &spec.FunctionCall{Method: method, Params: string(raw)}
	t := m.ensureTurn()
	t.FunctionCalls = append(t.FunctionCalls, call)
	return call
}

func (m *Model) AddImportError(msg string) {
	m.importErrors = append(m.importErrors, msg)
}

func (m *Model) ImportErrors() []string { return append([]string(nil), m.importErrors...) }

// Globals is the evaluation namespace filled by import statements.
// The returned map is live.
func (m *Model) Globals() map[string]any { return m.globals }

func (m *Model) SetGlobal(name string, v any) { m.globals[name] = v }

func (m *Model) ensureTurn() *spec.Turn {
	if t := m.CurrentTurn(); t != nil {
		return t
	}
	return m.StartTurn()
}
