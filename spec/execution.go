package spec

import "time"

// Param is one typed parameter of a declared tool.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Tool describes a host function exposed to an agent by a `tools` effect.
type Tool struct {
	Name        string   `json:"name"`
	Params      []Param  `json:"params"`
	ReturnTypes []string `json:"return_types,omitempty"`
}

// FunctionCall is the log record of one `func` effect invocation.
// Params holds the JSON encoding of the resolved call arguments.
type FunctionCall struct {
	Method string `json:"method"`
	Params string `json:"params"`
	Result any    `json:"result,omitempty"`
}

type RunStatus string

const (
	RunStatusStarting  RunStatus = "starting"
	RunStatusRunning   RunStatus = "running"
	RunStatusIdle      RunStatus = "idle"
	RunStatusError     RunStatus = "error"
	RunStatusCompleted RunStatus = "completed"
)

type TokenUsage struct {
	InputTokens      int `json:"input_tokens"`
	OutputTokens     int `json:"output_tokens"`
	CacheReadTokens  int `json:"cache_read_tokens"`
	CacheWriteTokens int `json:"cache_write_tokens"`
}

func (u TokenUsage) Total() int { return u.InputTokens + u.OutputTokens }

// Accumulate adds other into u.
func (u *TokenUsage) Accumulate(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheReadTokens += other.CacheReadTokens
	u.CacheWriteTokens += other.CacheWriteTokens
}

type ToolCall struct {
	ToolName   string  `json:"tool_name"`
	ToolCallID string  `json:"tool_call_id"`
	Arguments  any     `json:"arguments,omitempty"`
	Result     string  `json:"result,omitempty"`
	Success    *bool   `json:"success,omitempty"`
	DurationMS float64 `json:"duration_ms,omitempty"`
}

type RunError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Run is one hand-off of the accumulated window to an agent.
// The agent collaborator owns everything after StartTime.
type Run struct {
	TurnID string `json:"turn_id,omitempty"`

	Status    RunStatus  `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	Prompt    string     `json:"prompt,omitempty"`
	Responses []string   `json:"responses,omitempty"`
	Tokens    TokenUsage `json:"tokens"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Errors    []RunError `json:"errors,omitempty"`

	Metadata Metadata `json:"metadata,omitempty"`
}

// Turn groups at most one Run with the function calls logged before it.
type Turn struct {
	ID            string          `json:"id"`
	Run           *Run            `json:"run,omitempty"`
	FunctionCalls []*FunctionCall `json:"function_calls"`
}
