package plugin

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/flexigpt/lime-go/execmodel"
	"github.com/flexigpt/lime-go/spec"
)

// QueryService sends the accumulated window to an agent. Implementations record
// their outcome on the model's current run.
type QueryService interface {
	ExecuteQuery(ctx context.Context, m *execmodel.Model) error
}

// QueryFunc adapts a function to QueryService.
type QueryFunc func(ctx context.Context, m *execmodel.Model) error

func (f QueryFunc) ExecuteQuery(ctx context.Context, m *execmodel.Model) error { return f(ctx, m) }

// RunPlugin handles `run`: it queries the agent and then starts a new turn.
type RunPlugin struct {
	Query QueryService
}

func (*RunPlugin) IsMatch(token string) bool { return token == "run" }

func (p *RunPlugin) Handle(ctx context.Context, _ string, m *execmodel.Model) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Query == nil {
		return errors.Wrap(spec.ErrInvalidArgument, "run effect requires a query service")
	}
	if err := p.Query.ExecuteQuery(ctx, m); err != nil {
		return errors.Wrap(err, "run agent")
	}
	m.StartTurn()
	return nil
}
