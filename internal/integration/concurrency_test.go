package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRuntime_ConcurrentSessions(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	t.Cleanup(cancel)

	p := newPromptProject(t, map[string]string{
		"prompts/item.mg":   "<<${n}>>\n",
		"prompts/layout.mg": "for n in range(3):\n    [[ prompts/item ]]\n",
	})
	p.lock(t)
	rt := p.runtime(t)

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := range workers {
		wg.Go(func() {
			id, err := rt.NewSession(ctx)
			if err != nil {
				errs <- err
				return
			}
			defer func() { _ = rt.CloseSession(context.Background(), id) }()

			src := fmt.Sprintf("<<worker %d>>\n[[ prompts/layout ]]\n", i)
			if err := rt.Execute(ctx, id, src, p.dir); err != nil {
				errs <- fmt.Errorf("worker %d: %w", i, err)
				return
			}
			m, err := rt.Model(ctx, id)
			if err != nil {
				errs <- err
				return
			}
			want := fmt.Sprintf("worker %d\n0\n1\n2\n", i)
			if got := m.Context().Window(); got != want {
				errs <- fmt.Errorf("worker %d: window %q, want %q", i, got, want)
			}
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestRuntime_SessionExecuteSerialized(t *testing.T) {
	t.Parallel()

	p := newPromptProject(t, nil)
	rt := p.runtime(t)
	id, err := rt.NewSession(t.Context())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	const runs = 32
	var wg sync.WaitGroup
	for range runs {
		wg.Go(func() {
			if err := rt.Execute(t.Context(), id, "<<x>>\n", p.dir); err != nil {
				t.Errorf("execute: %v", err)
			}
		})
	}
	wg.Wait()

	m, err := rt.Model(t.Context(), id)
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	if got := len(m.Context().Window()); got != 2*runs {
		t.Fatalf("window length %d, want %d", got, 2*runs)
	}
	if got := len(m.Turns()); got != runs {
		t.Fatalf("turns %d, want %d", got, runs)
	}
}
