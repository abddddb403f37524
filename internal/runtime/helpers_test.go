package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/detent/pkg/domain"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

// manualPlatform records commands and lets the test settle them explicitly.
type manualPlatform struct {
	cmds chan domain.Command
	err  error
}

func newManualPlatform() *manualPlatform {
	return &manualPlatform{cmds: make(chan domain.Command, 64)}
}

func (p *manualPlatform) Dispatch(_ context.Context, cmd domain.Command) error {
	if p.err != nil {
		return p.err
	}
	p.cmds <- cmd
	return nil
}

func (p *manualPlatform) next(t *testing.T) domain.Command {
	t.Helper()
	select {
	case cmd := <-p.cmds:
		return cmd
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a platform command")
		return domain.Command{}
	}
}

func (p *manualPlatform) assertIdle(t *testing.T) {
	t.Helper()
	select {
	case cmd := <-p.cmds:
		t.Fatalf("unexpected command %s on %s", cmd.Kind, cmd.SheetID)
	case <-time.After(50 * time.Millisecond):
	}
}

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
	names  map[string]string
}

func newRecorder() *recorder {
	return &recorder{names: make(map[string]string)}
}

func (r *recorder) hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnEvent: func(_ context.Context, ev *domain.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, *ev)
		},
	}
}

func (r *recorder) alias(id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[id] = name
}

// trace renders "name:type" for events of the given types, in emission order.
func (r *recorder) trace(types ...domain.EventType) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[domain.EventType]bool, len(types))
	for _, typ := range types {
		want[typ] = true
	}
	var out []string
	for _, ev := range r.events {
		if len(want) > 0 && !want[ev.Type] {
			continue
		}
		name := r.names[ev.SheetID]
		if name == "" {
			name = ev.SheetID
		}
		out = append(out, fmt.Sprintf("%s:%s", name, ev.Type))
	}
	return out
}

func (r *recorder) count(id string, typ domain.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.SheetID == id && ev.Type == typ {
			n++
		}
	}
	return n
}

func twoDetents(name string) domain.SheetConfig {
	cfg := domain.NewSheetConfig(800)
	cfg.Name = name
	cfg.Detents = []domain.DetentSpec{domain.Percent(50), domain.Named(domain.SizeLarge)}
	return cfg
}

func mount(t *testing.T, e *Engine, rec *recorder, name string) string {
	t.Helper()
	id, err := e.Mount(twoDetents(name))
	require.NoError(t, err)
	if rec != nil {
		rec.alias(id, name)
	}
	return id
}

func state(t *testing.T, e *Engine, id string) domain.SheetState {
	t.Helper()
	snap, err := e.Snapshot(id)
	require.NoError(t, err)
	return snap.State
}

// async runs fn and returns a channel with its result.
func async(fn func() error) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- fn() }()
	return ch
}

func await(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for operation")
		return errors.New("timeout")
	}
}

func queued(n *node) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}
