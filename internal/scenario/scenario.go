// Package scenario replays scripted sheet interactions against an engine
// driven by the simulated platform.
package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/detent"
	"github.com/aretw0/detent/internal/config"
	"github.com/aretw0/detent/pkg/adapters/sim"
	"github.com/aretw0/detent/pkg/domain"
)

// settleTimeout bounds how long a drag release may take to come to rest.
const settleTimeout = 5 * time.Second

// Result records the outcome of one step.
type Result struct {
	Step  int
	Op    string
	Sheet string
	State domain.SheetState
	Err   error
}

// Runner executes steps in order. Steps on different sheets never overlap.
type Runner struct {
	eng      *detent.Engine
	platform *sim.Platform
	logger   *slog.Logger
	sheets   map[string]*detent.Sheet
}

// New creates a runner. platform may be nil when fail_next is never used.
func New(eng *detent.Engine, platform *sim.Platform, logger *slog.Logger) *Runner {
	return &Runner{
		eng:      eng,
		platform: platform,
		logger:   logger,
		sheets:   make(map[string]*detent.Sheet),
	}
}

// Mount registers the declared sheets. Names are required to address them from steps.
func (r *Runner) Mount(cfgs []domain.SheetConfig) error {
	for _, cfg := range cfgs {
		sheet, err := r.eng.Mount(cfg)
		if err != nil {
			return fmt.Errorf("mount %q: %w", cfg.Name, err)
		}
		r.sheets[cfg.Name] = sheet
	}
	return nil
}

// Run executes steps and stops at the first unexpected error.
func (r *Runner) Run(ctx context.Context, steps []config.Step) ([]Result, error) {
	results := make([]Result, 0, len(steps))
	for i, step := range steps {
		err := r.exec(ctx, step)

		res := Result{Step: i, Op: step.Op, Sheet: step.Sheet, Err: err}
		if sheet, ok := r.sheets[step.Sheet]; ok {
			if snap, serr := sheet.Snapshot(); serr == nil {
				res.State = snap.State
			}
		}
		results = append(results, res)

		if err := expect(step, err); err != nil {
			r.logger.Warn("step failed", "step", i, "op", step.Op, "sheet", step.Sheet, "error", err)
			return results, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		r.logger.Debug("step done", "step", i, "op", step.Op, "sheet", step.Sheet, "state", res.State)
	}
	return results, nil
}

func expect(step config.Step, err error) error {
	switch {
	case step.ExpectError == "":
		return err
	case err == nil:
		return fmt.Errorf("expected error containing %q", step.ExpectError)
	case !strings.Contains(err.Error(), step.ExpectError):
		return fmt.Errorf("expected error containing %q: %w", step.ExpectError, err)
	}
	return nil
}

func (r *Runner) exec(ctx context.Context, step config.Step) error {
	switch step.Op {
	case config.OpDismissAll:
		return r.eng.DismissAll(ctx, step.IsAnimated())
	case config.OpWait:
		select {
		case <-time.After(step.Wait):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	case config.OpFailNext:
		if r.platform == nil {
			return fmt.Errorf("fail_next needs the simulated platform")
		}
		r.platform.FailNext(step.Reason)
		return nil
	}

	sheet, ok := r.sheets[step.Sheet]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrNotFound, step.Sheet)
	}

	switch step.Op {
	case config.OpPresent:
		return sheet.Present(ctx, step.Index, step.IsAnimated())
	case config.OpDismiss:
		return sheet.Dismiss(ctx, step.IsAnimated())
	case config.OpResize:
		return sheet.Resize(ctx, step.Index)
	case config.OpDismissChildren:
		return sheet.DismissChildren(ctx, step.IsAnimated())
	case config.OpDrag:
		return r.drag(ctx, sheet, step)
	case config.OpLayout:
		return r.eng.Deliver(ctx, domain.Event{
			Type:      domain.EventLayout,
			SheetID:   sheet.ID(),
			Timestamp: time.Now(),
			Layout: &domain.Layout{
				ContentHeight: step.ContentHeight,
				FooterHeight:  step.FooterHeight,
				MaxHeight:     step.MaxHeight,
				Renormalize:   step.Renormalize,
			},
		})
	case config.OpUnmount:
		err := r.eng.Unmount(sheet.ID())
		delete(r.sheets, step.Sheet)
		return err
	}
	return fmt.Errorf("unknown op %q", step.Op)
}

// drag plays a gesture the way a platform reports it: begin, one change
// per offset, then release and wait for the snap.
func (r *Runner) drag(ctx context.Context, sheet *detent.Sheet, step config.Step) error {
	snap, err := sheet.Snapshot()
	if err != nil {
		return err
	}
	if !snap.State.Is(domain.StatePresented) {
		return fmt.Errorf("%w: drag from %s", domain.ErrInvalidTransition, snap.State)
	}
	index := snap.State.Index

	send := func(typ domain.EventType, position float64) error {
		return r.eng.Deliver(ctx, domain.Event{
			Type:      typ,
			SheetID:   sheet.ID(),
			Timestamp: time.Now(),
			Info:      &domain.DetentInfo{Index: index, Position: position},
		})
	}

	// The engine starts the gesture at the resting detent; the begin position is informational.
	if err := send(domain.EventDragBegin, 0); err != nil {
		return err
	}
	for _, offset := range step.Offsets {
		if err := send(domain.EventDragChange, offset); err != nil {
			return err
		}
	}
	if err := send(domain.EventDragEnd, step.Release); err != nil {
		return err
	}
	return waitAtRest(ctx, sheet)
}

func waitAtRest(ctx context.Context, sheet *detent.Sheet) error {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		snap, err := sheet.Snapshot()
		if err != nil {
			return err
		}
		if !snap.State.InMotion() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("sheet still %s: %w", snap.State, ctx.Err())
		case <-ticker.C:
		}
	}
}
