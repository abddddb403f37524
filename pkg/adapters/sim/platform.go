// Package sim provides a software platform that animates sheets on a ticker.
// It stands in for a native driver in the CLI, the HTTP bridge and tests.
package sim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/detent/pkg/domain"
)

// ErrUnbound is returned by Dispatch before Bind has been called.
var ErrUnbound = errors.New("sim platform has no target")

// Target receives the events the platform produces. *detent.Engine satisfies it.
type Target interface {
	Deliver(ctx context.Context, ev domain.Event) error
}

// Platform implements ports.Platform by interpolating the sheet height
// over a fixed duration and reporting position_change frames.
type Platform struct {
	duration time.Duration
	frames   int
	logger   *slog.Logger
	failWith func(domain.Command) error

	mu       sync.Mutex
	target   Target
	failNext []string
	wg       sync.WaitGroup
}

type Option func(*Platform)

// WithDuration sets how long an animated transition takes. Zero settles at once.
func WithDuration(d time.Duration) Option {
	return func(p *Platform) {
		p.duration = d
	}
}

// WithFrames sets how many position frames an animation reports.
func WithFrames(n int) Option {
	return func(p *Platform) {
		if n > 0 {
			p.frames = n
		}
	}
}

// WithLogger sets the platform logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Platform) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithFailures rejects every command for which fn returns an error.
func WithFailures(fn func(domain.Command) error) Option {
	return func(p *Platform) {
		p.failWith = fn
	}
}

// New creates a platform. Call Bind before the first command is dispatched.
func New(opts ...Option) *Platform {
	p := &Platform{
		duration: 250 * time.Millisecond,
		frames:   10,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Bind sets where events are delivered.
func (p *Platform) Bind(t Target) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = t
}

// FailNext makes the next dispatched command fail with reason.
func (p *Platform) FailNext(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = append(p.failNext, reason)
}

// Dispatch starts the animation and returns immediately.
func (p *Platform) Dispatch(ctx context.Context, cmd domain.Command) error {
	p.mu.Lock()
	target := p.target
	var reason string
	failing := len(p.failNext) > 0
	if failing {
		reason = p.failNext[0]
		p.failNext = p.failNext[1:]
	}
	p.mu.Unlock()

	if target == nil {
		return ErrUnbound
	}
	if !failing && p.failWith != nil {
		if err := p.failWith(cmd); err != nil {
			failing, reason = true, err.Error()
		}
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.animate(ctx, target, cmd, failing, reason)
	}()
	return nil
}

// Wait blocks until every started animation has finished.
func (p *Platform) Wait() {
	p.wg.Wait()
}

func (p *Platform) animate(ctx context.Context, target Target, cmd domain.Command, failing bool, reason string) {
	logger := p.logger.With("sheet_id", cmd.SheetID, "correlation_id", cmd.CorrelationID)

	if cmd.Animated && p.duration > 0 {
		ticker := time.NewTicker(max(p.duration/time.Duration(p.frames), time.Millisecond))
		defer ticker.Stop()

		for i := 1; i <= p.frames; i++ {
			select {
			case <-ctx.Done():
				logger.Debug("animation abandoned", "frame", i)
				return
			case <-ticker.C:
			}
			if failing && i > p.frames/2 {
				break
			}
			height := cmd.FromHeight + (cmd.Height-cmd.FromHeight)*float64(i)/float64(p.frames)
			p.deliver(ctx, target, logger, domain.Event{
				Type:      domain.EventPositionChange,
				SheetID:   cmd.SheetID,
				Timestamp: time.Now(),
				Sample:    &domain.PositionSample{Position: cmd.MaxHeight - height},
			})
		}
	}

	if failing {
		if reason == "" {
			reason = "simulated failure"
		}
		logger.Debug("failing command", "op", cmd.Kind, "reason", reason)
		p.deliver(ctx, target, logger, cmd.Failed(reason))
		return
	}
	p.deliver(ctx, target, logger, cmd.Settled())
}

func (p *Platform) deliver(ctx context.Context, target Target, logger *slog.Logger, ev domain.Event) {
	if ctx.Err() != nil {
		return
	}
	if err := target.Deliver(ctx, ev); err != nil {
		logger.Warn("deliver failed", "type", ev.Type, "error", err)
	}
}
