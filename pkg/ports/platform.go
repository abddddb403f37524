package ports

import (
	"context"

	"github.com/aretw0/detent/pkg/domain"
)

// Platform is the native side of the bridge.
//
// Dispatch starts a transition and returns immediately. Completion is reported
// later as an inbound domain.Event carrying the command's CorrelationID:
// did_present, did_dismiss or detent_change when it settles, failed otherwise.
// A non-nil error from Dispatch means the transition never started.
type Platform interface {
	Dispatch(ctx context.Context, cmd domain.Command) error
}

// PlatformFunc adapts a function to the Platform interface.
type PlatformFunc func(ctx context.Context, cmd domain.Command) error

func (f PlatformFunc) Dispatch(ctx context.Context, cmd domain.Command) error {
	return f(ctx, cmd)
}
