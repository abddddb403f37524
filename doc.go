/*
Package detent is a presentation engine for bottom sheets: surfaces that rest
at one of several sizes ("detents"), can be dragged between them or dismissed,
and can be stacked on top of each other.

The engine owns the authoritative lifecycle. The native side (a Platform)
only animates what it is told and reports back when the animation settles.

# Concept

Every mounted sheet is a small state machine:

	Idle -> Presenting -> Presented <-> Resizing / Dragging -> Dismissing -> Dismissed

Commands on one sheet are queued and executed strictly in call order, and a
"will" event always precedes its "did" event. Sheets presented while another
one is showing are stacked on it; dismissing a sheet dismisses everything
above it first, most recent first.

Position telemetry (drag and animation offsets) travels on a separate,
best-effort channel that never blocks the lifecycle.

# Usage

	eng := detent.New(detent.WithPlatform(myPlatform))

	sheet, err := eng.Mount(domain.SheetConfig{
		Name:        "settings",
		Detents:     []domain.DetentSpec{domain.Percent(50), domain.Named(domain.SizeLarge)},
		MaxHeight:   800,
		Dismissible: true,
		Draggable:   true,
	})
	if err != nil {
		log.Fatal(err)
	}

	// Blocks until the platform reports did_present for this command.
	if err := sheet.Present(ctx, 0, true); err != nil {
		log.Fatal(err)
	}

The platform completes commands by delivering events that carry the
command's correlation id:

	func (p *myPlatform) Dispatch(ctx context.Context, cmd domain.Command) error {
		go func() {
			animate(cmd)
			_ = p.engine.Deliver(ctx, cmd.Settled())
		}()
		return nil
	}
*/
package detent
