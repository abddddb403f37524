/*
Package domain contains the core domain models of the detent sheet engine.

It defines the vocabulary shared by the resolver, the runtime and the adapters:
detent specifications, sheet states, lifecycle events and platform commands.
This package is kept pure and free of external dependencies like I/O or
persistence, following Hexagonal Architecture principles.

# Key Entities

  - DetentSpec: A declared resting height: fixed, percent, named size or auto.
  - SheetConfig: Everything a sheet needs before it can be mounted.
  - SheetState: Idle, Presenting, Presented, Resizing, Dragging, Dismissing or Dismissed.
  - Event: The tagged union of lifecycle notifications, inbound and outbound.
  - Command: A native operation the engine asks the platform to perform.
  - Snapshot: The observable state of one sheet, as mirrored to a store.
*/
package domain
