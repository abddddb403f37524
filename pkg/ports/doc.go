/*
Package ports defines the driven ports (interfaces) for the detent engine.

These interfaces decouple the presentation core from the native side that
actually animates sheets, and from wherever snapshots of the stack are kept.

# Key Interfaces

  - Platform: Receives correlated commands (present, dismiss, resize) and
    answers asynchronously through Engine.Deliver.
  - SnapshotStore: Mirrors per-sheet snapshots for inspection by external tools.
  - DistributedLocker: Serializes snapshot writes for one sheet across processes
    sharing the same store.
*/
package ports
