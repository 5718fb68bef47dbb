/*
Package domain contains the core models of the botflow engine.

It defines the conversation graph a bot is built from, the variable scope a
run mutates, the effects a run produces and the read model of a debug
session. The package is kept pure and free of I/O, following Hexagonal
Architecture principles.

# Key Entities

  - Node / Connection / Graph: the user-authored flow. Graphs may contain cycles.
  - Scope: variables of one run, seeded from Graph.Variables defaults.
  - Effect: an outbound action (e.g. send a message) handed to the host.
  - ExecutionStatus / HistoryEntry / Snapshot: the debug session read model.
  - Diff: the delta between two snapshots, streamed to editors.
*/
package domain
