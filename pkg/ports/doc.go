/*
Package ports defines the driven and driving ports (interfaces) of the botflow engine.

These interfaces decouple the debugger core from external implementations, allowing
it to work with various bot document sources, breakpoint and run archives, effect
sinks and transports.

# Key Interfaces

  - BotLoader: Responsible for fetching bot documents (e.g., from disk or memory).
  - BreakpointStore: Persists breakpoint sets so they outlive sessions and restarts.
  - RunStore: Archives the final snapshot of every finished run.
  - EffectSink: Receives the effects a run produces (e.g., messages to deliver).
  - DebugService: The control surface transports (HTTP, MCP, CLI) drive.
*/
package ports
