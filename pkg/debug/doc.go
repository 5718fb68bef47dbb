/*
Package debug implements steppable execution of bot graphs.

A Session wraps one run of one bot's graph with a small state machine:

	created -> running <-> paused -> stopped
	running/paused -> error

Start and Resume drive the run continuously until a breakpoint, a terminal node,
an engine failure or the step ceiling. StepOver executes exactly one node and
always leaves the session suspended. Stop is safe at any time, including while
another goroutine is driving.

A Registry keeps at most one Session per bot and a breakpoint set per bot that
outlives sessions. It implements ports.DebugService, the surface the HTTP, MCP
and CLI adapters drive.
*/
package debug
