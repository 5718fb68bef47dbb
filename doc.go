/*
Package botflow executes and debugs conversational bot graphs.

A bot is a directed graph of typed nodes (triggers, messages, conditions and
variable assignments) joined by connections, as drawn in a visual editor and
stored as a JSON or YAML document. botflow parses that document into an
immutable graph, steps through it with a pluggable execution engine and wraps
each run in a debug session with breakpoints, pause and resume, single
stepping and live variable edits.

# Architecture

  - pkg/domain: the graph model, snapshots, errors and lifecycle hooks.
  - internal/compiler: document parsing and structural validation.
  - internal/runtime: the per-kind handler table, interpolation and conditions.
  - pkg/debug: the session state machine and the per-bot session registry.
  - pkg/adapters: bot loaders, breakpoint and run stores (memory, file, Redis),
    and the HTTP and MCP transports.

The engine never performs side effects: sending a message is returned as an
Effect, which a session hands to an optional ports.EffectSink.

# Usage

	registry := botflow.New(botflow.WithMaxSteps(500))

	session, err := registry.CreateDebugSession(ctx, "greeter", document, "dev")
	if err != nil {
		log.Fatal(err)
	}
	_, _ = registry.SetBreakpoint(ctx, "greeter", "ask-name")

	if err := session.Start(ctx, "", map[string]any{"name": "Ana"}); err != nil {
		log.Fatal(err)
	}
	fmt.Println(session.Status(), session.CurrentNodeID()) // paused ask-name
*/
package botflow
