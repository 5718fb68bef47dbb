package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/botflow"
	"github.com/aretw0/botflow/internal/presentation/tui"
	"github.com/aretw0/botflow/pkg/adapters/memory"
	"github.com/aretw0/botflow/pkg/debug"
	"github.com/aretw0/botflow/pkg/domain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <bot-file|bot-id>",
	Short: "Run a bot in the terminal debugger",
	Long: `Runs a bot graph to completion and prints the messages it sends.

With --break or --step the run suspends and reads debugger commands from stdin:
  <enter>, s     execute one node
  c              continue to the next breakpoint
  set k=v        change a variable
  q              stop the run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		botID, doc, err := a.readBot(ctx, args[0])
		if err != nil {
			return err
		}

		trigger, _ := cmd.Flags().GetString("trigger")
		pairs, _ := cmd.Flags().GetStringArray("input")
		breaks, _ := cmd.Flags().GetStringSlice("break")
		step, _ := cmd.Flags().GetBool("step")
		jsonMode, _ := cmd.Flags().GetBool("json")

		input, err := parseAssignments(pairs)
		if err != nil {
			return err
		}

		recorder := memory.NewRecorder()
		registry := botflow.New(a.options(botflow.WithEffectSink(recorder))...)
		session, err := registry.CreateDebugSession(ctx, botID, doc, "cli")
		if err != nil {
			return err
		}

		// Stepping starts suspended on the trigger, with the input already applied.
		if step {
			entry := trigger
			if entry == "" {
				if n, ok := session.Graph().EntryNode(); ok {
					entry = n.ID
				}
			}
			if entry != "" && !contains(breaks, entry) {
				breaks = append(breaks, entry)
			}
		}
		cleanup, err := setTemporaryBreakpoints(ctx, registry, botID, breaks, cmd.ErrOrStderr())
		defer cleanup()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		render := tui.PlainRenderer
		if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) && !jsonMode {
			render = tui.NewRenderer()
		}

		runErr := session.Start(ctx, trigger, input)
		if runErr == nil {
			runErr = debugLoop(cmd, session, render, jsonMode)
		}

		snap := session.Snapshot()
		if jsonMode {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap); err != nil {
				return err
			}
		} else {
			if err := printSnapshot(out, render, snap); err != nil {
				return err
			}
		}

		a.logger.Debug("Run finished", "bot_id", botID, "status", snap.Status, "steps", snap.StepCount, "messages", len(recorder.Messages(botID)))
		if runErr != nil {
			return runErr
		}
		if snap.Status == domain.StatusError {
			return fmt.Errorf("run failed: %s", snap.LastError)
		}
		return nil
	},
}

// debugLoop reads debugger commands while the session is suspended.
func debugLoop(cmd *cobra.Command, session *debug.Session, render func(string) (string, error), jsonMode bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	in := bufio.NewReader(cmd.InOrStdin())

	for session.Status() == domain.StatusPaused {
		if !jsonMode {
			if err := printSnapshot(out, render, session.Snapshot()); err != nil {
				return err
			}
			fmt.Fprint(out, tui.StatusStyle(string(domain.StatusPaused)).Styled("(debug) "))
		}

		line, err := in.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		if err == io.EOF && strings.TrimSpace(line) == "" {
			// No more commands: run to completion.
			line = "c"
		}

		fields := strings.Fields(line)
		verb := ""
		if len(fields) > 0 {
			verb = fields[0]
		}

		var opErr error
		switch verb {
		case "", "s", "step":
			opErr = session.StepOver(ctx)
		case "c", "continue":
			opErr = session.Resume(ctx)
		case "q", "quit":
			return session.Stop(ctx)
		case "set":
			vars, err := parseAssignments(fields[1:])
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			for k, v := range vars {
				if opErr = session.SetVariable(ctx, k, v); opErr != nil {
					break
				}
			}
		default:
			fmt.Fprintf(out, "unknown command %q\n", verb)
			continue
		}
		if opErr != nil && !domain.IsGraphFailure(opErr) {
			return opErr
		}
	}
	return nil
}

func printSnapshot(w io.Writer, render func(string) (string, error), snap *domain.Snapshot) error {
	rendered, err := render(tui.SnapshotMarkdown(snap))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, rendered)
	return err
}

// parseAssignments parses name=value pairs. Values that are valid JSON
// (numbers, booleans, quoted strings, lists) are decoded, anything else stays a string.
func parseAssignments(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected name=value", p)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		vars[name] = v
	}
	return vars, nil
}

// setTemporaryBreakpoints sets nodeIDs on botID and returns a func removing
// the ones that were not set before, so shared stores are left as found.
func setTemporaryBreakpoints(ctx context.Context, registry *debug.Registry, botID string, nodeIDs []string, errOut io.Writer) (func(), error) {
	var added []string
	cleanup := func() {
		for _, nodeID := range added {
			if _, err := registry.RemoveBreakpoint(context.WithoutCancel(ctx), botID, nodeID); err != nil {
				fmt.Fprintf(errOut, "failed to remove breakpoint %s: %v\n", nodeID, err)
			}
		}
	}
	existing := registry.GetBreakpoints(ctx, botID)
	for _, nodeID := range nodeIDs {
		if contains(existing, nodeID) || contains(added, nodeID) {
			continue
		}
		if _, err := registry.SetBreakpoint(ctx, botID, nodeID); err != nil {
			return cleanup, err
		}
		added = append(added, nodeID)
	}
	return cleanup, nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("trigger", "", "Node to start from (defaults to the graph's entry node)")
	runCmd.Flags().StringArrayP("input", "i", nil, "Initial variable as name=value (repeatable)")
	runCmd.Flags().StringSliceP("break", "b", nil, "Node ids to pause before")
	runCmd.Flags().Bool("step", false, "Pause before every node")
	runCmd.Flags().Bool("json", false, "Print the final snapshot as JSON")
}
