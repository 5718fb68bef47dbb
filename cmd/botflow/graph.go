package main

import (
	"fmt"

	"github.com/aretw0/botflow/internal/compiler"
	"github.com/aretw0/botflow/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <bot-file|bot-id>",
	Short: "Export the flow graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of a bot. With --run the nodes of an archived
run are highlighted: the visited path, the node it stopped at and the bot's breakpoints.`,
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
		g, err := compiler.NewParser().Parse(doc)
		if err != nil {
			return err
		}
		g.BotID = botID

		var overlay *graph.GraphOverlay
		if runID, _ := cmd.Flags().GetString("run"); runID != "" {
			snap, err := a.runs.Load(ctx, runID)
			if err != nil {
				return err
			}
			bps, err := a.breakpoints.List(ctx, botID)
			if err != nil {
				return err
			}
			overlay = graph.OverlayFromSnapshot(snap, bps)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(g, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("run", "", "Highlight the path of an archived run")
}
