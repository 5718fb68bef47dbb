package main

import (
	"fmt"

	"github.com/aretw0/botflow/internal/compiler"
	"github.com/aretw0/botflow/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [bot-file|bot-id]...",
	Short: "Check bot graphs for consistency",
	Long: `Parses each bot (every bot in the bots directory when none is given) and reports
malformed documents, ambiguous or missing condition branches, unknown node kinds
and nodes no trigger can reach.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		if len(args) == 0 {
			if args, err = a.loader.ListBots(cmd.Context()); err != nil {
				return err
			}
			if len(args) == 0 {
				return fmt.Errorf("no bots found in %s", a.cfg.Storage.BotsDir)
			}
		}

		strict, _ := cmd.Flags().GetBool("strict")
		parser := compiler.NewParser()
		out := cmd.OutOrStdout()
		failed := 0

		for _, arg := range args {
			botID, doc, err := a.readBot(cmd.Context(), arg)
			if err != nil {
				fmt.Fprintf(out, "✗ %s: %v\n", arg, err)
				failed++
				continue
			}
			g, err := parser.Parse(doc)
			if err != nil {
				fmt.Fprintf(out, "✗ %s: %v\n", botID, err)
				failed++
				continue
			}

			issues := validator.LintGraph(g)
			if len(issues) == 0 {
				fmt.Fprintf(out, "✓ %s (%d nodes)\n", botID, len(g.Nodes))
				continue
			}
			mark := "!"
			if validator.HasErrors(issues) || strict {
				mark = "✗"
				failed++
			}
			fmt.Fprintf(out, "%s %s: %s\n", mark, botID, validator.Summary(issues))
		}

		if failed > 0 {
			return fmt.Errorf("validation failed for %d of %d bots", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("strict", false, "Treat warnings as failures")
}
