package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pathdag/pathdag/pkg/graphio"
)

// exportCommand creates the 'export' command: dump the graph's direct edges.
func (c *CLI) exportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the graph's direct edges as JSON",
		Long: `Export every direct edge of the graph as a JSON document.

Only direct edges are written. Materialized paths are derived state and
are rebuilt deterministically on import.`,
		Example: `  pathdag export
  pathdag export -o graph.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, closeStore, err := c.openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			g, err := graphio.Snapshot(ctx, eng.store)
			if err != nil {
				return err
			}

			if output == "" {
				return graphio.WriteGraph(g, os.Stdout)
			}
			if err := graphio.WriteGraphFile(g, output); err != nil {
				return err
			}
			printSuccess("Exported graph")
			printStats(len(g.Entities()), len(g.Edges))
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

// importCommand creates the 'import' command: replay edges from a JSON export.
func (c *CLI) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import edges from a JSON export",
		Long: `Import a graph exported with 'pathdag export'.

Each edge is replayed through the mutator, so all root-to-node paths are
rematerialized. Importing into a non-empty store merges the edge sets.`,
		Example: `  pathdag import graph.json`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := graphio.ReadGraphFile(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			eng, closeStore, err := c.openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			prog := newProgress(loggerFromContext(ctx))
			if err := graphio.Import(ctx, eng.mutator, g); err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Imported %d edges", len(g.Edges)))

			printSuccess("Import complete")
			printStats(len(g.Entities()), len(g.Edges))
			printNextStep("Inspect the graph", "pathdag tree <root>")
			return nil
		},
	}
}

// vizCommand creates the 'viz' command: render the graph via graphviz.
func (c *CLI) vizCommand() *cobra.Command {
	var (
		output   string
		detailed bool
		dotOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "viz",
		Short: "Render the graph as SVG (or DOT) via graphviz",
		Example: `  pathdag viz -o graph.svg
  pathdag viz --detailed -o graph.svg
  pathdag viz --dot`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, closeStore, err := c.openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			g, err := graphio.Snapshot(ctx, eng.store)
			if err != nil {
				return err
			}
			dot := graphio.ToDOT(g, graphio.Options{Detailed: detailed})

			if dotOnly {
				fmt.Println(dot)
				return nil
			}

			sp := newSpinner(cmd.OutOrStdout(), "Rendering graph")
			sp.Start()
			svg, err := graphio.RenderSVG(dot)
			sp.Stop()
			if err != nil {
				return err
			}

			if output == "" {
				output = "graph.svg"
			} else if !strings.HasSuffix(output, ".svg") {
				output += ".svg"
			}
			if err := os.WriteFile(output, svg, 0o644); err != nil {
				return fmt.Errorf("write svg: %w", err)
			}

			printSuccess("Rendered graph")
			printStats(len(g.Entities()), len(g.Edges))
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default graph.svg)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "label edges with their attributes")
	cmd.Flags().BoolVar(&dotOnly, "dot", false, "print DOT source instead of rendering")
	return cmd
}
