package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pathdag/pathdag/pkg/graphio"
)

// browseCommand creates the 'browse' command: interactive entity browser.
func (c *CLI) browseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse entities interactively",
		Long: `Open an interactive browser over the graph's entities.

Each row shows an entity with its direct parents, direct children and
the number of root paths reaching it. Selecting an entity prints its
paths.`,
		Example: `  pathdag browse --db ./graph.db`,
		Args:    cobra.NoArgs,
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
			entities := g.Entities()
			if len(entities) == 0 {
				printInfo("The graph is empty")
				printNextStep("Add an edge", "pathdag add <child> <parent>")
				return nil
			}

			rows := make([]entityRow, 0, len(entities))
			for _, id := range entities {
				parents, err := eng.assembler.Parents(ctx, id)
				if err != nil {
					return err
				}
				children, err := eng.assembler.Children(ctx, id)
				if err != nil {
					return err
				}
				paths, err := eng.assembler.EntityPaths(ctx, id)
				if err != nil {
					return err
				}
				rows = append(rows, entityRow{
					ID:       id,
					Parents:  parents,
					Children: children,
					Paths:    len(paths),
					Root:     len(parents) == 0,
				})
			}

			model := NewEntityListModel(rows)
			final, err := tea.NewProgram(model).Run()
			if err != nil {
				return fmt.Errorf("run browser: %w", err)
			}

			result, ok := final.(EntityListModel)
			if !ok || result.Selected == nil {
				return nil
			}

			paths, err := eng.assembler.EntityPaths(ctx, result.Selected.ID)
			if err != nil {
				return err
			}
			printInfo("Paths to entity %d", result.Selected.ID)
			for _, p := range paths {
				fmt.Println("  " + StyleValue.Render(formatNodes(p.Nodes)))
			}
			return nil
		},
	}
}
