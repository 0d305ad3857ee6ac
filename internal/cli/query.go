package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pathdag/pathdag/pkg/pathdag"
)

// parentsCommand creates the 'parents' command.
func (c *CLI) parentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "parents <entity>",
		Short:   "List the direct parents of an entity",
		Example: `  pathdag parents 42`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runNeighborQuery(cmd, args[0], "parents", func(eng *engine) neighborFunc {
				return eng.assembler.Parents
			})
		},
	}
}

// childrenCommand creates the 'children' command.
func (c *CLI) childrenCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "children <entity>",
		Short:   "List the direct children of an entity",
		Example: `  pathdag children 42`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runNeighborQuery(cmd, args[0], "children", func(eng *engine) neighborFunc {
				return eng.assembler.Children
			})
		},
	}
}

type neighborFunc func(ctx context.Context, entity int64) ([]int64, error)

// runNeighborQuery is the shared body of 'parents' and 'children'.
func (c *CLI) runNeighborQuery(cmd *cobra.Command, arg, noun string, query func(eng *engine) neighborFunc) error {
	entity, err := parseEntityArg(arg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	eng, closeStore, err := c.openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	ids, err := query(eng)(ctx, entity)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		printInfo("Entity %d has no %s", entity, noun)
		return nil
	}
	for _, id := range ids {
		fmt.Println("  " + StyleValue.Render(strconv.FormatInt(id, 10)))
	}
	printDetail("%d %s", len(ids), noun)
	return nil
}

// pathsCommand creates the 'paths' command.
func (c *CLI) pathsCommand() *cobra.Command {
	var through bool

	cmd := &cobra.Command{
		Use:   "paths <entity>",
		Short: "Show every root-to-entity path",
		Long: `Show every materialized path ending at <entity>.

With --through, paths merely passing through the entity are shown in
full instead of being truncated at it.`,
		Example: `  pathdag paths 42
  pathdag paths 42 --through`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := parseEntityArg(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			eng, closeStore, err := c.openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			var paths []pathdag.PathInfo
			if through {
				paths, err = eng.assembler.PathsThrough(ctx, entity)
			} else {
				paths, err = eng.assembler.EntityPaths(ctx, entity)
			}
			if err != nil {
				return err
			}

			if len(paths) == 0 {
				printInfo("No paths reach entity %d", entity)
				return nil
			}
			for _, p := range paths {
				line := formatNodes(p.Nodes)
				if !p.Complete {
					line += " " + StyleWarning.Render("(fragment)")
				}
				fmt.Println("  " + StyleValue.Render(line))
			}
			printDetail("%d paths", len(paths))
			return nil
		},
	}

	cmd.Flags().BoolVar(&through, "through", false, "show full paths passing through the entity")
	return cmd
}

// treeCommand creates the 'tree' command.
func (c *CLI) treeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "tree <root>",
		Short:   "Render the subtree under an entity",
		Example: `  pathdag tree 1`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := parseEntityArg(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			eng, closeStore, err := c.openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			tree, err := eng.assembler.Hierarchy(ctx, root)
			if err != nil {
				return err
			}
			fmt.Print(formatTree(tree))
			return nil
		},
	}
}

// formatTree renders a hierarchy with box-drawing connectors:
//
//	1
//	├── 2
//	│   └── 4
//	└── 3
func formatTree(t *pathdag.Tree) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(t.Entity, 10))
	b.WriteByte('\n')
	writeTreeChildren(&b, t.Children, "")
	return b.String()
}

func writeTreeChildren(b *strings.Builder, children []*pathdag.Tree, prefix string) {
	for i, child := range children {
		connector, childPrefix := "├── ", prefix+"│   "
		if i == len(children)-1 {
			connector, childPrefix = "└── ", prefix+"    "
		}
		b.WriteString(prefix)
		b.WriteString(connector)
		b.WriteString(strconv.FormatInt(child.Entity, 10))
		b.WriteByte('\n')
		writeTreeChildren(b, child.Children, childPrefix)
	}
}
