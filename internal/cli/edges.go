package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pathdag/pathdag/pkg/pathdag"
)

// addCommand creates the 'add' command: add (or refresh) a directed edge.
func (c *CLI) addCommand() *cobra.Command {
	var attrFlags []string

	cmd := &cobra.Command{
		Use:   "add <child> <parent>",
		Short: "Add a directed edge from parent to child",
		Long: `Add a directed edge so that <parent> becomes a parent of <child>.

Every root-to-child path crossing the new edge is materialized immediately.
Adding an edge that already exists refreshes its attributes instead of
changing the path structure.`,
		Example: `  pathdag add 42 7
  pathdag add 42 7 --attr rel=contains --attr weight=3`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			child, err := parseEntityArg(args[0])
			if err != nil {
				return err
			}
			parent, err := parseEntityArg(args[1])
			if err != nil {
				return err
			}
			attrs, err := parseAttrFlags(attrFlags)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			eng, closeStore, err := c.openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			link, err := eng.mutator.AddEdge(ctx, child, parent, attrs)
			if err != nil {
				return err
			}

			printSuccess("Edge %d %s %d", parent, iconArrow, child)
			printDetail("direct link path %d depth %d", link.PathID, link.Depth)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&attrFlags, "attr", nil, "edge attribute as key=value (repeatable)")
	return cmd
}

// removeCommand creates the 'remove' command: remove a directed edge.
func (c *CLI) removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <child> <parent>",
		Short: "Remove the directed edge from parent to child",
		Long: `Remove the edge between <parent> and <child>.

Every path crossing the edge is invalidated. If the child keeps other
parents, its remaining ancestry is rebuilt through them; otherwise the
child becomes an orphan root.`,
		Example: `  pathdag remove 42 7`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			child, err := parseEntityArg(args[0])
			if err != nil {
				return err
			}
			parent, err := parseEntityArg(args[1])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			eng, closeStore, err := c.openEngine(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			invalidated, rebuilt, err := eng.mutator.RemoveEdge(ctx, child, parent)
			if err != nil {
				return err
			}

			printSuccess("Removed edge %d %s %d", parent, iconArrow, child)
			for _, p := range invalidated {
				printDetail("invalidated path %s", formatNodes(p.Nodes))
			}
			if len(rebuilt) > 0 {
				printDetail("rebuilt %d links through surviving parents", len(rebuilt))
			}
			return nil
		},
	}
}

// parseAttrFlags converts repeated key=value flags into edge attributes.
// Values that parse as integers or booleans keep their typed form.
func parseAttrFlags(flags []string) (pathdag.Attributes, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	attrs := make(pathdag.Attributes, len(flags))
	for _, f := range flags {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid attribute %q: expected key=value", f)
		}
		attrs[key] = coerceAttrValue(value)
	}
	return attrs, nil
}

func coerceAttrValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// formatNodes renders a node sequence as "1 → 2 → 3".
func formatNodes(nodes []int64) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = strconv.FormatInt(n, 10)
	}
	return strings.Join(parts, " "+iconArrow+" ")
}
