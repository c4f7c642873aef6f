package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/buildgraph/internal/store"
	"github.com/papapumpkin/buildgraph/internal/undo"
)

var rmPathCmd = &cobra.Command{
	Use:   "rm-path <path|id>",
	Short: "Delete a path from the build graph",
	Long: `Deletes a file or empty directory. With --tree the whole subtree goes.
With --actions the actions that generated the paths are deleted too.`,
	Args: cobra.ExactArgs(1),
	RunE: runRmPath,
}

var makeAtomicCmd = &cobra.Command{
	Use:   "make-atomic <action-id>",
	Short: "Fold an action's sub-actions into it",
	Args:  cobra.ExactArgs(1),
	RunE:  runMakeAtomic,
}

var mergeActionsCmd = &cobra.Command{
	Use:   "merge-actions <action-id> <action-id>...",
	Short: "Merge atomic actions into the first one",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runMergeActions,
}

var rmActionCmd = &cobra.Command{
	Use:   "rm-action <action-id>",
	Short: "Delete an action, lifting its sub-actions to its parent",
	Args:  cobra.ExactArgs(1),
	RunE:  runRmAction,
}

var moveCmd = &cobra.Command{
	Use:   "move <package> <member>...",
	Short: "Move members into a package",
	Long: `Moves members into a package. Members are written f:<id> (file),
a:<id> (action), g:<id> (file group) or s:<id> (sub-package).`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMove,
}

func init() {
	rmPathCmd.Flags().Bool("tree", false, "delete the whole subtree")
	rmPathCmd.Flags().Bool("actions", false, "also delete the actions that generated the paths")
	for _, c := range []*cobra.Command{rmPathCmd, makeAtomicCmd, mergeActionsCmd, rmActionCmd, moveCmd} {
		c.Flags().Bool("dry-run", false, "apply, report and undo")
		rootCmd.AddCommand(c)
	}
}

func dryRun(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("dry-run")
	return v
}

func runRmPath(cmd *cobra.Command, args []string) error {
	tree, _ := cmd.Flags().GetBool("tree")
	actions, _ := cmd.Flags().GetBool("actions")
	return withSession(cmd, func(ctx context.Context, s *session) error {
		id, err := s.pathArg(ctx, args[0])
		if err != nil {
			return err
		}
		label := fmt.Sprintf("rm-path %s", args[0])
		return s.intent(ctx, label, dryRun(cmd), func(ctx context.Context) (*undo.Multi, error) {
			if tree {
				return s.r.DeletePathTree(ctx, id, actions)
			}
			return s.r.DeletePath(ctx, id, actions)
		})
	})
}

func runMakeAtomic(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad action ID %q", args[0])
	}
	return withSession(cmd, func(ctx context.Context, s *session) error {
		return s.intent(ctx, "make-atomic "+args[0], dryRun(cmd), func(ctx context.Context) (*undo.Multi, error) {
			return s.r.MakeActionAtomic(ctx, id)
		})
	})
}

func runMergeActions(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	return withSession(cmd, func(ctx context.Context, s *session) error {
		return s.intent(ctx, fmt.Sprintf("merge-actions %v", ids), dryRun(cmd), func(ctx context.Context) (*undo.Multi, error) {
			return s.r.MergeActions(ctx, ids)
		})
	})
}

func runRmAction(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad action ID %q", args[0])
	}
	return withSession(cmd, func(ctx context.Context, s *session) error {
		return s.intent(ctx, "rm-action "+args[0], dryRun(cmd), func(ctx context.Context) (*undo.Multi, error) {
			return s.r.DeleteAction(ctx, id)
		})
	})
}

func runMove(cmd *cobra.Command, args []string) error {
	members := make([]store.Member, 0, len(args)-1)
	for _, a := range args[1:] {
		m, err := parseMember(a)
		if err != nil {
			return err
		}
		members = append(members, m)
	}
	return withSession(cmd, func(ctx context.Context, s *session) error {
		pkg, err := s.packageArg(ctx, args[0])
		if err != nil {
			return err
		}
		label := fmt.Sprintf("move %d members to %s", len(members), args[0])
		return s.intent(ctx, label, dryRun(cmd), func(ctx context.Context) (*undo.Multi, error) {
			return s.r.Move(ctx, pkg, members)
		})
	})
}
