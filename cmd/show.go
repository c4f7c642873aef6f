package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/buildgraph/internal/membership"
)

var showFilesCmd = &cobra.Command{
	Use:   "show-files <spec>...",
	Short: "List the files a query selects",
	Long: `Lists the paths selected by a sequence of query specs, applied in
order. A spec is an ID or name (prefix - to remove), an ID with a depth
(12/2), %p/<package>[/scope], %np/<package> or %m/<glob>[:<glob>].`,
	Args: cobra.MinimumNArgs(1),
	RunE: runShowFiles,
}

var showActionsCmd = &cobra.Command{
	Use:   "show-actions <spec>...",
	Short: "List the actions a query selects",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runShowActions,
}

var reportCmd = &cobra.Command{
	Use:       "report unused|write-only",
	Short:     "List files nothing reads or writes, or files only written",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"unused", "write-only"},
	RunE:      runReport,
}

func init() {
	rootCmd.AddCommand(showFilesCmd)
	rootCmd.AddCommand(showActionsCmd)
	rootCmd.AddCommand(reportCmd)
}

func runShowFiles(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		fs, err := membership.NewFileSet(ctx, s.store)
		if err != nil {
			return err
		}
		if err := fs.PopulateWithPaths(ctx, args); err != nil {
			s.printer.Error(err.Error())
			return errReported
		}
		return s.printPaths(ctx, fs.Members())
	})
}

func runShowActions(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		as, err := membership.NewActionSet(ctx, s.store)
		if err != nil {
			return err
		}
		if err := as.PopulateWithActions(ctx, args); err != nil {
			s.printer.Error(err.Error())
			return errReported
		}
		all, err := s.store.ActionCommands(ctx)
		if err != nil {
			return err
		}
		selected := make(map[int]string)
		for _, id := range as.Members() {
			if c, ok := all[id]; ok {
				selected[id] = c
			}
		}
		s.printer.Actions(selected)
		return nil
	})
}

func runReport(cmd *cobra.Command, args []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		var ids []int
		var err error
		switch args[0] {
		case "unused":
			ids, err = s.store.FilesNeverAccessed(ctx)
		case "write-only":
			ids, err = s.store.WriteOnlyFiles(ctx)
		default:
			return fmt.Errorf("unknown report %q: want unused or write-only", args[0])
		}
		if err != nil {
			return err
		}
		return s.printPaths(ctx, ids)
	})
}

func (s *session) printPaths(ctx context.Context, ids []int) error {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := s.store.PathName(ctx, id)
		if err != nil {
			return err
		}
		names = append(names, n)
	}
	s.printer.Paths(names)
	return nil
}
