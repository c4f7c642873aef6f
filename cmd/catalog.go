package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/buildgraph/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Sync packages with packages.toml",
}

var catalogApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create and update the folders and packages the catalog declares",
	Args:  cobra.NoArgs,
	RunE:  runCatalogApply,
}

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the store's folders and packages to the catalog",
	Args:  cobra.NoArgs,
	RunE:  runCatalogExport,
}

func init() {
	catalogCmd.PersistentFlags().String("file", "", "catalog path (default from config)")
	catalogCmd.AddCommand(catalogApplyCmd)
	catalogCmd.AddCommand(catalogExportCmd)
	rootCmd.AddCommand(catalogCmd)
}

func catalogPath(cmd *cobra.Command, s *session) string {
	if p, _ := cmd.Flags().GetString("file"); p != "" {
		return p
	}
	return s.cfg.Catalog
}

func runCatalogApply(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		path := catalogPath(cmd, s)
		c, err := catalog.Load(path)
		if err != nil {
			return err
		}
		res, err := catalog.Apply(ctx, s.r, s.store, c, s.logger)
		if err != nil {
			return s.report(ctx, err)
		}
		if !res.Changed() {
			s.printer.Info(path + ": up to date")
			return nil
		}
		if len(res.Created) > 0 {
			s.printer.Info("created: " + strings.Join(res.Created, ", "))
		}
		if len(res.Updated) > 0 {
			s.printer.Info("updated: " + strings.Join(res.Updated, ", "))
		}
		return nil
	})
}

func runCatalogExport(cmd *cobra.Command, _ []string) error {
	return withSession(cmd, func(ctx context.Context, s *session) error {
		c, err := catalog.Export(ctx, s.store)
		if err != nil {
			return err
		}
		path := catalogPath(cmd, s)
		if err := catalog.Save(path, c); err != nil {
			return err
		}
		s.printer.Info(fmt.Sprintf("wrote %d folders and %d packages to %s", len(c.Folders), len(c.Packages), path))
		return nil
	})
}
