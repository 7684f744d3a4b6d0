package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ainasago/FishBrowser-sub004/internal/catalog"
	"github.com/ainasago/FishBrowser-sub004/internal/config"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and seed the trait catalog",
	}
	cmd.AddCommand(newCatalogSeedCmd())
	cmd.AddCommand(newCatalogShowCmd())
	return cmd
}

func newCatalogSeedCmd() *cobra.Command {
	var files []string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Merge the built-in seed and extra YAML seed files into the store",
		Long: `Seeding is additive: rows already present (matched by natural key) are never
rewritten or removed, so running it twice adds nothing the second time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, c *Components) error {
				seed, err := catalog.LoadSeedFiles(append(append([]string(nil), config.Get().Catalog.SeedFiles...), files...))
				if err != nil {
					return err
				}
				added, err := c.Store.SeedCatalog(ctx, seed)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d rows added\n", added)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&files, "file", nil, "extra YAML seed file (repeatable)")
	return cmd
}

func newCatalogShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List trait definitions in resolution order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, func(ctx context.Context, c *Components) error {
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), c.Catalog.Snapshot())
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "KEY\tTYPE\tCATEGORY\tOPTIONS\tDEPENDS ON")
				for _, key := range c.Catalog.ResolutionOrder() {
					def, err := c.Catalog.GetDefinition(key)
					if err != nil {
						return err
					}
					opts, _ := c.Catalog.Candidates(key, catalog.Filter{})
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%v\n", def.Key, def.ValueType, def.Category, len(opts), def.Dependencies)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\npresets: %v\n", c.Catalog.PresetNames())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full snapshot as JSON")
	return cmd
}
