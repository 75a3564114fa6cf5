package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stratdeck/stratdeck/internal/archetype"
	"github.com/stratdeck/stratdeck/internal/config"
)

func catalogCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the archetype catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			reg, err := archetype.LoadCatalog(cfg.Catalog.Path)
			if err != nil {
				return err
			}

			var filter archetype.Kind
			if kind != "" {
				filter, err = archetype.ParseKind(kind)
				if err != nil {
					return err
				}
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE_ID\tKIND\tVERSION\tCONTEXT\tTITLE")
			for _, a := range reg.List(filter) {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", a.TypeID, a.Kind, a.Version, a.Context, a.Title)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "filter by kind (entry, exit, gate, overlay)")
	return cmd
}
