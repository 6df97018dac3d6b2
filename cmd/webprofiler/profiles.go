package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newProfilesCmd(a *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Inspect collected profiles",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recent profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, cleanup, err := a.bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			storage, closeStorage, err := a.openStorage(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStorage()

			profiles, err := storage.Find(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TOKEN\tMETHOD\tSTATUS\tURL\tTIME\tDURATION")
			for _, p := range profiles {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
					p.Token, p.Method, p.StatusCode, p.URL, p.Time.Format(time.RFC3339), p.Duration)
			}
			return w.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "number of profiles to show (0 for all)")

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete every stored profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, cleanup, err := a.bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			storage, closeStorage, err := a.openStorage(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStorage()

			if err := storage.Purge(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "profiles purged")
			return nil
		},
	}

	cmd.AddCommand(list, purge)
	return cmd
}
