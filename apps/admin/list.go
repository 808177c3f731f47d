package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/schoolbus/core/transport"
)

func (cli *commandLine) listCmd() *cobra.Command {
	var filter transport.Filter

	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "List the items of a resource (buses, drivers, parents, students, classes, routes, trips)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.requireSession(); err != nil {
				return err
			}
			resource := args[0]
			if _, err := cli.svc.Refresh(cmd.Context(), resource); err != nil {
				return err
			}
			items, err := cli.svc.Snapshot(resource, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, renderItems(items))
			_, _ = fmt.Fprintln(out, renderCounts(transport.CountByStatus(resource, items)))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Search, "search", "", "keep items with a field containing or resembling this text")
	cmd.Flags().StringVar(&filter.Field, "field", "", "restrict --search to this field")
	cmd.Flags().StringVar(&filter.Status, "status", "", "keep items with this status")
	return cmd
}
