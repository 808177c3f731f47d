package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/trezcool/schoolbus/core/collection"
)

func (cli *commandLine) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <resource> <status> <id>...",
		Short: "Set the status of several items at once",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			resource, status, ids := args[0], args[1], args[2:]
			return cli.runBulk(cmd, resource, func(out io.Writer) (collection.Summary, error) {
				return cli.svc.BulkSetStatus(cmd.Context(), resource, ids, status, cli.runOptions(out)...)
			})
		},
	}
}

func (cli *commandLine) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <resource> <id>...",
		Short: "Delete several items at once",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resource, ids := args[0], args[1:]
			return cli.runBulk(cmd, resource, func(out io.Writer) (collection.Summary, error) {
				return cli.svc.BulkDelete(cmd.Context(), resource, ids, cli.runOptions(out)...)
			})
		},
	}
}

// runBulk loads resource, runs the bulk operation and prints its summary.
// A run with failed items returns a *collection.PartialFailureError.
func (cli *commandLine) runBulk(cmd *cobra.Command, resource string, run func(out io.Writer) (collection.Summary, error)) error {
	if err := cli.requireSession(); err != nil {
		return err
	}
	if _, err := cli.svc.Refresh(cmd.Context(), resource); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	summary, err := run(out)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, renderSummary(summary))
	return summary.Err()
}

func (cli *commandLine) runOptions(out io.Writer) []collection.RunOption {
	return []collection.RunOption{
		collection.WithConcurrency(cli.concurrency),
		collection.WithProgress(func(p collection.Progress) {
			if p.State == collection.Running {
				_, _ = fmt.Fprintln(out, renderProgress(p))
			}
		}),
	}
}
