package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <command> [args...]",
		Short: "Run a migration command on the notification database (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			db, err := connectDBFunc(cli.conf)
			if err != nil {
				return errors.Wrap(err, "connecting to database")
			}
			defer func() { _ = db.Close() }()

			return runMigrationFunc(db, cli.conf.Database.Engine, args[0], args[1:]...)
		},
	}
}
