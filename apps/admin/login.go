package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/schoolbus/core"
)

func (cli *commandLine) loginCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the school transportation API and save the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprint(out, "Enter password:")
			pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
			_, _ = fmt.Fprintln(out)
			if err != nil {
				return errors.Wrap(err, "reading password")
			}
			if len(pwd) == 0 {
				return errEmptyPassword
			}

			username = core.CleanString(username)
			token, err := cli.client.Login(cmd.Context(), username, string(pwd))
			if err != nil {
				return err
			}
			if err = saveToken(cli.tokenFile, token); err != nil {
				return err
			}

			msg := "logged in as " + username
			if exp := cli.session.ExpiresAt(); !exp.IsZero() {
				msg += ", session expires at " + exp.Format(time.RFC1123)
			}
			_, _ = fmt.Fprintln(out, successStyle.Render(msg))
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "operator username or email; the password is prompted next")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
