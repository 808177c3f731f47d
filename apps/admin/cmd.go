package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/schoolbus/core"
	"github.com/trezcool/schoolbus/core/collection"
	"github.com/trezcool/schoolbus/core/transport"
	"github.com/trezcool/schoolbus/services/restclient"
	"github.com/trezcool/schoolbus/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword    // mockable
	connectDBFunc    = database.Connect      // mockable
	runMigrationFunc = database.RunMigration // mockable

	errNotLoggedIn   = errors.New("not logged in: run `admin login`")
	errEmptyPassword = errors.New("password cannot be empty")
)

type commandLine struct {
	conf   *core.Config
	logger core.Logger

	// flags
	tokenFile   string
	token       string
	concurrency int

	session *restclient.Session
	client  *restclient.Client
	svc     *transport.Service
}

func newCommandLine(conf *core.Config, logger core.Logger) *commandLine {
	return &commandLine{conf: conf, logger: logger}
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         cli.conf.AppName + " operator console",
		Long:          "admin manages the buses, drivers, parents, students, classes, routes and trips of the school transportation API, and the database of the notification service.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return cli.setup()
		},
	}

	root.PersistentFlags().StringVar(&cli.tokenFile, "token-file", defaultTokenFile(), "file holding the saved session token")
	root.PersistentFlags().StringVar(&cli.token, "token", "", "bearer token to use instead of the saved session")
	root.PersistentFlags().IntVar(&cli.concurrency, "concurrency", cli.conf.Bulk.Concurrency, "number of items processed at once by bulk commands")

	root.AddCommand(
		cli.loginCmd(),
		cli.listCmd(),
		cli.statusCmd(),
		cli.deleteCmd(),
		cli.migrateCmd(),
	)
	return root
}

// setup builds the API client and the transport service around the saved session.
func (cli *commandLine) setup() error {
	cli.session = restclient.NewSession()
	cli.session.OnInvalidate(func() {
		if err := os.Remove(cli.tokenFile); err != nil && !os.IsNotExist(err) {
			cli.logger.Warn("removing expired session", errors.Wrap(err, "removing token file"))
		}
	})

	token := cli.token
	if token == "" {
		var err error
		if token, err = loadToken(cli.tokenFile); err != nil {
			return err
		}
	}
	if token != "" {
		if err := cli.session.Set(token); err != nil {
			return err
		}
	}

	cli.client = restclient.NewClient(cli.conf.API, cli.session, restclient.WithMapper(transport.Mapper{}))
	coordinator := collection.NewCoordinator(collection.WithDefaultConcurrency(cli.concurrency))
	cli.svc = transport.NewService(cli.client, coordinator, cli.logger)
	return nil
}

func (cli *commandLine) requireSession() error {
	if cli.session.Expired() {
		return errNotLoggedIn
	}
	return nil
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".schoolbus-token"
	}
	return filepath.Join(dir, "schoolbus", "token")
}

func loadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(err, "reading token file")
	}
	return strings.TrimSpace(string(data)), nil
}

func saveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "creating token directory")
	}
	return errors.Wrap(os.WriteFile(path, []byte(token), 0o600), "writing token file")
}
