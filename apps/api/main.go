// Command api serves the trip notification endpoint used by the admin console.
package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	echoapi "github.com/trezcool/schoolbus/apps/api/echo"
	"github.com/trezcool/schoolbus/core"
	"github.com/trezcool/schoolbus/core/notification"
	emailsvc "github.com/trezcool/schoolbus/services/email"
	logsvc "github.com/trezcool/schoolbus/services/logger"
	metricsvc "github.com/trezcool/schoolbus/services/metrics"
	"github.com/trezcool/schoolbus/storage/database"
	inmemdb "github.com/trezcool/schoolbus/storage/database/inmem"
	sqlxrepos "github.com/trezcool/schoolbus/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := newLogger(conf, os.Stdout, "API : ")

	if err := run(conf, logger); err != nil {
		logger.Fatal(err.Error(), err)
	}
}

func newLogger(conf *core.Config, w io.Writer, prefix string) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(log.New(w, prefix, log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func run(conf *core.Config, logger core.Logger) error {
	logger.Info(fmt.Sprintf("starting %s api, build %q", conf.AppName, conf.Build))
	defer logger.Info("api stopped")

	if err := core.ParseEmailTemplates(conf.Debug); err != nil {
		return errors.Wrap(err, "parsing email templates")
	}

	repo, closeRepo, err := newRepository(conf, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	var mailSvc core.EmailService = emailsvc.NewSendgridService(conf, logger)
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	}
	metrics := metricsvc.NewPrometheus()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	notification.InitValidators(validate, translator)

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:            conf,
		Logger:          logger,
		NotificationSvc: notification.NewService(repo, mailSvc, validate, logger, notification.WithMetrics(metrics)),
		Validate:        validate,
		Translator:      translator,
		Metrics:         metrics.Handler(),
	})

	startDebugServer(conf, logger)
	go server.Start()

	select {
	case err := <-server.Errors():
		return errors.Wrap(err, "serving")
	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: shutting down", sig))
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed, forcing", err)
			return errors.Wrap(server.Close(), "closing server")
		}
	}
	return nil
}

// newRepository returns the postgres notification log when the database is enabled,
// an in-memory one otherwise.
func newRepository(conf *core.Config, logger core.Logger) (notification.Repository, func(), error) {
	if !conf.Database.Enabled {
		logger.Warn("database disabled: notifications are kept in memory")
		return inmemdb.NewNotificationRepository(inmemdb.Open()), func() {}, nil
	}

	db, err := setUpDB(conf)
	if err != nil {
		return nil, nil, errors.Wrap(err, "setting up database")
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}
	return sqlxrepos.NewNotificationRepository(db, conf.Database.Engine), closeDB, nil
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Connect(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db, conf.Database.Engine); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// startDebugServer serves /debug/pprof and /debug/vars from the default mux.
func startDebugServer(conf *core.Config, logger core.Logger) {
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error("debug server stopped", err)
		}
	}()
}
