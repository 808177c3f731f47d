package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"github.com/trezcool/schoolbus/core"
	logsvc "github.com/trezcool/schoolbus/services/logger"
	"github.com/trezcool/schoolbus/services/restclient"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// stop in-flight bulk runs on ctrl-c: remaining items are reported as failed
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := newCommandLine(conf, logger)
	if err := cli.rootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+describe(err)))
		stop()
		os.Exit(1)
	}
}

func describe(err error) string {
	if errors.Cause(err) == restclient.ErrUnauthorized {
		return "session expired: run `admin login`"
	}
	return err.Error()
}
