// Command severn runs a cross-language retrieval experiment from a
// configuration file.
//
//	severn [-d|--debug] [--set key=value ...] config.yml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/wehubfusion/Severn/internal/logging"
	"github.com/wehubfusion/Severn/internal/tracing"
	"github.com/wehubfusion/Severn/pkg/config"
	"github.com/wehubfusion/Severn/pkg/job"
	"github.com/wehubfusion/Severn/pkg/run"
)

type stringList []string

func (s *stringList) String() string { return fmt.Sprint(*s) }

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func main() {
	var debug bool
	var overrides stringList
	flag.BoolVar(&debug, "d", false, "enable debug logging")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Var(&overrides, "set", "override a configuration value (key=value, repeatable)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"usage: %s [-d|--debug] [--set key=value ...] config\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	logger := logging.NewConsole(debug)
	defer logger.Sync()

	conf, err := config.Load(flag.Arg(0), overrides)
	if err != nil {
		logger.Error("configuration failed", zap.Error(err))
		os.Exit(1)
	}

	runPath, err := filepath.Abs(conf.Run.Path)
	if err != nil {
		logger.Error("resolving run path", zap.Error(err))
		os.Exit(1)
	}
	if run.IsComplete(runPath) {
		logger.Error("run directory is already complete", zap.String("path", runPath))
		os.Exit(1)
	}
	if err := os.MkdirAll(runPath, 0o755); err != nil {
		logger.Error("creating run directory", zap.Error(err))
		os.Exit(1)
	}
	logger, closeLog, err := logging.WithFile(logger, filepath.Join(runPath, "severn.log"), debug)
	if err != nil {
		logger.Error("opening run log", zap.Error(err))
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := tracing.Setup(ctx, conf.Run.Tracing, logger)
	if err != nil {
		logger.Error("tracing setup failed", zap.Error(err))
		os.Exit(1)
	}
	defer tracing.Shutdown(shutdown, logger)

	runner, err := job.NewRunner(conf, logger, debug)
	if err != nil {
		var complete *run.RunAlreadyCompleteError
		if errors.As(err, &complete) {
			logger.Error("run directory is already complete", zap.String("path", complete.Path))
		} else {
			logger.Error("run setup failed", zap.Error(err))
		}
		os.Exit(1)
	}
	if err := runner.Run(ctx); err != nil {
		logger.Error("run failed", zap.Error(err))
		os.Exit(1)
	}
}
