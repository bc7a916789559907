// Command severn-map runs one map job of a parallel stage. Grid
// scheduler array tasks invoke it with their zero-based job number.
//
//	severn-map --stage N --job J --increment K [--debug] config.yml
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wehubfusion/Severn/internal/logging"
	"github.com/wehubfusion/Severn/pkg/config"
	"github.com/wehubfusion/Severn/pkg/job"
)

func main() {
	var stage, jobNum, increment int
	var debug bool
	flag.IntVar(&stage, "stage", 0, "stage number (1 or 2)")
	flag.IntVar(&jobNum, "job", 0, "zero-based job number")
	flag.IntVar(&increment, "increment", 1, "total number of jobs")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"usage: %s --stage N --job J --increment K [--debug] config\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := logging.NewConsole(debug)
	defer logger.Sync()

	if flag.NArg() != 1 || stage < 1 || stage > 2 || increment < 1 || jobNum < 0 || jobNum >= increment {
		flag.Usage()
		os.Exit(2)
	}

	conf, err := config.Load(flag.Arg(0), nil)
	if err != nil {
		logger.Error("configuration failed", zap.Error(err))
		os.Exit(1)
	}

	logDir := filepath.Join(conf.Run.Path, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		logger.Error("creating logs directory", zap.Error(err))
		os.Exit(1)
	}
	logPath := filepath.Join(logDir, fmt.Sprintf("severn.stage%d.%d.log", stage, jobNum))
	logger, closeLog, err := logging.WithFile(logger, logPath, debug)
	if err != nil {
		logger.Error("opening map log", zap.Error(err))
		os.Exit(1)
	}
	defer closeLog()

	shard := job.Shard{Job: jobNum, Increment: increment}
	if err := job.RunMap(conf, stage, shard, logger); err != nil {
		logger.Error("map job failed", zap.Error(err))
		os.Exit(1)
	}
}
