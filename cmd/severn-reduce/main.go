// Command severn-reduce merges the shard outputs of a parallel stage
// into the parent run. The scheduler holds it until every map job of
// the stage has finished.
//
//	severn-reduce --stage N [--debug] config.yml
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
	var stage int
	var debug bool
	flag.IntVar(&stage, "stage", 0, "stage number (1 or 2)")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"usage: %s --stage N [--debug] config\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := logging.NewConsole(debug)
	defer logger.Sync()

	if flag.NArg() != 1 || stage < 1 || stage > 2 {
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
	logPath := filepath.Join(logDir, fmt.Sprintf("severn.reduce%d.log", stage))
	logger, closeLog, err := logging.WithFile(logger, logPath, debug)
	if err != nil {
		logger.Error("opening reduce log", zap.Error(err))
		os.Exit(1)
	}
	defer closeLog()

	if err := job.RunReduce(conf, stage, logger); err != nil {
		logger.Error("reduce job failed", zap.Error(err))
		os.Exit(1)
	}
}
