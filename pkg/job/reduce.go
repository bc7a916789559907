package job

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wehubfusion/Severn/pkg/config"
	"github.com/wehubfusion/Severn/pkg/database"
	"github.com/wehubfusion/Severn/pkg/docs"
	"github.com/wehubfusion/Severn/pkg/index"
	"github.com/wehubfusion/Severn/pkg/pipeline"
	"github.com/wehubfusion/Severn/pkg/results"
	"github.com/wehubfusion/Severn/pkg/run"
	"github.com/wehubfusion/Severn/pkg/score"
	"github.com/wehubfusion/Severn/pkg/topics"
)

// reduceStep binds a reducer to the shard paths it merges.
type reduceStep struct {
	name    string
	reducer pipeline.Reducer
	shards  []string
}

// ReduceStage merges the part directory outputs of one stage into the
// parent run's artifacts. Artifacts already complete in the parent are
// skipped so a resumed reduce does not fail on missing shards.
func ReduceStage(ctx *run.RunContext, stage, numJobs int) error {
	conf := ctx.Conf
	helper := ctx.Artifact

	shardHelpers := make([]*run.ArtifactHelper, numJobs)
	for j := 0; j < numJobs; j++ {
		part := filepath.Join(ctx.Path, fmt.Sprintf("part_%d", j))
		shardHelpers[j] = run.NewArtifactHelper(conf, part)
	}
	shardDirs := func(task string) []string {
		dirs := make([]string, numJobs)
		for j := range shardHelpers {
			dirs[j] = shardHelpers[j].Dir(task)
		}
		return dirs
	}

	var steps []reduceStep
	addArtifact := func(task string, build func(a *run.Artifact) (pipeline.Reducer, error)) error {
		if helper.Dir(task) == "" {
			return nil
		}
		done, err := helper.IsTaskComplete(task)
		if err != nil {
			return err
		}
		if done {
			ctx.Logger.Info("artifact already reduced", zap.String("task", task))
			return nil
		}
		reducer, err := build(helper.NewArtifact(task))
		if err != nil {
			return err
		}
		steps = append(steps, reduceStep{
			name:    task,
			reducer: reducer,
			shards:  shardDirs(task),
		})
		return nil
	}

	var err error
	switch stage {
	case 1:
		if conf.Documents != nil {
			err = addArtifact(run.TaskDocuments, func(a *run.Artifact) (pipeline.Reducer, error) {
				return docs.NewWriter(a), nil
			})
		}
		if err == nil && conf.Database != nil {
			err = addArtifact(run.TaskDatabase, func(a *run.Artifact) (pipeline.Reducer, error) {
				return database.NewWriter(a), nil
			})
		}
		if err == nil && conf.Index != nil {
			err = addArtifact(run.TaskIndex, func(a *run.Artifact) (pipeline.Reducer, error) {
				task, buildErr := index.NewTask(conf.Index, a)
				if buildErr != nil {
					return nil, buildErr
				}
				return task, nil
			})
		}
	case 2:
		if conf.Topics != nil {
			err = addArtifact(run.TaskTopics, func(a *run.Artifact) (pipeline.Reducer, error) {
				return topics.NewWriter("topics", a), nil
			})
		}
		if err == nil && conf.Queries != nil {
			err = addArtifact(run.TaskQueries, func(a *run.Artifact) (pipeline.Reducer, error) {
				return topics.NewWriter("queries", a), nil
			})
		}
		if err == nil && conf.Retrieve != nil {
			err = addArtifact(run.TaskRetrieve, func(a *run.Artifact) (pipeline.Reducer, error) {
				return results.NewJSONWriter("retrieve", a), nil
			})
		}
		if err == nil && conf.Rerank != nil {
			err = addArtifact(run.TaskRerank, func(a *run.Artifact) (pipeline.Reducer, error) {
				return results.NewJSONWriter("rerank", a), nil
			})
		}
		if err == nil && (conf.Retrieve != nil || conf.Rerank != nil) {
			paths := make([]string, numJobs)
			for j := 0; j < numJobs; j++ {
				paths[j] = filepath.Join(ctx.Path, fmt.Sprintf("part_%d", j), conf.Run.Results)
			}
			steps = append(steps, reduceStep{
				name:    "results",
				reducer: results.NewTrecWriter(filepath.Join(ctx.Path, conf.Run.Results)),
				shards:  paths,
			})
		}
	default:
		return fmt.Errorf("unknown stage %d", stage)
	}
	if err != nil {
		return err
	}

	for _, step := range steps {
		ctx.Logger.Info("reducing shard outputs",
			zap.String("task", step.name), zap.Int("shards", len(step.shards)))
		start := time.Now()
		if err := step.reducer.Reduce(step.shards); err != nil {
			return fmt.Errorf("reducing %s: %w", step.name, err)
		}
		ctx.Tracker.Record("reduce_"+step.name, len(step.shards), time.Since(start), true)
	}

	if stage == 2 && conf.Score != nil {
		if err := scoreMerged(ctx); err != nil {
			return err
		}
	}
	return nil
}

// scoreMerged scores the merged results after a sharded stage 2. The
// source is the last results artifact in the chain; with both artifacts
// disabled there is nothing to score from and a warning is recorded.
func scoreMerged(ctx *run.RunContext) error {
	conf := ctx.Conf
	var resultsDir string
	if conf.Rerank != nil && !conf.Rerank.Output.Off {
		resultsDir = ctx.Artifact.Dir(run.TaskRerank)
	} else if conf.Retrieve != nil && !conf.Retrieve.Output.Off {
		resultsDir = ctx.Artifact.Dir(run.TaskRetrieve)
	}
	if resultsDir == "" {
		ctx.Tracker.Warn("scoring skipped: no results artifact enabled for a parallel run")
		return nil
	}

	source, err := results.NewReader(filepath.Join(resultsDir, results.FileName))
	if err != nil {
		return err
	}
	scorer, err := score.NewScorer(conf.Score, ctx.Path, ctx.Tracker.Warn)
	if err != nil {
		return err
	}
	p := &pipeline.StreamingPipeline{
		Source: source,
		Tasks:  []pipeline.Task{scorer},
		Logger: ctx.Logger,
		Warn:   ctx.Tracker.Warn,
	}
	start := time.Now()
	if err := p.Run(); err != nil {
		return fmt.Errorf("scoring merged results: %w", err)
	}
	ctx.Tracker.Record("score", p.Count(), time.Since(start), true)
	return nil
}

// RunReduce is the entry point of the reduce job on a cluster: it
// merges the stage's shard outputs, folds the map job logs into the
// run's warning and resource reports, and finalizes the run after the
// last stage.
func RunReduce(conf *config.RunnerConfig, stage int, logger *zap.Logger) error {
	stageConf := conf.Stage(stage)
	if stageConf == nil || !stageConf.Enabled {
		return fmt.Errorf("stage %d is not enabled", stage)
	}

	ctx, err := run.CreateContext(conf, logger)
	if err != nil {
		return err
	}
	if err := ReduceStage(ctx, stage, stageConf.NumJobs); err != nil {
		ctx.Abort()
		return err
	}
	if err := aggregateLogs(ctx); err != nil {
		ctx.Abort()
		return err
	}
	for j := 0; j < stageConf.NumJobs; j++ {
		part := filepath.Join(ctx.Path, fmt.Sprintf("part_%d", j))
		if err := os.RemoveAll(part); err != nil {
			return fmt.Errorf("removing shard directory: %w", err)
		}
	}

	lastStage := stage == 2 || conf.Run.Stage2 == nil || !conf.Run.Stage2.Enabled
	if lastStage && runComplete(ctx) {
		if err := ctx.Finish(); err != nil {
			return err
		}
		logger.Info("run complete", zap.String("path", ctx.Path))
	}
	return nil
}

// aggregateLogs scans the map job logs under the run's logs directory
// and folds warnings and resource usage lines into warnings.txt and
// memory_and_time.log at the run root.
func aggregateLogs(ctx *run.RunContext) error {
	logDir := filepath.Join(ctx.Path, "logs")
	entries, err := os.ReadDir(logDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading logs directory: %w", err)
	}

	var usage []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		path := filepath.Join(logDir, entry.Name())
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening map log: %w", err)
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if isWarningLine(line) {
				ctx.Tracker.Warn(fmt.Sprintf("%s: %s", entry.Name(), line))
			}
			if strings.Contains(line, "secs") || strings.Contains(line, "Memory") {
				usage = append(usage, fmt.Sprintf("%s: %s", entry.Name(), line))
			}
		}
		scanErr := scanner.Err()
		f.Close()
		if scanErr != nil {
			return fmt.Errorf("scanning map log: %w", scanErr)
		}
	}

	if len(usage) == 0 {
		return nil
	}
	return writeUsageReport(ctx.Path, usage)
}

// isWarningLine matches warnings and errors in both the JSON log
// format of the map jobs and the plain output of scheduler tooling.
func isWarningLine(line string) bool {
	return strings.Contains(line, `"level":"warn"`) ||
		strings.Contains(line, `"level":"error"`) ||
		strings.Contains(line, "WARNING") ||
		strings.Contains(line, "ERROR")
}

func writeUsageReport(runPath string, usage []string) error {
	out := strings.Join(usage, "\n") + "\n"
	path := filepath.Join(runPath, "memory_and_time.log")
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("writing resource report: %w", err)
	}
	return nil
}
