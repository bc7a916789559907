package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/wehubfusion/Severn/internal/tracing"
	"github.com/wehubfusion/Severn/pkg/config"
	"github.com/wehubfusion/Severn/pkg/run"
)

// Runner executes a full run: both stages, serial or parallel, and the
// final completion bookkeeping.
type Runner struct {
	conf   *config.RunnerConfig
	ctx    *run.RunContext
	logger *zap.Logger
	debug  bool
}

// NewRunner validates the plan and prepares the run directory.
func NewRunner(conf *config.RunnerConfig, logger *zap.Logger, debug bool) (*Runner, error) {
	if err := checkPlan(conf); err != nil {
		return nil, err
	}
	runCtx, err := run.CreateContext(conf, logger)
	if err != nil {
		return nil, err
	}
	return &Runner{conf: conf, ctx: runCtx, logger: logger, debug: debug}, nil
}

// Context returns the run context, exposing the run directory and
// tracker to the command layer.
func (r *Runner) Context() *run.RunContext {
	return r.ctx
}

// Run executes the run. With a grid scheduler backend the map and
// reduce jobs are submitted and Run returns without waiting; otherwise
// both stages execute in this process.
func (r *Runner) Run(ctx context.Context) error {
	parallel := r.conf.Run.Parallel
	if parallel != nil && (parallel.Name == config.ParallelQsub || parallel.Name == config.ParallelSbatch) {
		return r.submitCluster()
	}

	tracer := otel.Tracer(tracing.TracerName)
	for stage := 1; stage <= 2; stage++ {
		stageConf := r.conf.Stage(stage)
		if stageConf == nil || !stageConf.Enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		stageCtx, span := tracer.Start(ctx, fmt.Sprintf("stage%d", stage))
		var err error
		if parallel != nil && parallel.Name == config.ParallelMP && stageConf.NumJobs > 1 {
			err = r.runPool(stageCtx, stage, stageConf.NumJobs)
		} else {
			err = r.runSerial(stage)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			r.ctx.Abort()
			return err
		}
		span.End()
	}
	return r.finish()
}

// runSerial executes one stage in this process.
func (r *Runner) runSerial(stage int) error {
	b := newBuilder(r.ctx)
	p, err := b.stagePipeline(stage, nil, true)
	if err != nil {
		return err
	}
	if p == nil {
		return nil
	}
	r.logger.Info("running stage",
		zap.Int("stage", stage),
		zap.String("pipeline", p.Name()))
	start := time.Now()
	err = p.Run()
	r.ctx.Tracker.Record(fmt.Sprintf("stage%d", stage), p.Count(), time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("stage %d: %w", stage, err)
	}
	return nil
}

// runPool executes one stage as a local pool: one worker goroutine per
// shard, each with its own configuration copy and pipeline, writing
// under part_<job>. The shards share nothing but the filesystem. The
// parent merges their outputs and removes the part directories.
func (r *Runner) runPool(ctx context.Context, stage, numJobs int) error {
	r.logger.Info("running stage with local pool",
		zap.Int("stage", stage), zap.Int("jobs", numJobs))

	start := time.Now()
	var wg sync.WaitGroup
	errs := make(chan error, numJobs)
	counts := make(chan int, numJobs)

	for j := 0; j < numJobs; j++ {
		wg.Add(1)
		go func(jobNum int) {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs <- err
				return
			}
			count, err := r.runShard(stage, Shard{Job: jobNum, Increment: numJobs})
			if err != nil {
				errs <- fmt.Errorf("map job %d: %w", jobNum, err)
				return
			}
			counts <- count
		}(j)
	}
	wg.Wait()
	close(errs)
	close(counts)
	if err := <-errs; err != nil {
		return err
	}

	total := 0
	for count := range counts {
		total += count
	}
	r.ctx.Tracker.Record(fmt.Sprintf("stage%d_map", stage), total, time.Since(start), true)

	if err := ReduceStage(r.ctx, stage, numJobs); err != nil {
		return err
	}
	for j := 0; j < numJobs; j++ {
		if err := os.RemoveAll(r.partPath(j)); err != nil {
			return fmt.Errorf("removing shard directory: %w", err)
		}
	}
	return nil
}

// runShard builds and runs one shard's pipeline against a private
// configuration copy whose outputs point into the part directory.
func (r *Runner) runShard(stage int, shard Shard) (int, error) {
	shardConf, err := shardConfig(r.conf, r.ctx.Path, shard.Job)
	if err != nil {
		return 0, err
	}

	logger := r.logger.With(zap.Int("job", shard.Job))
	shardCtx, err := run.CreateContext(shardConf, logger)
	if err != nil {
		return 0, err
	}
	b := newBuilder(shardCtx)
	p, err := b.stagePipeline(stage, &shard, false)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, nil
	}
	if err := p.Run(); err != nil {
		return 0, err
	}
	for _, msg := range shardCtx.Tracker.Warnings() {
		r.ctx.Tracker.Warn(msg)
	}
	return p.Count(), nil
}

func (r *Runner) partPath(job int) string {
	return filepath.Join(r.ctx.Path, fmt.Sprintf("part_%d", job))
}

// finish marks the run complete when its terminal outputs exist: the
// results file for runs with a retrieval stage, otherwise all
// configured stage 1 artifacts.
func (r *Runner) finish() error {
	if !runComplete(r.ctx) {
		r.logger.Warn("run left incomplete")
		r.ctx.Abort()
		return nil
	}
	if err := r.ctx.Finish(); err != nil {
		return err
	}
	r.logger.Info("run complete",
		zap.String("run_id", r.ctx.Tracker.RunID()),
		zap.String("path", r.ctx.Path))
	return nil
}

// runComplete checks the completion condition for a run directory.
func runComplete(ctx *run.RunContext) bool {
	conf := ctx.Conf
	if conf.Retrieve != nil || conf.Rerank != nil {
		_, err := os.Stat(filepath.Join(ctx.Path, conf.Run.Results))
		return err == nil
	}
	for _, task := range []string{run.TaskDocuments, run.TaskDatabase, run.TaskIndex} {
		dir := ctx.Artifact.Dir(task)
		if dir == "" {
			continue
		}
		if !run.IsComplete(dir) {
			return false
		}
	}
	return true
}

// RunMap executes one map job for a cluster run: the shard's slice of
// the given stage, outputs redirected into the part directory. Timing
// and warnings reach the parent through the map job's log, which the
// reduce job sweeps.
func RunMap(conf *config.RunnerConfig, stage int, shard Shard, logger *zap.Logger) error {
	if err := checkPlan(conf); err != nil {
		return err
	}
	runPath, err := filepath.Abs(conf.Run.Path)
	if err != nil {
		return fmt.Errorf("resolving run path: %w", err)
	}
	shardConf, err := shardConfig(conf, runPath, shard.Job)
	if err != nil {
		return err
	}

	shardCtx, err := run.CreateContext(shardConf, logger)
	if err != nil {
		return err
	}
	b := newBuilder(shardCtx)
	p, err := b.stagePipeline(stage, &shard, false)
	if err != nil {
		return err
	}
	if p == nil {
		logger.Info("map job has nothing to do", zap.Int("stage", stage))
		return nil
	}
	start := time.Now()
	if err := p.Run(); err != nil {
		return fmt.Errorf("map job %d stage %d: %w", shard.Job, stage, err)
	}
	logger.Info("map job finished",
		zap.Int("stage", stage),
		zap.Int("job", shard.Job),
		zap.Int("items", p.Count()),
		zap.Float64("secs", time.Since(start).Seconds()))
	return nil
}
