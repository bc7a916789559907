package job

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wehubfusion/Severn/pkg/config"
	"github.com/wehubfusion/Severn/pkg/database"
	"github.com/wehubfusion/Severn/pkg/docs"
	"github.com/wehubfusion/Severn/pkg/index"
	"github.com/wehubfusion/Severn/pkg/pipeline"
	"github.com/wehubfusion/Severn/pkg/rerank"
	"github.com/wehubfusion/Severn/pkg/results"
	"github.com/wehubfusion/Severn/pkg/retrieve"
	"github.com/wehubfusion/Severn/pkg/run"
	"github.com/wehubfusion/Severn/pkg/score"
	"github.com/wehubfusion/Severn/pkg/topics"
)

// builder assembles stage pipelines for one run context. Completed
// tasks are skipped and the source moves to the first incomplete
// task's upstream artifact.
type builder struct {
	conf   *config.RunnerConfig
	ctx    *run.RunContext
	logger *zap.Logger
}

func newBuilder(ctx *run.RunContext) *builder {
	return &builder{conf: ctx.Conf, ctx: ctx, logger: ctx.Logger}
}

func (b *builder) warn(msg string) {
	b.ctx.Tracker.Warn(msg)
}

// checkPlan rejects configurations with gaps in the task chain before
// anything runs.
func checkPlan(conf *config.RunnerConfig) error {
	hasStage1 := conf.Documents != nil || conf.Database != nil || conf.Index != nil
	hasStage2 := conf.Topics != nil || conf.Queries != nil || conf.Retrieve != nil ||
		conf.Rerank != nil || conf.Score != nil

	if !hasStage1 && !hasStage2 {
		return config.NewConfigError("no tasks configured, nothing to run", "", nil)
	}
	if hasStage1 && conf.Documents == nil {
		return config.NewConfigError("database or index requires a documents section", "", nil)
	}
	if conf.Topics != nil && conf.Retrieve != nil && conf.Queries == nil {
		return config.NewConfigError("retrieve with topics requires a queries section", "", nil)
	}
	if conf.Queries != nil && conf.Topics == nil && conf.Queries.Input == nil {
		return config.NewConfigError("queries requires topics or an input file", "queries.input", nil)
	}
	if conf.Queries != nil && conf.Rerank != nil && conf.Retrieve == nil {
		return config.NewConfigError("rerank with queries requires a retrieve section", "", nil)
	}
	if conf.Score != nil && conf.Retrieve == nil && conf.Rerank == nil {
		return config.NewConfigError("score requires retrieve or rerank results", "", nil)
	}
	return nil
}

// wrap builds the stage's pipeline in its configured mode.
func (b *builder) wrap(stage *config.StageConfig, source pipeline.Iterator, tasks []pipeline.Task) pipeline.Pipeline {
	if stage.Mode == config.ModeBatch {
		return &pipeline.BatchPipeline{
			Source:           source,
			Tasks:            tasks,
			BatchSize:        stage.BatchSize,
			ProgressInterval: stage.ProgressInterval,
			Logger:           b.logger,
			Warn:             b.warn,
		}
	}
	return &pipeline.StreamingPipeline{
		Source:           source,
		Tasks:            tasks,
		ProgressInterval: stage.ProgressInterval,
		Logger:           b.logger,
		Warn:             b.warn,
	}
}

// stage1Pipeline builds the document pipeline, or nil when stage 1 has
// nothing left to do. A non-nil shard filters the input to one map
// job's items.
func (b *builder) stage1Pipeline(shard *Shard) (pipeline.Pipeline, error) {
	conf := b.conf
	if conf.Documents == nil && conf.Database == nil && conf.Index == nil {
		return nil, nil
	}

	helper := b.ctx.Artifact
	docsEnabled := !conf.Documents.Output.Off
	docsDone := false
	if docsEnabled {
		done, err := helper.IsTaskComplete(run.TaskDocuments)
		if err != nil {
			return nil, err
		}
		docsDone = done
	}
	needDB := false
	if conf.Database != nil {
		done, err := helper.IsTaskComplete(run.TaskDatabase)
		if err != nil {
			return nil, err
		}
		needDB = !done
	}
	needIndex := false
	if conf.Index != nil {
		done, err := helper.IsTaskComplete(run.TaskIndex)
		if err != nil {
			return nil, err
		}
		needIndex = !done
	}
	needDocs := docsEnabled && !docsDone

	if !needDocs && !needDB && !needIndex {
		b.logger.Info("stage 1 artifacts already complete")
		return nil, nil
	}

	var source pipeline.Iterator
	var tasks []pipeline.Task
	var err error

	if docsDone {
		b.logger.Info("reusing completed documents artifact")
		b.ctx.NoteReused()
		source, err = docs.NewProcessedReader(filepath.Join(helper.Dir(run.TaskDocuments), docs.FileName))
		if err != nil {
			return nil, err
		}
	} else {
		source, err = docs.NewReader(conf.Documents.Input)
		if err != nil {
			return nil, err
		}
		processor, err := docs.NewProcessor(conf.Documents.Process)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, processor)
		if docsEnabled {
			tasks = append(tasks, docs.NewWriter(helper.NewArtifact(run.TaskDocuments)))
		}
	}
	if needDB {
		tasks = append(tasks, database.NewWriter(helper.NewArtifact(run.TaskDatabase)))
	}
	if needIndex {
		task, err := index.NewTask(conf.Index, helper.NewArtifact(run.TaskIndex))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if shard != nil {
		source = NewShardIterator(source, *shard)
	}
	return b.wrap(conf.Run.Stage1, source, tasks), nil
}

// stage2Pipeline builds the query pipeline, or nil when stage 2 has
// nothing left to do. Scoring is excluded for shard runs; the reduce
// step scores the merged results instead.
func (b *builder) stage2Pipeline(shard *Shard, includeScore bool) (pipeline.Pipeline, error) {
	conf := b.conf
	if conf.Topics == nil && conf.Queries == nil && conf.Retrieve == nil &&
		conf.Rerank == nil && conf.Score == nil {
		return nil, nil
	}

	helper := b.ctx.Artifact
	complete := func(task string) (bool, error) {
		done, err := helper.IsTaskComplete(task)
		if err != nil {
			return false, err
		}
		if done {
			b.logger.Info("reusing completed artifact", zap.String("task", task))
			b.ctx.NoteReused()
		}
		return done, nil
	}

	topicsDone := false
	if conf.Topics != nil && !conf.Topics.Output.Off {
		done, err := complete(run.TaskTopics)
		if err != nil {
			return nil, err
		}
		topicsDone = done
	}
	queriesDone := false
	if conf.Queries != nil && !conf.Queries.Output.Off {
		done, err := complete(run.TaskQueries)
		if err != nil {
			return nil, err
		}
		queriesDone = done
	}
	retrieveDone := false
	if conf.Retrieve != nil {
		done, err := complete(run.TaskRetrieve)
		if err != nil {
			return nil, err
		}
		retrieveDone = done
	}
	rerankDone := false
	if conf.Rerank != nil {
		done, err := complete(run.TaskRerank)
		if err != nil {
			return nil, err
		}
		rerankDone = done
	}

	// Role order within the stage. The source comes from the first
	// incomplete task's upstream.
	const (
		fromTopics = iota
		fromQueries
		fromRetrieve
		fromRerank
		fromScore
	)

	var source pipeline.Iterator
	var err error
	var startAt int

	switch {
	case conf.Rerank != nil && rerankDone:
		if conf.Score == nil || !includeScore {
			b.logger.Info("stage 2 artifacts already complete")
			return nil, nil
		}
		source, err = results.NewReader(filepath.Join(helper.Dir(run.TaskRerank), results.FileName))
		startAt = fromScore
	case conf.Retrieve != nil && retrieveDone:
		if conf.Rerank == nil && (conf.Score == nil || !includeScore) {
			b.logger.Info("stage 2 artifacts already complete")
			return nil, nil
		}
		source, err = results.NewReader(filepath.Join(helper.Dir(run.TaskRetrieve), results.FileName))
		startAt = fromRerank
	case queriesDone:
		source, err = topics.NewQueryReader(filepath.Join(helper.Dir(run.TaskQueries), topics.FileName))
		startAt = fromRetrieve
	case topicsDone:
		source, err = topics.NewQueryReader(filepath.Join(helper.Dir(run.TaskTopics), topics.FileName))
		startAt = fromQueries
	case conf.Topics != nil:
		source, err = topics.NewTopicReader(conf.Topics.Input)
		startAt = fromTopics
	case conf.Queries != nil && conf.Queries.Input != nil:
		source, err = topics.NewQueryReader(conf.Queries.Input.Path)
		startAt = fromQueries
	default:
		return nil, config.NewConfigError("stage 2 has no input source", "", nil)
	}
	if err != nil {
		return nil, err
	}

	var tasks []pipeline.Task
	if startAt <= fromTopics && conf.Topics != nil {
		tasks = append(tasks, topics.NewExtractor(conf.Topics))
		if !conf.Topics.Output.Off {
			tasks = append(tasks, topics.NewWriter("topics", helper.NewArtifact(run.TaskTopics)))
		}
	}
	if startAt <= fromQueries && conf.Queries != nil {
		processor, err := topics.NewProcessor(conf.Queries.Process)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, processor)
		if !conf.Queries.Output.Off {
			tasks = append(tasks, topics.NewWriter("queries", helper.NewArtifact(run.TaskQueries)))
		}
	}
	if startAt <= fromRetrieve && conf.Retrieve != nil {
		indexDir := conf.Retrieve.Input.Index.Path
		if !filepath.IsAbs(indexDir) {
			indexDir = filepath.Join(b.ctx.Path, indexDir)
		}
		task, err := retrieve.NewTask(conf.Retrieve, indexDir)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
		if !conf.Retrieve.Output.Off {
			tasks = append(tasks, results.NewJSONWriter("retrieve", helper.NewArtifact(run.TaskRetrieve)))
		}
	}
	if startAt <= fromRerank && conf.Rerank != nil {
		dbPath := ""
		if conf.Rerank.Input.Database.Path != "" {
			dbPath = conf.Rerank.Input.Database.Path
			if !filepath.IsAbs(dbPath) {
				dbPath = filepath.Join(b.ctx.Path, dbPath)
			}
			dbPath = filepath.Join(dbPath, database.DBFileName)
		}
		task, err := rerank.NewTask(conf.Rerank, dbPath)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
		if !conf.Rerank.Output.Off {
			tasks = append(tasks, results.NewJSONWriter("rerank", helper.NewArtifact(run.TaskRerank)))
		}
	}
	if conf.Retrieve != nil || conf.Rerank != nil {
		tasks = append(tasks, results.NewTrecWriter(b.resultsPath()))
	}
	if includeScore && conf.Score != nil {
		scorer, err := score.NewScorer(conf.Score, b.ctx.Path, b.warn)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, scorer)
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	if shard != nil {
		source = NewShardIterator(source, *shard)
	}
	return b.wrap(conf.Run.Stage2, source, tasks), nil
}

func (b *builder) resultsPath() string {
	return filepath.Join(b.ctx.Path, b.conf.Run.Results)
}

// stagePipeline dispatches on the stage number.
func (b *builder) stagePipeline(stage int, shard *Shard, includeScore bool) (pipeline.Pipeline, error) {
	switch stage {
	case 1:
		return b.stage1Pipeline(shard)
	case 2:
		return b.stage2Pipeline(shard, includeScore)
	}
	return nil, fmt.Errorf("unknown stage %d", stage)
}
