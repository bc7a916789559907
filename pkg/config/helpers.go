package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Default output directory names, relative to the run directory.
const (
	DefaultDocsDir             = "docs"
	DefaultDatabaseDir         = "database"
	DefaultIndexDir            = "index"
	DefaultRawQueriesDir       = "raw_queries"
	DefaultProcessedQueriesDir = "processed_queries"
	DefaultRetrieveDir         = "retrieve"
	DefaultRerankDir           = "rerank"
)

// Default progress intervals per stage: documents are plentiful, topics
// are not.
const (
	DefaultStage1Progress = 10000
	DefaultStage2Progress = 10
)

var runNameStrip = regexp.MustCompile(`["',]`)

// applyDefaults fills in everything the configuration file may omit:
// the run path, stage settings, per-task output directories, the
// cross-section input references and standardized language codes.
func applyDefaults(c *RunnerConfig) error {
	if c.Run.Path == "" {
		name := strings.ReplaceAll(c.Run.Name, " ", "-")
		name = runNameStrip.ReplaceAllString(name, "")
		c.Run.Path = filepath.Join("runs", name)
	}
	if c.Run.Results == "" {
		c.Run.Results = "results.txt"
	}

	c.Run.Stage1 = defaultStage(c.Run.Stage1, DefaultStage1Progress)
	c.Run.Stage2 = defaultStage(c.Run.Stage2, DefaultStage2Progress)

	if c.Documents != nil && c.Documents.Output.Path == "" && !c.Documents.Output.Off {
		c.Documents.Output.Path = DefaultDocsDir
	}
	if c.Database != nil {
		if c.Database.Name == "" {
			c.Database.Name = "sqlite"
		}
		if c.Database.Output.Path == "" && !c.Database.Output.Off {
			c.Database.Output.Path = DefaultDatabaseDir
		}
	}
	if c.Index != nil && c.Index.Output.Path == "" && !c.Index.Output.Off {
		c.Index.Output.Path = DefaultIndexDir
	}
	if c.Topics != nil {
		if c.Topics.Fields == "" {
			c.Topics.Fields = "title"
		}
		if c.Topics.Output.Path == "" && !c.Topics.Output.Off {
			c.Topics.Output.Path = DefaultRawQueriesDir
		}
	}
	if c.Queries != nil && c.Queries.Output.Path == "" && !c.Queries.Output.Off {
		c.Queries.Output.Path = DefaultProcessedQueriesDir
	}
	if c.Retrieve != nil {
		if c.Retrieve.Number == 0 {
			c.Retrieve.Number = 1000
		}
		if c.Retrieve.Output.Path == "" && !c.Retrieve.Output.Off {
			c.Retrieve.Output.Path = DefaultRetrieveDir
		}
		if c.Retrieve.Input.Index.Path == "" && c.Index != nil {
			c.Retrieve.Input.Index.Path = c.Index.Output.Path
		}
	}
	if c.Rerank != nil {
		if c.Rerank.Output.Path == "" && !c.Rerank.Output.Off {
			c.Rerank.Output.Path = DefaultRerankDir
		}
		if c.Rerank.Input.Database.Path == "" && c.Database != nil {
			c.Rerank.Input.Database.Path = c.Database.Output.Path
		}
	}
	if c.Score != nil {
		if c.Score.Input.Format == "" {
			c.Score.Input.Format = "trec"
		}
		if len(c.Score.Metrics) == 0 {
			c.Score.Metrics = []string{"map"}
		}
	}

	if c.Documents != nil {
		lang, err := StandardizeLang(c.Documents.Input.Lang)
		if err != nil {
			return NewConfigError("invalid document language", "documents.input.lang", err)
		}
		c.Documents.Input.Lang = lang
	}
	if c.Topics != nil {
		lang, err := StandardizeLang(c.Topics.Input.Lang)
		if err != nil {
			return NewConfigError("invalid topic language", "topics.input.lang", err)
		}
		c.Topics.Input.Lang = lang
	}
	return nil
}

func defaultStage(s *StageConfig, progressInterval int) *StageConfig {
	if s == nil {
		s = &StageConfig{Enabled: true}
	}
	if !s.Enabled {
		return s
	}
	if s.Mode == "" {
		s.Mode = ModeStreaming
	}
	if s.NumJobs == 0 {
		s.NumJobs = 1
	}
	if s.ProgressInterval == 0 {
		s.ProgressInterval = progressInterval
	}
	return s
}

var metricPattern = regexp.MustCompile(`^(map|ndcg|ndcg@\d+|p@\d+|recall@\d+)$`)

// validateSemantics checks settings that the section schemas cannot
// express: stage modes, batch sizes and metric names.
func validateSemantics(c *RunnerConfig) error {
	for i, stage := range []*StageConfig{c.Run.Stage1, c.Run.Stage2} {
		if stage == nil || !stage.Enabled {
			continue
		}
		field := fmt.Sprintf("run.stage%d", i+1)
		if stage.Mode != ModeStreaming && stage.Mode != ModeBatch {
			return NewConfigError(
				fmt.Sprintf("mode must be '%s' or '%s', got '%s'", ModeStreaming, ModeBatch, stage.Mode),
				field+".mode", nil)
		}
		if stage.BatchSize < 0 {
			return NewConfigError("batch_size cannot be negative", field+".batch_size", nil)
		}
		if stage.NumJobs < 1 {
			return NewConfigError("num_jobs must be at least 1", field+".num_jobs", nil)
		}
	}
	if c.Score != nil {
		for _, metric := range c.Score.Metrics {
			if !metricPattern.MatchString(metric) {
				return NewConfigError(
					fmt.Sprintf("unknown metric '%s'", metric), "score.metrics", nil)
			}
		}
	}
	return nil
}
