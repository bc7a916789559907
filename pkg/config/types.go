// Package config resolves experiment configuration files: parsing,
// imports, interpolation, command line overrides, schema validation and
// defaulting. The resolved RunnerConfig is immutable once a job has been
// built from it.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Pipeline modes.
const (
	ModeStreaming = "streaming"
	ModeBatch     = "batch"
)

// Parallel backend names.
const (
	ParallelMP     = "mp"
	ParallelQsub   = "qsub"
	ParallelSbatch = "sbatch"
)

// RunnerConfig is the fully resolved configuration for a run. Sections
// other than run are optional; a nil section means the corresponding
// task is not part of the run.
type RunnerConfig struct {
	Run       RunConfig        `yaml:"run"`
	Documents *DocumentsConfig `yaml:"documents,omitempty"`
	Database  *DatabaseConfig  `yaml:"database,omitempty"`
	Index     *IndexConfig     `yaml:"index,omitempty"`
	Topics    *TopicsConfig    `yaml:"topics,omitempty"`
	Queries   *QueriesConfig   `yaml:"queries,omitempty"`
	Retrieve  *RetrieveConfig  `yaml:"retrieve,omitempty"`
	Rerank    *RerankConfig    `yaml:"rerank,omitempty"`
	Score     *ScoreConfig     `yaml:"score,omitempty"`
}

// RunConfig describes the run itself: naming, output location, stage
// behavior and the optional parallel backend.
type RunConfig struct {
	Name     string          `yaml:"name"`
	Path     string          `yaml:"path,omitempty"`
	Results  string          `yaml:"results,omitempty"`
	Parallel *ParallelConfig `yaml:"parallel,omitempty"`
	Stage1   *StageConfig    `yaml:"stage1,omitempty"`
	Stage2   *StageConfig    `yaml:"stage2,omitempty"`
	Tracing  *TracingConfig  `yaml:"tracing,omitempty"`
}

// ParallelConfig selects and parameterizes the map-reduce backend.
type ParallelConfig struct {
	Name      string `yaml:"name"`
	Queue     string `yaml:"queue,omitempty"`
	Resources string `yaml:"resources,omitempty"`
	Email     string `yaml:"email,omitempty"`
	Code      string `yaml:"code,omitempty"`
}

// TracingConfig enables OTLP trace export when present.
type TracingConfig struct {
	Service     string  `yaml:"service,omitempty"`
	Endpoint    string  `yaml:"endpoint,omitempty"`
	SampleRatio float64 `yaml:"sample_ratio,omitempty"`
}

// StageConfig controls one pipeline stage. In configuration files a
// stage accepts either a mapping of settings or the literal false to
// disable the stage entirely.
type StageConfig struct {
	Enabled          bool
	Mode             string
	BatchSize        int
	NumJobs          int
	ProgressInterval int
}

type stageConfigFields struct {
	Mode             string `yaml:"mode,omitempty"`
	BatchSize        int    `yaml:"batch_size,omitempty"`
	NumJobs          int    `yaml:"num_jobs,omitempty"`
	ProgressInterval int    `yaml:"progress_interval,omitempty"`
}

// UnmarshalYAML accepts either a bool or a mapping.
func (s *StageConfig) UnmarshalYAML(node *yaml.Node) error {
	var enabled bool
	if err := node.Decode(&enabled); err == nil {
		s.Enabled = enabled
		return nil
	}
	var fields stageConfigFields
	if err := node.Decode(&fields); err != nil {
		return err
	}
	s.Enabled = true
	s.Mode = fields.Mode
	s.BatchSize = fields.BatchSize
	s.NumJobs = fields.NumJobs
	s.ProgressInterval = fields.ProgressInterval
	return nil
}

// MarshalYAML renders a disabled stage as false.
func (s StageConfig) MarshalYAML() (interface{}, error) {
	if !s.Enabled {
		return false, nil
	}
	return stageConfigFields{
		Mode:             s.Mode,
		BatchSize:        s.BatchSize,
		NumJobs:          s.NumJobs,
		ProgressInterval: s.ProgressInterval,
	}, nil
}

// PathSpec is an output location that can also be switched off with the
// literal false in configuration files.
type PathSpec struct {
	Path string
	Off  bool
}

// UnmarshalYAML accepts a string path or a bool.
func (p *PathSpec) UnmarshalYAML(node *yaml.Node) error {
	var enabled bool
	if err := node.Decode(&enabled); err == nil {
		p.Off = !enabled
		return nil
	}
	var path string
	if err := node.Decode(&path); err != nil {
		return fmt.Errorf("output must be a path or false: %w", err)
	}
	p.Path = path
	return nil
}

// MarshalYAML renders a disabled output as false.
func (p PathSpec) MarshalYAML() (interface{}, error) {
	if p.Off {
		return false, nil
	}
	return p.Path, nil
}

// IsZero reports whether the value carries no information, so omitempty
// drops it from marshaled configuration.
func (p PathSpec) IsZero() bool {
	return !p.Off && p.Path == ""
}

// DocumentsConfig configures document reading, text processing and the
// optional processed-documents artifact.
type DocumentsConfig struct {
	Input   DocumentsInput    `yaml:"input"`
	Process TextProcessConfig `yaml:"process,omitempty"`
	Output  PathSpec          `yaml:"output,omitempty"`
}

// DocumentsInput locates and describes the document collection.
type DocumentsInput struct {
	Format   string `yaml:"format"`
	Lang     string `yaml:"lang"`
	Encoding string `yaml:"encoding,omitempty"`
	Path     string `yaml:"path"`
}

// TextProcessConfig configures text normalization for documents and
// queries.
type TextProcessConfig struct {
	Normalize NormalizeConfig `yaml:"normalize,omitempty"`
	Stem      string          `yaml:"stem,omitempty"`
	MaxLen    int             `yaml:"max_len,omitempty"`
}

// NormalizeConfig controls unicode normalization.
type NormalizeConfig struct {
	Lowercase bool `yaml:"lowercase,omitempty"`
}

// DatabaseConfig configures the document store.
type DatabaseConfig struct {
	Name   string   `yaml:"name,omitempty"`
	Output PathSpec `yaml:"output,omitempty"`
}

// IndexConfig configures the index builder.
type IndexConfig struct {
	Name   string   `yaml:"name"`
	Output PathSpec `yaml:"output,omitempty"`
}

// TopicsConfig configures topic reading and topic to query extraction.
type TopicsConfig struct {
	Input  TopicsInput `yaml:"input"`
	Fields string      `yaml:"fields,omitempty"`
	Output PathSpec    `yaml:"output,omitempty"`
}

// TopicsInput locates and describes the topic file.
type TopicsInput struct {
	Format   string `yaml:"format"`
	Lang     string `yaml:"lang"`
	Encoding string `yaml:"encoding,omitempty"`
	Path     string `yaml:"path"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// QueriesConfig configures query processing. Input is only set when the
// run starts from a pre-built query file instead of topics.
type QueriesConfig struct {
	Input   *QueriesInput     `yaml:"input,omitempty"`
	Process TextProcessConfig `yaml:"process,omitempty"`
	Output  PathSpec          `yaml:"output,omitempty"`
}

// QueriesInput locates a pre-built query file.
type QueriesInput struct {
	Format   string `yaml:"format,omitempty"`
	Encoding string `yaml:"encoding,omitempty"`
	Path     string `yaml:"path"`
}

// RetrieveConfig configures the retriever.
type RetrieveConfig struct {
	Name   string        `yaml:"name"`
	Number int           `yaml:"number,omitempty"`
	Input  RetrieveInput `yaml:"input,omitempty"`
	Output PathSpec      `yaml:"output,omitempty"`
}

// RetrieveInput points the retriever at an index.
type RetrieveInput struct {
	Index PathRef `yaml:"index,omitempty"`
}

// RerankConfig configures the reranker. Keys beyond the declared fields
// are collected into Extra and forwarded to shell rerankers as
// --key value arguments.
type RerankConfig struct {
	Name   string                 `yaml:"name"`
	Script string                 `yaml:"script,omitempty"`
	Input  RerankInput            `yaml:"input,omitempty"`
	Output PathSpec               `yaml:"output,omitempty"`
	Extra  map[string]interface{} `yaml:",inline"`
}

// RerankInput points the reranker at the document store.
type RerankInput struct {
	Database PathRef `yaml:"database,omitempty"`
}

// ScoreConfig configures scoring against relevance judgments.
type ScoreConfig struct {
	Input   ScoreInput `yaml:"input"`
	Metrics []string   `yaml:"metrics,omitempty"`
}

// ScoreInput locates the relevance judgments.
type ScoreInput struct {
	Format string `yaml:"format,omitempty"`
	Path   string `yaml:"path"`
}

// PathRef is a nested path holder used for cross-section references.
type PathRef struct {
	Path string `yaml:"path,omitempty"`
}

// Stage reports the configuration for the given stage number (1 or 2).
func (c *RunnerConfig) Stage(n int) *StageConfig {
	if n == 1 {
		return c.Run.Stage1
	}
	return c.Run.Stage2
}

// Copy returns a deep copy of the configuration. Shard workers run on
// copies so path rewrites never touch the parent configuration.
func (c *RunnerConfig) Copy() (*RunnerConfig, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("copying configuration: %w", err)
	}
	out := &RunnerConfig{}
	if err := yaml.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("copying configuration: %w", err)
	}
	return out, nil
}
