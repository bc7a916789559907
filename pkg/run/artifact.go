package run

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"gopkg.in/yaml.v3"

	"github.com/wehubfusion/Severn/internal/tracing"
	"github.com/wehubfusion/Severn/pkg/config"
)

// Task names used for artifact bookkeeping, in pipeline order.
const (
	TaskDocuments = "documents"
	TaskDatabase  = "database"
	TaskIndex     = "index"
	TaskTopics    = "topics"
	TaskQueries   = "queries"
	TaskRetrieve  = "retrieve"
	TaskRerank    = "rerank"
)

var taskOrder = []string{
	TaskDocuments, TaskDatabase, TaskIndex,
	TaskTopics, TaskQueries, TaskRetrieve, TaskRerank,
}

// ArtifactHelper computes artifact directories and the provenance
// configuration recorded beside each artifact.
type ArtifactHelper struct {
	conf    *config.RunnerConfig
	runPath string
}

// NewArtifactHelper creates a helper rooted at the run directory.
func NewArtifactHelper(conf *config.RunnerConfig, runPath string) *ArtifactHelper {
	return &ArtifactHelper{conf: conf, runPath: runPath}
}

// Dir returns the absolute artifact directory for a task, or "" when
// the task has no output configured.
func (h *ArtifactHelper) Dir(task string) string {
	out := h.outputSpec(task)
	if out == nil || out.Off || out.Path == "" {
		return ""
	}
	if filepath.IsAbs(out.Path) {
		return out.Path
	}
	return filepath.Join(h.runPath, out.Path)
}

func (h *ArtifactHelper) outputSpec(task string) *config.PathSpec {
	switch task {
	case TaskDocuments:
		if h.conf.Documents != nil {
			return &h.conf.Documents.Output
		}
	case TaskDatabase:
		if h.conf.Database != nil {
			return &h.conf.Database.Output
		}
	case TaskIndex:
		if h.conf.Index != nil {
			return &h.conf.Index.Output
		}
	case TaskTopics:
		if h.conf.Topics != nil {
			return &h.conf.Topics.Output
		}
	case TaskQueries:
		if h.conf.Queries != nil {
			return &h.conf.Queries.Output
		}
	case TaskRetrieve:
		if h.conf.Retrieve != nil {
			return &h.conf.Retrieve.Output
		}
	case TaskRerank:
		if h.conf.Rerank != nil {
			return &h.conf.Rerank.Output
		}
	}
	return nil
}

// Subset returns the configuration that produced a task's artifact:
// the full configuration with every downstream section removed. The
// score section is never part of any artifact's provenance.
func (h *ArtifactHelper) Subset(task string) *config.RunnerConfig {
	sub := *h.conf
	sub.Score = nil
	keep := true
	for _, name := range taskOrder {
		if !keep {
			switch name {
			case TaskDocuments:
				sub.Documents = nil
			case TaskDatabase:
				sub.Database = nil
			case TaskIndex:
				sub.Index = nil
			case TaskTopics:
				sub.Topics = nil
			case TaskQueries:
				sub.Queries = nil
			case TaskRetrieve:
				sub.Retrieve = nil
			case TaskRerank:
				sub.Rerank = nil
			}
		}
		if name == task {
			keep = false
		}
	}
	return &sub
}

// WriteConfig records the provenance configuration beside an artifact.
func (h *ArtifactHelper) WriteConfig(task, dir string) error {
	return config.WriteYAML(filepath.Join(dir, ConfigFileName), h.Subset(task))
}

// IsTaskComplete reports whether a task's artifact can be reused: the
// directory carries the completion marker and its recorded
// configuration matches the current one. A complete artifact with a
// mismatched configuration is a StaleArtifactError.
func (h *ArtifactHelper) IsTaskComplete(task string) (bool, error) {
	dir := h.Dir(task)
	if dir == "" || !IsComplete(dir) {
		return false, nil
	}
	recorded, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	if err != nil {
		return false, &StaleArtifactError{Task: task, Dir: dir}
	}
	current, err := yaml.Marshal(h.Subset(task))
	if err != nil {
		return false, fmt.Errorf("encoding artifact configuration: %w", err)
	}
	if !bytes.Equal(bytes.TrimSpace(recorded), bytes.TrimSpace(current)) {
		return false, &StaleArtifactError{Task: task, Dir: dir}
	}
	return true, nil
}

// Artifact handles the artifact directory lifecycle for a writer task:
// directory creation in Begin, provenance config and completion marker
// in End.
type Artifact struct {
	Task   string
	Dir    string
	helper *ArtifactHelper
}

// NewArtifact binds a task name to its artifact directory.
func (h *ArtifactHelper) NewArtifact(task string) *Artifact {
	return &Artifact{Task: task, Dir: h.Dir(task), helper: h}
}

// Begin creates the artifact directory.
func (a *Artifact) Begin() error {
	if a.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	return nil
}

// End writes the provenance configuration and marks the artifact
// complete.
func (a *Artifact) End() error {
	if a.Dir == "" {
		return nil
	}
	_, span := otel.Tracer(tracing.TracerName).Start(context.Background(), "finalize "+a.Task)
	defer span.End()
	if err := a.helper.WriteConfig(a.Task, a.Dir); err != nil {
		return err
	}
	return MarkComplete(a.Dir)
}
