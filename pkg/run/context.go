// Package run manages the run directory: creation and resume, task
// artifacts with provenance configs, completion markers and the
// progress tracker.
package run

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wehubfusion/Severn/pkg/config"
)

// CompleteMarker is the file name that marks a run or artifact
// directory as finished.
const CompleteMarker = ".complete"

// ConfigFileName is the provenance configuration written beside each
// artifact and at the run root.
const ConfigFileName = "config.yml"

// RunContext is the per-run state shared by jobs and tasks.
type RunContext struct {
	Conf     *config.RunnerConfig
	Path     string
	Tracker  *Tracker
	Logger   *zap.Logger
	Artifact *ArtifactHelper

	reused bool
}

// NoteReused records that a completed artifact from an earlier run was
// consumed, so the full provenance is written alongside the run config.
func (c *RunContext) NoteReused() {
	c.reused = true
}

// CreateContext prepares the run directory. A directory already marked
// complete fails fast with RunAlreadyCompleteError before any side
// effect; an existing but incomplete directory is resumed.
func CreateContext(conf *config.RunnerConfig, logger *zap.Logger) (*RunContext, error) {
	path, err := filepath.Abs(conf.Run.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving run path: %w", err)
	}
	if IsComplete(path) {
		return nil, &RunAlreadyCompleteError{Path: path}
	}
	if _, err := os.Stat(path); err == nil {
		logger.Info("resuming existing run directory", zap.String("path", path))
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	return &RunContext{
		Conf:     conf,
		Path:     path,
		Tracker:  NewTracker(),
		Logger:   logger,
		Artifact: NewArtifactHelper(conf, path),
	}, nil
}

// IsComplete reports whether a directory carries the completion marker.
func IsComplete(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, CompleteMarker))
	return err == nil
}

// MarkComplete drops the completion marker in a directory.
func MarkComplete(dir string) error {
	f, err := os.Create(filepath.Join(dir, CompleteMarker))
	if err != nil {
		return fmt.Errorf("writing completion marker: %w", err)
	}
	return f.Close()
}

// Finish finalizes the run: the resolved configuration and the timing
// report are written, accumulated warnings flushed, and the run root
// marked complete.
func (c *RunContext) Finish() error {
	if err := config.WriteYAML(filepath.Join(c.Path, ConfigFileName), c.Conf); err != nil {
		return err
	}
	if c.reused {
		// Artifact reuse requires an exact config match, so the combined
		// provenance is the resolved config itself under a second name.
		if err := config.WriteYAML(filepath.Join(c.Path, "config_full.yml"), c.Conf); err != nil {
			return err
		}
	}
	if err := c.Tracker.WriteTiming(filepath.Join(c.Path, "timing.json")); err != nil {
		return err
	}
	if err := c.Tracker.WriteWarnings(filepath.Join(c.Path, "warnings.txt")); err != nil {
		return err
	}
	return MarkComplete(c.Path)
}

// Abort flushes what the tracker has so a failed run still leaves its
// timing and warnings behind. Errors are ignored; the run is already
// failing.
func (c *RunContext) Abort() {
	_ = c.Tracker.WriteTiming(filepath.Join(c.Path, "timing.json"))
	_ = c.Tracker.WriteWarnings(filepath.Join(c.Path, "warnings.txt"))
}
