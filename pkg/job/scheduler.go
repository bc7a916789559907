package job

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/wehubfusion/Severn/pkg/config"
	"github.com/wehubfusion/Severn/pkg/run"
)

// Scheduler submits jobs to a grid engine and returns the job id used
// to chain dependencies.
type Scheduler interface {
	Name() string
	SubmitArray(script string, numJobs int, holdID string) (string, error)
	Submit(script string, holdID string) (string, error)
	MapTemplate() *template.Template
	ReduceTemplate() *template.Template
}

// NewScheduler returns the scheduler for a parallel backend name.
func NewScheduler(name string) (Scheduler, error) {
	switch name {
	case config.ParallelQsub:
		return qsubScheduler{}, nil
	case config.ParallelSbatch:
		return sbatchScheduler{}, nil
	}
	return nil, config.NewConfigError(fmt.Sprintf("unknown scheduler %q", name), "run.parallel.name", nil)
}

type qsubScheduler struct{}

func (qsubScheduler) Name() string { return config.ParallelQsub }
func (qsubScheduler) MapTemplate() *template.Template { return qsubMapTemplate }
func (qsubScheduler) ReduceTemplate() *template.Template { return qsubReduceTemplate }

func (qsubScheduler) SubmitArray(script string, numJobs int, holdID string) (string, error) {
	args := []string{"-terse", "-t", fmt.Sprintf("1-%d", numJobs)}
	if holdID != "" {
		args = append(args, "-hold_jid", holdID)
	}
	return runQsub(append(args, script))
}

func (qsubScheduler) Submit(script string, holdID string) (string, error) {
	args := []string{"-terse"}
	if holdID != "" {
		args = append(args, "-hold_jid", holdID)
	}
	return runQsub(append(args, script))
}

// runQsub submits and parses the terse job id. Array submissions print
// the id with a task range suffix after a dot; the dependency id is
// the part before it.
func runQsub(args []string) (string, error) {
	out, err := exec.Command("qsub", args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("qsub failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	id := strings.TrimSpace(string(out))
	if dot := strings.IndexByte(id, '.'); dot >= 0 {
		id = id[:dot]
	}
	if id == "" {
		return "", fmt.Errorf("qsub returned no job id")
	}
	return id, nil
}

type sbatchScheduler struct{}

func (sbatchScheduler) Name() string { return config.ParallelSbatch }
func (sbatchScheduler) MapTemplate() *template.Template { return sbatchMapTemplate }
func (sbatchScheduler) ReduceTemplate() *template.Template { return sbatchReduceTemplate }

func (sbatchScheduler) SubmitArray(script string, numJobs int, holdID string) (string, error) {
	args := []string{fmt.Sprintf("--array=1-%d", numJobs)}
	if holdID != "" {
		args = append(args, "--depend=afterok:"+holdID)
	}
	return runSbatch(append(args, script))
}

func (sbatchScheduler) Submit(script string, holdID string) (string, error) {
	var args []string
	if holdID != "" {
		args = append(args, "--depend=afterok:"+holdID)
	}
	return runSbatch(append(args, script))
}

// runSbatch submits and parses the job id from the last field of the
// confirmation line.
func runSbatch(args []string) (string, error) {
	out, err := exec.Command("sbatch", args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("sbatch failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) == 0 {
		return "", fmt.Errorf("sbatch returned no job id")
	}
	return fields[len(fields)-1], nil
}

// submitCluster writes a self-contained scheduler directory into the
// run (resolved config plus map and reduce scripts) and submits the
// dependency chain. The run finishes later when the last reduce job
// completes; this process does not wait.
func (r *Runner) submitCluster() error {
	parallel := r.conf.Run.Parallel
	scheduler, err := NewScheduler(parallel.Name)
	if err != nil {
		return err
	}

	dir := filepath.Join(r.ctx.Path, scheduler.Name())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating scheduler directory: %w", err)
	}
	logDir := filepath.Join(r.ctx.Path, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("creating logs directory: %w", err)
	}
	confPath := filepath.Join(dir, run.ConfigFileName)
	if err := config.WriteYAML(confPath, r.conf); err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating binaries: %w", err)
	}
	base := filepath.Dir(exe)

	holdID := ""
	for stage := 1; stage <= 2; stage++ {
		stageConf := r.conf.Stage(stage)
		if stageConf == nil || !stageConf.Enabled {
			continue
		}
		params := scriptParams{
			Name:      scriptName(r.conf.Run.Name),
			Base:      base,
			Code:      parallel.Code,
			Config:    confPath,
			Debug:     r.debug,
			NumJobs:   stageConf.NumJobs,
			Resources: parallel.Resources,
			Stage:     stage,
			Queue:     parallel.Queue,
			Email:     parallel.Email,
			LogDir:    logDir,
		}

		mapScript := filepath.Join(dir, fmt.Sprintf("map_stage%d.sh", stage))
		if err := writeScript(mapScript, scheduler.MapTemplate(), params); err != nil {
			return err
		}
		mapID, err := scheduler.SubmitArray(mapScript, stageConf.NumJobs, holdID)
		if err != nil {
			return err
		}
		r.logger.Info("submitted map jobs",
			zap.Int("stage", stage),
			zap.Int("jobs", stageConf.NumJobs),
			zap.String("job_id", mapID))

		reduceScript := filepath.Join(dir, fmt.Sprintf("reduce_stage%d.sh", stage))
		if err := writeScript(reduceScript, scheduler.ReduceTemplate(), params); err != nil {
			return err
		}
		reduceID, err := scheduler.Submit(reduceScript, mapID)
		if err != nil {
			return err
		}
		r.logger.Info("submitted reduce job",
			zap.Int("stage", stage),
			zap.String("job_id", reduceID))
		holdID = reduceID
	}
	return nil
}

// scriptName sanitizes the run name into a scheduler job name.
func scriptName(name string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-' || r == '_':
			return r
		case r == ' ':
			return '-'
		}
		return -1
	}, name)
	if s == "" {
		return "severn"
	}
	return s
}
