package pipeline

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// Pipeline drives items from a source through a chain of tasks.
type Pipeline interface {
	Run() error
	Count() int
	Name() string
}

// StreamingPipeline processes one item at a time: each item flows
// through the full task chain before the next is read.
type StreamingPipeline struct {
	Source           Iterator
	Tasks            []Task
	ProgressInterval int
	Logger           *zap.Logger
	Warn             func(msg string)

	count int
}

// Name returns the task chain for logs.
func (p *StreamingPipeline) Name() string {
	return chainName(p.Tasks)
}

// Count returns the number of items read from the source.
func (p *StreamingPipeline) Count() int {
	return p.count
}

// Run processes the source to exhaustion. A ProcessingError drops the
// item and continues; any other error aborts the run after the tasks
// already begun have been given a chance to finalize.
func (p *StreamingPipeline) Run() error {
	if err := beginAll(p.Tasks); err != nil {
		return err
	}
	for {
		item, err := p.Source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			endAll(p.Tasks)
			return fmt.Errorf("reading input: %w", err)
		}
		p.count++
		if _, err := processChain(p.Tasks, item, p.warn); err != nil {
			endAll(p.Tasks)
			return err
		}
		if p.ProgressInterval > 0 && p.count%p.ProgressInterval == 0 && p.Logger != nil {
			p.Logger.Info("pipeline progress", zap.Int("items", p.count))
		}
	}
	return endAllChecked(p.Tasks)
}

func (p *StreamingPipeline) warn(msg string) {
	if p.Logger != nil {
		p.Logger.Warn(msg)
	}
	if p.Warn != nil {
		p.Warn(msg)
	}
}

// BatchPipeline reads items into fixed-size batches and runs each batch
// through the task chain. Tasks implementing BatchProcessor receive the
// whole batch; other tasks process item-wise. A batch size of zero
// means a single batch holding the entire input.
type BatchPipeline struct {
	Source           Iterator
	Tasks            []Task
	BatchSize        int
	ProgressInterval int
	Logger           *zap.Logger
	Warn             func(msg string)

	count int
}

// Name returns the task chain for logs.
func (p *BatchPipeline) Name() string {
	return chainName(p.Tasks)
}

// Count returns the number of items read from the source.
func (p *BatchPipeline) Count() int {
	return p.count
}

// Run processes the source to exhaustion. Tail batches shorter than
// BatchSize flow through the same path as full batches.
func (p *BatchPipeline) Run() error {
	if err := beginAll(p.Tasks); err != nil {
		return err
	}
	for {
		batch, err := p.readBatch()
		if err != nil {
			endAll(p.Tasks)
			return fmt.Errorf("reading input: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		if err := p.processBatch(batch); err != nil {
			endAll(p.Tasks)
			return err
		}
		if p.ProgressInterval > 0 && p.Logger != nil {
			p.Logger.Info("pipeline progress", zap.Int("items", p.count))
		}
	}
	return endAllChecked(p.Tasks)
}

func (p *BatchPipeline) readBatch() ([]interface{}, error) {
	var batch []interface{}
	for p.BatchSize <= 0 || len(batch) < p.BatchSize {
		item, err := p.Source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		p.count++
		batch = append(batch, item)
	}
	return batch, nil
}

func (p *BatchPipeline) processBatch(batch []interface{}) error {
	items := batch
	for _, task := range p.Tasks {
		if bp, ok := task.(BatchProcessor); ok {
			out, err := bp.ProcessBatch(items)
			if err != nil {
				return fmt.Errorf("task %s: %w", task.Name(), err)
			}
			items = out
			continue
		}
		var kept []interface{}
		for _, item := range items {
			out, err := task.Process(item)
			if err != nil {
				if IsProcessingError(err) {
					p.warnItem(err)
					continue
				}
				return fmt.Errorf("task %s: %w", task.Name(), err)
			}
			kept = append(kept, out)
		}
		items = kept
	}
	return nil
}

func (p *BatchPipeline) warnItem(err error) {
	if p.Logger != nil {
		p.Logger.Warn(err.Error())
	}
	if p.Warn != nil {
		p.Warn(err.Error())
	}
}

// processChain runs one item through a task chain. A ProcessingError
// from any task drops the item.
func processChain(tasks []Task, item interface{}, warn func(string)) (interface{}, error) {
	for _, task := range tasks {
		out, err := task.Process(item)
		if err != nil {
			if IsProcessingError(err) {
				warn(err.Error())
				return nil, nil
			}
			return nil, fmt.Errorf("task %s: %w", task.Name(), err)
		}
		item = out
	}
	return item, nil
}

func beginAll(tasks []Task) error {
	for i, task := range tasks {
		if err := task.Begin(); err != nil {
			endAll(tasks[:i])
			return fmt.Errorf("task %s: %w", task.Name(), err)
		}
	}
	return nil
}

// endAll finalizes tasks best-effort on the failure path.
func endAll(tasks []Task) {
	for _, task := range tasks {
		_ = task.End()
	}
}

func endAllChecked(tasks []Task) error {
	for _, task := range tasks {
		if err := task.End(); err != nil {
			return fmt.Errorf("task %s: %w", task.Name(), err)
		}
	}
	return nil
}

func chainName(tasks []Task) string {
	names := make([]string, len(tasks))
	for i, task := range tasks {
		names[i] = task.Name()
	}
	return strings.Join(names, " | ")
}
