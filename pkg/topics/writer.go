package topics

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wehubfusion/Severn/pkg/pipeline"
	"github.com/wehubfusion/Severn/pkg/run"
)

// FileName is the query artifact file, used for both raw and processed
// queries.
const FileName = "queries.jsonl"

// Writer writes queries to an artifact. The same writer backs the raw
// query artifact of the topics task and the processed query artifact of
// the queries task.
type Writer struct {
	name     string
	artifact *run.Artifact
	file     *os.File
	buf      *bufio.Writer
}

// NewWriter creates a query writer bound to its artifact directory.
func NewWriter(name string, artifact *run.Artifact) *Writer {
	return &Writer{name: name, artifact: artifact}
}

// Name identifies the task in logs and timing.
func (w *Writer) Name() string { return w.name }

// Begin creates the artifact directory and output file.
func (w *Writer) Begin() error {
	if err := w.artifact.Begin(); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(w.artifact.Dir, FileName))
	if err != nil {
		return fmt.Errorf("creating query output: %w", err)
	}
	w.file = f
	w.buf = bufio.NewWriter(f)
	return nil
}

// Process writes one query as a JSON line and passes it through.
func (w *Writer) Process(item interface{}) (interface{}, error) {
	query, ok := item.(*Query)
	if !ok {
		return nil, fmt.Errorf("query writer received %T", item)
	}
	data, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encoding query %s: %w", query.ID, err)
	}
	if _, err := w.buf.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("writing query %s: %w", query.ID, err)
	}
	return query, nil
}

// End flushes the output and finalizes the artifact.
func (w *Writer) End() error {
	if w.file == nil {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flushing query output: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing query output: %w", err)
	}
	w.file = nil
	return w.artifact.End()
}

// Reduce merges shard query files by round-robin interleave and
// finalizes the merged artifact.
func (w *Writer) Reduce(shardDirs []string) error {
	paths := make([]string, len(shardDirs))
	for i, dir := range shardDirs {
		paths[i] = filepath.Join(dir, FileName)
	}
	if err := pipeline.CheckShards(paths); err != nil {
		return err
	}
	if err := w.artifact.Begin(); err != nil {
		return err
	}
	if err := pipeline.InterleaveFiles(filepath.Join(w.artifact.Dir, FileName), paths); err != nil {
		return err
	}
	return w.artifact.End()
}
