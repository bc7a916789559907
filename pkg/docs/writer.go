package docs

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wehubfusion/Severn/pkg/pipeline"
	"github.com/wehubfusion/Severn/pkg/run"
)

// FileName is the processed documents artifact file.
const FileName = "documents.jsonl"

// Writer writes processed documents to the documents artifact.
type Writer struct {
	artifact *run.Artifact
	file     *os.File
	buf      *bufio.Writer
}

// NewWriter creates a document writer bound to its artifact directory.
func NewWriter(artifact *run.Artifact) *Writer {
	return &Writer{artifact: artifact}
}

// Name identifies the task in logs and timing.
func (w *Writer) Name() string { return "doc_writer" }

// Begin creates the artifact directory and output file.
func (w *Writer) Begin() error {
	if err := w.artifact.Begin(); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(w.artifact.Dir, FileName))
	if err != nil {
		return fmt.Errorf("creating documents output: %w", err)
	}
	w.file = f
	w.buf = bufio.NewWriter(f)
	return nil
}

// Process writes one document as a JSON line and passes it through.
func (w *Writer) Process(item interface{}) (interface{}, error) {
	doc, ok := item.(*Doc)
	if !ok {
		return nil, fmt.Errorf("document writer received %T", item)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document %s: %w", doc.ID, err)
	}
	if _, err := w.buf.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("writing document %s: %w", doc.ID, err)
	}
	return doc, nil
}

// End flushes the output and finalizes the artifact.
func (w *Writer) End() error {
	if w.file == nil {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flushing documents output: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing documents output: %w", err)
	}
	w.file = nil
	return w.artifact.End()
}

// Reduce merges shard document files by round-robin interleave,
// restoring input order, then finalizes the merged artifact.
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
