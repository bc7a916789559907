package database

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/wehubfusion/Severn/pkg/docs"
	"github.com/wehubfusion/Severn/pkg/pipeline"
	"github.com/wehubfusion/Severn/pkg/run"
)

// Writer stores documents in the database artifact. The unprocessed
// text is stored so downstream rerankers see original documents.
type Writer struct {
	artifact *run.Artifact
	store    *Store
	count    int
}

// NewWriter creates a database writer bound to its artifact directory.
func NewWriter(artifact *run.Artifact) *Writer {
	return &Writer{artifact: artifact}
}

// Name identifies the task in logs and timing.
func (w *Writer) Name() string { return "database" }

// Begin creates the artifact directory and opens the store.
func (w *Writer) Begin() error {
	if err := w.artifact.Begin(); err != nil {
		return err
	}
	store, err := Open(filepath.Join(w.artifact.Dir, DBFileName))
	if err != nil {
		return err
	}
	w.store = store
	return nil
}

// Process stores one document keyed by id and passes it through.
func (w *Writer) Process(item interface{}) (interface{}, error) {
	doc, ok := item.(*docs.Doc)
	if !ok {
		return nil, fmt.Errorf("database writer received %T", item)
	}
	stored := *doc
	if doc.OriginalText != "" {
		stored.Text = doc.OriginalText
	}
	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("encoding document %s: %w", doc.ID, err)
	}
	if err := w.store.Put(doc.ID, string(data)); err != nil {
		return nil, err
	}
	w.count++
	return doc, nil
}

// End closes the store and finalizes the artifact.
func (w *Writer) End() error {
	if w.store == nil {
		return nil
	}
	if err := w.store.Close(); err != nil {
		return fmt.Errorf("closing document store: %w", err)
	}
	w.store = nil
	return w.artifact.End()
}

// Reduce copies every row from the shard stores into the merged store.
// A key present in more than one shard fails the merge with
// DuplicateKeyError.
func (w *Writer) Reduce(shardDirs []string) error {
	paths := make([]string, len(shardDirs))
	for i, dir := range shardDirs {
		paths[i] = filepath.Join(dir, DBFileName)
	}
	if err := pipeline.CheckShards(paths); err != nil {
		return err
	}
	if err := w.artifact.Begin(); err != nil {
		return err
	}
	merged, err := Open(filepath.Join(w.artifact.Dir, DBFileName))
	if err != nil {
		return err
	}
	defer merged.Close()

	for _, path := range paths {
		shard, err := Open(path)
		if err != nil {
			return err
		}
		err = shard.Each(func(key, value string) error {
			return merged.Insert(key, value)
		})
		shard.Close()
		if err != nil {
			return err
		}
	}
	if err := merged.Close(); err != nil {
		return fmt.Errorf("closing merged store: %w", err)
	}
	return w.artifact.End()
}
