// Package index builds the document index artifact. Real search
// backends sit behind the Indexer interface; the mock indexer records
// document ids so end-to-end runs work without a search engine.
package index

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wehubfusion/Severn/pkg/config"
	"github.com/wehubfusion/Severn/pkg/docs"
	"github.com/wehubfusion/Severn/pkg/pipeline"
	"github.com/wehubfusion/Severn/pkg/run"
)

// LangFileName marks the document language of an index so retrievers
// can report it.
const LangFileName = ".lang"

// IndexFileName is the mock index file.
const IndexFileName = "index.txt"

// Indexer adds documents to an index rooted at a directory.
type Indexer interface {
	Begin(dir string) error
	Index(doc *docs.Doc) error
	End() error
	Merge(dir string, shardDirs []string) error
}

// NewTask builds the index task for the configured indexer name. The
// registry is closed; unknown names are errors.
func NewTask(conf *config.IndexConfig, artifact *run.Artifact) (*Task, error) {
	switch conf.Name {
	case "mock":
		return &Task{artifact: artifact, indexer: &mockIndexer{}}, nil
	}
	return nil, fmt.Errorf("unknown indexer '%s'", conf.Name)
}

// Task drives an Indexer as a pipeline task with an artifact.
type Task struct {
	artifact *run.Artifact
	indexer  Indexer
	lang     string
}

// Name identifies the task in logs and timing.
func (t *Task) Name() string { return "index" }

// Begin creates the artifact directory and opens the index.
func (t *Task) Begin() error {
	if err := t.artifact.Begin(); err != nil {
		return err
	}
	return t.indexer.Begin(t.artifact.Dir)
}

// Process adds one document to the index and passes it through.
func (t *Task) Process(item interface{}) (interface{}, error) {
	doc, ok := item.(*docs.Doc)
	if !ok {
		return nil, fmt.Errorf("indexer received %T", item)
	}
	if t.lang == "" {
		t.lang = doc.Lang
	}
	if err := t.indexer.Index(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// End closes the index, records the document language and finalizes
// the artifact.
func (t *Task) End() error {
	if err := t.indexer.End(); err != nil {
		return err
	}
	if err := writeLang(t.artifact.Dir, t.lang); err != nil {
		return err
	}
	return t.artifact.End()
}

// Reduce merges shard indexes through the backend and finalizes the
// merged artifact.
func (t *Task) Reduce(shardDirs []string) error {
	if err := t.artifact.Begin(); err != nil {
		return err
	}
	if err := t.indexer.Merge(t.artifact.Dir, shardDirs); err != nil {
		return err
	}
	lang, err := ReadLang(shardDirs[0])
	if err != nil {
		return err
	}
	if err := writeLang(t.artifact.Dir, lang); err != nil {
		return err
	}
	return t.artifact.End()
}

func writeLang(dir, lang string) error {
	path := filepath.Join(dir, LangFileName)
	if err := os.WriteFile(path, []byte(lang+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing index language: %w", err)
	}
	return nil
}

// ReadLang reads the document language recorded in an index directory.
func ReadLang(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, LangFileName))
	if err != nil {
		return "", fmt.Errorf("reading index language: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// mockIndexer records document ids, one per line.
type mockIndexer struct {
	file *os.File
	buf  *bufio.Writer
}

func (m *mockIndexer) Begin(dir string) error {
	f, err := os.Create(filepath.Join(dir, IndexFileName))
	if err != nil {
		return fmt.Errorf("creating index: %w", err)
	}
	m.file = f
	m.buf = bufio.NewWriter(f)
	return nil
}

func (m *mockIndexer) Index(doc *docs.Doc) error {
	if _, err := m.buf.WriteString(doc.ID + "\n"); err != nil {
		return fmt.Errorf("indexing document %s: %w", doc.ID, err)
	}
	return nil
}

func (m *mockIndexer) End() error {
	if m.file == nil {
		return nil
	}
	if err := m.buf.Flush(); err != nil {
		return fmt.Errorf("flushing index: %w", err)
	}
	f := m.file
	m.file = nil
	return f.Close()
}

func (m *mockIndexer) Merge(dir string, shardDirs []string) error {
	paths := make([]string, len(shardDirs))
	for i, shard := range shardDirs {
		paths[i] = filepath.Join(shard, IndexFileName)
	}
	if err := pipeline.CheckShards(paths); err != nil {
		return err
	}
	return pipeline.InterleaveFiles(filepath.Join(dir, IndexFileName), paths)
}
