// Package retrieve runs queries against the index. Real search
// backends sit behind the Retriever interface; the mock retriever
// serves from the mock index so end-to-end runs work without a search
// engine.
package retrieve

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wehubfusion/Severn/pkg/config"
	"github.com/wehubfusion/Severn/pkg/index"
	"github.com/wehubfusion/Severn/pkg/results"
	"github.com/wehubfusion/Severn/pkg/topics"
)

// SystemName tags result lists produced by this pipeline.
const SystemName = "severn"

// Retriever answers one query with a ranked document list.
type Retriever interface {
	Begin(indexDir string) error
	Retrieve(query *topics.Query, k int) ([]results.Result, error)
	End() error
}

// NewTask builds the retrieve task for the configured retriever name.
// The registry is closed; unknown names are errors.
func NewTask(conf *config.RetrieveConfig, indexDir string) (*Task, error) {
	switch conf.Name {
	case "mock":
		return &Task{retriever: &mockRetriever{}, indexDir: indexDir, k: conf.Number}, nil
	}
	return nil, fmt.Errorf("unknown retriever '%s'", conf.Name)
}

// Task drives a Retriever as a pipeline task. The document language
// reported in results comes from the index's language marker.
type Task struct {
	retriever Retriever
	indexDir  string
	k         int
	docLang   string
}

// Name identifies the task in logs and timing.
func (t *Task) Name() string { return "retrieve" }

// Begin opens the index and reads its language marker.
func (t *Task) Begin() error {
	lang, err := index.ReadLang(t.indexDir)
	if err != nil {
		return err
	}
	t.docLang = lang
	return t.retriever.Begin(t.indexDir)
}

// Process answers one query.
func (t *Task) Process(item interface{}) (interface{}, error) {
	query, ok := item.(*topics.Query)
	if !ok {
		return nil, fmt.Errorf("retriever received %T", item)
	}
	ranked, err := t.retriever.Retrieve(query, t.k)
	if err != nil {
		return nil, fmt.Errorf("retrieving query %s: %w", query.ID, err)
	}
	return &results.Results{
		Query:   *query,
		DocLang: t.docLang,
		System:  SystemName,
		Results: ranked,
	}, nil
}

// End closes the retriever.
func (t *Task) End() error {
	return t.retriever.End()
}

// mockRetriever returns documents in index order with descending
// scores, ignoring the query text.
type mockRetriever struct {
	ids []string
}

func (m *mockRetriever) Begin(indexDir string) error {
	f, err := os.Open(filepath.Join(indexDir, index.IndexFileName))
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			m.ids = append(m.ids, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading index: %w", err)
	}
	return nil
}

func (m *mockRetriever) Retrieve(query *topics.Query, k int) ([]results.Result, error) {
	n := len(m.ids)
	if k > 0 && k < n {
		n = k
	}
	ranked := make([]results.Result, n)
	for i := 0; i < n; i++ {
		ranked[i] = results.Result{
			DocID: m.ids[i],
			Rank:  i,
			Score: float64(n - i),
		}
	}
	return ranked, nil
}

func (m *mockRetriever) End() error { return nil }
