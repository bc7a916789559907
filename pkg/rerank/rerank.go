// Package rerank reorders retrieval results. The shell reranker hands
// batches to an external executable; the mock reranker passes results
// through so pipelines can run without one.
package rerank

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/wehubfusion/Severn/pkg/config"
	"github.com/wehubfusion/Severn/pkg/pipeline"
	"github.com/wehubfusion/Severn/pkg/results"
)

// NewTask builds the rerank task for the configured reranker name. The
// registry is closed; unknown names are errors.
func NewTask(conf *config.RerankConfig, dbPath string) (pipeline.Task, error) {
	switch conf.Name {
	case "mock":
		return &mockReranker{}, nil
	case "shell":
		if conf.Script == "" {
			return nil, fmt.Errorf("shell reranker requires a script")
		}
		return &ShellReranker{
			script: conf.Script,
			extra:  extraArgs(conf.Extra),
			dbPath: dbPath,
		}, nil
	}
	return nil, fmt.Errorf("unknown reranker '%s'", conf.Name)
}

// extraArgs converts pass-through configuration keys into sorted
// --key value pairs so script invocations are deterministic.
func extraArgs(extra map[string]interface{}) []string {
	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]string, 0, 2*len(keys))
	for _, key := range keys {
		args = append(args, "--"+key, fmt.Sprintf("%v", extra[key]))
	}
	return args
}

// mockReranker passes results through unchanged.
type mockReranker struct{}

func (m *mockReranker) Name() string { return "rerank" }
func (m *mockReranker) Begin() error { return nil }
func (m *mockReranker) End() error   { return nil }

func (m *mockReranker) Process(item interface{}) (interface{}, error) {
	if _, ok := item.(*results.Results); !ok {
		return nil, fmt.Errorf("reranker received %T", item)
	}
	return item, nil
}

// ShellReranker invokes an external script per batch:
//
//	script [--key value]... doc_lang query_lang db_path input output
//
// where input and output are results files with one JSON object per
// line. A non-zero exit fails the run with the captured output.
type ShellReranker struct {
	script string
	extra  []string
	dbPath string
}

// Name identifies the task in logs and timing.
func (s *ShellReranker) Name() string { return "rerank" }

// Begin implements pipeline.Task.
func (s *ShellReranker) Begin() error { return nil }

// End implements pipeline.Task.
func (s *ShellReranker) End() error { return nil }

// Process handles a single result list as a batch of one.
func (s *ShellReranker) Process(item interface{}) (interface{}, error) {
	out, err := s.ProcessBatch([]interface{}{item})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// ProcessBatch writes the batch to a temporary input file, runs the
// script and reads the reranked results back.
func (s *ShellReranker) ProcessBatch(items []interface{}) ([]interface{}, error) {
	if len(items) == 0 {
		return items, nil
	}
	first, ok := items[0].(*results.Results)
	if !ok {
		return nil, fmt.Errorf("reranker received %T", items[0])
	}

	dir, err := os.MkdirTemp("", "rerank")
	if err != nil {
		return nil, fmt.Errorf("creating rerank scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "input.jsonl")
	outPath := filepath.Join(dir, "output.jsonl")
	if err := writeResultsFile(inPath, items); err != nil {
		return nil, err
	}

	args := append(append([]string{}, s.extra...),
		first.DocLang, first.Query.Lang, s.dbPath, inPath, outPath)
	cmd := exec.Command(s.script, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("rerank script failed: %w\n%s", err, output)
	}
	out, err := readResultsFile(outPath)
	if err != nil {
		return nil, err
	}
	if len(out) != len(items) {
		return nil, fmt.Errorf("rerank script wrote %d results for %d inputs", len(out), len(items))
	}
	return out, nil
}

func writeResultsFile(path string, items []interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating rerank input: %w", err)
	}
	defer f.Close()
	buf := bufio.NewWriter(f)
	for _, item := range items {
		res, ok := item.(*results.Results)
		if !ok {
			return fmt.Errorf("reranker received %T", item)
		}
		data, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("encoding rerank input: %w", err)
		}
		if _, err := buf.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("writing rerank input: %w", err)
		}
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("writing rerank input: %w", err)
	}
	return f.Close()
}

func readResultsFile(path string) ([]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading rerank output: %w", err)
	}
	defer f.Close()
	var items []interface{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		res := &results.Results{}
		if err := json.Unmarshal(scanner.Bytes(), res); err != nil {
			return nil, fmt.Errorf("parsing rerank output: %w", err)
		}
		items = append(items, res)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading rerank output: %w", err)
	}
	return items, nil
}
