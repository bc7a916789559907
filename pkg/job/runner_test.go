package job

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/wehubfusion/Severn/pkg/config"
	"github.com/wehubfusion/Severn/pkg/database"
	"github.com/wehubfusion/Severn/pkg/docs"
	"github.com/wehubfusion/Severn/pkg/index"
	"github.com/wehubfusion/Severn/pkg/run"
)

func TestShardConfig(t *testing.T) {
	conf := &config.RunnerConfig{
		Run: config.RunConfig{Name: "sharding", Path: "runs/sharding", Results: "results.txt"},
		Documents: &config.DocumentsConfig{
			Input:  config.DocumentsInput{Format: "jsonl", Lang: "eng", Path: "/data/docs.jsonl"},
			Output: config.PathSpec{Path: "docs"},
		},
		Database: &config.DatabaseConfig{Output: config.PathSpec{Path: "database"}},
		Index:    &config.IndexConfig{Name: "mock", Output: config.PathSpec{Path: "index"}},
		Topics: &config.TopicsConfig{
			Input:  config.TopicsInput{Format: "jsonl", Lang: "eng", Path: "/data/topics.jsonl"},
			Output: config.PathSpec{Path: "raw_queries"},
		},
		Queries: &config.QueriesConfig{Output: config.PathSpec{Path: "processed_queries"}},
		Retrieve: &config.RetrieveConfig{
			Name:   "mock",
			Input:  config.RetrieveInput{Index: config.PathRef{Path: "index"}},
			Output: config.PathSpec{Path: "retrieve"},
		},
		Rerank: &config.RerankConfig{
			Name:   "shell",
			Script: "/opt/rerank.sh",
			Input:  config.RerankInput{Database: config.PathRef{Path: "database"}},
			Output: config.PathSpec{Path: "rerank"},
		},
	}
	runPath := "/runs/sharding"

	c, err := shardConfig(conf, runPath, 1)
	if err != nil {
		t.Fatal(err)
	}

	// The run path stays with the parent; only outputs move into the
	// part directory.
	if c.Run.Path != conf.Run.Path {
		t.Errorf("run path = %q, want parent path %q", c.Run.Path, conf.Run.Path)
	}
	outputs := map[string]string{
		"documents": c.Documents.Output.Path,
		"database":  c.Database.Output.Path,
		"index":     c.Index.Output.Path,
		"topics":    c.Topics.Output.Path,
		"queries":   c.Queries.Output.Path,
		"retrieve":  c.Retrieve.Output.Path,
		"rerank":    c.Rerank.Output.Path,
	}
	for task, path := range outputs {
		if !strings.HasPrefix(path, "part_1"+string(filepath.Separator)) {
			t.Errorf("%s output = %q, want it under part_1", task, path)
		}
	}
	if want := filepath.Join("part_1", "results.txt"); c.Run.Results != want {
		t.Errorf("results = %q, want %q", c.Run.Results, want)
	}

	// Upstream inputs resolve against the parent run so a sharded
	// stage reads merged artifacts, not its own empty part directory.
	if want := filepath.Join(runPath, "index"); c.Retrieve.Input.Index.Path != want {
		t.Errorf("retrieve index input = %q, want %q", c.Retrieve.Input.Index.Path, want)
	}
	if want := filepath.Join(runPath, "database"); c.Rerank.Input.Database.Path != want {
		t.Errorf("rerank database input = %q, want %q", c.Rerank.Input.Database.Path, want)
	}

	// The parent configuration is untouched.
	if conf.Documents.Output.Path != "docs" || conf.Retrieve.Input.Index.Path != "index" {
		t.Error("shard config rewrote the parent configuration")
	}
}

func TestShardConfigAbsolutePaths(t *testing.T) {
	conf := &config.RunnerConfig{
		Run: config.RunConfig{Name: "abs", Path: "runs/abs", Results: "results.txt"},
		Retrieve: &config.RetrieveConfig{
			Name:   "mock",
			Input:  config.RetrieveInput{Index: config.PathRef{Path: "/shared/index"}},
			Output: config.PathSpec{Path: "/shared/retrieve"},
		},
	}
	c, err := shardConfig(conf, "/runs/abs", 0)
	if err != nil {
		t.Fatal(err)
	}
	if c.Retrieve.Input.Index.Path != "/shared/index" {
		t.Errorf("absolute input rewritten to %q", c.Retrieve.Input.Index.Path)
	}
	if c.Retrieve.Output.Path != "/shared/retrieve" {
		t.Errorf("absolute output rewritten to %q", c.Retrieve.Output.Path)
	}
}

func writeJSONLines(t *testing.T, path string, lines []string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Runs a full two stage pipeline with the local pool backend and both
// stages sharded across two jobs. Stage 2 must read the merged stage 1
// artifacts from the parent run directory.
func TestRunPoolShardedStages(t *testing.T) {
	dir := t.TempDir()
	docsPath := filepath.Join(dir, "docs.jsonl")
	topicsPath := filepath.Join(dir, "topics.jsonl")

	var docLines []string
	for i := 0; i < 6; i++ {
		docLines = append(docLines, fmt.Sprintf(`{"id":"d%d","lang":"eng","text":"document number %d"}`, i, i))
	}
	writeJSONLines(t, docsPath, docLines)
	writeJSONLines(t, topicsPath, []string{
		`{"id":"q1","lang":"eng","title":"first topic"}`,
		`{"id":"q2","lang":"eng","title":"second topic"}`,
	})

	runDir := filepath.Join(dir, "run")
	tree := map[string]interface{}{
		"run": map[string]interface{}{
			"name":     "pool test",
			"path":     runDir,
			"parallel": map[string]interface{}{"name": "mp"},
			"stage1":   map[string]interface{}{"num_jobs": 2},
			"stage2":   map[string]interface{}{"num_jobs": 2},
		},
		"documents": map[string]interface{}{
			"input": map[string]interface{}{"format": "jsonl", "lang": "eng", "path": docsPath},
		},
		"database": map[string]interface{}{},
		"index":    map[string]interface{}{"name": "mock"},
		"topics": map[string]interface{}{
			"input": map[string]interface{}{"format": "jsonl", "lang": "eng", "path": topicsPath},
		},
		"queries":  map[string]interface{}{},
		"retrieve": map[string]interface{}{"name": "mock"},
	}
	conf, err := config.LoadMap(tree, nil)
	if err != nil {
		t.Fatal(err)
	}

	r, err := NewRunner(conf, zap.NewNop(), false)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	runPath := r.Context().Path
	if !run.IsComplete(runPath) {
		t.Error("run not marked complete")
	}

	// Merging interleaves the shard outputs back into input order.
	data, err := os.ReadFile(filepath.Join(runPath, "docs", docs.FileName))
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		doc := &docs.Doc{}
		if err := json.Unmarshal([]byte(line), doc); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, doc.ID)
	}
	if got := strings.Join(ids, " "); got != "d0 d1 d2 d3 d4 d5" {
		t.Errorf("merged documents = %q, want input order", got)
	}

	indexData, err := os.ReadFile(filepath.Join(runPath, "index", index.IndexFileName))
	if err != nil {
		t.Fatal(err)
	}
	if got := string(indexData); got != "d0\nd1\nd2\nd3\nd4\nd5\n" {
		t.Errorf("merged index = %q, want input order", got)
	}
	if lang, err := index.ReadLang(filepath.Join(runPath, "index")); err != nil || lang != "eng" {
		t.Errorf("merged index language = %q, %v", lang, err)
	}
	if _, err := os.Stat(filepath.Join(runPath, "database", database.DBFileName)); err != nil {
		t.Errorf("merged database missing: %v", err)
	}

	resultsData, err := os.ReadFile(filepath.Join(runPath, "results.txt"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(resultsData)), "\n")
	if len(lines) != 12 {
		t.Fatalf("results has %d lines, want 12:\n%s", len(lines), resultsData)
	}
	if lines[0] != "q1 Q0 d0 0 6.000000 severn" {
		t.Errorf("first result line = %q", lines[0])
	}
	if lines[6] != "q2 Q0 d0 0 6.000000 severn" {
		t.Errorf("first line of second query = %q", lines[6])
	}

	parts, err := filepath.Glob(filepath.Join(runPath, "part_*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 0 {
		t.Errorf("part directories left behind: %v", parts)
	}
}
