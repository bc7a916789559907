package job

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/wehubfusion/Severn/pkg/config"
	"github.com/wehubfusion/Severn/pkg/docs"
	"github.com/wehubfusion/Severn/pkg/pipeline"
	"github.com/wehubfusion/Severn/pkg/run"
)

func newReduceContext(t *testing.T) *run.RunContext {
	t.Helper()
	conf := &config.RunnerConfig{
		Run: config.RunConfig{
			Name:    "reduce-test",
			Path:    filepath.Join(t.TempDir(), "run"),
			Results: "results.txt",
		},
		Documents: &config.DocumentsConfig{
			Output: config.PathSpec{Path: "docs"},
		},
	}
	ctx, err := run.CreateContext(conf, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return ctx
}

func writeShardDocs(t *testing.T, runPath string, job int, lines []string) {
	t.Helper()
	dir := filepath.Join(runPath, fmt.Sprintf("part_%d", job), "docs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, docs.FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReduceStageDocuments(t *testing.T) {
	ctx := newReduceContext(t)
	writeShardDocs(t, ctx.Path, 0, []string{"0", "2"})
	writeShardDocs(t, ctx.Path, 1, []string{"1", "3"})

	if err := ReduceStage(ctx, 1, 2); err != nil {
		t.Fatal(err)
	}

	merged := filepath.Join(ctx.Path, "docs", docs.FileName)
	data, err := os.ReadFile(merged)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "0\n1\n2\n3\n" {
		t.Errorf("merged output = %q, want interleaved order", got)
	}
	if !run.IsComplete(filepath.Join(ctx.Path, "docs")) {
		t.Error("merged artifact not marked complete")
	}
	if _, err := os.Stat(filepath.Join(ctx.Path, "docs", run.ConfigFileName)); err != nil {
		t.Error("merged artifact has no provenance config")
	}
}

func TestReduceStageMissingShard(t *testing.T) {
	ctx := newReduceContext(t)
	writeShardDocs(t, ctx.Path, 0, []string{"0"})

	err := ReduceStage(ctx, 1, 2)
	var missing *pipeline.MissingShardError
	if !errors.As(err, &missing) {
		t.Fatalf("got %v, want a missing shard error", err)
	}
}

func TestReduceStageSkipsCompleteArtifact(t *testing.T) {
	ctx := newReduceContext(t)
	dir := filepath.Join(ctx.Path, "docs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Artifact.WriteConfig(run.TaskDocuments, dir); err != nil {
		t.Fatal(err)
	}
	if err := run.MarkComplete(dir); err != nil {
		t.Fatal(err)
	}

	// No part directories exist; a complete artifact must not be
	// reduced again.
	if err := ReduceStage(ctx, 1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAggregateLogs(t *testing.T) {
	ctx := newReduceContext(t)
	logDir := filepath.Join(ctx.Path, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatal(err)
	}
	lines := []string{
		"INFO map job finished",
		"WARNING skipped document with empty text",
		"ERROR retry exhausted",
		`{"level":"warn","msg":"dropped d7: document exceeds maximum length 50"}`,
		"wallclock 1234 secs",
		"Max Memory: 2.1G",
	}
	path := filepath.Join(logDir, "severn.stage1.0.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := aggregateLogs(ctx); err != nil {
		t.Fatal(err)
	}

	warnings := ctx.Tracker.Warnings()
	if len(warnings) != 3 {
		t.Fatalf("got %d warnings, want 3: %v", len(warnings), warnings)
	}
	for _, w := range warnings {
		if !strings.Contains(w, "severn.stage1.0.log") {
			t.Errorf("warning %q does not name its source log", w)
		}
	}

	data, err := os.ReadFile(filepath.Join(ctx.Path, "memory_and_time.log"))
	if err != nil {
		t.Fatal(err)
	}
	report := string(data)
	if !strings.Contains(report, "1234 secs") || !strings.Contains(report, "Max Memory") {
		t.Errorf("resource report missing usage lines:\n%s", report)
	}
}
