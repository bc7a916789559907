package retrieve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wehubfusion/Severn/pkg/config"
	"github.com/wehubfusion/Severn/pkg/index"
	"github.com/wehubfusion/Severn/pkg/results"
	"github.com/wehubfusion/Severn/pkg/topics"
)

func writeIndex(t *testing.T, ids string, lang string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, index.IndexFileName), []byte(ids), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, index.LangFileName), []byte(lang+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestMockRetriever(t *testing.T) {
	dir := writeIndex(t, "d1\nd2\nd3\n", "rus")
	task, err := NewTask(&config.RetrieveConfig{Name: "mock", Number: 2}, dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := task.Begin(); err != nil {
		t.Fatal(err)
	}
	out, err := task.Process(&topics.Query{ID: "q1", Lang: "eng", Query: "anything"})
	if err != nil {
		t.Fatal(err)
	}
	res := out.(*results.Results)
	if res.DocLang != "rus" {
		t.Errorf("doc lang = %s, want rus", res.DocLang)
	}
	if res.System != SystemName {
		t.Errorf("system = %s", res.System)
	}
	if len(res.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(res.Results))
	}
	if res.Results[0].DocID != "d1" || res.Results[0].Rank != 0 {
		t.Errorf("first result = %+v", res.Results[0])
	}
	if res.Results[1].Rank != 1 {
		t.Errorf("ranks must count from zero, got %+v", res.Results[1])
	}
	if res.Results[0].Score <= res.Results[1].Score {
		t.Error("scores should descend")
	}
	if err := task.End(); err != nil {
		t.Fatal(err)
	}
}

func TestUnknownRetriever(t *testing.T) {
	if _, err := NewTask(&config.RetrieveConfig{Name: "lucene"}, ""); err == nil {
		t.Fatal("expected error for unknown retriever")
	}
}
