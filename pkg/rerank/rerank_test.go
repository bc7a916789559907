package rerank

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wehubfusion/Severn/pkg/config"
	"github.com/wehubfusion/Severn/pkg/results"
	"github.com/wehubfusion/Severn/pkg/topics"
)

func TestExtraArgs(t *testing.T) {
	args := extraArgs(map[string]interface{}{
		"model": "minilm",
		"alpha": 0.5,
	})
	want := []string{"--alpha", "0.5", "--model", "minilm"}
	if len(args) != len(want) {
		t.Fatalf("args = %v", args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %s, want %s", i, args[i], want[i])
		}
	}
}

func TestMockReranker(t *testing.T) {
	task, err := NewTask(&config.RerankConfig{Name: "mock"}, "")
	if err != nil {
		t.Fatal(err)
	}
	in := &results.Results{Query: topics.Query{ID: "1"}}
	out, err := task.Process(in)
	if err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Error("mock reranker should pass results through")
	}
}

func TestUnknownReranker(t *testing.T) {
	if _, err := NewTask(&config.RerankConfig{Name: "neural"}, ""); err == nil {
		t.Fatal("expected error for unknown reranker")
	}
	if _, err := NewTask(&config.RerankConfig{Name: "shell"}, ""); err == nil {
		t.Fatal("expected error for shell reranker without script")
	}
}

// The fake script copies the input file (second to last argument) to
// the output file (last argument).
const fakeScript = `#!/bin/sh
in=$(eval echo \$$(($# - 1)))
out=$(eval echo \$$#)
cp "$in" "$out"
`

func TestShellReranker(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "rerank.sh")
	if err := os.WriteFile(script, []byte(fakeScript), 0o755); err != nil {
		t.Fatal(err)
	}

	task, err := NewTask(&config.RerankConfig{
		Name:   "shell",
		Script: script,
		Extra:  map[string]interface{}{"alpha": 0.5},
	}, "/run/database/docs.db")
	if err != nil {
		t.Fatal(err)
	}

	batch := []interface{}{
		&results.Results{
			Query:   topics.Query{ID: "1", Lang: "eng"},
			DocLang: "rus",
			System:  "severn",
			Results: []results.Result{{DocID: "d1", Rank: 1, Score: 1.0}},
		},
	}
	out, err := task.(*ShellReranker).ProcessBatch(batch)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("output batch size = %d", len(out))
	}
	res := out[0].(*results.Results)
	if res.Query.ID != "1" || res.Results[0].DocID != "d1" {
		t.Errorf("results = %+v", res)
	}
}

func TestShellRerankerFailure(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fail.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho boom >&2\nexit 3\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	task, err := NewTask(&config.RerankConfig{Name: "shell", Script: script}, "db")
	if err != nil {
		t.Fatal(err)
	}
	batch := []interface{}{
		&results.Results{Query: topics.Query{ID: "1", Lang: "eng"}, DocLang: "rus"},
	}
	_, err = task.(*ShellReranker).ProcessBatch(batch)
	if err == nil {
		t.Fatal("expected error from failing script")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error should carry script output: %v", err)
	}
}

func TestShellRerankerOutputCountMismatch(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "empty.sh")
	// Exits 0 but writes no results at all.
	content := "#!/bin/sh\nout=$(eval echo \\$$#)\n: > \"$out\"\n"
	if err := os.WriteFile(script, []byte(content), 0o755); err != nil {
		t.Fatal(err)
	}
	task, err := NewTask(&config.RerankConfig{Name: "shell", Script: script}, "db")
	if err != nil {
		t.Fatal(err)
	}
	in := &results.Results{Query: topics.Query{ID: "1", Lang: "eng"}, DocLang: "rus"}

	if _, err := task.(*ShellReranker).ProcessBatch([]interface{}{in}); err == nil {
		t.Fatal("expected error for missing script output")
	}
	if _, err := task.Process(in); err == nil {
		t.Fatal("expected error for missing script output via Process")
	}
}
