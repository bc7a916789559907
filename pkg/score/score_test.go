package score

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wehubfusion/Severn/pkg/config"
	"github.com/wehubfusion/Severn/pkg/results"
	"github.com/wehubfusion/Severn/pkg/topics"
)

func ranked(ids ...string) []results.Result {
	out := make([]results.Result, len(ids))
	for i, id := range ids {
		out[i] = results.Result{DocID: id, Rank: i + 1, Score: float64(len(ids) - i)}
	}
	return out
}

func TestReadQrels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qrels.txt")
	content := "1 0 d1 1\n1 0 d2 0\n2 0 d3 2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	qrels, err := ReadQrels(path)
	if err != nil {
		t.Fatal(err)
	}
	if qrels["1"]["d1"] != 1 || qrels["1"]["d2"] != 0 || qrels["2"]["d3"] != 2 {
		t.Errorf("qrels = %v", qrels)
	}

	t.Run("glob", func(t *testing.T) {
		qrels, err := ReadQrels(filepath.Join(dir, "qrels*"))
		if err != nil {
			t.Fatal(err)
		}
		if len(qrels) != 2 {
			t.Errorf("queries = %d, want 2", len(qrels))
		}
	})

	t.Run("no match", func(t *testing.T) {
		if _, err := ReadQrels(filepath.Join(dir, "missing*")); err == nil {
			t.Fatal("expected error for unmatched pattern")
		}
	})
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMetrics(t *testing.T) {
	judged := map[string]int{"d1": 1, "d3": 1}

	t.Run("map", func(t *testing.T) {
		m, err := NewMetric("map")
		if err != nil {
			t.Fatal(err)
		}
		// relevant at ranks 1 and 3: (1/1 + 2/3) / 2
		got := m.Compute(ranked("d1", "d2", "d3"), judged)
		if !almostEqual(got, (1.0+2.0/3.0)/2.0) {
			t.Errorf("map = %f", got)
		}
	})

	t.Run("p at k", func(t *testing.T) {
		m, err := NewMetric("p@2")
		if err != nil {
			t.Fatal(err)
		}
		if got := m.Compute(ranked("d1", "d2", "d3"), judged); !almostEqual(got, 0.5) {
			t.Errorf("p@2 = %f", got)
		}
	})

	t.Run("recall at k", func(t *testing.T) {
		m, err := NewMetric("recall@2")
		if err != nil {
			t.Fatal(err)
		}
		if got := m.Compute(ranked("d1", "d2", "d3"), judged); !almostEqual(got, 0.5) {
			t.Errorf("recall@2 = %f", got)
		}
	})

	t.Run("ndcg perfect ranking", func(t *testing.T) {
		m, err := NewMetric("ndcg")
		if err != nil {
			t.Fatal(err)
		}
		if got := m.Compute(ranked("d1", "d3"), judged); !almostEqual(got, 1.0) {
			t.Errorf("ndcg = %f, want 1.0", got)
		}
	})

	t.Run("unknown metric", func(t *testing.T) {
		for _, name := range []string{"bpref", "p", "ndcg@zero", "map@10"} {
			if _, err := NewMetric(name); err == nil {
				t.Errorf("expected error for metric %q", name)
			}
		}
	})
}

func TestScorer(t *testing.T) {
	dir := t.TempDir()
	qrelsPath := filepath.Join(dir, "qrels.txt")
	if err := os.WriteFile(qrelsPath, []byte("1 0 d1 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var warnings []string
	scorer, err := NewScorer(&config.ScoreConfig{
		Input:   config.ScoreInput{Format: "trec", Path: qrelsPath},
		Metrics: []string{"map", "p@1"},
	}, dir, func(msg string) { warnings = append(warnings, msg) })
	if err != nil {
		t.Fatal(err)
	}

	if err := scorer.Begin(); err != nil {
		t.Fatal(err)
	}
	lists := []*results.Results{
		{Query: topics.Query{ID: "1"}, Results: ranked("d1", "d2")},
		{Query: topics.Query{ID: "99"}, Results: ranked("d1")},
	}
	for _, res := range lists {
		if _, err := scorer.Process(res); err != nil {
			t.Fatal(err)
		}
	}
	if err := scorer.End(); err != nil {
		t.Fatal(err)
	}

	if len(warnings) != 1 || !strings.Contains(warnings[0], "99") {
		t.Errorf("warnings = %v", warnings)
	}

	data, err := os.ReadFile(filepath.Join(dir, ReportFileName))
	if err != nil {
		t.Fatal(err)
	}
	report := string(data)
	for _, want := range []string{"map\t1\t1.0000", "map\tall\t1.0000", "p@1\t1\t1.0000"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}
