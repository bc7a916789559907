package score

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/wehubfusion/Severn/pkg/results"
)

// Metric computes one evaluation measure for a ranked list against the
// judgments for its query.
type Metric interface {
	Name() string
	Compute(ranked []results.Result, judged map[string]int) float64
}

// NewMetric builds a metric from its configured name: map, ndcg,
// ndcg@k, p@k or recall@k.
func NewMetric(name string) (Metric, error) {
	base, suffix, cut := strings.Cut(name, "@")
	k := 0
	if cut {
		parsed, err := strconv.Atoi(suffix)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("unknown metric '%s'", name)
		}
		k = parsed
	}
	switch {
	case base == "map" && !cut:
		return &averagePrecision{}, nil
	case base == "ndcg":
		return &ndcg{name: name, k: k}, nil
	case base == "p" && cut:
		return &precisionAt{name: name, k: k}, nil
	case base == "recall" && cut:
		return &recallAt{name: name, k: k}, nil
	}
	return nil, fmt.Errorf("unknown metric '%s'", name)
}

func countRelevant(judged map[string]int) int {
	n := 0
	for _, rel := range judged {
		if rel > 0 {
			n++
		}
	}
	return n
}

type averagePrecision struct{}

func (m *averagePrecision) Name() string { return "map" }

func (m *averagePrecision) Compute(ranked []results.Result, judged map[string]int) float64 {
	total := countRelevant(judged)
	if total == 0 {
		return 0
	}
	sum := 0.0
	found := 0
	for i, r := range ranked {
		if judged[r.DocID] > 0 {
			found++
			sum += float64(found) / float64(i+1)
		}
	}
	return sum / float64(total)
}

type ndcg struct {
	name string
	k    int
}

func (m *ndcg) Name() string { return m.name }

func (m *ndcg) Compute(ranked []results.Result, judged map[string]int) float64 {
	limit := len(ranked)
	if m.k > 0 && m.k < limit {
		limit = m.k
	}
	dcg := 0.0
	for i := 0; i < limit; i++ {
		if rel := judged[ranked[i].DocID]; rel > 0 {
			dcg += float64(rel) / math.Log2(float64(i+2))
		}
	}

	rels := make([]int, 0, len(judged))
	for _, rel := range judged {
		if rel > 0 {
			rels = append(rels, rel)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(rels)))
	idealLimit := len(rels)
	if m.k > 0 && m.k < idealLimit {
		idealLimit = m.k
	}
	ideal := 0.0
	for i := 0; i < idealLimit; i++ {
		ideal += float64(rels[i]) / math.Log2(float64(i+2))
	}
	if ideal == 0 {
		return 0
	}
	return dcg / ideal
}

type precisionAt struct {
	name string
	k    int
}

func (m *precisionAt) Name() string { return m.name }

func (m *precisionAt) Compute(ranked []results.Result, judged map[string]int) float64 {
	limit := len(ranked)
	if m.k < limit {
		limit = m.k
	}
	found := 0
	for i := 0; i < limit; i++ {
		if judged[ranked[i].DocID] > 0 {
			found++
		}
	}
	return float64(found) / float64(m.k)
}

type recallAt struct {
	name string
	k    int
}

func (m *recallAt) Name() string { return m.name }

func (m *recallAt) Compute(ranked []results.Result, judged map[string]int) float64 {
	total := countRelevant(judged)
	if total == 0 {
		return 0
	}
	limit := len(ranked)
	if m.k < limit {
		limit = m.k
	}
	found := 0
	for i := 0; i < limit; i++ {
		if judged[ranked[i].DocID] > 0 {
			found++
		}
	}
	return float64(found) / float64(total)
}
