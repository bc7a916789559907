package score

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/wehubfusion/Severn/pkg/config"
	"github.com/wehubfusion/Severn/pkg/results"
)

// ReportFileName is the score report written at the run root.
const ReportFileName = "scores.txt"

// Scorer accumulates result lists during stage 2 and writes the score
// report when the pipeline ends. Queries without judgments are
// reported as warnings, not failures.
type Scorer struct {
	conf    *config.ScoreConfig
	runPath string
	warn    func(msg string)

	qrels   Qrels
	metrics []Metric
	lists   []*results.Results
}

// NewScorer builds the scoring task. Metric names were validated at
// configuration time but the registry stays closed here too.
func NewScorer(conf *config.ScoreConfig, runPath string, warn func(string)) (*Scorer, error) {
	s := &Scorer{conf: conf, runPath: runPath, warn: warn}
	for _, name := range conf.Metrics {
		metric, err := NewMetric(name)
		if err != nil {
			return nil, err
		}
		s.metrics = append(s.metrics, metric)
	}
	return s, nil
}

// Name identifies the task in logs and timing.
func (s *Scorer) Name() string { return "score" }

// Begin reads the relevance judgments.
func (s *Scorer) Begin() error {
	qrels, err := ReadQrels(s.conf.Input.Path)
	if err != nil {
		return err
	}
	s.qrels = qrels
	return nil
}

// Process accumulates one query's results and passes them through.
func (s *Scorer) Process(item interface{}) (interface{}, error) {
	res, ok := item.(*results.Results)
	if !ok {
		return nil, fmt.Errorf("scorer received %T", item)
	}
	s.lists = append(s.lists, res)
	return res, nil
}

// End computes every metric per query plus the aggregate and writes
// the report.
func (s *Scorer) End() error {
	f, err := os.Create(filepath.Join(s.runPath, ReportFileName))
	if err != nil {
		return fmt.Errorf("creating score report: %w", err)
	}
	defer f.Close()
	buf := bufio.NewWriter(f)

	scored := make([]*results.Results, 0, len(s.lists))
	for _, res := range s.lists {
		if _, judged := s.qrels[res.Query.ID]; !judged {
			if s.warn != nil {
				s.warn(fmt.Sprintf("query %s has no relevance judgments", res.Query.ID))
			}
			continue
		}
		scored = append(scored, res)
	}
	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Query.ID < scored[j].Query.ID
	})

	for _, metric := range s.metrics {
		sum := 0.0
		for _, res := range scored {
			value := metric.Compute(res.Results, s.qrels[res.Query.ID])
			sum += value
			fmt.Fprintf(buf, "%s\t%s\t%.4f\n", metric.Name(), res.Query.ID, value)
		}
		mean := 0.0
		if len(scored) > 0 {
			mean = sum / float64(len(scored))
		}
		fmt.Fprintf(buf, "%s\tall\t%.4f\n", metric.Name(), mean)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("writing score report: %w", err)
	}
	return f.Close()
}
