// Package job plans and executes runs: serial execution, the local
// process pool, cluster submission for grid schedulers, and the reduce
// step that merges shard outputs.
package job

import (
	"fmt"
	"path/filepath"

	"github.com/wehubfusion/Severn/pkg/config"
	"github.com/wehubfusion/Severn/pkg/pipeline"
)

// Shard identifies one map job's slice of the input: item i belongs to
// job i mod increment. Increment equals the number of jobs.
type Shard struct {
	Job       int
	Increment int
}

// shardConfig returns the configuration for one map job. Only outputs
// move: task artifacts and the results file are redirected into the
// shard's part directory, while the run path and input paths stay with
// the parent, so a sharded stage reads merged upstream artifacts from
// the parent run. Relative retriever and reranker input paths are
// absolutized against the parent run first.
func shardConfig(conf *config.RunnerConfig, runPath string, job int) (*config.RunnerConfig, error) {
	c, err := conf.Copy()
	if err != nil {
		return nil, err
	}
	part := fmt.Sprintf("part_%d", job)

	if c.Retrieve != nil && c.Retrieve.Input.Index.Path != "" && !filepath.IsAbs(c.Retrieve.Input.Index.Path) {
		c.Retrieve.Input.Index.Path = filepath.Join(runPath, c.Retrieve.Input.Index.Path)
	}
	if c.Rerank != nil && c.Rerank.Input.Database.Path != "" && !filepath.IsAbs(c.Rerank.Input.Database.Path) {
		c.Rerank.Input.Database.Path = filepath.Join(runPath, c.Rerank.Input.Database.Path)
	}

	redirect := func(out *config.PathSpec) {
		if out.Off || out.Path == "" || filepath.IsAbs(out.Path) {
			return
		}
		out.Path = filepath.Join(part, out.Path)
	}
	if c.Documents != nil {
		redirect(&c.Documents.Output)
	}
	if c.Database != nil {
		redirect(&c.Database.Output)
	}
	if c.Index != nil {
		redirect(&c.Index.Output)
	}
	if c.Topics != nil {
		redirect(&c.Topics.Output)
	}
	if c.Queries != nil {
		redirect(&c.Queries.Output)
	}
	if c.Retrieve != nil {
		redirect(&c.Retrieve.Output)
	}
	if c.Rerank != nil {
		redirect(&c.Rerank.Output)
	}
	c.Run.Results = filepath.Join(part, c.Run.Results)
	return c, nil
}

// ShardIterator filters a source down to one shard's items. The
// assignment is a pure function of input position, so every job sees a
// disjoint subset and the union over all jobs is exact.
type ShardIterator struct {
	source pipeline.Iterator
	shard  Shard
	pos    int
}

// NewShardIterator wraps a source for the given shard.
func NewShardIterator(source pipeline.Iterator, shard Shard) *ShardIterator {
	return &ShardIterator{source: source, shard: shard}
}

// Next returns the next item assigned to this shard's job.
func (s *ShardIterator) Next() (interface{}, error) {
	for {
		item, err := s.source.Next()
		if err != nil {
			return nil, err
		}
		pos := s.pos
		s.pos++
		if pos%s.shard.Increment == s.shard.Job {
			return item, nil
		}
	}
}
