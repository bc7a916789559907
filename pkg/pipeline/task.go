// Package pipeline defines the task contract and the streaming and
// batch pipelines that drive items through a chain of tasks.
package pipeline

// Task is one step in a pipeline. Begin runs before any item, End runs
// after the last item and finalizes the task's artifact. Process
// transforms one item; tasks that filter return a ProcessingError to
// drop the item without failing the run.
type Task interface {
	Name() string
	Begin() error
	Process(item interface{}) (interface{}, error)
	End() error
}

// BatchProcessor is implemented by tasks that must see a whole batch at
// once, such as rerankers that shell out per batch. Batch pipelines
// prefer ProcessBatch over item-wise Process.
type BatchProcessor interface {
	ProcessBatch(items []interface{}) ([]interface{}, error)
}

// Reducer is implemented by tasks whose artifacts are produced in
// shards and need a merge step. Reduce combines the artifacts found in
// the shard directories, in job order, into the task's own output.
type Reducer interface {
	Reduce(shardDirs []string) error
}

// Iterator produces the items fed into a pipeline. Next returns io.EOF
// when the source is exhausted.
type Iterator interface {
	Next() (interface{}, error)
}
