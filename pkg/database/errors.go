package database

import "fmt"

// DuplicateKeyError reports a document id appearing in more than one
// shard during a merge. Two shards writing the same key means the
// partition was wrong, so the merge fails instead of picking a winner.
type DuplicateKeyError struct {
	Key string
}

// Error implements the error interface.
func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate document key during merge: %s", e.Key)
}
