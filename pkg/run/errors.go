package run

import "fmt"

// RunAlreadyCompleteError reports an attempt to start a run whose
// directory already carries a completion marker. Nothing is modified
// when this is returned.
type RunAlreadyCompleteError struct {
	Path string
}

// Error implements the error interface.
func (e *RunAlreadyCompleteError) Error() string {
	return fmt.Sprintf("run already complete: %s", e.Path)
}

// StaleArtifactError reports an artifact whose recorded configuration
// does not match the configuration of the current run. The run fails
// rather than silently reusing output produced under other settings.
type StaleArtifactError struct {
	Task string
	Dir  string
}

// Error implements the error interface.
func (e *StaleArtifactError) Error() string {
	return fmt.Sprintf("artifact for task %s at %s was produced with a different configuration", e.Task, e.Dir)
}
