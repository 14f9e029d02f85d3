package runner

import "fmt"

// Failure is the outcome of a failed plugin run. The only implementations are
// *LoadingFailure and *RunningFailure.
type Failure interface {
	error
	failure()
}

// Stage identifies the setup step a LoadingFailure happened in.
type Stage string

// Loading stages.
const (
	StageDependencies Stage = "dependencies"
	StageEngine       Stage = "engine"
	StageCompile      Stage = "compile"
)

// LoadingFailure means the plugin never started: its scope, engine or script
// could not be prepared.
type LoadingFailure struct {
	Stage  Stage
	Reason string
	Err    error
}

func (*LoadingFailure) failure() {}

func (f *LoadingFailure) Error() string {
	if f.Err == nil {
		return f.Reason
	}
	if f.Reason == "" {
		return f.Err.Error()
	}
	return f.Reason + " " + f.Err.Error()
}

func (f *LoadingFailure) Unwrap() error {
	return f.Err
}

// RunningFailure means the script started and raised an error. Cause is the
// original error; Stack is the script-level stack trace when available.
type RunningFailure struct {
	Cause error
	Stack string
}

func (*RunningFailure) failure() {}

func (f *RunningFailure) Error() string {
	if f.Cause == nil {
		return "script failed"
	}
	return f.Cause.Error()
}

func (f *RunningFailure) Unwrap() error {
	return f.Cause
}

// EngineFailure wraps an engine construction error.
func EngineFailure(err error) *LoadingFailure {
	return &LoadingFailure{Stage: StageEngine, Reason: "Error while creating scripting engine.", Err: err}
}

// CompileFailure wraps a compiler diagnostic.
func CompileFailure(err error) *LoadingFailure {
	return &LoadingFailure{Stage: StageCompile, Reason: "Error while compiling script.", Err: err}
}

// MissingDependency reports a directive whose resolved path does not exist.
func MissingDependency(path string) *LoadingFailure {
	return &LoadingFailure{Stage: StageDependencies, Reason: fmt.Sprintf("Couldn't find dependency '%s'", path)}
}

// ScanFailure reports that the entry script could not be scanned for
// directives.
func ScanFailure(script string, err error) *LoadingFailure {
	return &LoadingFailure{
		Stage:  StageDependencies,
		Reason: fmt.Sprintf("Error while looking for dependencies. Main script: %s.", script),
		Err:    err,
	}
}
