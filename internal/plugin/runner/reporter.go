package runner

// ErrorReporter receives the failures of plugin runs.
//
// AddLoadingError is called for problems before the script starts (missing
// dependencies, engine creation, compilation). AddRunningError is called
// once when the script body fails. Its cause is the *RunningFailure, which
// carries the script stack and unwraps to the error the script raised.
type ErrorReporter interface {
	AddLoadingError(pluginID, message string)
	AddRunningError(pluginID string, cause error)
}

// report routes f to the matching reporter method.
func report(r ErrorReporter, pluginID string, f Failure) {
	switch f := f.(type) {
	case *LoadingFailure:
		r.AddLoadingError(pluginID, f.Error())
	case *RunningFailure:
		r.AddRunningError(pluginID, f)
	}
}
