package stage

// Result is the uniform outcome of one pipeline stage for one image. Stage
// wrappers return it instead of bare errors so the skip/log handling in the
// orchestrator stays in one place.
type Result struct {
	Stage   string
	Message string
	failed  bool
}

// OK returns a successful stage result.
func OK() Result { return Result{} }

// Fail records a stage failure with a human-readable message.
func Fail(stage string, err error) Result {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Result{Stage: stage, Message: msg, failed: true}
}

// Failf records a stage failure with a literal message.
func Failf(stage, message string) Result {
	return Result{Stage: stage, Message: message, failed: true}
}

// Failed reports whether the stage failed.
func (r Result) Failed() bool { return r.failed }
