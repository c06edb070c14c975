package pipeline

// Progress steps emitted during a cycle.
const (
	StepCycleStarted  = "cycle_started"
	StepSourceDone    = "source_done"
	StepSourceFailed  = "source_failed"
	StepSourceSkipped = "source_skipped"
	StepAlertSent     = "alert_sent"
	StepCycleFinished = "cycle_finished"
)

// ProgressEvent represents a progress update during a cycle
type ProgressEvent struct {
	Step    string `json:"step"`
	Source  string `json:"source,omitempty"`
	Message string `json:"message"`
	CycleID string `json:"cycle_id"`
	Content any    `json:"content,omitempty"`
}

// ProgressCallback is called when cycle progress occurs. It runs on the
// goroutine that made progress and must not block.
type ProgressCallback func(event ProgressEvent)

func (o *Orchestrator) emit(event ProgressEvent) {
	if o.onProgress != nil {
		o.onProgress(event)
	}
}
