// CLAUDE:SUMMARY Capture progress phases and event fan-out.
package capture

// Phase names the stage of a capture run.
type Phase string

const (
	PhaseContent Phase = "content"
	PhaseFiles   Phase = "files"
	PhaseDone    Phase = "done"
	PhaseError   Phase = "error"
)

// Event is one progress report. Percent is scoped to the phase; the
// attachment counters are only meaningful during PhaseFiles.
type Event struct {
	Phase     Phase  `json:"phase"`
	Percent   int    `json:"percent"`
	Status    string `json:"status"`
	Processed int    `json:"processed,omitempty"`
	Total     int    `json:"total,omitempty"`
	Failed    int    `json:"failed,omitempty"`
}

func (r *Runner) emit(ev Event) {
	if r.onEvent != nil {
		r.onEvent(ev)
	}
}
