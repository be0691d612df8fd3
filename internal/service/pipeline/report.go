package pipeline

import "fmt"

// Stage names the step of the slide chain that failed.
type Stage string

const (
	StageSynthesis     Stage = "synthesis"
	StageMerge         Stage = "merge"
	StageStore         Stage = "store"
	StageTranscription Stage = "transcription"
	StageCanceled      Stage = "canceled"
)

// SlideFailure records why one slide did not complete.
type SlideFailure struct {
	SlideID    string `json:"slideId"`
	Stage      Stage  `json:"stage"`
	ChunkIndex int    `json:"chunkIndex,omitempty"`
	Message    string `json:"error"`
	Err        error  `json:"-"`
}

func (f *SlideFailure) Error() string {
	return fmt.Sprintf("slide %s: %s: %v", f.SlideID, f.Stage, f.Err)
}

func (f *SlideFailure) Unwrap() error {
	return f.Err
}

// Report counts slide outcomes of one run. Skipped slides had no narration.
type Report struct {
	RunID      string         `json:"runId"`
	Succeeded  int            `json:"succeeded"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	SkippedIDs []string       `json:"skippedIds,omitempty"`
	Failures   []SlideFailure `json:"failures,omitempty"`
}

// Total returns the number of slides in the run.
func (r Report) Total() int {
	return r.Succeeded + r.Skipped + r.Failed
}
