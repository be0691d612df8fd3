// Package models defines the data structures shared by the course media services.
package models

// WordTiming is a single transcribed word with its position in the audio, in seconds.
type WordTiming struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// CaptionChunk is a short, readable span of transcript text.
// Timestamp holds [start, end] in seconds.
type CaptionChunk struct {
	Timestamp [2]float64 `json:"timestamp"`
	Text      string     `json:"text"`
	WordCount int        `json:"wordCount"`
}

// Start returns the chunk start time.
func (c CaptionChunk) Start() float64 { return c.Timestamp[0] }

// End returns the chunk end time.
func (c CaptionChunk) End() float64 { return c.Timestamp[1] }

// TimelineEntry schedules when a reveal id becomes visible.
type TimelineEntry struct {
	RevealID       string  `json:"revealId"`
	ActivationTime float64 `json:"activationTime"`
}

// PlaybackState is the per-instance clock position of a slide being displayed.
// LastActivatedIndex is -1 until the first timeline entry is due.
type PlaybackState struct {
	CurrentTime        float64 `json:"currentTime"`
	LastActivatedIndex int     `json:"lastActivatedIndex"`
}
