package models

// Event types published by the service.
const (
	EventCaptionsReady = "course.slide.captions.ready"
	EventRevealCommand = "course.slide.reveal.command"
	EventSlideFailed   = "course.slide.failed"
)

// CaptionsReady is emitted when a slide finished synthesis, transcription and segmentation.
type CaptionsReady struct {
	EventType string          `json:"eventType"`
	RunID     string          `json:"runId"`
	CourseID  string          `json:"courseId"`
	ChapterID string          `json:"chapterId"`
	SlideID   string          `json:"slideId"`
	AudioURI  string          `json:"audioUri"`
	Captions  []CaptionChunk  `json:"captions"`
	Timeline  []TimelineEntry `json:"timeline"`
	Timestamp int64           `json:"timestamp"`
}

// RevealCommandEvent wraps a reveal command for message-bus delivery.
type RevealCommandEvent struct {
	EventType string   `json:"eventType"`
	SlideID   string   `json:"slideId"`
	LoadID    string   `json:"loadId"`
	Type      string   `json:"type"`
	ID        string   `json:"id,omitempty"`
	IDs       []string `json:"ids,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// SlideFailed is emitted when one slide's pipeline gives up.
type SlideFailed struct {
	EventType string `json:"eventType"`
	RunID     string `json:"runId"`
	ChapterID string `json:"chapterId"`
	SlideID   string `json:"slideId"`
	Stage     string `json:"stage"`
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
}
