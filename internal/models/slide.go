package models

// Narration carries the spoken script of a slide.
type Narration struct {
	FullText string `json:"fullText" jsonschema:"required"`
}

// SlideRecord is one generated slide of a chapter.
type SlideRecord struct {
	SlideID    string    `json:"slideId" jsonschema:"required"`
	SlideIndex int       `json:"slideIndex" jsonschema:"required,minimum=1"`
	HTML       string    `json:"html" jsonschema:"required"`
	Narration  Narration `json:"narration" jsonschema:"required"`
	RevealData []string  `json:"revealData" jsonschema:"required"`
}

// SlideMedia is the narration output of a slide that completed the whole chain.
type SlideMedia struct {
	SlideID  string          `json:"slideId"`
	AudioURI string          `json:"audioUri"`
	Duration float64         `json:"duration"`
	Words    []WordTiming    `json:"words"`
	Captions []CaptionChunk  `json:"captions"`
	Timeline []TimelineEntry `json:"timeline"`
}
