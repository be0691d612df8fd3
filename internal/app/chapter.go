package app

import (
	"context"

	"ai-course-media-service/internal/models"
	"ai-course-media-service/internal/schema"
	"ai-course-media-service/internal/service/chapter"
	"ai-course-media-service/internal/service/pipeline"
)

// ChapterRequest describes a chapter to draft and narrate.
type ChapterRequest = chapter.Request

// ChapterResult is a drafted deck together with the narration media of the
// slides that completed and the per-slide report.
type ChapterResult struct {
	Slides   []models.SlideRecord      `json:"slides"`
	Dropped  []*schema.ValidationError `json:"dropped,omitempty"`
	Strategy string                    `json:"strategy"`
	Media    []models.SlideMedia       `json:"media"`
	Report   pipeline.Report           `json:"report"`
}

// GenerateAndNarrate drafts the chapter and runs every slide through the
// narration pipeline. Slide failures are reported, not returned; an error
// means no slides could be drafted or ctx ended first.
func (a *Application) GenerateAndNarrate(ctx context.Context, req ChapterRequest) (*ChapterResult, error) {
	drafted, err := a.Chapters.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	run, err := a.Pipeline.Run(ctx, pipeline.Chapter{
		CourseID:  req.CourseID,
		ChapterID: req.ChapterID,
		Slides:    drafted.Slides,
	})
	out := &ChapterResult{
		Slides:   drafted.Slides,
		Dropped:  drafted.Dropped,
		Strategy: drafted.Strategy,
	}
	if run != nil {
		out.Media = run.Media
		out.Report = run.Report
	}
	return out, err
}
