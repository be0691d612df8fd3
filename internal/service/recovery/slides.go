package recovery

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"ai-course-media-service/internal/models"
	"ai-course-media-service/internal/schema"
)

// SlideResult is the outcome of recovering a slide list.
type SlideResult struct {
	Slides   []models.SlideRecord
	Dropped  []*schema.ValidationError
	Strategy string
}

// NewSlideParser returns a Parser whose structural validator requires a slide list.
func NewSlideParser(opts ...Option) *Parser {
	return New(append([]Option{WithValidator(schema.ValidateSlidesShape)}, opts...)...)
}

// ParseSlides recovers a slide list from raw model text. Records that fail
// validation are dropped and reported. After parsing, attribute quoting inside
// each record's html tags is normalized to single quotes, so Strategy names
// the step that made the text parse, not the one that quoted attributes. An
// empty list is a valid result.
func (p *Parser) ParseSlides(raw string) (*SlideResult, error) {
	res, err := p.Recover(raw)
	if err != nil {
		return nil, err
	}
	elems, err := schema.SlideElements(res.Data)
	if err != nil {
		return nil, err
	}

	out := &SlideResult{Strategy: res.Strategy, Slides: make([]models.SlideRecord, 0, len(elems))}
	for i, e := range elems {
		var s models.SlideRecord
		if err := json.Unmarshal([]byte(e.Raw), &s); err != nil {
			out.Dropped = append(out.Dropped, &schema.ValidationError{
				Index: i, SlideID: e.Get("slideId").String(), Field: "record", Reason: err.Error(),
			})
			continue
		}
		s.HTML = NormalizeHTMLAttributes(s.HTML)

		if err := schema.ValidateSlide(i, s); err != nil {
			var ve *schema.ValidationError
			if errors.As(err, &ve) {
				out.Dropped = append(out.Dropped, ve)
			}
			continue
		}
		out.Slides = append(out.Slides, s)
	}

	for _, d := range out.Dropped {
		if p.metrics != nil {
			p.metrics.RecordValidationDropped(d.Field)
		}
		log.Warn().
			Int("index", d.Index).
			Str("slideId", d.SlideID).
			Str("field", d.Field).
			Str("reason", d.Reason).
			Msg("Dropped invalid slide record")
	}
	return out, nil
}
