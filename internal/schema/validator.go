// Package schema validates recovered slide records and describes their JSON shape.
package schema

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/tidwall/gjson"

	"ai-course-media-service/internal/models"
)

// ErrShape is returned when a candidate document is not slide-shaped.
var ErrShape = errors.New("document is not a slide list")

// FirstRevealID is the reveal id every slide opens with.
const FirstRevealID = "r1"

// ValidationError reports a recovered record that is missing or has an invalid field.
// The record is dropped; the batch continues.
type ValidationError struct {
	Index   int    `json:"index"`
	SlideID string `json:"slideId,omitempty"`
	Field   string `json:"field"`
	Reason  string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("slide %d (%s): %s: %s", e.Index, e.SlideID, e.Field, e.Reason)
}

var revealAnchorRe = regexp.MustCompile(`data-reveal\s*=\s*\\?["']([^"'\\]+)\\?["']`)

// SlideElements returns the slide objects of a document. It accepts a bare
// array, an object wrapping the array under "slides", or a single slide object.
func SlideElements(data []byte) ([]gjson.Result, error) {
	doc := gjson.ParseBytes(data)
	switch {
	case doc.IsArray():
	case doc.IsObject() && doc.Get("slides").IsArray():
		doc = doc.Get("slides")
	case doc.IsObject() && doc.Get("slideId").Exists():
		return []gjson.Result{doc}, nil
	default:
		return nil, fmt.Errorf("%w: top-level %s", ErrShape, doc.Type)
	}
	return doc.Array(), nil
}

// ValidateSlidesShape is a structural check for recovery candidates: the
// document must be a list of objects, and a non-empty list must carry at
// least one slideId.
func ValidateSlidesShape(data []byte) error {
	elems, err := SlideElements(data)
	if err != nil {
		return err
	}
	if len(elems) == 0 {
		return nil
	}
	marked := false
	for i, e := range elems {
		if !e.IsObject() {
			return fmt.Errorf("%w: element %d is %s", ErrShape, i, e.Type)
		}
		if e.Get("slideId").Exists() {
			marked = true
		}
	}
	if !marked {
		return fmt.Errorf("%w: no element has slideId", ErrShape)
	}
	return nil
}

// ValidateSlide checks the record invariants. index is the record position
// in its batch, used for reporting.
func ValidateSlide(index int, s models.SlideRecord) error {
	fail := func(field, reason string) error {
		return &ValidationError{Index: index, SlideID: s.SlideID, Field: field, Reason: reason}
	}

	if s.SlideID == "" {
		return fail("slideId", "missing")
	}
	if s.SlideIndex < 1 {
		return fail("slideIndex", "must be >= 1")
	}
	if s.HTML == "" {
		return fail("html", "missing")
	}
	if len(s.RevealData) == 0 {
		return fail("revealData", "missing")
	}
	if s.RevealData[0] != FirstRevealID {
		return fail("revealData", fmt.Sprintf("first reveal id is %q, want %q", s.RevealData[0], FirstRevealID))
	}

	ids := make(map[string]bool, len(s.RevealData))
	for _, id := range s.RevealData {
		if ids[id] {
			return fail("revealData", fmt.Sprintf("duplicate reveal id %q", id))
		}
		ids[id] = true
	}

	// Html without anchors reveals as a single block; otherwise anchors and ids must match.
	anchors := RevealAnchors(s.HTML)
	if len(anchors) == 0 {
		return nil
	}
	if len(anchors) != len(ids) {
		return fail("revealData", fmt.Sprintf("%d reveal ids for %d html anchors", len(ids), len(anchors)))
	}
	for _, a := range anchors {
		if !ids[a] {
			return fail("revealData", fmt.Sprintf("html anchor %q not listed", a))
		}
	}
	return nil
}

// RevealAnchors returns the distinct data-reveal ids referenced in html, in document order.
func RevealAnchors(html string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range revealAnchorRe.FindAllStringSubmatch(html, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}
