// Package reveal schedules and drives the progressive disclosure of slide elements.
//
// Plan maps caption timing onto a timeline of reveal activations. A Controller
// replays that timeline against a playback clock and sends reveal commands to
// a Sink.
package reveal

import (
	"math"
	"sort"

	"ai-course-media-service/internal/models"
)

const (
	// LeadOffset activates a reveal slightly before its caption starts.
	LeadOffset = 0.05
	// Spacing separates reveals that have no caption chunk of their own.
	Spacing = 1.2
	// MinFallbackDuration is the shortest estimated slide length used without captions.
	MinFallbackDuration = 8.0
)

// Plan returns one timeline entry per reveal id, in the order of revealIDs.
//
// With captions, the i-th id activates LeadOffset before the i-th chunk
// starts; ids beyond the last chunk follow its end at Spacing intervals.
// Without captions the ids are spread evenly over max(8, n*Spacing) seconds.
func Plan(revealIDs []string, chunks []models.CaptionChunk) []models.TimelineEntry {
	out := make([]models.TimelineEntry, len(revealIDs))
	if len(revealIDs) == 0 {
		return out
	}

	if len(chunks) == 0 {
		n := float64(len(revealIDs))
		step := math.Max(MinFallbackDuration, n*Spacing) / n
		for i, id := range revealIDs {
			out[i] = models.TimelineEntry{RevealID: id, ActivationTime: float64(i) * step}
		}
		return out
	}

	lastEnd := chunks[len(chunks)-1].End()
	for i, id := range revealIDs {
		var at float64
		if i < len(chunks) {
			at = math.Max(0, chunks[i].Start()-LeadOffset)
		} else {
			at = lastEnd + float64(i-len(chunks)+1)*Spacing
		}
		out[i] = models.TimelineEntry{RevealID: id, ActivationTime: at}
	}
	return out
}

// Sorted returns a copy of entries ordered by activation time. Entries with
// equal times keep their original order.
func Sorted(entries []models.TimelineEntry) []models.TimelineEntry {
	out := make([]models.TimelineEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ActivationTime < out[j].ActivationTime
	})
	return out
}
