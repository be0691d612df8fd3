package audio

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"ai-course-media-service/internal/observability/metrics"
)

// FormatMismatchError reports a buffer whose format differs from the first buffer of a merge.
type FormatMismatchError struct {
	Index int
	Want  Format
	Got   Format
}

func (e *FormatMismatchError) Error() string {
	return fmt.Sprintf("audio buffer %d: %s, want %s", e.Index, e.Got, e.Want)
}

// Merge concatenates WAV buffers into one buffer with a single header.
// Every buffer must share the format of the first; on a mismatch Merge
// returns a *FormatMismatchError and no output.
func Merge(buffers [][]byte) ([]byte, error) {
	return merge(buffers, metrics.DefaultMetrics)
}

func merge(buffers [][]byte, m *metrics.Metrics) ([]byte, error) {
	if len(buffers) == 0 {
		return nil, ErrNoInput
	}

	var want Format
	parts := make([][]byte, len(buffers))
	total := 0
	for i, b := range buffers {
		f, data, err := ParseWAV(b)
		if err != nil {
			return nil, fmt.Errorf("audio buffer %d: %w", i, err)
		}
		if i == 0 {
			want = f
		} else if f != want {
			log.Warn().
				Int("index", i).
				Str("want", want.String()).
				Str("got", f.String()).
				Msg("Audio format mismatch, refusing to merge")
			if m != nil {
				m.RecordAudioFormatMismatch()
			}
			return nil, &FormatMismatchError{Index: i, Want: want, Got: f}
		}
		parts[i] = data
		total += len(data)
	}

	data := make([]byte, 0, total)
	for _, p := range parts {
		data = append(data, p...)
	}
	if m != nil {
		m.RecordAudioMerged()
	}
	return EncodeWAV(want, data), nil
}
