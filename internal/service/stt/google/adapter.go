// Package google provides a Google Cloud Speech-to-Text transcriber.
package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-course-media-service/internal/models"
	"ai-course-media-service/internal/observability/metrics"
	"ai-course-media-service/internal/service/retry"
	"ai-course-media-service/internal/service/stt"
)

const provider = "google"

// Config holds Google STT configuration.
type Config struct {
	LanguageCode        string
	SampleRateHz        int
	AudioEncoding       string
	EnablePunctuation   bool
	FallbackWordSeconds float64
}

// DefaultConfig returns sensible defaults for synthesized narration.
func DefaultConfig() Config {
	return Config{
		LanguageCode:        "en-US",
		SampleRateHz:        22050,
		AudioEncoding:       "LINEAR16",
		EnablePunctuation:   true,
		FallbackWordSeconds: stt.DefaultWordSeconds,
	}
}

type (
	recognizeFunc     func(context.Context, *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
	longRecognizeFunc func(context.Context, *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error)
)

// Transcriber implements stt.Transcriber using Google Cloud Speech-to-Text.
// Inline content uses synchronous recognition; gs:// URIs use long-running
// recognition.
type Transcriber struct {
	client        *speech.Client
	cfg           Config
	metrics       *metrics.Metrics
	recognize     recognizeFunc
	longRecognize longRecognizeFunc
}

// New creates a new Google transcriber.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Transcriber, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	t := &Transcriber{client: c, cfg: cfg, metrics: metrics.DefaultMetrics}
	t.recognize = func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return c.Recognize(ctx, req)
	}
	t.longRecognize = func(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
		op, err := c.LongRunningRecognize(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	}
	return t, nil
}

// Transcribe recognizes audio and returns word timings.
func (t *Transcriber) Transcribe(ctx context.Context, audio stt.Audio) ([]models.WordTiming, error) {
	config, src, long, err := t.buildRequest(audio)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var results []*speechpb.SpeechRecognitionResult
	if long {
		resp, rerr := t.longRecognize(ctx, &speechpb.LongRunningRecognizeRequest{Config: config, Audio: src})
		err = rerr
		if resp != nil {
			results = resp.Results
		}
	} else {
		resp, rerr := t.recognize(ctx, &speechpb.RecognizeRequest{Config: config, Audio: src})
		err = rerr
		if resp != nil {
			results = resp.Results
		}
	}
	latency := time.Since(start).Seconds()

	if err != nil {
		err = classify(err)
		if t.metrics != nil {
			t.metrics.RecordExternalCall("stt", provider, errorType(err), latency)
		}
		return nil, fmt.Errorf("google recognize: %w", err)
	}
	if t.metrics != nil {
		t.metrics.RecordExternalCall("stt", provider, "", latency)
	}

	words, transcript := wordsFromResults(results)
	log.Debug().
		Int("words", len(words)).
		Bool("longRunning", long).
		Float64("latencySeconds", latency).
		Msg("Google transcription complete")
	return stt.Resolve(words, transcript, t.cfg.FallbackWordSeconds)
}

// Close releases the underlying client.
func (t *Transcriber) Close() error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}

func (t *Transcriber) buildRequest(audio stt.Audio) (*speechpb.RecognitionConfig, *speechpb.RecognitionAudio, bool, error) {
	rate := t.cfg.SampleRateHz
	if audio.SampleRateHz > 0 {
		rate = audio.SampleRateHz
	}
	config := &speechpb.RecognitionConfig{
		Encoding:                   parseAudioEncoding(t.cfg.AudioEncoding),
		SampleRateHertz:            int32(rate),
		LanguageCode:               t.cfg.LanguageCode,
		EnableWordTimeOffsets:      true,
		EnableAutomaticPunctuation: t.cfg.EnablePunctuation,
	}

	switch {
	case len(audio.Content) > 0:
		return config, &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio.Content},
		}, false, nil
	case strings.HasPrefix(audio.URI, "gs://"):
		return config, &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: audio.URI},
		}, true, nil
	case audio.URI != "":
		return nil, nil, false, fmt.Errorf("google speech cannot fetch %q: only gs:// uris or inline content", audio.URI)
	default:
		return nil, nil, false, stt.ErrNoAudio
	}
}

// wordsFromResults flattens the top alternative of every result.
func wordsFromResults(results []*speechpb.SpeechRecognitionResult) ([]models.WordTiming, string) {
	var (
		words []models.WordTiming
		texts []string
	)
	for _, r := range results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if s := strings.TrimSpace(alt.Transcript); s != "" {
			texts = append(texts, s)
		}
		for _, w := range alt.Words {
			words = append(words, models.WordTiming{
				Text:  w.Word,
				Start: w.StartTime.AsDuration().Seconds(),
				End:   w.EndTime.AsDuration().Seconds(),
			})
		}
	}
	return words, strings.Join(texts, " ")
}

// classify marks gRPC statuses worth retrying as transient.
func classify(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Internal, codes.Aborted:
		return &retry.TransientServiceError{Service: "stt.google", Err: err}
	}
	return err
}

func errorType(err error) string {
	if st, ok := status.FromError(err); ok {
		return strings.ToLower(st.Code().String())
	}
	if retry.IsTransient(err) {
		return "transient"
	}
	return "error"
}

// parseAudioEncoding converts a string encoding name to the Google Speech API enum.
// Supported values: LINEAR16, MULAW, FLAC, AMR, AMR_WB, OGG_OPUS, SPEEX_WITH_HEADER_BYTE, WEBM_OPUS
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
