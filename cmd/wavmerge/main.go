// Command wavmerge concatenates WAV files that share one PCM format, the way
// the narration pipeline joins per-chunk speech.
//
//	wavmerge -out lesson.wav part1.wav part2.wav part3.wav
package main

import (
	"flag"
	"log"
	"os"

	"ai-course-media-service/internal/service/audio"
)

func main() {
	out := flag.String("out", "merged.wav", "Path of the merged WAV file")
	gap := flag.Float64("gap", 0, "Seconds of silence inserted between inputs")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("usage: wavmerge [-out file] [-gap seconds] input.wav...")
	}

	var buffers [][]byte
	for i, path := range flag.Args() {
		b, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", path, err)
		}
		if i > 0 && *gap > 0 {
			f, _, err := audio.ParseWAV(b)
			if err != nil {
				log.Fatalf("%s: %v", path, err)
			}
			buffers = append(buffers, audio.Silence(f, *gap))
		}
		buffers = append(buffers, b)
	}

	merged, err := audio.Merge(buffers)
	if err != nil {
		log.Fatalf("Merge failed: %v", err)
	}
	dur, err := audio.WAVDuration(merged)
	if err != nil {
		log.Fatalf("Merged output invalid: %v", err)
	}
	if err := os.WriteFile(*out, merged, 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}
	log.Printf("Wrote %s: %d inputs, %.2fs", *out, flag.NArg(), dur)
}
