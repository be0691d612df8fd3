// Package audio parses, builds, and merges PCM WAV buffers.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the size of a canonical PCM WAV header.
const HeaderSize = 44

// FormatPCM is the WAVE format tag for uncompressed PCM.
const FormatPCM = 1

var (
	ErrNotWAV  = errors.New("not a RIFF/WAVE buffer")
	ErrNoFmt   = errors.New("wav buffer has no fmt chunk")
	ErrNoData  = errors.New("wav buffer has no data chunk")
	ErrNoInput = errors.New("no audio buffers to merge")
)

// Format describes the sample layout of a WAV buffer.
type Format struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

func (f Format) String() string {
	return fmt.Sprintf("format=%d channels=%d sampleRate=%d bitsPerSample=%d",
		f.AudioFormat, f.Channels, f.SampleRate, f.BitsPerSample)
}

// BytesPerSecond returns the data rate of the format.
func (f Format) BytesPerSecond() int {
	return int(f.SampleRate) * int(f.Channels) * int(f.BitsPerSample) / 8
}

// Duration returns the playback length in seconds of dataLen bytes of samples.
func (f Format) Duration(dataLen int) float64 {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return float64(dataLen) / float64(bps)
}

// ParseWAV reads the format and sample data of a WAV buffer. Chunks other
// than "fmt " and "data" are skipped. The returned data aliases b.
func ParseWAV(b []byte) (Format, []byte, error) {
	var f Format
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return f, nil, ErrNotWAV
	}

	haveFmt := false
	for off := 12; off+8 <= len(b); {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := off + 8
		end := body + size
		if size < 0 || end > len(b) {
			end = len(b)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return f, nil, fmt.Errorf("%w: fmt chunk is %d bytes", ErrNotWAV, end-body)
			}
			c := b[body:end]
			f.AudioFormat = binary.LittleEndian.Uint16(c[0:2])
			f.Channels = binary.LittleEndian.Uint16(c[2:4])
			f.SampleRate = binary.LittleEndian.Uint32(c[4:8])
			f.BitsPerSample = binary.LittleEndian.Uint16(c[14:16])
			haveFmt = true
		case "data":
			if !haveFmt {
				return f, nil, ErrNoFmt
			}
			return f, b[body:end], nil
		}

		// Chunks are word aligned.
		off = end + (end-body)%2
	}
	if !haveFmt {
		return f, nil, ErrNoFmt
	}
	return f, nil, ErrNoData
}

// EncodeWAV wraps PCM data in a canonical 44-byte header.
func EncodeWAV(f Format, data []byte) []byte {
	out := make([]byte, HeaderSize+len(data))
	blockAlign := f.Channels * f.BitsPerSample / 8

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(data)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], f.AudioFormat)
	binary.LittleEndian.PutUint16(out[22:24], f.Channels)
	binary.LittleEndian.PutUint32(out[24:28], f.SampleRate)
	binary.LittleEndian.PutUint32(out[28:32], uint32(f.BytesPerSecond()))
	binary.LittleEndian.PutUint16(out[32:34], blockAlign)
	binary.LittleEndian.PutUint16(out[34:36], f.BitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(data)))
	copy(out[HeaderSize:], data)
	return out
}

// Silence returns a WAV buffer of the given length containing only zero samples.
func Silence(f Format, seconds float64) []byte {
	n := int(seconds * float64(f.BytesPerSecond()))
	if align := int(f.Channels) * int(f.BitsPerSample) / 8; align > 0 {
		n -= n % align
	}
	if n < 0 {
		n = 0
	}
	return EncodeWAV(f, make([]byte, n))
}

// WAVDuration returns the playback length in seconds of a WAV buffer.
func WAVDuration(b []byte) (float64, error) {
	f, data, err := ParseWAV(b)
	if err != nil {
		return 0, err
	}
	return f.Duration(len(data)), nil
}
