// Package wavio reads and writes 16-bit PCM RIFF/WAVE files.
//
// The cue reference library stores its waveforms as plain WAV so they can
// be auditioned in any editor; this codec covers exactly that format plus
// a tolerant reader for WAV files produced by other tools (extra chunks
// such as LIST/INFO are skipped, 24/32-bit and float variants are not
// supported and return an error).
package wavio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	formatPCM = 1

	// headerSize is the canonical RIFF+fmt+data header length written by
	// Encode. Readers must not assume it: chunk order varies across tools.
	headerSize = 44
)

var (
	// ErrNotWave is returned when the file lacks a RIFF/WAVE signature.
	ErrNotWave = errors.New("wavio: not a RIFF/WAVE file")

	// ErrUnsupported is returned for encodings other than 16-bit PCM.
	ErrUnsupported = errors.New("wavio: unsupported encoding (want 16-bit PCM)")
)

// fmtChunk mirrors the fixed part of the WAVE "fmt " chunk on the wire.
type fmtChunk struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// Clip holds decoded audio: mono float64 samples in [-1, 1] plus the
// source sample rate. Stereo input is averaged down to mono.
type Clip struct {
	Samples []float64
	Rate    int
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.Rate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.Rate)
}

// ReadFile decodes a WAV file into a mono Clip.
func ReadFile(path string) (Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Clip{}, fmt.Errorf("wavio: read %s: %w", path, err)
	}
	clip, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Clip{}, fmt.Errorf("wavio: decode %s: %w", path, err)
	}
	return clip, nil
}

// Decode parses a RIFF/WAVE stream. Chunks other than "fmt " and "data"
// are skipped, so files with LIST/INFO metadata decode fine.
func Decode(r io.Reader) (Clip, error) {
	var riff struct {
		ChunkID   [4]byte
		ChunkSize uint32
		Format    [4]byte
	}
	if err := binary.Read(r, binary.LittleEndian, &riff); err != nil {
		return Clip{}, fmt.Errorf("wavio: riff header: %w", err)
	}
	if string(riff.ChunkID[:]) != "RIFF" || string(riff.Format[:]) != "WAVE" {
		return Clip{}, ErrNotWave
	}

	var (
		format  fmtChunk
		haveFmt bool
	)
	for {
		var chunk struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			if err == io.EOF {
				return Clip{}, fmt.Errorf("wavio: no data chunk: %w", io.ErrUnexpectedEOF)
			}
			return Clip{}, fmt.Errorf("wavio: chunk header: %w", err)
		}

		switch string(chunk.ID[:]) {
		case "fmt ":
			if err := binary.Read(r, binary.LittleEndian, &format); err != nil {
				return Clip{}, fmt.Errorf("wavio: fmt chunk: %w", err)
			}
			haveFmt = true
			// Some encoders append extension bytes to fmt; skip them.
			if extra := int64(chunk.Size) - 16; extra > 0 {
				if err := skip(r, extra); err != nil {
					return Clip{}, err
				}
			}
		case "data":
			if !haveFmt {
				return Clip{}, fmt.Errorf("wavio: data chunk before fmt: %w", ErrNotWave)
			}
			return decodeData(r, format, chunk.Size)
		default:
			// Chunk sizes are word-aligned; odd sizes carry a pad byte.
			size := int64(chunk.Size)
			if chunk.Size%2 == 1 {
				size++
			}
			if err := skip(r, size); err != nil {
				return Clip{}, err
			}
		}
	}
}

func decodeData(r io.Reader, format fmtChunk, size uint32) (Clip, error) {
	if format.AudioFormat != formatPCM || format.BitsPerSample != 16 {
		return Clip{}, fmt.Errorf("wavio: format=%d bits=%d: %w",
			format.AudioFormat, format.BitsPerSample, ErrUnsupported)
	}
	channels := int(format.NumChannels)
	if channels < 1 || channels > 2 {
		return Clip{}, fmt.Errorf("wavio: %d channels: %w", channels, ErrUnsupported)
	}

	raw := make([]byte, size)
	n, err := io.ReadFull(r, raw)
	if err != nil {
		// A truncated data chunk is tolerated; decode what is there.
		if err != io.ErrUnexpectedEOF {
			return Clip{}, fmt.Errorf("wavio: data chunk: %w", err)
		}
		raw = raw[:n]
	}

	frameBytes := 2 * channels
	frames := len(raw) / frameBytes
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		base := i * frameBytes
		var sum float64
		for ch := 0; ch < channels; ch++ {
			v := int16(binary.LittleEndian.Uint16(raw[base+2*ch:]))
			sum += float64(v) / 32768.0
		}
		samples[i] = sum / float64(channels)
	}
	return Clip{Samples: samples, Rate: int(format.SampleRate)}, nil
}

// WriteFile encodes mono samples as a WAV file. When stereo is true the
// mono signal is duplicated into two identical channels.
func WriteFile(path string, samples []float64, rate int, stereo bool) error {
	var buf bytes.Buffer
	if err := Encode(&buf, samples, rate, stereo); err != nil {
		return fmt.Errorf("wavio: encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("wavio: write %s: %w", path, err)
	}
	return nil
}

// Encode writes a canonical 44-byte header followed by 16-bit PCM frames.
func Encode(w io.Writer, samples []float64, rate int, stereo bool) error {
	if rate <= 0 {
		return fmt.Errorf("wavio: invalid sample rate %d", rate)
	}
	channels := uint16(1)
	if stereo {
		channels = 2
	}
	blockAlign := channels * 2
	dataSize := uint32(len(samples)) * uint32(blockAlign)

	header := struct {
		ChunkID       [4]byte
		ChunkSize     uint32
		Format        [4]byte
		Subchunk1ID   [4]byte
		Subchunk1Size uint32
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Subchunk2ID   [4]byte
		Subchunk2Size uint32
	}{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(headerSize-8) + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   formatPCM,
		NumChannels:   channels,
		SampleRate:    uint32(rate),
		ByteRate:      uint32(rate) * uint32(blockAlign),
		BlockAlign:    blockAlign,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("wavio: header: %w", err)
	}

	frame := make([]byte, blockAlign)
	for _, s := range samples {
		v := int16(math.Round(clamp(s, -1, 1) * 32767.0))
		binary.LittleEndian.PutUint16(frame[0:], uint16(v))
		if stereo {
			binary.LittleEndian.PutUint16(frame[2:], uint16(v))
		}
		if _, err := w.Write(frame); err != nil {
			return fmt.Errorf("wavio: data: %w", err)
		}
	}
	return nil
}

func skip(r io.Reader, n int64) error {
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("wavio: skip chunk: %w", err)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
