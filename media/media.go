// Package media shells out to ffmpeg and ffprobe so the rest of the
// system only ever sees decoded samples and plain metadata. The core
// packages never open containers themselves.
package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/loopsmith/loopsync/internal/wavio"
)

// ErrNoTooling means ffmpeg or ffprobe is not installed. Nothing can be
// decoded without them, so this is a startup failure, not a per-file
// one.
var ErrNoTooling = errors.New("media: ffmpeg and ffprobe are required on PATH")

// Decoder renders arbitrary containers to mono float PCM.
type Decoder struct {
	ffmpeg  string
	ffprobe string
}

// NewDecoder resolves the tool binaries once up front.
func NewDecoder() (*Decoder, error) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoTooling, err)
	}
	ffprobe, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoTooling, err)
	}
	slog.Debug("media: decoder ready", "ffmpeg", ffmpeg, "ffprobe", ffprobe)
	return &Decoder{ffmpeg: ffmpeg, ffprobe: ffprobe}, nil
}

// DecodeMono returns path rendered as mono samples at rate Hz. A wave
// file already at the requested rate is read directly, skipping the
// subprocess; everything else goes through ffmpeg.
func (d *Decoder) DecodeMono(ctx context.Context, path string, rate int) ([]float64, int, error) {
	if rate <= 0 {
		return nil, 0, fmt.Errorf("media: non-positive sample rate %d", rate)
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		clip, err := wavio.ReadFile(path)
		if err == nil && clip.Rate == rate {
			return clip.Samples, clip.Rate, nil
		}
		// Unsupported encoding or a different rate: let ffmpeg cope.
	}

	cmd := exec.CommandContext(ctx, d.ffmpeg, decodeArgs(path, rate)...)
	out, err := cmd.Output()
	if err != nil {
		return nil, 0, fmt.Errorf("media: decode %s: %w", filepath.Base(path), toolError(err))
	}
	return parseF32LE(out), rate, nil
}

// decodeArgs builds the ffmpeg invocation: demux anything, drop video,
// downmix to one channel, resample, raw float32 frames on stdout.
func decodeArgs(path string, rate int) []string {
	return []string{
		"-v", "error",
		"-i", path,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(rate),
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"pipe:1",
	}
}

// parseF32LE converts raw little-endian float32 frames to float64
// samples. A trailing partial frame is dropped.
func parseF32LE(raw []byte) []float64 {
	n := len(raw) / 4
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		out[i] = float64(math.Float32frombits(bits))
	}
	return out
}

// toolError surfaces the first stderr line from a failed subprocess,
// which is where ffmpeg puts the reason.
func toolError(err error) error {
	var ee *exec.ExitError
	if errors.As(err, &ee) && len(ee.Stderr) > 0 {
		line := ee.Stderr
		if i := bytes.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		}
		return fmt.Errorf("%v: %s", err, bytes.TrimSpace(line))
	}
	return err
}
