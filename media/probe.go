package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Info is what Probe reports about one media file.
type Info struct {
	DurationS     float64 `json:"duration_s"`
	Container     string  `json:"container,omitempty"`
	HasAudio      bool    `json:"has_audio"`
	HasVideo      bool    `json:"has_video"`
	SampleRate    int     `json:"sample_rate,omitempty"`
	AudioChannels int     `json:"audio_channels,omitempty"`
}

// Probe reads container metadata without decoding any frames.
func (d *Decoder) Probe(ctx context.Context, path string) (Info, error) {
	cmd := exec.CommandContext(ctx, d.ffprobe, probeArgs(path)...)
	out, err := cmd.Output()
	if err != nil {
		return Info{}, fmt.Errorf("media: probe %s: %w", filepath.Base(path), toolError(err))
	}
	info, err := parseProbe(out)
	if err != nil {
		return Info{}, fmt.Errorf("media: probe %s: %w", filepath.Base(path), err)
	}
	return info, nil
}

func probeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
}

// probeOutput mirrors the slice of ffprobe's JSON we care about.
// Numeric fields arrive as strings.
type probeOutput struct {
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

func parseProbe(raw []byte) (Info, error) {
	var po probeOutput
	if err := json.Unmarshal(raw, &po); err != nil {
		return Info{}, fmt.Errorf("unexpected ffprobe output: %w", err)
	}

	info := Info{Container: po.Format.FormatName}
	if po.Format.Duration != "" {
		dur, err := strconv.ParseFloat(po.Format.Duration, 64)
		if err != nil {
			return Info{}, fmt.Errorf("bad duration %q: %w", po.Format.Duration, err)
		}
		info.DurationS = dur
	}

	for _, s := range po.Streams {
		switch s.CodecType {
		case "audio":
			info.HasAudio = true
			info.AudioChannels = s.Channels
			if s.SampleRate != "" {
				if sr, err := strconv.Atoi(s.SampleRate); err == nil {
					info.SampleRate = sr
				}
			}
		case "video":
			info.HasVideo = true
		}
	}
	return info, nil
}
