// Package prober reads media properties with ffprobe and fills in clip
// durations a show description leaves open.
package prober

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/chicogong/slidegraph/pkg/schemas"
	"github.com/chicogong/slidegraph/pkg/timeline"
)

// ErrFFprobeNotFound is returned by Probe when no ffprobe binary was
// configured or found.
var ErrFFprobeNotFound = errors.New("ffprobe not found in PATH")

// Prober probes media files using ffprobe
type Prober struct {
	ffprobePath string
}

// ProberOption is a functional option for Prober
type ProberOption func(*Prober)

// WithFFprobePath sets a custom ffprobe binary path
func WithFFprobePath(path string) ProberOption {
	return func(p *Prober) {
		p.ffprobePath = path
	}
}

// NewProber creates a new Prober instance
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		ffprobePath: findFFprobe(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Probe runs ffprobe on filePath, which may be a local path or a URL
// ffprobe can open.
func (p *Prober) Probe(ctx context.Context, filePath string) (*schemas.MediaInfo, error) {
	if p.ffprobePath == "" {
		return nil, ErrFFprobeNotFound
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("ffprobe failed on %s: %s", filePath, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe execution error: %w", err)
	}

	return parseFFprobeOutput(output)
}

// MediaProber is anything that can describe a media file.
type MediaProber interface {
	Probe(ctx context.Context, filePath string) (*schemas.MediaInfo, error)
}

// Duration picks the container duration, falling back to the first video
// stream when the container does not report one.
func Duration(info *schemas.MediaInfo) time.Duration {
	if info.Format.Duration > 0 {
		return info.Format.Duration
	}
	for _, v := range info.VideoStreams {
		if v.Duration > 0 {
			return v.Duration
		}
	}
	return 0
}

// FillClipDurations probes every clip node whose duration is unset and
// writes the probed length back into spec. paths maps a node source to
// the local file to probe; sources missing from paths are probed as-is,
// which ffprobe handles for local paths and http(s) URLs. Each distinct
// file is probed once. It returns the number of nodes updated.
func FillClipDurations(ctx context.Context, p MediaProber, spec *schemas.ShowSpec, paths map[string]string) (int, error) {
	probed := make(map[string]time.Duration)
	filled := 0

	for i := range spec.Nodes {
		node := &spec.Nodes[i]
		kind, err := timeline.ParseKind(node.Kind)
		if err != nil || kind != timeline.KindClip || node.Duration.Duration > 0 {
			continue
		}

		target := node.Source
		if local, ok := paths[node.Source]; ok {
			target = local
		}

		d, ok := probed[target]
		if !ok {
			info, err := p.Probe(ctx, target)
			if err != nil {
				return filled, fmt.Errorf("node %d: %w", i, err)
			}
			d = Duration(info)
			probed[target] = d
		}
		if d <= 0 {
			return filled, fmt.Errorf("node %d: %s reports no duration", i, node.Source)
		}

		node.Duration = schemas.Duration{Duration: d}
		filled++
	}
	return filled, nil
}

// ffprobeCandidates are tried in order when no path is configured.
var ffprobeCandidates = []string{
	"ffprobe",
	"/usr/local/bin/ffprobe",
	"/opt/homebrew/bin/ffprobe",
	"/usr/bin/ffprobe",
}

func findFFprobe() string {
	for _, path := range ffprobeCandidates {
		if resolved, err := exec.LookPath(path); err == nil {
			return resolved
		}
	}
	return ""
}

// ffprobeOutput is the subset of `ffprobe -print_format json` we read.
// ffprobe prints most numbers as strings.
type ffprobeOutput struct {
	Format struct {
		Filename   string `json:"filename"`
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		BitRate    string `json:"bit_rate"`
		StartTime  string `json:"start_time"`
	} `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	Index       int    `json:"index"`
	CodecType   string `json:"codec_type"`
	CodecName   string `json:"codec_name"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	RFrameRate  string `json:"r_frame_rate"`
	PixelFormat string `json:"pix_fmt"`
	SampleRate  string `json:"sample_rate"`
	Channels    int    `json:"channels"`
	BitRate     string `json:"bit_rate"`
	Duration    string `json:"duration"`
}

func parseFFprobeOutput(data []byte) (*schemas.MediaInfo, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &schemas.MediaInfo{
		Format: schemas.FormatInfo{
			Filename:  out.Format.Filename,
			Format:    out.Format.FormatName,
			Duration:  parseSeconds(out.Format.Duration),
			Size:      parseInt[int64](out.Format.Size),
			BitRate:   parseInt[int64](out.Format.BitRate),
			StartTime: parseSeconds(out.Format.StartTime),
		},
	}

	for _, st := range out.Streams {
		switch st.CodecType {
		case "video":
			info.VideoStreams = append(info.VideoStreams, schemas.VideoStream{
				Index:       st.Index,
				Codec:       st.CodecName,
				Width:       st.Width,
				Height:      st.Height,
				FrameRate:   parseFrameRate(st.RFrameRate),
				PixelFormat: st.PixelFormat,
				BitRate:     parseInt[int64](st.BitRate),
				Duration:    parseSeconds(st.Duration),
			})
		case "audio":
			info.AudioStreams = append(info.AudioStreams, schemas.AudioStream{
				Index:      st.Index,
				Codec:      st.CodecName,
				SampleRate: parseInt[int](st.SampleRate),
				Channels:   st.Channels,
				BitRate:    parseInt[int64](st.BitRate),
				Duration:   parseSeconds(st.Duration),
			})
		}
	}
	return info, nil
}

// parseSeconds reads ffprobe's fractional seconds. "N/A" and other junk
// read as zero.
func parseSeconds(s string) time.Duration {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return schemas.Seconds(v).Duration
}

func parseInt[T int | int64](s string) T {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return T(v)
}

// parseFrameRate reads a rational such as "30000/1001", or a plain number.
func parseFrameRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		rate, _ := strconv.ParseFloat(s, 64)
		return rate
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
