package executor

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chicogong/slidegraph/pkg/schemas"
)

// Progress is one decoded ffmpeg stats line.
type Progress struct {
	Frame   int
	FPS     float64
	Time    time.Duration // position in the stage output
	Size    int64         // bytes written so far
	Bitrate float64       // kbits/s
	Speed   float64       // 1.0 is realtime
}

// statPattern matches the key=value pairs of a stats line. ffmpeg pads
// values with spaces after the equals sign.
var statPattern = regexp.MustCompile(`(\w+)=\s*(\S+)`)

// parseProgress decodes a stats line such as
//
//	frame=  100 fps= 30 q=-1.0 size=    1024kB time=00:00:03.33 bitrate=2000.0kbits/s speed=1.0x
//
// It reports false for every other line ffmpeg prints.
func parseProgress(line string) (*Progress, bool) {
	if !strings.HasPrefix(line, "frame=") {
		return nil, false
	}

	p := &Progress{}
	for _, m := range statPattern.FindAllStringSubmatch(line, -1) {
		v := m[2]
		switch m[1] {
		case "frame":
			p.Frame, _ = strconv.Atoi(v)
		case "fps":
			p.FPS, _ = strconv.ParseFloat(v, 64)
		case "time":
			p.Time = parseClock(v)
		case "size":
			kb := strings.TrimSuffix(strings.TrimSuffix(v, "KiB"), "kB")
			if n, err := strconv.ParseInt(kb, 10, 64); err == nil {
				p.Size = n * 1024
			}
		case "bitrate":
			p.Bitrate, _ = strconv.ParseFloat(strings.TrimSuffix(v, "kbits/s"), 64)
		case "speed":
			p.Speed, _ = strconv.ParseFloat(strings.TrimSuffix(v, "x"), 64)
		}
	}
	return p, true
}

// parseClock reads ffmpeg's HH:MM:SS.cc clock. Malformed and negative
// values read as 0.
func parseClock(s string) time.Duration {
	if strings.HasPrefix(s, "-") {
		return 0
	}
	h, rest, ok := strings.Cut(s, ":")
	if !ok {
		return 0
	}
	m, sec, ok := strings.Cut(rest, ":")
	if !ok {
		return 0
	}
	hours, err1 := strconv.Atoi(h)
	minutes, err2 := strconv.Atoi(m)
	seconds, err3 := strconv.ParseFloat(sec, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0
	}
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		schemas.Seconds(seconds).Duration
}

// scanFFmpegLines is a bufio.SplitFunc that also breaks on the carriage
// returns ffmpeg uses to redraw its stats line.
func scanFFmpegLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Tracker folds per-stage progress into one program-wide figure. Each stage
// counts in proportion to its rendered length. It is safe for concurrent
// use by stages of the same execution level.
type Tracker struct {
	mu       sync.Mutex
	lengths  map[string]time.Duration
	done     map[string]bool
	position map[string]time.Duration
	total    time.Duration
	last     *schemas.Progress
}

// NewTracker creates a tracker for the given commands.
func NewTracker(cmds []*Command) *Tracker {
	t := &Tracker{
		lengths:  make(map[string]time.Duration, len(cmds)),
		done:     make(map[string]bool, len(cmds)),
		position: make(map[string]time.Duration, len(cmds)),
	}
	for _, c := range cmds {
		t.lengths[c.Stage] = c.Length.Duration
		t.total += c.Length.Duration
	}
	return t
}

// Update records a progress line of stage and returns the overall status.
func (t *Tracker) Update(stage string, p *Progress) *schemas.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos := p.Time
	if length := t.lengths[stage]; pos > length {
		pos = length
	}
	t.position[stage] = pos

	status := t.snapshot(stage)
	status.FFmpeg = &schemas.FFmpegProgress{
		Frame:       p.Frame,
		FPS:         p.FPS,
		CurrentTime: schemas.FormatSeconds(p.Time),
		TotalTime:   schemas.FormatSeconds(t.lengths[stage]),
		Speed:       fmt.Sprintf("%.2fx", p.Speed),
		Bitrate:     fmt.Sprintf("%.1fkbits/s", p.Bitrate),
		TotalSize:   p.Size,
	}
	t.last = status
	return status
}

// Complete marks stage as rendered and returns the overall status.
func (t *Tracker) Complete(stage string) *schemas.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.done[stage] = true
	t.position[stage] = t.lengths[stage]
	t.last = t.snapshot(stage)
	return t.last
}

// Last returns the most recent status, or nil before the first update.
func (t *Tracker) Last() *schemas.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func (t *Tracker) snapshot(current string) *schemas.Progress {
	var covered time.Duration
	for _, pos := range t.position {
		covered += pos
	}

	percent := 100.0
	if t.total > 0 {
		percent = float64(covered) / float64(t.total) * 100
	}

	return &schemas.Progress{
		OverallPercent:  percent,
		CurrentStage:    current,
		CompletedStages: len(t.done),
		TotalStages:     len(t.lengths),
	}
}
