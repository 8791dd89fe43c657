package schemas

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	timecodePattern = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})(?:\.(\d{1,3}))?$`)
	isoPartPattern  = regexp.MustCompile(`(\d+(?:\.\d+)?)([HMS])`)
)

// Duration wraps time.Duration so show files can spell durations the way
// people write them: "2s", "00:00:02.500", "PT2S" or a bare number of seconds.
// It always marshals back as a Go duration string.
type Duration struct {
	time.Duration
}

// Seconds builds a Duration from fractional seconds, rounded to the nearest
// nanosecond.
func Seconds(s float64) Duration {
	return Duration{secondsToDuration(s)}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts either a string in any ParseDuration format or a
// JSON number of seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case float64:
		d.Duration = secondsToDuration(v)
		return nil
	case string:
		parsed, err := ParseDuration(v)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration: %s", string(b))
	}
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("invalid duration at line %d: expected scalar", value.Line)
	}

	switch value.Tag {
	case "!!int", "!!float":
		s, err := strconv.ParseFloat(value.Value, 64)
		if err != nil {
			return fmt.Errorf("invalid duration at line %d: %w", value.Line, err)
		}
		d.Duration = secondsToDuration(s)
		return nil
	}

	parsed, err := ParseDuration(value.Value)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText is used by TOML decoding, where durations are strings.
func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// ParseDuration parses duration from multiple formats:
// - Go duration: "1h30m", "2.5s"
// - Bare seconds: "2.5", "-1"
// - Timecode: "01:30:00", "00:05:30.500"
// - ISO 8601: "PT1H30M", "PT2.5S"
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("invalid duration format: empty")
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("invalid duration format: %s", s)
		}
		return secondsToDuration(f), nil
	}

	if d, ok := parseTimecode(s); ok {
		return d, nil
	}

	if strings.HasPrefix(s, "PT") {
		return parseISO8601(s)
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// parseTimecode parses "HH:MM:SS" or "HH:MM:SS.mmm".
func parseTimecode(s string) (time.Duration, bool) {
	matches := timecodePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, false
	}

	hours, _ := strconv.Atoi(matches[1])
	minutes, _ := strconv.Atoi(matches[2])
	seconds, _ := strconv.Atoi(matches[3])

	d := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second

	if ms := matches[4]; ms != "" {
		ms += strings.Repeat("0", 3-len(ms))
		millis, _ := strconv.Atoi(ms)
		d += time.Duration(millis) * time.Millisecond
	}

	return d, true
}

func parseISO8601(s string) (time.Duration, error) {
	body := strings.TrimPrefix(s, "PT")
	parts := isoPartPattern.FindAllStringSubmatch(body, -1)
	if len(parts) == 0 {
		return 0, fmt.Errorf("invalid ISO 8601 duration: %s", s)
	}

	var d time.Duration
	for _, part := range parts {
		value, _ := strconv.ParseFloat(part[1], 64)
		switch part[2] {
		case "H":
			d += secondsToDuration(value * 3600)
		case "M":
			d += secondsToDuration(value * 60)
		case "S":
			d += secondsToDuration(value)
		}
	}

	return d, nil
}
