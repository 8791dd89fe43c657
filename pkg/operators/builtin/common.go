package builtin

import (
	"fmt"
	"strconv"
	"time"

	"github.com/chicogong/slidegraph/pkg/operators"
	"github.com/chicogong/slidegraph/pkg/schemas"
)

// Reference frame area for cost estimates (1080p).
const referencePixels = 1920 * 1080

// cloneInfo copies the first input so operators can adjust it.
func cloneInfo(inputs []*schemas.MediaInfo) (*schemas.MediaInfo, error) {
	if len(inputs) == 0 || inputs[0] == nil {
		return nil, fmt.Errorf("no input metadata")
	}
	out := *inputs[0]
	out.VideoStreams = append([]schemas.VideoStream(nil), inputs[0].VideoStreams...)
	out.AudioStreams = nil
	return &out, nil
}

func setDuration(info *schemas.MediaInfo, d time.Duration) {
	info.Format.Duration = d
	for i := range info.VideoStreams {
		info.VideoStreams[i].Duration = d
	}
}

func pixels(info *schemas.MediaInfo) int {
	if info == nil || len(info.VideoStreams) == 0 {
		return referencePixels
	}
	return info.VideoStreams[0].Width * info.VideoStreams[0].Height
}

// estimate scales a per-second cost factor by output length and frame area.
// A factor of 1 means one second of work per second of 1080p output.
func estimate(out *schemas.MediaInfo, factor float64, memoryMB int64) *schemas.NodeEstimates {
	area := float64(pixels(out)) / referencePixels
	work := float64(out.Format.Duration) * factor * area
	return &schemas.NodeEstimates{
		Duration: time.Duration(work),
		MemoryMB: memoryMB,
		CPUCores: 1,
	}
}

func durationParam(params map[string]any, name string) (time.Duration, error) {
	v, ok := params[name]
	if !ok {
		return 0, fmt.Errorf("missing parameter '%s'", name)
	}
	return operators.AsDuration(v)
}

func intParam(params map[string]any, name string, def int) (int, error) {
	v, ok := params[name]
	if !ok {
		return def, nil
	}
	return operators.AsInt(v)
}

func stringParam(params map[string]any, name, def string) string {
	v, ok := params[name]
	if !ok {
		return def
	}
	return operators.AsString(v)
}

func formatRate(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}
