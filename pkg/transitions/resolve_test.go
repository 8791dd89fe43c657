package transitions

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		effect    string
		requested time.Duration
		want      Resolution
	}{
		{
			name:      "known_effect",
			effect:    "wipeleft",
			requested: 500 * time.Millisecond,
			want:      Resolution{Effect: "wipeleft", Duration: 500 * time.Millisecond, Requested: 500 * time.Millisecond, Known: true},
		},
		{
			name:      "floored_duration",
			effect:    "fade",
			requested: 20 * time.Millisecond,
			want:      Resolution{Effect: "fade", Duration: MinDuration, Requested: 20 * time.Millisecond, Known: true},
		},
		{
			name:      "unknown_falls_back",
			effect:    "sparkle",
			requested: time.Second,
			want:      Resolution{Effect: "fade", Duration: time.Second, Requested: time.Second},
		},
		{
			name:      "none_is_cut",
			effect:    "none",
			requested: time.Second,
			want:      Resolution{Effect: "fade", Duration: CutDuration, Requested: time.Second, Cut: true, Known: true},
		},
		{
			name:   "empty_is_cut",
			effect: "",
			want:   Resolution{Effect: "fade", Duration: CutDuration, Cut: true, Known: true},
		},
		{
			name:      "alias",
			effect:    " Slide ",
			requested: time.Second,
			want:      Resolution{Effect: "slideleft", Duration: time.Second, Requested: time.Second, Known: true},
		},
		{
			name:      "zoom_alias",
			effect:    "zoom",
			requested: time.Second,
			want:      Resolution{Effect: "zoomin", Duration: time.Second, Requested: time.Second, Known: true},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.effect, tc.requested))
		})
	}
}

func TestResolution_Cap(t *testing.T) {
	r := Resolve("fade", 3*time.Second)

	assert.Equal(t, 2*time.Second, r.Cap(2*time.Second, 5*time.Second).Duration)
	assert.Equal(t, time.Second, r.Cap(4*time.Second, time.Second).Duration)
	assert.Equal(t, 3*time.Second, r.Cap(4*time.Second, 4*time.Second).Duration)
	assert.Zero(t, r.Cap(0, 4*time.Second).Duration)
}

func TestTable(t *testing.T) {
	names := Names()
	require.True(t, sort.StringsAreSorted(names))
	assert.Len(t, names, len(effects))

	for _, want := range []string{
		"fade", "wipeleft", "slideright", "circleopen", "diagbr", "hlwind",
		"vdslice", "coverup", "revealdown", "wipetl", "squeezev", "zoomin",
	} {
		got, ok := Lookup(want)
		assert.True(t, ok, want)
		assert.Equal(t, want, got)
	}

	for alias, target := range Aliases() {
		_, ok := effects[target]
		assert.True(t, ok, "alias %s points at unknown effect %s", alias, target)
	}
}

func TestIsCut(t *testing.T) {
	assert.True(t, IsCut("none"))
	assert.True(t, IsCut("CUT"))
	assert.True(t, IsCut(""))
	assert.False(t, IsCut("fade"))
}
