package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_DenseIndices(t *testing.T) {
	r := NewRegistry()
	for i, src := range []string{"a.jpg", "b.jpg", "c.mp4"} {
		kind := KindStill
		if i == 2 {
			kind = KindClip
		}
		n, err := r.Register(Descriptor{SourceRef: src, Duration: time.Second, Kind: kind})
		require.NoError(t, err)
		assert.Equal(t, i, n.InputIndex)
	}

	nodes := r.All()
	require.Len(t, nodes, 3)
	for i, n := range nodes {
		assert.Equal(t, i, n.InputIndex)
	}
	assert.Equal(t, 3*time.Second, r.Total())
}

func TestRegistry_Rejects(t *testing.T) {
	tests := []struct {
		name string
		desc Descriptor
	}{
		{name: "negative_duration", desc: Descriptor{SourceRef: "a.jpg", Duration: -time.Second, Kind: KindStill}},
		{name: "unknown_kind", desc: Descriptor{SourceRef: "a.jpg", Duration: time.Second, Kind: "audio"}},
		{name: "stage_kind", desc: Descriptor{SourceRef: "a.jpg", Duration: time.Second, Kind: KindStage}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegistry()
			_, err := r.Register(Descriptor{SourceRef: "ok.jpg", Kind: KindStill})
			require.NoError(t, err)

			_, err = r.Register(tc.desc)
			require.ErrorIs(t, err, ErrInvalidDescriptor)
			assert.Contains(t, err.Error(), "node 1")
			assert.Equal(t, 1, r.Len())
		})
	}
}

func TestRegistry_ZeroDurationAllowed(t *testing.T) {
	r := NewRegistry()
	n, err := r.Register(Descriptor{SourceRef: "a.jpg", Kind: KindStill})
	require.NoError(t, err)
	assert.Zero(t, n.Duration)
}

func TestRegistry_AllReturnsCopy(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(Descriptor{SourceRef: "a.jpg", Duration: time.Second, Kind: KindStill, ExtraFilters: []string{"hflip"}})
	require.NoError(t, err)

	nodes := r.All()
	nodes[0].SourceRef = "changed"
	assert.Equal(t, "a.jpg", r.All()[0].SourceRef)
}

func TestStageNode_HeadTail(t *testing.T) {
	r := NewRegistry()
	n := r.RegisterStage("w0", 10*time.Second, 500*time.Millisecond, 2*time.Second, 3*time.Second)

	assert.Equal(t, KindStage, n.Kind)
	assert.Equal(t, "w0", n.StageRef)
	assert.Equal(t, 10*time.Second, n.Duration)
	assert.Equal(t, 2*time.Second, n.HeadDuration())
	assert.Equal(t, 3*time.Second, n.TailDuration())
	assert.Equal(t, 500*time.Millisecond, n.Lead())
	assert.Equal(t, 500*time.Millisecond, n.WithIndex(4).Lead())

	still := MediaNode{Kind: KindStill, Duration: 4 * time.Second}
	assert.Equal(t, 4*time.Second, still.HeadDuration())
	assert.Equal(t, 4*time.Second, still.TailDuration())
	assert.Zero(t, still.Lead())
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"": KindStill, "image": KindStill, "Clip": KindClip, "video": KindClip} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseKind("stage")
	assert.Error(t, err)
}
