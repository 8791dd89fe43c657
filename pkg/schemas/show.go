package schemas

import "time"

// OutputKind selects how the final stage is encoded.
type OutputKind string

const (
	OutputVideo OutputKind = "video"
	OutputGIF   OutputKind = "gif"
)

// Node kinds accepted in show files.
const (
	NodeKindStill = "still"
	NodeKindClip  = "clip"
)

// ShowSpec is the user-submitted description of a slideshow: an ordered list
// of media nodes, sparse transition edges between neighbours, and the
// geometry every node is normalized to.
type ShowSpec struct {
	ShowID    string            `json:"show_id,omitempty" yaml:"show_id,omitempty" toml:"show_id,omitempty"`
	CreatedAt time.Time         `json:"created_at,omitempty" yaml:"-" toml:"-"`
	UserID    string            `json:"user_id,omitempty" yaml:"-" toml:"-"`
	Tags      map[string]string `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags,omitempty"`

	Nodes  []NodeSpec  `json:"nodes" yaml:"nodes" toml:"nodes" validate:"required,min=1,dive"`
	Edges  []EdgeSpec  `json:"edges,omitempty" yaml:"edges,omitempty" toml:"edges,omitempty" validate:"dive"`
	Target Target      `json:"target" yaml:"target" toml:"target"`
	Output *OutputSpec `json:"output,omitempty" yaml:"output,omitempty" toml:"output,omitempty"`
}

// NodeSpec is one picture or clip on the timeline.
type NodeSpec struct {
	Source   string   `json:"source" yaml:"source" toml:"source" validate:"required"`
	Duration Duration `json:"duration" yaml:"duration" toml:"duration"`
	Kind     string   `json:"kind,omitempty" yaml:"kind,omitempty" toml:"kind,omitempty" validate:"omitempty,oneof=still clip image video"`
	Filters  []string `json:"filters,omitempty" yaml:"filters,omitempty" toml:"filters,omitempty"`
}

// EdgeSpec requests a transition between node AfterNodeIndex and the node
// that follows it. Positions without an edge are hard cuts.
type EdgeSpec struct {
	AfterNodeIndex int      `json:"after_node_index" yaml:"after_node_index" toml:"after_node_index"`
	Effect         string   `json:"effect,omitempty" yaml:"effect,omitempty" toml:"effect,omitempty"`
	Duration       Duration `json:"duration" yaml:"duration" toml:"duration"`
}

// Target is the output geometry shared by every normalized node.
type Target struct {
	Width          int        `json:"width" yaml:"width" toml:"width" validate:"required,min=2,max=8192"`
	Height         int        `json:"height" yaml:"height" toml:"height" validate:"required,min=2,max=8192"`
	FrameRate      float64    `json:"frame_rate" yaml:"frame_rate" toml:"frame_rate" validate:"required,gt=0,lte=240"`
	OutputKind     OutputKind `json:"output_kind,omitempty" yaml:"output_kind,omitempty" toml:"output_kind,omitempty" validate:"omitempty,oneof=video gif"`
	MaxBatchInputs int        `json:"max_batch_inputs,omitempty" yaml:"max_batch_inputs,omitempty" toml:"max_batch_inputs,omitempty" validate:"omitempty,min=2"`
}

// OutputSpec names where a render is published.
type OutputSpec struct {
	Destination string            `json:"destination" yaml:"destination" toml:"destination" validate:"required"`
	Codec       *VideoCodec       `json:"codec,omitempty" yaml:"codec,omitempty" toml:"codec,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty" toml:"metadata,omitempty"`
}

// VideoCodec overrides the encoder settings of the final stage.
type VideoCodec struct {
	Codec       string `json:"codec,omitempty" yaml:"codec,omitempty" toml:"codec,omitempty"`
	CRF         *int   `json:"crf,omitempty" yaml:"crf,omitempty" toml:"crf,omitempty" validate:"omitempty,min=0,max=51"`
	Preset      string `json:"preset,omitempty" yaml:"preset,omitempty" toml:"preset,omitempty"`
	PixelFormat string `json:"pixel_format,omitempty" yaml:"pixel_format,omitempty" toml:"pixel_format,omitempty"`
}

// TotalDuration is the sum of node durations, which is also the length of
// the composed timeline.
func (s *ShowSpec) TotalDuration() time.Duration {
	var total time.Duration
	for _, n := range s.Nodes {
		total += n.Duration.Duration
	}
	return total
}
