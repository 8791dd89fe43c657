package schemas

import "time"

// Program is a compiled show: one or more stages, each a single engine
// invocation with its own filtergraph. Stages listed earlier never depend on
// stages listed later; the last entry of Stages is FinalStage.
type Program struct {
	ProgramID string    `json:"program_id,omitempty"`
	ShowID    string    `json:"show_id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`

	Target       Target             `json:"target"`
	Stages       []*Stage           `json:"stages"`
	FinalStage   string             `json:"final_stage"`
	OutputLabels []string           `json:"output_labels"`
	Transitions  []TransitionRecord `json:"transitions,omitempty"`
	Elapsed      Duration           `json:"elapsed"`

	// Filled in by the planner.
	ExecutionOrder   []string           `json:"execution_order,omitempty"`
	ExecutionStages  [][]string         `json:"execution_stages,omitempty"`
	ResourceEstimate *ResourceEstimates `json:"resource_estimate,omitempty"`
}

// Stage returns the stage with the given ID, or nil.
func (p *Program) Stage(id string) *Stage {
	for _, s := range p.Stages {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Final returns the stage that produces the program output.
func (p *Program) Final() *Stage {
	return p.Stage(p.FinalStage)
}

// Stage is one engine invocation. Inputs are numbered in order; input i is
// addressed as [i:v] by the statements.
type Stage struct {
	ID          string         `json:"id"`
	Level       int            `json:"level"`
	Inputs      []StageInput   `json:"inputs"`
	Statements  []Statement    `json:"statements"`
	Filtergraph string         `json:"filtergraph"`
	Output      string         `json:"output"`
	Outputs     []string       `json:"outputs"`
	Elapsed     Duration       `json:"elapsed"`
	DependsOn   []string       `json:"depends_on,omitempty"`
	Metadata    *MediaInfo     `json:"metadata,omitempty"`
	Estimates   *NodeEstimates `json:"estimates,omitempty"`
}

// StageInput is one decoded input of a stage. Exactly one of Source and
// Stage is set: Source for user media, Stage for the rendered output of an
// earlier stage.
type StageInput struct {
	Index  int           `json:"index"`
	Kind   string        `json:"kind"`
	Source string        `json:"source,omitempty"`
	Stage  string        `json:"stage,omitempty"`
	Length Duration      `json:"length"`
	Decode DecodeOptions `json:"decode"`
}

// DecodeOptions are the per-input flags placed before -i.
type DecodeOptions struct {
	Loop     bool      `json:"loop,omitempty"`
	Duration *Duration `json:"duration,omitempty"`
}

// Args renders the options as engine arguments.
func (o DecodeOptions) Args() []string {
	var args []string
	if o.Loop {
		args = append(args, "-loop", "1")
	}
	if o.Duration != nil {
		args = append(args, "-t", FormatSeconds(o.Duration.Duration))
	}
	return args
}

// Statement is one filter invocation in a stage's graph.
type Statement struct {
	Inputs  []string               `json:"inputs"`
	Op      string                 `json:"op"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Outputs []string               `json:"outputs"`
}

// TransitionRecord describes how the boundary after node After was
// composed. Offsets are absolute positions on the final timeline.
type TransitionRecord struct {
	After     int      `json:"after_node_index"`
	Effect    string   `json:"effect"`
	Requested Duration `json:"requested"`
	Duration  Duration `json:"duration"`
	Offset    Duration `json:"offset"`
	Cut       bool     `json:"cut"`
	Known     bool     `json:"known"`
	Stage     string   `json:"stage"`
}

// MediaInfo contains detected media properties
type MediaInfo struct {
	Format       FormatInfo    `json:"format"`
	VideoStreams []VideoStream `json:"video_streams,omitempty"`
	AudioStreams []AudioStream `json:"audio_streams,omitempty"`
}

// FormatInfo contains format-level information
type FormatInfo struct {
	Filename  string        `json:"filename,omitempty"`
	Format    string        `json:"format,omitempty"`
	Duration  time.Duration `json:"duration"`
	Size      int64         `json:"size"`
	BitRate   int64         `json:"bit_rate,omitempty"`
	StartTime time.Duration `json:"start_time,omitempty"`
}

// VideoStream represents a video stream
type VideoStream struct {
	Index       int           `json:"index"`
	Codec       string        `json:"codec"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	FrameRate   float64       `json:"frame_rate"`
	PixelFormat string        `json:"pixel_format,omitempty"`
	BitRate     int64         `json:"bit_rate,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// AudioStream represents an audio stream
type AudioStream struct {
	Index      int           `json:"index"`
	Codec      string        `json:"codec"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	BitRate    int64         `json:"bit_rate,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// NodeEstimates contains resource estimates for one stage
type NodeEstimates struct {
	Duration time.Duration `json:"duration"`
	MemoryMB int64         `json:"memory_mb"`
	DiskMB   int64         `json:"disk_mb"`
	CPUCores float64       `json:"cpu_cores,omitempty"`
}

// ResourceEstimates contains totals across all stages
type ResourceEstimates struct {
	StageEstimates map[string]*NodeEstimates `json:"stage_estimates"`
	TotalDuration  time.Duration             `json:"total_duration"`
	PeakMemoryMB   int64                     `json:"peak_memory_mb"`
	TotalDiskMB    int64                     `json:"total_disk_mb"`
}

// FFmpegCommand is a ready-to-run engine invocation for one stage.
type FFmpegCommand struct {
	Stage       string   `json:"stage"`
	Command     string   `json:"command"`
	Args        []string `json:"args"`
	Output      string   `json:"output"`
	DependsOn   []string `json:"depends_on,omitempty"`
	Filtergraph string   `json:"filtergraph,omitempty"`
}
