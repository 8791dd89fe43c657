package schemas

import "time"

// RenderState is the lifecycle state of a render job.
type RenderState string

const (
	RenderStatePending        RenderState = "pending"
	RenderStateCompiling      RenderState = "compiling"
	RenderStateFetchingInputs RenderState = "fetching_inputs"
	RenderStateRendering      RenderState = "rendering"
	RenderStatePublishing     RenderState = "publishing"
	RenderStateCompleted      RenderState = "completed"
	RenderStateFailed         RenderState = "failed"
	RenderStateCancelled      RenderState = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s RenderState) Terminal() bool {
	switch s {
	case RenderStateCompleted, RenderStateFailed, RenderStateCancelled:
		return true
	}
	return false
}

// RenderStatus is the externally visible status of a render job.
type RenderStatus struct {
	RenderID    string       `json:"render_id"`
	Status      RenderState  `json:"status"`
	Progress    *Progress    `json:"progress,omitempty"`
	Error       *ErrorInfo   `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	OutputFiles []OutputFile `json:"output_files,omitempty"`
}

// Progress reports how far a render has come. Stages are counted in
// execution order; OverallPercent weights each stage by its elapsed time.
type Progress struct {
	OverallPercent  float64         `json:"overall_percent"`
	CurrentStage    string          `json:"current_stage,omitempty"`
	CompletedStages int             `json:"completed_stages"`
	TotalStages     int             `json:"total_stages"`
	FFmpeg          *FFmpegProgress `json:"ffmpeg,omitempty"`
}

// FFmpegProgress is the last progress line parsed from the engine.
type FFmpegProgress struct {
	Frame       int     `json:"frame"`
	FPS         float64 `json:"fps"`
	CurrentTime string  `json:"current_time"`
	TotalTime   string  `json:"total_time"`
	Speed       string  `json:"speed"`
	Bitrate     string  `json:"bitrate"`
	TotalSize   int64   `json:"total_size"`
}

// OutputFile describes a published render.
type OutputFile struct {
	Destination string     `json:"destination"`
	FileSize    int64      `json:"file_size"`
	Duration    float64    `json:"duration,omitempty"`
	MediaInfo   *MediaInfo `json:"media_info,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        map[string]interface{} `json:"details,omitempty"`
	Stage          string                 `json:"stage,omitempty"`
	FFmpegStderr   string                 `json:"ffmpeg_stderr,omitempty"`
	FFmpegExitCode int                    `json:"ffmpeg_exit_code,omitempty"`
	Retryable      bool                   `json:"retryable"`
}
