package executor

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/chicogong/slidegraph/pkg/schemas"
)

// Encoder defaults for the final render.
const (
	DefaultVideoCodec  = "libx264"
	DefaultCRF         = 20
	DefaultPreset      = "medium"
	DefaultPixelFormat = "yuv420p"

	// IntermediateExt is the container for window stage outputs.
	IntermediateExt = ".mkv"
)

// CommandBuilder turns program stages into ffmpeg invocations
type CommandBuilder struct {
	ffmpegPath string
}

// NewCommandBuilder creates a new command builder
func NewCommandBuilder(ffmpegPath string) *CommandBuilder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &CommandBuilder{
		ffmpegPath: ffmpegPath,
	}
}

// Command represents an FFmpeg command to execute
type Command struct {
	Stage     string
	Args      []string
	Output    string
	DependsOn []string

	// Length of the rendered stage, used for progress.
	Length schemas.Duration
}

// String renders the command as a shell-quoted line.
func (c *Command) String() string {
	quoted := make([]string, len(c.Args))
	for i, a := range c.Args {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

// Schema converts the command for API and CLI output.
func (c *Command) Schema(filtergraph string) schemas.FFmpegCommand {
	return schemas.FFmpegCommand{
		Stage:       c.Stage,
		Command:     c.String(),
		Args:        append([]string(nil), c.Args[1:]...),
		Output:      c.Output,
		DependsOn:   append([]string(nil), c.DependsOn...),
		Filtergraph: filtergraph,
	}
}

// Paths tells the builder where every input and output lives on disk.
type Paths struct {
	// Sources maps a node source reference to a local file. References
	// without an entry are passed to ffmpeg unchanged.
	Sources map[string]string

	// WorkDir receives intermediate stage outputs.
	WorkDir string

	// Output is the local path of the final render.
	Output string
}

// StageOutput is where stage id writes its result.
func (p Paths) StageOutput(program *schemas.Program, id string) string {
	if id == program.FinalStage {
		return p.Output
	}
	return filepath.Join(p.WorkDir, id+IntermediateExt)
}

func (p Paths) source(ref string) string {
	if local, ok := p.Sources[ref]; ok {
		return local
	}
	return ref
}

// Build generates the ffmpeg command for one stage. out carries encoder
// overrides and container tags for the final stage and may be nil.
func (cb *CommandBuilder) Build(program *schemas.Program, stage *schemas.Stage, paths Paths, out *schemas.OutputSpec) (*Command, error) {
	if len(stage.Inputs) == 0 {
		return nil, fmt.Errorf("stage %s: no inputs", stage.ID)
	}
	if stage.Filtergraph == "" {
		return nil, fmt.Errorf("stage %s: empty filtergraph", stage.ID)
	}

	output := paths.StageOutput(program, stage.ID)
	if output == "" {
		return nil, fmt.Errorf("stage %s: no output path", stage.ID)
	}

	args := []string{cb.ffmpegPath, "-hide_banner", "-nostdin", "-y", "-loglevel", "error", "-stats"}

	for i, in := range stage.Inputs {
		if in.Index != i {
			return nil, fmt.Errorf("stage %s: input %d is numbered %d", stage.ID, i, in.Index)
		}
		var path string
		switch {
		case in.Stage != "":
			path = paths.StageOutput(program, in.Stage)
		case in.Source != "":
			path = paths.source(in.Source)
		default:
			return nil, fmt.Errorf("stage %s: input %d has no source", stage.ID, i)
		}
		args = append(args, in.Decode.Args()...)
		args = append(args, "-i", path)
	}

	args = append(args, "-filter_complex", stage.Filtergraph)
	args = append(args, "-map", "["+stage.Output+"]", "-an")

	if stage.ID == program.FinalStage {
		var codec *schemas.VideoCodec
		if out != nil {
			codec = out.Codec
		}
		args = append(args, finalCodecArgs(program.Target, codec, output)...)
		if out != nil && program.Target.OutputKind != schemas.OutputGIF {
			args = append(args, metadataArgs(out.Metadata)...)
		}
	} else {
		args = append(args, intermediateCodecArgs()...)
	}
	args = append(args, output)

	return &Command{
		Stage:     stage.ID,
		Args:      args,
		Output:    output,
		DependsOn: append([]string(nil), stage.DependsOn...),
		Length:    stage.Elapsed,
	}, nil
}

// BuildAll builds one command per stage in execution order. Programs that
// have not been planned fall back to stage order, which is already a valid
// dependency order.
func (cb *CommandBuilder) BuildAll(program *schemas.Program, paths Paths, out *schemas.OutputSpec) ([]*Command, error) {
	order := program.ExecutionOrder
	if len(order) == 0 {
		for _, s := range program.Stages {
			order = append(order, s.ID)
		}
	}

	cmds := make([]*Command, 0, len(order))
	for _, id := range order {
		stage := program.Stage(id)
		if stage == nil {
			return nil, fmt.Errorf("stage %s not found", id)
		}
		cmd, err := cb.Build(program, stage, paths, out)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// intermediateCodecArgs encode window outputs losslessly so recomposing
// them does not add a generation of compression.
func intermediateCodecArgs() []string {
	return []string{"-c:v", "libx264", "-qp", "0", "-preset", "ultrafast", "-pix_fmt", DefaultPixelFormat}
}

func finalCodecArgs(target schemas.Target, codec *schemas.VideoCodec, output string) []string {
	if target.OutputKind == schemas.OutputGIF || strings.EqualFold(filepath.Ext(output), ".gif") {
		return []string{"-loop", "0", "-f", "gif"}
	}

	name, crf, preset, pixfmt := DefaultVideoCodec, DefaultCRF, DefaultPreset, DefaultPixelFormat
	if codec != nil {
		if codec.Codec != "" {
			name = codec.Codec
		}
		if codec.CRF != nil {
			crf = *codec.CRF
		}
		if codec.Preset != "" {
			preset = codec.Preset
		}
		if codec.PixelFormat != "" {
			pixfmt = codec.PixelFormat
		}
	}

	args := []string{"-c:v", name, "-crf", strconv.Itoa(crf), "-preset", preset, "-pix_fmt", pixfmt}
	switch strings.ToLower(filepath.Ext(output)) {
	case ".mp4", ".mov", ".m4v":
		args = append(args, "-movflags", "+faststart")
	}
	return args
}

// metadataArgs renders container tags in key order.
func metadataArgs(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, "-metadata", k+"="+tags[k])
	}
	return args
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=+,@%", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
