package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chicogong/slidegraph/pkg/schemas"
)

const yamlShow = `nodes:
  - source: intro.jpg
    duration: 2
  - source: clip.mp4
    kind: clip
    duration: "00:00:03"
  - source: outro.png
    duration: 1.5s
edges:
  - after_node_index: 0
    effect: slide
    duration: 0.5
target:
  width: 1280
  height: 720
  frame_rate: 25
`

const tomlShow = `[target]
width = 640
height = 360
frame_rate = 25
max_batch_inputs = 2

[[nodes]]
source = "a.jpg"
duration = "1s"

[[nodes]]
source = "b.jpg"
duration = "1s"

[[nodes]]
source = "c.jpg"
duration = "1s"
`

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCompileCommand_Filtergraph(t *testing.T) {
	show := writeFile(t, "show.yaml", yamlShow)

	out, _, err := runCLI(t, "compile", show)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "# main: 3 inputs, 6.500 -> [vout]", lines[0])
	assert.Contains(t, lines[1], "xfade=transition=slideleft:duration=0.500:offset=1.500")
	assert.Contains(t, lines[1], "concat=n=2")
}

func TestCompileCommand_JSON(t *testing.T) {
	show := writeFile(t, "show.toml", tomlShow)

	out, _, err := runCLI(t, "compile", "--json", show)
	require.NoError(t, err)

	var program schemas.Program
	require.NoError(t, json.Unmarshal([]byte(out), &program))
	assert.Equal(t, "main", program.FinalStage)
	require.Len(t, program.Stages, 3)
	assert.Equal(t, []string{"w0-0", "w0-1"}, program.Stages[2].DependsOn)
	assert.Equal(t, [][]string{{"w0-0", "w0-1"}, {"main"}}, program.ExecutionStages)
}

func TestCompileCommand_Summary(t *testing.T) {
	show := writeFile(t, "show.yaml", yamlShow)

	out, _, err := runCLI(t, "compile", "--summary", show)
	require.NoError(t, err)

	assert.Contains(t, out, "main\t0\t3\t6.500\t-\n")
	assert.Contains(t, out, "0\tslideleft\t0.500\t1.500\tmain\n")
	assert.Contains(t, out, "1\tcut\t")
	assert.Contains(t, out, "Total: 6.500 in 1 stage(s)")
}

func TestCompileCommand_ConfigDefaults(t *testing.T) {
	show := writeFile(t, "show.json", `{"nodes": [{"source": "a.jpg", "duration": 2}]}`)
	cfg := writeFile(t, "config.toml", "[target]\nwidth = 320\nheight = 240\nframe_rate = 12\noutput_kind = \"GIF\"\n")

	out, _, err := runCLI(t, "--config", cfg, "compile", "--json", show)
	require.NoError(t, err)

	var program schemas.Program
	require.NoError(t, json.Unmarshal([]byte(out), &program))
	assert.Equal(t, 320, program.Target.Width)
	assert.Equal(t, 240, program.Target.Height)
	assert.Equal(t, 12.0, program.Target.FrameRate)
	assert.Equal(t, schemas.OutputGIF, program.Target.OutputKind)
	assert.Equal(t, "gif", program.Final().Output)
}

func TestCompileCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"bad edge", "show.json", `{"nodes": [{"source": "a.jpg", "duration": 1}], "edges": [{"after_node_index": 0, "duration": 1}]}`, "graph integrity"},
		{"unknown field", "show.yaml", "nodes: []\nslides: 3\n", "parse YAML show"},
		{"unknown format", "show.xml", "<show/>", "unsupported show format"},
		{"validation", "show.json", `{"nodes": []}`, "nodes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			show := writeFile(t, tt.file, tt.content)
			_, _, err := runCLI(t, "compile", show)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCompileCommand_Warnings(t *testing.T) {
	show := writeFile(t, "show.json", `{
		"nodes": [{"source": "a.jpg", "duration": 1}, {"source": "b.jpg", "duration": 1}],
		"edges": [{"after_node_index": 0, "effect": "sparkle", "duration": 0.05}]
	}`)

	_, stderr, err := runCLI(t, "compile", show)
	require.NoError(t, err)
	assert.Contains(t, stderr, `warning: edges[0]: unknown effect "sparkle", using fade`)
	assert.Contains(t, stderr, "raised to 100ms")
}

func TestArgsCommand(t *testing.T) {
	show := writeFile(t, "show.toml", tomlShow)

	out, _, err := runCLI(t, "args", "-o", "final.mp4", "--work-dir", "/tmp/sg", show)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "# w0-0", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "ffmpeg -hide_banner"), lines[1])
	assert.Contains(t, lines[1], "/tmp/sg/w0-0.mkv")
	assert.Equal(t, "# main", lines[4])
	assert.Contains(t, lines[5], "-i /tmp/sg/w0-0.mkv -i /tmp/sg/w0-1.mkv")
	assert.True(t, strings.HasSuffix(lines[5], "final.mp4"), lines[5])
}

func TestArgsCommand_JSON(t *testing.T) {
	show := writeFile(t, "show.yaml", yamlShow)
	cfg := writeFile(t, "config.toml", "ffmpeg_path = \"/opt/ffmpeg/bin/ffmpeg\"\n")

	out, _, err := runCLI(t, "-c", cfg, "args", "--json", show)
	require.NoError(t, err)

	var cmds []schemas.FFmpegCommand
	require.NoError(t, json.Unmarshal([]byte(out), &cmds))
	require.Len(t, cmds, 1)
	assert.True(t, strings.HasPrefix(cmds[0].Command, "/opt/ffmpeg/bin/ffmpeg -hide_banner"), cmds[0].Command)
	assert.Equal(t, "output.mp4", cmds[0].Output)
	assert.NotEmpty(t, cmds[0].Filtergraph)
}

func TestRenderCommand_NoDestination(t *testing.T) {
	show := writeFile(t, "show.yaml", yamlShow)

	_, _, err := runCLI(t, "render", show)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no destination")
}

func TestTransitionsCommand(t *testing.T) {
	out, _, err := runCLI(t, "transitions")
	require.NoError(t, err)

	assert.Contains(t, out, "slideleft\tSlide Left\tslideleft\n")
	assert.Contains(t, out, "slide\tSlide Left\talias of slideleft\n")
	assert.Contains(t, out, "diagtl\tDiag TL\tdiagtl\n")
	assert.Contains(t, out, "fade\tFade\tfade\n")
}

func TestTransitionsCommand_SkipsConfig(t *testing.T) {
	_, _, err := runCLI(t, "--config", filepath.Join(t.TempDir(), "missing.toml"), "transitions", "--json")
	assert.NoError(t, err)
}

func TestLoadCLIConfig(t *testing.T) {
	t.Run("explicit missing file", func(t *testing.T) {
		_, err := loadCLIConfig(filepath.Join(t.TempDir(), "nope.toml"))
		assert.ErrorContains(t, err, "open config")
	})

	t.Run("unknown key", func(t *testing.T) {
		path := writeFile(t, "config.toml", "ffmpeg = \"x\"\n")
		_, err := loadCLIConfig(path)
		assert.ErrorContains(t, err, "parse config")
	})

	t.Run("bad parallelism", func(t *testing.T) {
		path := writeFile(t, "config.toml", "parallelism = 0\n")
		_, err := loadCLIConfig(path)
		assert.ErrorContains(t, err, "parallelism")
	})

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("HOME", t.TempDir())
		cfg, err := loadCLIConfig("")
		require.NoError(t, err)
		assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
		assert.Equal(t, 15, cfg.Target.MaxBatchInputs)

		target := schemas.Target{Width: 800}
		cfg.applyDefaults(&target)
		assert.Equal(t, schemas.Target{Width: 800, Height: 1080, FrameRate: 30, OutputKind: schemas.OutputVideo, MaxBatchInputs: 15}, target)
	})
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"fade":        "Fade",
		"wiperight":   "Wipe Right",
		"smoothdown":  "Smooth Down",
		"wipebr":      "Wipe BR",
		"circleclose": "Circleclose",
	}
	for in, want := range tests {
		assert.Equal(t, want, displayName(in), in)
	}
}
