package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chicogong/slidegraph/pkg/compiler"
	"github.com/chicogong/slidegraph/pkg/compiler/validator"
	"github.com/chicogong/slidegraph/pkg/prober"
	"github.com/chicogong/slidegraph/pkg/schemas"
)

// loadedShow is a validated show with the config and logger the command
// runs with.
type loadedShow struct {
	spec   *schemas.ShowSpec
	config *cliConfig
	logger *slog.Logger
}

func (c *commandContext) loadShow(cmd *cobra.Command, path string, probe bool) (*loadedShow, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger := c.logger(cmd)

	spec, err := loadShow(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults(&spec.Target)

	if probe {
		n, err := prober.FillClipDurations(cmd.Context(), cfg.prober(), spec, nil)
		if err != nil {
			return nil, fmt.Errorf("probe clips: %w", err)
		}
		logger.Debug("clip durations probed", "clips", n)
	}

	if err := validator.New().Validate(cmd.Context(), spec); err != nil {
		return nil, err
	}
	for _, w := range validator.Warnings(spec) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}

	return &loadedShow{spec: spec, config: cfg, logger: logger}, nil
}

func (s *loadedShow) compiler() *compiler.Compiler {
	return compiler.New(
		compiler.WithMaxBatchInputs(s.spec.Target.MaxBatchInputs),
		compiler.WithLogger(s.logger),
	)
}

func (s *loadedShow) compile() (*schemas.Program, error) {
	program, err := s.compiler().Compile(s.spec)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	return program, nil
}

func (c *cliConfig) prober() *prober.Prober {
	if c.FFprobePath == "" {
		return prober.NewProber()
	}
	return prober.NewProber(prober.WithFFprobePath(c.FFprobePath))
}

func formatDependsOn(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}
