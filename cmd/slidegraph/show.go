package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/chicogong/slidegraph/pkg/schemas"
)

// loadShow reads a show description. The format follows the extension:
// .json, .yaml/.yml or .toml. "-" reads JSON from stdin.
func loadShow(path string) (*schemas.ShowSpec, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read show: %w", err)
	}
	return parseShow(data, filepath.Ext(path))
}

func parseShow(data []byte, ext string) (*schemas.ShowSpec, error) {
	var spec schemas.ShowSpec
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("parse YAML show: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &spec); err != nil {
			return nil, fmt.Errorf("parse TOML show: %w", err)
		}
	case ".json", "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("parse JSON show: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported show format %q (want .json, .yaml or .toml)", ext)
	}
	return &spec, nil
}
