package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sflowg/reciperun/runtime"
)

func init() {
	defaultRegistry.register("read_files", newReadFilesStep)
}

// ReadFilesConfig is the decoded config for the read_files step.
type ReadFilesConfig struct {
	Path       string   `json:"path,omitempty"`
	Paths      []string `json:"paths,omitempty"`
	ContentKey string   `json:"content_key" validate:"required"`
	Optional   bool     `json:"optional"`
	MergeMode  string   `json:"merge_mode" default:"concat" validate:"oneof=concat dict"`
}

type readFilesStep struct {
	deps runtime.Deps
	cfg  ReadFilesConfig
}

func newReadFilesStep(deps runtime.Deps, raw map[string]any) (runtime.Step, error) {
	var cfg ReadFilesConfig
	if err := runtime.DecodeStepConfig(raw, &cfg); err != nil {
		return nil, runtime.NewFlowError(runtime.KindConfigError, err.Error(), err)
	}
	return &readFilesStep{deps: deps, cfg: cfg}, nil
}

func (s *readFilesStep) Execute(ctx context.Context, rc *runtime.Context) error {
	rawPaths := s.cfg.Paths
	if len(rawPaths) == 0 && s.cfg.Path != "" {
		rawPaths = strings.Split(s.cfg.Path, ",")
	}

	paths := make([]string, 0, len(rawPaths))
	for _, p := range rawPaths {
		rendered, err := s.deps.Renderer.Render(strings.TrimSpace(p), rc)
		if err != nil {
			return err
		}
		rendered = strings.TrimSpace(rendered)
		if rendered != "" {
			paths = append(paths, rendered)
		}
	}

	if s.cfg.MergeMode == "dict" {
		result := make(map[string]any, len(paths))
		for _, p := range paths {
			content, ok, err := s.readOne(p)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			result[filepath.Base(p)] = content
		}
		rc.Set(s.cfg.ContentKey, result)
		return nil
	}

	var parts []string
	for _, p := range paths {
		content, ok, err := s.readOne(p)
		if err != nil {
			return err
		}
		if !ok {
			parts = append(parts, "")
			continue
		}
		if len(paths) > 1 {
			parts = append(parts, fmt.Sprintf("File: %s\n%s", filepath.Base(p), content))
		} else {
			parts = append(parts, content)
		}
	}
	rc.Set(s.cfg.ContentKey, strings.Join(parts, "\n\n"))
	return nil
}

// readOne returns (content, found, error). found is false only when the
// file is missing and the step is configured as optional.
func (s *readFilesStep) readOne(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && s.cfg.Optional {
			return "", false, nil
		}
		return "", false, runtime.NewFlowError(runtime.KindMissingFile, fmt.Sprintf("read %q: %v", path, err), err)
	}
	return string(data), true, nil
}
