package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sflowg/reciperun/runtime"
	"github.com/sflowg/reciperun/runtime/llm"
)

func init() {
	defaultRegistry.register("write_files", newWriteFilesStep)
}

// FileSpec mirrors the shared {path, content} artifact shape.
type FileSpec struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// WriteFilesConfig is the decoded config for the write_files step.
type WriteFilesConfig struct {
	FilesKey string     `json:"files_key,omitempty"`
	Files    []FileSpec `json:"files,omitempty"`
	Root     string     `json:"root,omitempty"`
}

type writeFilesStep struct {
	deps runtime.Deps
	cfg  WriteFilesConfig
}

func newWriteFilesStep(deps runtime.Deps, raw map[string]any) (runtime.Step, error) {
	var cfg WriteFilesConfig
	if err := runtime.DecodeStepConfig(raw, &cfg); err != nil {
		return nil, runtime.NewFlowError(runtime.KindConfigError, err.Error(), err)
	}
	return &writeFilesStep{deps: deps, cfg: cfg}, nil
}

func (s *writeFilesStep) Execute(ctx context.Context, rc *runtime.Context) error {
	files, inline, err := s.resolveFiles(rc)
	if err != nil {
		return err
	}

	root := ""
	if s.cfg.Root != "" {
		root, err = s.deps.Renderer.Render(s.cfg.Root, rc)
		if err != nil {
			return err
		}
	}

	for _, f := range files {
		path, content := f.Path, f.Content
		if inline {
			path, err = s.deps.Renderer.Render(path, rc)
			if err != nil {
				return err
			}
			content, err = s.deps.Renderer.Render(content, rc)
			if err != nil {
				return err
			}
		}
		if root != "" {
			path = filepath.Join(root, path)
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return runtime.NewFlowError(runtime.KindMissingFile, fmt.Sprintf("create directory for %q: %v", path, err), err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return runtime.NewFlowError(runtime.KindMissingFile, fmt.Sprintf("write %q: %v", path, err), err)
		}
		s.deps.Logger.Info("wrote file", "path", path, "bytes", len(content))
	}

	return nil
}

// resolveFiles returns the FileSpecs to write and whether they came from the
// inline files config. Only the inline variant is template-rendered: a
// files_key value is typically LLM-produced content that must be written
// verbatim, never reinterpreted as a template.
func (s *writeFilesStep) resolveFiles(rc *runtime.Context) ([]FileSpec, bool, error) {
	if len(s.cfg.Files) > 0 {
		return s.cfg.Files, true, nil
	}
	if s.cfg.FilesKey == "" {
		return nil, false, runtime.NewFlowError(runtime.KindConfigError, "write_files requires files or files_key", nil)
	}

	raw := rc.Get(s.cfg.FilesKey)
	if raw == nil {
		return nil, false, runtime.NewFlowError(runtime.KindMissingFile, fmt.Sprintf("files_key %q not found in context", s.cfg.FilesKey), nil)
	}

	items, ok := raw.([]any)
	if !ok {
		if direct, ok := raw.([]FileSpec); ok {
			return direct, false, nil
		}
		if produced, ok := raw.([]llm.FileSpec); ok {
			files := make([]FileSpec, len(produced))
			for i, f := range produced {
				files[i] = FileSpec{Path: f.Path, Content: f.Content}
			}
			return files, false, nil
		}
		return nil, false, runtime.NewFlowError(runtime.KindConfigError, fmt.Sprintf("files_key %q is not a list", s.cfg.FilesKey), nil)
	}

	files := make([]FileSpec, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, false, runtime.NewFlowError(runtime.KindConfigError, "files_key entries must be {path, content} objects", nil)
		}
		path, _ := m["path"].(string)
		contentVal := m["content"]
		content, _ := contentVal.(string)
		files = append(files, FileSpec{Path: path, Content: content})
	}
	return files, false, nil
}
