package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sflowg/reciperun/runtime"
)

func init() {
	defaultRegistry.register("shell", newShellStep)
}

// ShellConfig is the decoded config for the shell step.
type ShellConfig struct {
	Command       string            `json:"command" validate:"required"`
	WorkingDir    string            `json:"working_dir,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	CaptureOutput bool              `json:"capture_output"`
	OutputKey     string            `json:"output_key,omitempty"`
	ErrorKey      string            `json:"error_key,omitempty"`
	TimeoutSec    int               `json:"timeout,omitempty"`
}

type shellStep struct {
	deps runtime.Deps
	cfg  ShellConfig
}

func newShellStep(deps runtime.Deps, raw map[string]any) (runtime.Step, error) {
	var cfg ShellConfig
	if err := runtime.DecodeStepConfig(raw, &cfg); err != nil {
		return nil, runtime.NewFlowError(runtime.KindConfigError, err.Error(), err)
	}
	return &shellStep{deps: deps, cfg: cfg}, nil
}

func (s *shellStep) Execute(ctx context.Context, rc *runtime.Context) error {
	command, err := s.deps.Renderer.Render(s.cfg.Command, rc)
	if err != nil {
		return err
	}

	workingDir := s.cfg.WorkingDir
	if workingDir != "" {
		workingDir, err = s.deps.Renderer.Render(workingDir, rc)
		if err != nil {
			return err
		}
	}

	runCtx := ctx
	if s.cfg.TimeoutSec > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutSec)*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = workingDir
	cmd.Env = os.Environ()
	for k, v := range s.cfg.Env {
		rendered, err := s.deps.Renderer.Render(v, rc)
		if err != nil {
			return err
		}
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, rendered))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if s.cfg.CaptureOutput && s.cfg.OutputKey != "" {
		rc.Set(s.cfg.OutputKey, strings.TrimSpace(stdout.String()))
	}
	if s.cfg.ErrorKey != "" {
		rc.Set(s.cfg.ErrorKey, strings.TrimSpace(stderr.String()))
	}

	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		tail := tailLines(stderr.String(), 20)
		return runtime.NewFlowError(
			runtime.KindShellError,
			fmt.Sprintf("command %q exited %d: %s", command, exitCode, tail),
			err,
		)
	}

	return nil
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
