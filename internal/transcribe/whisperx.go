// Package transcribe turns recordings into text.
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/starford/worklog/internal/apperr"
	"github.com/starford/worklog/internal/models"
)

// Transcriber converts a recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (models.Transcript, error)
}

// WhisperX defaults.
const (
	DefaultModel   = "large-v3"
	DefaultBinary  = "uvx"
	CUDAIndexURL   = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL   = "https://pypi.org/simple"
	BatchSize      = "4"
	CPUDevice      = "cpu"
	CUDADevice     = "cuda"
	CPUComputeType = "float32"
)

// Config configures the whisperx command.
type Config struct {
	Model    string
	Language string
	CUDA     bool
	// Binary launches whisperx, uvx by default.
	Binary string
}

// CommandRunner runs an external command to completion.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// WhisperX transcribes recordings by running whisperx through uvx.
type WhisperX struct {
	cfg    Config
	run    CommandRunner
	tmpDir string
}

// Option customizes WhisperX.
type Option func(*WhisperX)

// WithCommandRunner replaces process execution.
func WithCommandRunner(r CommandRunner) Option {
	return func(w *WhisperX) {
		if r != nil {
			w.run = r
		}
	}
}

// WithTempDir sets where whisperx output directories are created.
func WithTempDir(dir string) Option {
	return func(w *WhisperX) { w.tmpDir = dir }
}

// NewWhisperX returns a WhisperX transcriber.
func NewWhisperX(cfg Config, opts ...Option) *WhisperX {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	w := &WhisperX{cfg: cfg, run: runCommand}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Transcribe runs whisperx on audioPath and joins the segment texts.
func (w *WhisperX) Transcribe(ctx context.Context, audioPath string) (models.Transcript, error) {
	if audioPath == "" {
		return models.Transcript{}, apperr.Wrap(apperr.ErrTranscription, "transcribe", fmt.Errorf("source path required"))
	}
	outDir, err := os.MkdirTemp(w.tmpDir, "worklog-whisperx-")
	if err != nil {
		return models.Transcript{}, apperr.Wrap(apperr.ErrTranscription, "transcribe: output dir", err)
	}
	defer os.RemoveAll(outDir)

	if err := w.run(ctx, w.cfg.Binary, w.args(audioPath, outDir)...); err != nil {
		return models.Transcript{}, apperr.Wrap(apperr.ErrTranscription, "whisperx", err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	tr, err := LoadTranscript(filepath.Join(outDir, base+".json"))
	if err != nil {
		return models.Transcript{}, apperr.Wrap(apperr.ErrTranscription, "whisperx output", err)
	}
	return tr, nil
}

func (w *WhisperX) args(source, outDir string) []string {
	args := make([]string, 0, 24)
	if w.cfg.CUDA {
		args = append(args, "--index-url", CUDAIndexURL, "--extra-index-url", PypiIndexURL)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}
	args = append(args,
		"whisperx",
		source,
		"--model", w.cfg.Model,
		"--batch_size", BatchSize,
		"--output_dir", outDir,
		"--output_format", "json",
	)
	if w.cfg.Language != "" {
		args = append(args, "--language", w.cfg.Language)
	}
	if w.cfg.CUDA {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

type segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type payload struct {
	Language string    `json:"language"`
	Segments []segment `json:"segments"`
}

// LoadTranscript reads a whisperx JSON result. Segment texts are trimmed and
// joined with single spaces.
func LoadTranscript(jsonPath string) (models.Transcript, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return models.Transcript{}, err
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return models.Transcript{}, fmt.Errorf("parse whisperx json: %w", err)
	}
	tr := models.Transcript{Language: p.Language}
	for _, s := range p.Segments {
		if text := strings.TrimSpace(s.Text); text != "" {
			tr.Segments = append(tr.Segments, text)
		}
	}
	tr.Text = strings.Join(tr.Segments, " ")
	return tr, nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	// Torch 2.6 defaults torch.load to weights_only, which breaks whisperx checkpoints.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
