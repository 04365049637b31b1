package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/starford/worklog/internal/apperr"
)

func argAfter(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func TestTranscribe(t *testing.T) {
	var gotName string
	var gotArgs []string
	w := NewWhisperX(Config{Language: "en"}, WithTempDir(t.TempDir()), WithCommandRunner(
		func(_ context.Context, name string, args ...string) error {
			gotName, gotArgs = name, args
			out := argAfter(args, "--output_dir")
			payload := `{"language":"en","segments":[{"text":" Today I worked on Saliency. "},{"text":""},{"text":"Tomorrow tests."}]}`
			return os.WriteFile(filepath.Join(out, "Daily_Log_02-01-2024.json"), []byte(payload), 0o644)
		}))

	tr, err := w.Transcribe(context.Background(), "/inbox/Daily_Log_02-01-2024.m4a")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "Today I worked on Saliency. Tomorrow tests." || tr.Language != "en" || len(tr.Segments) != 2 {
		t.Errorf("transcript = %+v", tr)
	}
	if gotName != DefaultBinary {
		t.Errorf("binary = %q", gotName)
	}
	if argAfter(gotArgs, "--model") != DefaultModel || argAfter(gotArgs, "--language") != "en" || argAfter(gotArgs, "--device") != CPUDevice {
		t.Errorf("args = %v", gotArgs)
	}
	if _, err := os.Stat(argAfter(gotArgs, "--output_dir")); !os.IsNotExist(err) {
		t.Error("output dir not removed")
	}
}

func TestTranscribe_CUDAArgs(t *testing.T) {
	w := NewWhisperX(Config{CUDA: true, Model: "small"})
	args := w.args("a.wav", "/tmp/out")
	if args[1] != CUDAIndexURL || argAfter(args, "--device") != CUDADevice || slices.Contains(args, "--compute_type") {
		t.Errorf("args = %v", args)
	}
	if slices.Contains(args, "--language") {
		t.Error("language passed without configuration")
	}
}

func TestTranscribe_Failures(t *testing.T) {
	failing := NewWhisperX(Config{}, WithTempDir(t.TempDir()), WithCommandRunner(
		func(context.Context, string, ...string) error { return errors.New("exit status 1") }))
	if _, err := failing.Transcribe(context.Background(), "a.wav"); !errors.Is(err, apperr.ErrTranscription) {
		t.Errorf("runner failure = %v", err)
	}

	silent := NewWhisperX(Config{}, WithTempDir(t.TempDir()), WithCommandRunner(
		func(context.Context, string, ...string) error { return nil }))
	_, err := silent.Transcribe(context.Background(), "a.wav")
	if !errors.Is(err, apperr.ErrTranscription) || !strings.Contains(err.Error(), "whisperx output") {
		t.Errorf("missing output = %v", err)
	}
}
