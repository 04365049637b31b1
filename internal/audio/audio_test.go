package audio

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/starford/worklog/internal/apperr"
	"github.com/starford/worklog/internal/testutil"
)

func TestParseProbe(t *testing.T) {
	p, err := ParseProbe([]byte(`{"streams":[{"index":0,"codec_type":"audio","duration":"12.5"}],"format":{"duration":"12.48"}}`))
	if err != nil {
		t.Fatalf("ParseProbe: %v", err)
	}
	if p.AudioStreams() != 1 {
		t.Errorf("audio streams = %d", p.AudioStreams())
	}
	if p.DurationSeconds() != 12.48 {
		t.Errorf("duration = %v", p.DurationSeconds())
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	p := Probe{Streams: []Stream{{Duration: "3.0"}, {Duration: "7.25"}}}
	if p.DurationSeconds() != 7.25 {
		t.Errorf("duration = %v", p.DurationSeconds())
	}
	bad := Probe{Format: Format{Duration: "n/a"}}
	if !math.IsNaN(bad.DurationSeconds()) {
		t.Errorf("duration = %v, want NaN", bad.DurationSeconds())
	}
}

func TestValidate(t *testing.T) {
	durations := map[string]float64{
		"short.mp3": 2,
		"long.wav":  4000,
		"ok.m4a":    60,
		"zero.ogg":  0,
	}
	v := NewValidator([]string{".mp3", "wav", ".M4A", ".ogg"}, 5, 1800, "", WithDurationFunc(
		func(_ context.Context, path string) (float64, error) {
			d, ok := durations[path]
			if !ok {
				return 0, errors.New("no such file")
			}
			return d, nil
		}))

	tests := []struct {
		path    string
		wantErr string
	}{
		{"ok.m4a", ""},
		{"short.mp3", "audio too short: 2.0s (minimum: 5s)"},
		{"long.wav", "audio too long: 4000.0s (maximum: 1800s)"},
		{"notes.txt", "unsupported format: .txt"},
		{"zero.ogg", "unable to determine duration"},
		{"missing.mp3", "unable to determine duration"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			_, err := v.Validate(context.Background(), tc.path)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want %q", err, tc.wantErr)
			}
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestInboxRecordings(t *testing.T) {
	_, fs := testutil.TestVault(t)
	testutil.WriteFiles(t, fs, map[string]string{
		"b.mp3":      "x",
		"a.WAV":      "x",
		"notes.txt":  "x",
		"sub/c.mp3":  "x",
		"Daily.flac": "x",
	})
	in := NewInbox(fs, NewValidator([]string{".mp3", ".wav", ".flac"}, 0, 10, ""))

	got, err := in.Recordings()
	if err != nil {
		t.Fatalf("Recordings: %v", err)
	}
	if strings.Join(got, ",") != "Daily.flac,a.WAV,b.mp3" {
		t.Errorf("recordings = %v", got)
	}

	if err := in.Save("x.txt", []byte("x")); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Save unsupported = %v", err)
	}
	if err := in.Save("../../evil.mp3", []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ok, _ := fs.Exists("evil.mp3"); !ok {
		t.Error("upload not stored under its base name")
	}
}
