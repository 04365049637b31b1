package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/worklog/internal/audio"
	"github.com/starford/worklog/internal/extract"
	"github.com/starford/worklog/internal/models"
	"github.com/starford/worklog/internal/notes"
	"github.com/starford/worklog/internal/storage"
	"github.com/starford/worklog/internal/testutil"
	"github.com/starford/worklog/internal/todo"
)

const (
	extractJSON = `{"project":"Saliency","summary":"Loader work","completed":"- Fixed loader","blockers":"","next_steps":"- Tests","thoughts":""}`
	todosJSON   = `[{"task":"Write tests","priority":"high","context":"loader"}]`
)

type fakeTranscriber map[string]string

func (f fakeTranscriber) Transcribe(_ context.Context, path string) (models.Transcript, error) {
	text, ok := f[filepath.Base(path)]
	if !ok {
		return models.Transcript{}, errors.New("whisperx: exit status 1")
	}
	return models.Transcript{Text: text}, nil
}

type fixture struct {
	proc   *Processor
	vault  *storage.FS
	daily  *storage.FS
	inbox  *storage.FS
	script *testutil.Script
}

func newFixture(t *testing.T, cfg Config, replies ...testutil.Reply) fixture {
	t.Helper()
	_, vault := testutil.TestVault(t)
	daily, err := vault.Sub("Daily Notes")
	if err != nil {
		t.Fatal(err)
	}
	inboxFS, err := vault.Sub("inbox")
	if err != nil {
		t.Fatal(err)
	}
	testutil.WriteFiles(t, vault, map[string]string{"Saliency/.keep": "", "Other/.keep": ""})

	locker, err := storage.NewLocker(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	script := testutil.NewScript(replies...)
	validator := audio.NewValidator([]string{".m4a", ".mp3", ".wav"}, 5, 1800, "", audio.WithDurationFunc(
		func(_ context.Context, path string) (float64, error) {
			if strings.HasPrefix(filepath.Base(path), "short") {
				return 1, nil
			}
			return 60, nil
		}))

	cfg.ExcludeProjects = append(cfg.ExcludeProjects, "Daily Notes", "inbox")
	clock := func() time.Time { return time.Date(2024, 1, 5, 17, 30, 0, 0, time.UTC) }
	proc := New(Deps{
		Notes:       notes.NewStore(daily, notes.Config{SaveTranscript: true, TranscriptFolder: "transcripts"}, notes.WithClock(clock)),
		Projects:    vault,
		Todos:       todo.NewStore(vault, todo.WithClock(clock)),
		Extractor:   extract.NewEngine(script, extract.Config{Model: "m"}, nil),
		TodoFinder:  todo.NewExtractor(script, todo.ExtractorConfig{Model: "m"}, nil),
		Transcriber: fakeTranscriber{"Daily_Log_02-01-2024.m4a": "Today I worked on Saliency.", "memo.m4a": "Remember to write tests."},
		Validator:   validator,
		Inbox:       audio.NewInbox(inboxFS, validator),
		Locker:      locker,
	}, cfg, WithClock(clock))
	return fixture{proc: proc, vault: vault, daily: daily, inbox: inboxFS, script: script}
}

func TestProcessTranscript(t *testing.T) {
	f := newFixture(t, Config{}, testutil.Reply{Text: extractJSON}, testutil.Reply{Text: todosJSON})

	res, err := f.proc.ProcessTranscript(context.Background(), "Today I worked on Saliency.", "2024-01-02", "")
	if err != nil {
		t.Fatalf("ProcessTranscript: %v", err)
	}
	if res.Note != "2024-01-02_Saliency.md" || res.Project != "Saliency" || res.Outcome != models.OutcomeOK || res.Todos != 1 {
		t.Errorf("result = %+v", res)
	}

	if sys := f.script.Requests[0].System; !strings.Contains(sys, "[Other, Saliency]") {
		t.Errorf("project list not offered:\n%s", sys)
	}
	note := testutil.ReadFile(t, f.daily, "2024-01-02_Saliency.md")
	if !strings.Contains(note, "## 📋 Summary\nLoader work\n") || !strings.Contains(note, "(transcripts/2024-01-02_Saliency_transcript.md)") {
		t.Errorf("note:\n%s", note)
	}
	list := testutil.ReadFile(t, f.vault, "Saliency/todo.md")
	if !strings.Contains(list, "- [ ] 🔴 Write tests _loader_ *[[2024-01-02_Saliency|Source]]* \n") {
		t.Errorf("todo.md:\n%s", list)
	}
}

func TestProcessTranscript_ExtractionFailure(t *testing.T) {
	f := newFixture(t, Config{}, testutil.Reply{Err: errors.New("quota")})

	res, err := f.proc.ProcessTranscript(context.Background(), "raw words", "", "")
	if err != nil {
		t.Fatalf("ProcessTranscript: %v", err)
	}
	if res.Outcome != models.OutcomeError || res.Project != models.UnknownProject || res.Date != "2024-01-05" || res.Todos != 0 {
		t.Errorf("result = %+v", res)
	}
	note := testutil.ReadFile(t, f.daily, res.Note)
	if !strings.Contains(note, "Raw transcript:\nraw words") {
		t.Errorf("error note:\n%s", note)
	}
}

func TestProcessInbox(t *testing.T) {
	f := newFixture(t, Config{DeleteAfterProcessing: true}, testutil.Reply{Text: extractJSON}, testutil.Reply{Text: `[]`})
	testutil.WriteFiles(t, f.inbox, map[string]string{
		"Daily_Log_02-01-2024.m4a": "audio",
		"broken.mp3":               "audio",
		"short.wav":                "audio",
		"readme.txt":               "not audio",
	})

	var seen []string
	res, err := f.proc.ProcessInbox(context.Background(), func(file string, err error) {
		seen = append(seen, file)
	})
	if err != nil {
		t.Fatalf("ProcessInbox: %v", err)
	}
	if res.Processed != 1 || res.Failed != 2 {
		t.Fatalf("result = %+v", res)
	}
	if strings.Join(seen, ",") != "Daily_Log_02-01-2024.m4a,broken.mp3,short.wav" {
		t.Errorf("progress order = %v", seen)
	}
	if !strings.Contains(res.Errors["short.wav"], "audio too short") {
		t.Errorf("errors = %v", res.Errors)
	}
	if res.Notes[0].Note != "2024-01-02_Saliency.md" || res.Notes[0].Source != "Daily_Log_02-01-2024.m4a" {
		t.Errorf("note = %+v", res.Notes[0])
	}

	if ok, _ := f.inbox.Exists("Daily_Log_02-01-2024.m4a"); ok {
		t.Error("processed recording not deleted")
	}
	if ok, _ := f.inbox.Exists("broken.mp3"); !ok {
		t.Error("failed recording deleted")
	}
}

func TestExtractTodosOnly(t *testing.T) {
	f := newFixture(t, Config{}, testutil.Reply{Text: extractJSON}, testutil.Reply{Text: todosJSON})
	testutil.WriteFiles(t, f.inbox, map[string]string{"memo.m4a": "audio"})

	res, err := f.proc.ExtractTodosOnly(context.Background(), filepath.Join(f.inbox.Root(), "memo.m4a"))
	if err != nil {
		t.Fatalf("ExtractTodosOnly: %v", err)
	}
	if res.Project != "Saliency" || res.Transcript != "transcripts/2024-01-05_TodoExtract_Saliency.md" || len(res.Items) != 1 {
		t.Errorf("result = %+v", res)
	}
	extractDoc := testutil.ReadFile(t, f.daily, res.Transcript)
	if !strings.Contains(extractDoc, "# Todo Extract: 2024-01-05 - Saliency\n\nRemember to write tests.") {
		t.Errorf("extract:\n%s", extractDoc)
	}
	names, _ := f.proc.deps.Notes.ListDaily()
	if len(names) != 0 {
		t.Errorf("daily notes written: %v", names)
	}
	if !strings.Contains(testutil.ReadFile(t, f.vault, "Saliency/todo.md"), "[[2024-01-05_Saliency|Source]]") {
		t.Error("todo not linked to run date")
	}
}
