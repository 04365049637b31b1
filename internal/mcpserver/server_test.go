package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/worklog/internal/audio"
	"github.com/starford/worklog/internal/extract"
	"github.com/starford/worklog/internal/models"
	"github.com/starford/worklog/internal/notes"
	"github.com/starford/worklog/internal/noteservice"
	"github.com/starford/worklog/internal/pipeline"
	"github.com/starford/worklog/internal/storage"
	"github.com/starford/worklog/internal/testutil"
	"github.com/starford/worklog/internal/timeline"
	"github.com/starford/worklog/internal/todo"
)

const (
	extractJSON = `{"project":"Saliency","summary":"Loader work","completed":"- Fixed loader","blockers":"","next_steps":"- Tests","thoughts":""}`
	todosJSON   = `[{"task":"Write tests","priority":"high","context":"loader"}]`
	weeklyJSON  = `{"week_summary":"Loader rewrite landed.","accomplishments":"- Loader","insights":"- Tiles","blockers":"- None","next_focus":"Tests"}`
)

type fakeTranscriber struct{}

func (fakeTranscriber) Transcribe(context.Context, string) (models.Transcript, error) {
	return models.Transcript{Text: "Today I worked on Saliency."}, nil
}

func testServer(t *testing.T, replies ...testutil.Reply) (*Server, *storage.FS) {
	t.Helper()

	_, vault := testutil.TestVault(t)
	testutil.WriteFiles(t, vault, map[string]string{"Saliency/.keep": "", "Other/.keep": ""})
	daily, err := vault.Sub("Daily Notes")
	if err != nil {
		t.Fatal(err)
	}
	inboxFS, err := vault.Sub("inbox")
	if err != nil {
		t.Fatal(err)
	}

	clock := func() time.Time { return time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC) }
	script := testutil.NewScript(replies...)
	validator := audio.NewValidator([]string{".m4a", ".mp3"}, 1, 1800, "", audio.WithDurationFunc(
		func(context.Context, string) (float64, error) { return 60, nil }))
	inbox := audio.NewInbox(inboxFS, validator)

	exclude := []string{"Daily Notes", "inbox"}
	noteStore := notes.NewStore(daily, notes.Config{}, notes.WithClock(clock))
	todos := todo.NewStore(vault, todo.WithClock(clock))
	proc := pipeline.New(pipeline.Deps{
		Notes:       noteStore,
		Projects:    vault,
		Todos:       todos,
		Extractor:   extract.NewEngine(script, extract.Config{Model: "m"}, nil),
		TodoFinder:  todo.NewExtractor(script, todo.ExtractorConfig{Model: "m"}, nil),
		Transcriber: fakeTranscriber{},
		Validator:   validator,
		Inbox:       inbox,
	}, pipeline.Config{ExcludeProjects: exclude}, pipeline.WithClock(clock))

	projects := func() ([]string, error) { return notes.AvailableProjects(vault, exclude...) }
	gen := timeline.NewGenerator(noteStore, vault, todos,
		timeline.NewSummarizer(script, timeline.SummarizerConfig{Model: "m"}, nil),
		timeline.Config{}, timeline.WithProjectLister(projects))

	srv := New(Deps{
		Service:    noteservice.NewService(vault, testutil.TestDB(t), todos, gen, projects, nil),
		Processor:  proc,
		Aggregator: gen,
		Inbox:      inbox,
	})
	return srv, vault
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process call helper, so handlers are invoked directly.
	var (
		result *mcp.CallToolResult
		err    error
	)
	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "list_projects":
		result, err = srv.listProjects(ctx, req)
	case "get_todos":
		result, err = srv.getTodos(ctx, req)
	case "get_timeline":
		result, err = srv.getTimeline(ctx, req)
	case "process_transcript":
		result, err = srv.processTranscript(ctx, req)
	case "generate_timeline":
		result, err = srv.generateTimeline(ctx, req)
	case "upload_audio":
		result, err = srv.uploadAudio(ctx, req)
	case "get_note_contract":
		result, err = srv.getNoteContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	if tc, ok := r.Content[0].(mcp.TextContent); ok {
		return tc.Text
	}
	return ""
}

func TestProcessTranscriptAndRead(t *testing.T) {
	srv, _ := testServer(t, testutil.Reply{Text: extractJSON}, testutil.Reply{Text: todosJSON})

	r := callTool(t, srv, "process_transcript", map[string]any{"text": "Today I worked on Saliency.", "date": "2024-01-02"})
	if r.IsError {
		t.Fatalf("process_transcript: %s", resultText(r))
	}
	var res pipeline.NoteResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if res.Note != "2024-01-02_Saliency.md" || res.Todos != 1 {
		t.Errorf("result = %+v", res)
	}

	r = callTool(t, srv, "read_note", map[string]any{"path": "Daily Notes/2024-01-02_Saliency.md"})
	if r.IsError || !strings.Contains(resultText(r), "# Daily Log: 2024-01-02") {
		t.Errorf("read_note = %s", resultText(r))
	}

	r = callTool(t, srv, "get_todos", map[string]any{"project": "Saliency"})
	var list noteservice.TodoList
	if err := json.Unmarshal([]byte(resultText(r)), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Open) != 1 || list.Open[0].Task != "Write tests" {
		t.Errorf("todos = %+v", list)
	}

	r = callTool(t, srv, "search_notes", map[string]any{"query": "Loader", "project": "Saliency"})
	if r.IsError || !strings.Contains(resultText(r), "2024-01-02_Saliency.md") {
		t.Errorf("search_notes = %s", resultText(r))
	}

	r = callTool(t, srv, "list_notes", map[string]any{"kind": "daily"})
	if !strings.Contains(resultText(r), `"total": 1`) {
		t.Errorf("list_notes = %s", resultText(r))
	}
}

func TestProcessTranscriptBadDate(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "process_transcript", map[string]any{"text": "words", "date": "02-01-2024"})
	if !r.IsError {
		t.Errorf("expected error, got %s", resultText(r))
	}
}

func TestGenerateTimeline(t *testing.T) {
	srv, vault := testServer(t, testutil.Reply{Text: weeklyJSON})
	testutil.WriteFiles(t, vault, map[string]string{
		"Daily Notes/2024-01-02_Saliency.md": "# Daily Log: 2024-01-02\n\n## 📋 Summary\nLoader work\n",
	})

	r := callTool(t, srv, "generate_timeline", map[string]any{"project": "Saliency"})
	if r.IsError || !strings.Contains(resultText(r), "2024-W01") {
		t.Fatalf("generate_timeline = %s", resultText(r))
	}

	r = callTool(t, srv, "get_timeline", map[string]any{"project": "Saliency"})
	if !strings.Contains(resultText(r), "Loader rewrite landed.") {
		t.Errorf("get_timeline = %s", resultText(r))
	}

	r = callTool(t, srv, "list_projects", nil)
	if !strings.Contains(resultText(r), `"weeks": 1`) {
		t.Errorf("list_projects = %s", resultText(r))
	}
}

func TestUnknownProject(t *testing.T) {
	srv, _ := testServer(t)
	for _, tool := range []string{"get_todos", "get_timeline"} {
		if r := callTool(t, srv, tool, map[string]any{"project": "Nope"}); !r.IsError {
			t.Errorf("%s: expected error, got %s", tool, resultText(r))
		}
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]any{"path": "Daily Notes/nope.md"})
	if !r.IsError {
		t.Error("expected error")
	}
}

func TestUploadAudio(t *testing.T) {
	srv, vault := testServer(t, testutil.Reply{Text: extractJSON}, testutil.Reply{Text: `[]`})

	m4a := append([]byte{0, 0, 0, 0x18}, []byte("ftypM4A audio")...)
	uri := "data:audio/mp4;base64," + base64.StdEncoding.EncodeToString(m4a)

	r := callTool(t, srv, "upload_audio", map[string]any{
		"url": uri, "filename": "Daily_Log_03-01-2024.m4a", "process": true,
	})
	if r.IsError {
		t.Fatalf("upload_audio: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "2024-01-03_Saliency.md") {
		t.Errorf("upload_audio = %s", resultText(r))
	}
	if ok, _ := vault.Exists("inbox/Daily_Log_03-01-2024.m4a"); !ok {
		t.Error("recording not stored in inbox")
	}

	r = callTool(t, srv, "upload_audio", map[string]any{"url": uri, "filename": "Daily_Log_03-01-2024.m4a"})
	if !r.IsError || !strings.Contains(resultText(r), "already exists") {
		t.Errorf("duplicate upload = %s", resultText(r))
	}
}

func TestUploadAudioRejects(t *testing.T) {
	srv, _ := testServer(t)
	cases := map[string]map[string]any{
		"bad magic": {"url": "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString([]byte("plain text")), "filename": "a.mp3"},
		"bad mime":  {"url": "data:text/plain;base64,aGVsbG8="},
		"private":   {"url": "http://127.0.0.1/a.mp3"},
	}
	for name, args := range cases {
		if r := callTool(t, srv, "upload_audio", args); !r.IsError {
			t.Errorf("%s: expected error, got %s", name, resultText(r))
		}
	}
}

func TestNoteContract(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "get_note_contract", nil))
	for _, want := range []string{"# Daily Log:", "- [ ] 🔴", "timeline_index.md"} {
		if !strings.Contains(text, want) {
			t.Errorf("contract missing %q", want)
		}
	}
}
