package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/worklog/internal"
	"github.com/starford/worklog/internal/pipeline"
	pkgconfig "github.com/starford/worklog/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// withServices runs fn against services built from the config, logging to
// stderr so command output stays clean.
func withServices(cmd *cli.Command, fn func(*internal.Services) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := internal.NewLogger(internal.ApplicationConfig{LogLevel: cfg.App.LogLevel, LogFormat: internal.LogFormatText}, os.Stderr)
	slog.SetDefault(logger)

	svc, err := internal.NewServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(svc)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func processAudio(ctx context.Context, cmd *cli.Command) error {
	out := newPrinter(os.Stdout)
	return withServices(cmd, func(svc *internal.Services) error {
		files := cmd.Args().Slice()
		if cmd.Bool("todos-only") {
			if len(files) == 0 {
				return errors.New("todos-only needs at least one recording")
			}
			var rows [][]string
			for _, f := range files {
				res, err := svc.Pipeline.ExtractTodosOnly(ctx, f)
				if err != nil {
					return fmt.Errorf("%s: %w", f, err)
				}
				rows = append(rows, []string{f, res.Project, strconv.Itoa(len(res.Items)), res.Transcript})
			}
			out.table([]string{"Recording", "Project", "Todos", "Transcript"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight})
			return nil
		}

		var batch pipeline.BatchResult
		if len(files) == 0 {
			res, err := svc.Pipeline.ProcessInbox(ctx, func(file string, err error) {
				if err != nil {
					out.line("✗ %s: %v", file, err)
					return
				}
				out.line("✓ %s", file)
			})
			if err != nil {
				return err
			}
			batch = res
		} else {
			for _, f := range files {
				res, err := svc.Pipeline.ProcessAudio(ctx, f)
				if err != nil {
					batch.Failed++
					out.line("✗ %s: %v", f, err)
					continue
				}
				batch.Processed++
				batch.Notes = append(batch.Notes, res)
			}
		}

		out.table([]string{"Recording", "Note", "Project", "Outcome", "Todos"}, noteRows(batch.Notes),
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight})
		out.line("processed %d, failed %d", batch.Processed, batch.Failed)
		if batch.Failed > 0 {
			return fmt.Errorf("%d recording(s) failed", batch.Failed)
		}
		return nil
	})
}

func processNote(ctx context.Context, cmd *cli.Command) error {
	src := cmd.Args().First()
	if src == "" {
		return errors.New("usage: note <transcript file | ->")
	}
	var (
		data []byte
		err  error
	)
	if src == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return errors.New("transcript is empty")
	}

	out := newPrinter(os.Stdout)
	return withServices(cmd, func(svc *internal.Services) error {
		res, err := svc.Pipeline.ProcessTranscript(ctx, text, cmd.String("date"), "")
		if err != nil {
			return err
		}
		out.table([]string{"Source", "Note", "Project", "Outcome", "Todos"}, noteRows([]pipeline.NoteResult{res}),
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight})
		return nil
	})
}

func noteRows(results []pipeline.NoteResult) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{r.Source, r.Note, r.Project, string(r.Outcome), strconv.Itoa(r.Todos)})
	}
	return rows
}

func showTodos(_ context.Context, cmd *cli.Command) error {
	project := cmd.Args().First()
	if project == "" {
		return errors.New("usage: todos <project>")
	}
	out := newPrinter(os.Stdout)
	return withServices(cmd, func(svc *internal.Services) error {
		open, err := svc.Todos.Open(project)
		if err != nil {
			return err
		}
		rows := todoRows(open, false)
		if cmd.Bool("completed") {
			done, err := svc.Todos.Completed(project)
			if err != nil {
				return err
			}
			rows = append(rows, todoRows(done, true)...)
		}
		if len(rows) == 0 {
			out.line("no todos for %s", project)
			return nil
		}
		out.table([]string{"State", "Priority", "Task", "Context", "Source"}, rows, nil)
		return nil
	})
}

func generateTimeline(ctx context.Context, cmd *cli.Command) error {
	out := newPrinter(os.Stdout)
	return withServices(cmd, func(svc *internal.Services) error {
		project := cmd.String("project")
		if project == "" {
			counts, err := svc.Timeline.ProcessAllProjects(ctx)
			names := make([]string, 0, len(counts))
			for name := range counts {
				names = append(names, name)
			}
			sort.Strings(names)
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				rows = append(rows, []string{name, strconv.Itoa(counts[name])})
			}
			out.table([]string{"Project", "Weeks created"}, rows, []columnAlignment{alignLeft, alignRight})
			return err
		}

		weeks, err := svc.Timeline.Generate(ctx, project)
		rows := make([][]string, 0, len(weeks))
		for _, w := range weeks {
			rows = append(rows, []string{w.Week.ID(), w.Week.DateRange(), string(w.Outcome),
				strconv.Itoa(w.Notes), strconv.Itoa(w.Swept.Removed)})
		}
		if len(rows) == 0 && err == nil {
			out.line("%s: timeline is up to date", project)
			return nil
		}
		out.table([]string{"Week", "Dates", "Outcome", "Notes", "Todos removed"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight})
		return err
	})
}

func listProjects(ctx context.Context, cmd *cli.Command) error {
	out := newPrinter(os.Stdout)
	return withServices(cmd, func(svc *internal.Services) error {
		if err := svc.Sync(ctx); err != nil {
			return err
		}
		projects, err := svc.Service.Projects(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(projects))
		for _, p := range projects {
			rows = append(rows, []string{p.Name, strconv.Itoa(p.DailyNotes), strconv.Itoa(p.Weeks), p.LastDate, strconv.Itoa(p.OpenTodos)})
		}
		out.table([]string{"Project", "Daily notes", "Weeks", "Last note", "Open todos"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignRight})
		return nil
	})
}

func main() {
	cmd := &cli.Command{
		Name:   "worklog",
		Usage:  "Turn spoken work logs into daily notes, project todo lists and weekly timelines",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "process",
				Usage:     "Transcribe recordings into daily notes (the whole inbox when no files are given)",
				ArgsUsage: "[recording...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "todos-only", Usage: "Only extract todo items, no daily note"},
				},
				Action: processAudio,
			},
			{
				Name:      "note",
				Usage:     "Create a daily note from a transcript file or stdin",
				ArgsUsage: "<file | ->",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Usage: "Note date YYYY-MM-DD (default today)"},
				},
				Action: processNote,
			},
			{
				Name:      "todos",
				Usage:     "Show a project's todo list",
				ArgsUsage: "<project>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "completed", Usage: "Include ticked items"},
				},
				Action: showTodos,
			},
			{
				Name:  "timeline",
				Usage: "Create missing weekly summaries",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Usage: "Only this project"},
				},
				Action: generateTimeline,
			},
			{
				Name:   "projects",
				Usage:  "List projects with note, week and todo counts",
				Action: listProjects,
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, live events and vault watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
