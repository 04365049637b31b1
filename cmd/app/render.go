package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/starford/worklog/internal/models"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// printer writes tables to a terminal and tab-separated rows to anything
// else, so output can be piped into other tools.
type printer struct {
	w   io.Writer
	tty bool
}

func newPrinter(f *os.File) printer {
	fd := f.Fd()
	return printer{w: f, tty: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)}
}

func (p printer) table(headers []string, rows [][]string, aligns []columnAlignment) {
	if !p.tty {
		for _, row := range rows {
			fmt.Fprintln(p.w, strings.Join(row, "\t"))
		}
		return
	}
	fmt.Fprintln(p.w, renderTable(headers, rows, aligns))
}

func (p printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

var titleCaser = cases.Title(language.English)

func priorityLabel(p models.Priority) string {
	return strings.TrimSpace(p.Emoji()) + " " + titleCaser.String(string(p))
}

func todoRows(items []models.TodoItem, done bool) [][]string {
	state := "open"
	if done {
		state = "done"
	}
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{state, priorityLabel(it.Priority), it.Task, it.Context, it.Source})
	}
	return rows
}
