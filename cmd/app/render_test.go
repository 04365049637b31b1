package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/starford/worklog/internal/models"
)

func TestPrinterPlainRows(t *testing.T) {
	var buf bytes.Buffer
	p := printer{w: &buf}
	p.table([]string{"A", "B"}, [][]string{{"x", "1"}, {"y", "2"}}, nil)
	if got := buf.String(); got != "x\t1\ny\t2\n" {
		t.Errorf("plain output = %q", got)
	}
}

func TestPrinterTable(t *testing.T) {
	var buf bytes.Buffer
	p := printer{w: &buf, tty: true}
	p.table([]string{"Project", "Weeks"}, [][]string{{"Saliency", "3"}}, []columnAlignment{alignLeft, alignRight})
	out := buf.String()
	if !strings.Contains(out, "Saliency") || !strings.Contains(out, "╭") {
		t.Errorf("table output:\n%s", out)
	}
}

func TestTodoRows(t *testing.T) {
	rows := todoRows([]models.TodoItem{{Task: "Write tests", Priority: models.PriorityHigh, Source: "2024-01-02_Saliency"}}, false)
	if len(rows) != 1 {
		t.Fatalf("rows = %v", rows)
	}
	if rows[0][0] != "open" || rows[0][1] != "🔴 High" || rows[0][4] != "2024-01-02_Saliency" {
		t.Errorf("row = %q", rows[0])
	}
}
