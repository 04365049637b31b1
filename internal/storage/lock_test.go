package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starford/worklog/internal/apperr"
)

func TestLockerSerializesProject(t *testing.T) {
	l, err := NewLocker(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocker: %v", err)
	}

	unlock, err := l.Lock(context.Background(), "Saliency")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "Saliency"); !errors.Is(err, apperr.ErrLocked) {
		t.Fatalf("second Lock err = %v, want ErrLocked", err)
	}

	other, err := l.Lock(context.Background(), "Other Project")
	if err != nil {
		t.Fatalf("Lock other project: %v", err)
	}
	other()

	unlock()
	again, err := l.Lock(context.Background(), "Saliency")
	if err != nil {
		t.Fatalf("Lock after unlock: %v", err)
	}
	again()
}
