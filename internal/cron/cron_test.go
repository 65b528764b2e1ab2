package cron

import (
	"errors"
	"testing"
	"time"

	"github.com/jobs/taskcore/internal/task"
)

func TestValidate_Accepts(t *testing.T) {
	exprs := []string{"* * * * *", "0 0 * * *", "@every 1m", "@daily"}
	for _, e := range exprs {
		if err := Validate(e); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", e, err)
		}
	}
}

func TestValidate_RejectsMalformed(t *testing.T) {
	err := Validate("not a cron expression")
	if err == nil {
		t.Fatal("expected error for malformed expression")
	}
	if !errors.Is(err, task.ErrInvalidCron) {
		t.Errorf("expected error to wrap ErrInvalidCron, got %v", err)
	}
}

func TestNext_IsStrictlyAfterFrom(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	next, err := Next("* * * * *", from)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if next <= from {
		t.Errorf("expected next (%d) strictly after from (%d)", next, from)
	}
	// every-minute schedule: next minute boundary.
	want := time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC).Unix()
	if next != want {
		t.Errorf("Next() = %d, want %d", next, want)
	}
}

func TestNext_InvalidExpr(t *testing.T) {
	_, err := Next("garbage", 0)
	if !errors.Is(err, task.ErrInvalidCron) {
		t.Errorf("expected ErrInvalidCron, got %v", err)
	}
}
