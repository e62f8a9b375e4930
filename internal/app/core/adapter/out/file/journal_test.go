package file

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-points-ledger/internal/app/core/domain"
)

func TestJournal_AppendAndEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	j, err := NewJournal(path, true)
	if err != nil {
		t.Fatalf("NewJournal error = %v", err)
	}
	defer j.Close()

	ts := time.Date(2020, 11, 2, 14, 0, 0, 0, time.UTC)
	tran := &domain.Transaction{ID: uuid.New(), Sequence: 1, Payer: "DANNON", Points: 1000, Remaining: 1000, Timestamp: ts}
	ctx := context.Background()
	if err := j.Append(ctx, domain.NewAddEvent(tran, ts)); err != nil {
		t.Fatalf("Append(add) error = %v", err)
	}
	spend := &domain.Event{Sequence: 2, Kind: domain.EventKindSpend, Amount: 300, Deductions: domain.Deductions{"DANNON": -300}, RecordedAt: ts}
	if err := j.Append(ctx, spend); err != nil {
		t.Fatalf("Append(spend) error = %v", err)
	}

	events, err := j.Events()
	if err != nil {
		t.Fatalf("Events error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].TransactionID != tran.ID || events[0].Points != 1000 || !events[0].Timestamp.Equal(ts) {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Kind != domain.EventKindSpend || events[1].Deductions["DANNON"] != -300 {
		t.Errorf("events[1] = %+v", events[1])
	}
}

func TestJournal_CancelledContext(t *testing.T) {
	j, err := NewJournal(filepath.Join(t.TempDir(), "events.log"), false)
	if err != nil {
		t.Fatalf("NewJournal error = %v", err)
	}
	defer j.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.Append(ctx, &domain.Event{Sequence: 1, Kind: domain.EventKindAdd}); err == nil {
		t.Error("Append with cancelled context should fail")
	}
	events, _ := j.Events()
	if len(events) != 0 {
		t.Errorf("events = %d, want 0", len(events))
	}
}
