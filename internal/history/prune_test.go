package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"feedbackbot/internal/config"
	"feedbackbot/internal/domain"
	"feedbackbot/internal/storage/sqlite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPruneOnceUsesRetention(t *testing.T) {
	db, err := sqlite.InitDB(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	now := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	for _, started := range []time.Time{now.AddDate(0, 0, -31), now.AddDate(0, 0, -29)} {
		rec := domain.RunRecord{Status: domain.RunStatusDone, StartedAt: started, FinishedAt: started.Add(time.Minute)}
		if _, err := sqlite.InsertRun(db, rec); err != nil {
			t.Fatalf("InsertRun failed: %v", err)
		}
	}

	removed, err := PruneOnce(db, 30, now, zap.NewNop())
	if err != nil {
		t.Fatalf("PruneOnce failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned run, got %d", removed)
	}
}

func TestParseSchedule(t *testing.T) {
	sched, err := parseSchedule("0 3 * * *")
	if err != nil {
		t.Fatalf("parseSchedule failed: %v", err)
	}
	from := time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)
	want := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	if got := sched.Next(from); !got.Equal(want) {
		t.Fatalf("next run = %s, want %s", got, want)
	}
	if _, err := parseSchedule("0 3 * *"); err == nil {
		t.Fatal("expected 4-field schedule to be rejected")
	}
}

func TestStartPruneSchedulerStopsWithContext(t *testing.T) {
	cfg := config.Config{HistoryPruneSchedule: "0 3 * * *", HistoryRetentionDays: 90}
	ctx, cancel := context.WithCancel(context.Background())
	stopped := StartPruneScheduler(ctx, cfg, nil, zap.NewNop())
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestStartPruneSchedulerDisabled(t *testing.T) {
	cfg := config.Config{HistoryPruneSchedule: "off"}
	select {
	case <-StartPruneScheduler(context.Background(), cfg, nil, zap.NewNop()):
	default:
		t.Fatal("disabled scheduler should report stopped immediately")
	}
}
