package drift

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/kalshi-trader/internal/model"
)

type captureWriter struct {
	mu   sync.Mutex
	rows []model.AuditRow
}

func (w *captureWriter) InsertAuditRows(_ context.Context, rows []model.AuditRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, rows...)
	return nil
}

func (w *captureWriter) all() []model.AuditRow {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.AuditRow(nil), w.rows...)
}

func testConfig() Config {
	return Config{
		Window:        10 * time.Minute,
		DropThreshold: 5.0,
		BatchSize:     100,
		FlushInterval: time.Hour, // Tests flush explicitly via Stop
		BufferSize:    16,
	}
}

func newTestMonitor(w AuditWriter) *Monitor {
	return New(testConfig(), w, slog.New(slog.DiscardHandler))
}

func TestMonitor_DetectsDropAcrossWindow(t *testing.T) {
	w := &captureWriter{}
	m := newTestMonitor(w)

	base := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)
	m.handleSample(model.ProbabilitySample{Ticker: "T", ProbabilityCents: 95, ObservedAt: base})
	// Within the window: no baseline old enough yet.
	m.handleSample(model.ProbabilitySample{Ticker: "T", ProbabilityCents: 80, ObservedAt: base.Add(5 * time.Minute)})
	// One window later: compared against the 95-cent sample.
	m.handleSample(model.ProbabilitySample{Ticker: "T", ProbabilityCents: 85, ObservedAt: base.Add(10 * time.Minute)})

	m.flush(context.Background())
	rows := w.all()
	if len(rows) != 1 {
		t.Fatalf("got %d audit rows, want 1", len(rows))
	}
	row := rows[0]
	if row.Ticker != "T" || row.ProbabilityCents != 85 {
		t.Errorf("unexpected row: %+v", row)
	}
	if row.DropPct != 10.53 {
		t.Errorf("DropPct = %v, want 10.53", row.DropPct)
	}
	if row.Suspect {
		t.Error("85 cents is a usable quote, not suspect")
	}
}

func TestMonitor_SmallDropIgnored(t *testing.T) {
	w := &captureWriter{}
	m := newTestMonitor(w)

	base := time.Now()
	m.handleSample(model.ProbabilitySample{Ticker: "T", ProbabilityCents: 95, ObservedAt: base})
	m.handleSample(model.ProbabilitySample{Ticker: "T", ProbabilityCents: 93, ObservedAt: base.Add(11 * time.Minute)})

	m.flush(context.Background())
	if rows := w.all(); len(rows) != 0 {
		t.Fatalf("got %d audit rows, want 0", len(rows))
	}
}

func TestMonitor_DegenerateQuoteFlaggedSuspect(t *testing.T) {
	w := &captureWriter{}
	m := newTestMonitor(w)

	base := time.Now()
	m.handleSample(model.ProbabilitySample{Ticker: "T", ProbabilityCents: 95, ObservedAt: base})
	m.handleSample(model.ProbabilitySample{Ticker: "T", ProbabilityCents: 0, ObservedAt: base.Add(11 * time.Minute)})

	m.flush(context.Background())
	rows := w.all()
	if len(rows) != 1 {
		t.Fatalf("got %d audit rows, want 1", len(rows))
	}
	if !rows[0].Suspect {
		t.Error("a zero quote must be flagged suspect")
	}
}

func TestMonitor_TickersIndependent(t *testing.T) {
	w := &captureWriter{}
	m := newTestMonitor(w)

	base := time.Now()
	m.handleSample(model.ProbabilitySample{Ticker: "A", ProbabilityCents: 95, ObservedAt: base})
	// B has no history: a first observation is never a drop.
	m.handleSample(model.ProbabilitySample{Ticker: "B", ProbabilityCents: 60, ObservedAt: base.Add(11 * time.Minute)})

	m.flush(context.Background())
	if rows := w.all(); len(rows) != 0 {
		t.Fatalf("got %d audit rows, want 0", len(rows))
	}
}

func TestMonitor_StopDrainsQueue(t *testing.T) {
	w := &captureWriter{}
	m := newTestMonitor(w)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	base := time.Now()
	m.Observe(model.ProbabilitySample{Ticker: "T", ProbabilityCents: 95, ObservedAt: base})
	m.Observe(model.ProbabilitySample{Ticker: "T", ProbabilityCents: 70, ObservedAt: base.Add(11 * time.Minute)})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	rows := w.all()
	if len(rows) != 1 {
		t.Fatalf("got %d audit rows after Stop, want 1", len(rows))
	}
	if rows[0].DropPct != 26.32 {
		t.Errorf("DropPct = %v, want 26.32", rows[0].DropPct)
	}
}

func TestSampleBuffer_GrowsPreservingOrder(t *testing.T) {
	b := newSampleBuffer(2)
	for i := 0; i < 50; i++ {
		if !b.push(model.ProbabilitySample{ProbabilityCents: i}) {
			t.Fatalf("push %d failed", i)
		}
	}
	if b.len() != 50 {
		t.Fatalf("len = %d, want 50", b.len())
	}
	for i := 0; i < 50; i++ {
		s, ok := b.tryPop()
		if !ok || s.ProbabilityCents != i {
			t.Fatalf("pop %d = (%v, %v)", i, s.ProbabilityCents, ok)
		}
	}
	b.close()
	if b.push(model.ProbabilitySample{}) {
		t.Error("push after close must fail")
	}
}
