package ui

import (
	"strings"
	"testing"
	"time"

	"lowir/internal/driver"
)

func TestProgressTracksFunctionStatus(t *testing.T) {
	m := NewProgressModel("lowering unit", []string{"alpha", "beta"}, nil).(*progressModel)
	m.applyEvent(driver.Event{Func: "alpha", Status: driver.StatusDone, Elapsed: 1500 * time.Microsecond})
	m.applyEvent(driver.Event{Func: "beta", Status: driver.StatusError})
	m.applyEvent(driver.Event{Func: "unknown", Status: driver.StatusDone})

	if got := m.fraction(); got != 1.0 {
		t.Fatalf("fraction = %v, want 1", got)
	}
	view := m.View()
	for _, want := range []string{"alpha", "1.50 ms", "error"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view misses %q:\n%s", want, view)
		}
	}
}

func TestCachedUnitCompletesEveryRow(t *testing.T) {
	m := NewProgressModel("lowering unit", []string{"a", "b", "c"}, nil).(*progressModel)
	m.applyEvent(driver.Event{Status: driver.StatusCached})
	if m.fraction() != 1.0 || !strings.Contains(m.View(), "cached") {
		t.Fatalf("cached unit not shown as complete:\n%s", m.View())
	}
}

func TestLongListsKeepActiveRowsVisible(t *testing.T) {
	names := make([]string, 30)
	for i := range names {
		names[i] = strings.Repeat("f", i+1)
	}
	m := NewProgressModel("big", names, nil).(*progressModel)
	m.applyEvent(driver.Event{Func: names[29], Status: driver.StatusWorking})
	rows := m.visibleItems()
	if len(rows) != maxRows || rows[0].name != names[29] {
		t.Fatalf("active row not first: %+v", rows[0])
	}
	if !strings.Contains(m.View(), "10 more") {
		t.Fatalf("hidden rows not summarised:\n%s", m.View())
	}
}

func TestTruncateUsesDisplayWidth(t *testing.T) {
	if got := truncate("функция_с_длинным_именем", 10); got != "функ..." {
		t.Fatalf("truncate = %q", got)
	}
}

func TestQueuedEventsAddRows(t *testing.T) {
	m := NewProgressModel("unit", nil, nil).(*progressModel)
	m.applyEvent(driver.Event{Func: "late", Status: driver.StatusQueued})
	m.applyEvent(driver.Event{Func: "late", Status: driver.StatusWorking})
	if len(m.items) != 1 || m.items[0].status != driver.StatusWorking {
		t.Fatalf("items = %+v", m.items)
	}
}
