package trace

import (
	"strconv"
	"sync"
	"time"
)

// Heartbeat emits a liveness event every interval carrying the run's
// counters. Heartbeats that keep arriving while the counters stay put point
// at a function that does not finish lowering.
type Heartbeat struct {
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// StartHeartbeat starts beating on t; it returns nil when t is disabled or
// interval is not positive. counters may be nil.
func StartHeartbeat(t Tracer, interval time.Duration, counters *Counters) *Heartbeat {
	if t == nil || !t.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{stop: make(chan struct{})}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for beat := 1; ; beat++ {
			select {
			case now := <-ticker.C:
				t.Emit(&Event{
					Time:   now,
					Seq:    NextSeq(),
					Kind:   KindHeartbeat,
					Scope:  ScopeRun,
					Name:   "heartbeat",
					Detail: "#" + strconv.Itoa(beat),
					Extra:  counters.Snapshot(),
				})
			case <-h.stop:
				return
			}
		}
	}()
	return h
}

// Stop ends the heartbeat and waits for its goroutine. It is safe on nil
// and when called twice.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	h.wg.Wait()
}
