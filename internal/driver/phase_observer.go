package driver

import (
	"context"
	"time"
)

// PhaseStatus reports whether a phase started or finished.
type PhaseStatus int

const (
	// PhaseStart indicates that a session phase has begun.
	PhaseStart PhaseStatus = iota
	PhaseEnd
)

// PhaseEvent describes a timing phase boundary.
type PhaseEvent struct {
	Name    string
	Status  PhaseStatus
	Elapsed time.Duration
}

// PhaseObserver receives phase events emitted by a session.
type PhaseObserver func(PhaseEvent)

// phase runs fn as a named phase: it is timed on the session timer, traced
// as a pass span and reported to the observer.
func (s *Session) phase(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if s.opts.Observer != nil {
		s.opts.Observer(PhaseEvent{Name: name, Status: PhaseStart})
	}
	span, pctx := s.beginPass(ctx, name)
	idx := s.Timer.Begin(name)
	err := fn(pctx)
	note := ""
	if err != nil {
		note = "failed"
	}
	elapsed := s.Timer.End(idx, note)
	span.End(note)
	if s.opts.Observer != nil {
		s.opts.Observer(PhaseEvent{Name: name, Status: PhaseEnd, Elapsed: elapsed})
	}
	return err
}
