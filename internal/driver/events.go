package driver

import "time"

// Status captures the progress of one function.
type Status string

const (
	// StatusQueued indicates the function is waiting for a worker.
	StatusQueued Status = "queued"
	// StatusWorking indicates the function is being lowered.
	StatusWorking Status = "lowering"
	// StatusDone indicates the function was lowered and accepted.
	StatusDone Status = "done"
	// StatusError indicates lowering failed.
	StatusError Status = "error"
	// StatusSkipped indicates lowering was cancelled before it started.
	StatusSkipped Status = "skipped"
	// StatusCached indicates the whole unit was served from the cache.
	StatusCached Status = "cached"
)

// Event reports progress for a function (or for the whole unit when Func
// is empty).
type Event struct {
	Func    string
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. OnEvent may be called from several
// goroutines.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

func emit(sink ProgressSink, ev Event) {
	if sink != nil {
		sink.OnEvent(ev)
	}
}
