package research

import (
	"time"
)

// ProgressEvent reports one step of a run to an observer. Events are
// informational only; the pipeline produces identical results whether
// or not anyone listens.
type ProgressEvent struct {
	Stage     Stage          `json:"stage"`
	Message   string         `json:"message"`
	Progress  *float64       `json:"progress,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ProgressObserver receives pipeline progress events. Implementations
// should be fast; slow observers delay the run but a panicking observer
// is recovered and logged, never fatal.
type ProgressObserver interface {
	OnProgress(event ProgressEvent)
}

// ObserverFunc adapts a plain function to ProgressObserver.
type ObserverFunc func(ProgressEvent)

func (f ObserverFunc) OnProgress(event ProgressEvent) { f(event) }

// emit sends a progress event to the run's observer, if any. Concurrent
// analyzers emit through one mutex so observers see events one at a
// time. Observer panics are swallowed so a broken listener cannot fail
// the run.
func (e *Engine) emit(stage Stage, message string, progress *float64, payload map[string]any) {
	if e.observer == nil {
		return
	}
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Warn("progress observer panicked", "stage", stage, "panic", r)
		}
	}()
	e.observer.OnProgress(ProgressEvent{
		Stage:     stage,
		Message:   message,
		Progress:  progress,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

func progressPct(completed int) *float64 {
	pct := float64(completed) / float64(totalSteps) * 100
	if pct > 100 {
		pct = 100
	}
	return &pct
}
