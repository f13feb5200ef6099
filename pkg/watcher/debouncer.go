package watcher

import (
	"context"
	"time"

	"github.com/ritzau/circulation/pkg/logging"
)

// Debouncer batches rapid file system events to avoid excessive rebuilds.
// A batch is flushed after quietPeriod without new events, or maxWait after
// its first event, whichever comes first.
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

// stopTimer stops t and drains a pending tick so a later Reset starts clean
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

// run owns all batching state; timers only signal through their channels
func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	quiet := time.NewTimer(d.quietPeriod)
	stopTimer(quiet)
	deadline := time.NewTimer(d.maxWait)
	stopTimer(deadline)

	accumulated := make(map[ChangeType][]string)
	seen := make(map[string]bool)
	eventCount := 0

	flush := func() {
		stopTimer(quiet)
		stopTimer(deadline)
		if eventCount == 0 {
			return
		}

		logging.Debug("flushing accumulated events", "count", eventCount)

		// Writes first so a rebuild sees the newest files, then removals
		for _, changeType := range []ChangeType{ChangeTypeModelWritten, ChangeTypeModelRemoved} {
			if paths := accumulated[changeType]; len(paths) > 0 {
				select {
				case d.output <- ChangeEvent{Type: changeType, Paths: paths, Timestamp: time.Now()}:
				case <-ctx.Done():
				}
			}
		}

		accumulated = make(map[ChangeType][]string)
		seen = make(map[string]bool)
		eventCount = 0
	}

	for {
		select {
		case <-ctx.Done():
			stopTimer(quiet)
			stopTimer(deadline)
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}

			for _, path := range event.Paths {
				key := event.Type.String() + ":" + path
				if !seen[key] {
					seen[key] = true
					accumulated[event.Type] = append(accumulated[event.Type], path)
				}
			}

			// Start max wait timer on first event of a batch
			if eventCount == 0 {
				deadline.Reset(d.maxWait)
			}
			eventCount++

			// Reset quiet period timer
			stopTimer(quiet)
			quiet.Reset(d.quietPeriod)

		case <-quiet.C:
			flush()

		case <-deadline.C:
			flush()
		}
	}
}

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}
