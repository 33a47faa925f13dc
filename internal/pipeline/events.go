package pipeline

import (
	"time"

	"github.com/sells-group/prospector/internal/model"
)

// StatusEvent reports one per-target status transition. The event stream
// is the only UI-facing contract the pipeline provides.
type StatusEvent struct {
	TargetID string             `json:"target_id"`
	URL      string             `json:"url"`
	From     model.TargetStatus `json:"from"`
	To       model.TargetStatus `json:"to"`
	Kind     model.FailureKind  `json:"kind,omitempty"`
	Err      string             `json:"error,omitempty"`
	At       time.Time          `json:"at"`
}

// emit delivers an event without ever blocking a worker: if the consumer
// has fallen behind the buffer, the event is dropped.
func (c *Coordinator) emit(ev StatusEvent) {
	select {
	case c.events <- ev:
	default:
	}
}

// Events returns the status feed. The channel is closed when the run
// finalizes. Consumers that fall behind the buffer miss events rather
// than stalling the pipeline.
func (c *Coordinator) Events() <-chan StatusEvent {
	return c.events
}
