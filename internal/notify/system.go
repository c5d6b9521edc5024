package notify

import "github.com/meridian-automation/engine/internal/schedule"

// SystemNotification listens for a named system event on the process event
// bus and dispatches its formatted message whenever that event fires.
type SystemNotification struct {
	*Base

	event string
	bus   *schedule.EventBus
}

// NewSystemNotification subscribes to event on bus immediately; the
// subscription lives for the notification's lifetime (the engine does not
// support unsubscribing individual notifications at runtime).
func NewSystemNotification(base *Base, bus *schedule.EventBus, event string) *SystemNotification {
	s := &SystemNotification{Base: base, event: event, bus: bus}
	s.SetOuter(s)
	bus.Subscribe(event, s.fire)
	return s
}

func (s *SystemNotification) fire() {
	s.dispatch(map[string]string{"event": s.event})
}
