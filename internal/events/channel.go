package events

import (
	"reflect"
	"strings"

	"github.com/kelindar/event"
	"github.com/smazurov/paws/internal/metrics"
)

// SubscribeToChannel forwards events of type T into ch for handlers that select over
// several sources, such as the SSE streams. Publishers never block on a slow reader: an
// event that finds ch full is dropped and counted in paws_events_dropped_total.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	kind := strings.TrimSuffix(reflect.TypeFor[T]().Name(), "Event")
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			metrics.RecordDroppedEvent(kind)
		}
	})
}
