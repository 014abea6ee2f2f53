package events

// ChannelEvent delivers values to channels. Sends never block: a listener whose
// channel is full misses that value.
type ChannelEvent[T any] struct {
	hub hub[chan<- T, T]
}

// NewChannelEvent creates an event. With replayLast, a new listener is sent the most
// recent value, if there is one.
func NewChannelEvent[T any](replayLast bool) *ChannelEvent[T] {
	e := &ChannelEvent[T]{}
	e.hub.init(replayLast)
	return e
}

// Listen registers ch and returns a func that removes it.
func (e *ChannelEvent[T]) Listen(ch chan<- T) func() {
	if ch == nil {
		panic("ChannelEvent: channel cannot be nil")
	}
	remove, last, replay := e.hub.add(ch)
	if replay {
		trySend(ch, last)
	}
	return remove
}

func (e *ChannelEvent[T]) Notify(value T) {
	for _, ch := range e.hub.publish(value) {
		trySend(ch, value)
	}
}

// Last returns the most recent value when replay is enabled.
func (e *ChannelEvent[T]) Last() (T, bool) {
	return e.hub.lastValue()
}

func (e *ChannelEvent[T]) ListenerCount() int {
	return e.hub.count()
}

func trySend[T any](ch chan<- T, value T) bool {
	select {
	case ch <- value:
		return true
	default:
		return false
	}
}
