package events

// CallbackEvent calls listeners synchronously on the notifying goroutine.
type CallbackEvent[T any] struct {
	hub hub[func(T), T]
}

// NewCallbackEvent creates an event. With replayLast, a new listener is called at once
// with the most recent value, if there is one.
func NewCallbackEvent[T any](replayLast bool) *CallbackEvent[T] {
	e := &CallbackEvent[T]{}
	e.hub.init(replayLast)
	return e
}

// Listen registers callback and returns a func that removes it.
func (e *CallbackEvent[T]) Listen(callback func(T)) func() {
	if callback == nil {
		panic("CallbackEvent: callback cannot be nil")
	}
	remove, last, replay := e.hub.add(callback)
	if replay {
		callback(last)
	}
	return remove
}

func (e *CallbackEvent[T]) Notify(value T) {
	for _, callback := range e.hub.publish(value) {
		callback(value)
	}
}

// Last returns the most recent value when replay is enabled.
func (e *CallbackEvent[T]) Last() (T, bool) {
	return e.hub.lastValue()
}

func (e *CallbackEvent[T]) ListenerCount() int {
	return e.hub.count()
}
