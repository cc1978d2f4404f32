package vm

// Signal is a list of listeners notified synchronously in registration
// order. It is not safe for concurrent use.
type Signal[T any] struct {
	nextID    int
	listeners []listener[T]
}

type listener[T any] struct {
	id int
	fn func(T)
}

// Add registers fn and returns a function that removes it again.
func (s *Signal[T]) Add(fn func(T)) (remove func()) {
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener[T]{id: id, fn: fn})
	return func() {
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Raise calls every listener with v. Listeners added or removed during
// Raise take effect on the next call.
func (s *Signal[T]) Raise(v T) {
	ls := s.listeners
	for _, l := range ls {
		l.fn(v)
	}
}

// Len returns the number of registered listeners.
func (s *Signal[T]) Len() int { return len(s.listeners) }
