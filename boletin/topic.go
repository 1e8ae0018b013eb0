package boletin

import "sync"

// Topic is a typed publish/subscribe channel. Publish calls every current
// subscriber synchronously, in subscription order, before returning.
type Topic[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription[T]
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe registers fn and returns a handle that removes it again.
// Calling the handle more than once is harmless.
func (t *Topic[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID
	t.subs = append(t.subs, subscription[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { t.remove(id) })
	}
}

func (t *Topic[T]) remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.subs {
		if s.id == id {
			t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers v to the subscribers registered at call time. Listeners
// may subscribe or unsubscribe from inside a callback.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	subs := append([]subscription[T](nil), t.subs...)
	t.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Len returns the number of subscribers.
func (t *Topic[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Observable publishes section state changes. The AppStore implements it;
// renderers and the layout engine attach to it.
type Observable interface {
	Subscribe(fn func(SectionState)) (unsubscribe func())
}
