// Package notify fans state snapshots out to observers.
package notify

import "sync"

// Broadcaster delivers versioned values to registered observers. A value
// older than one already delivered is dropped, so observers never see state
// go backwards even when producers race to emit.
//
// Observers run synchronously inside Emit and must not call Add, Emit or a
// cancel func of the same Broadcaster.
type Broadcaster[T any] struct {
	mu   sync.Mutex
	last uint64
	next int
	fns  map[int]func(T)
	ids  []int
}

// Add registers fn and returns a func that removes it
func (b *Broadcaster[T]) Add(fn func(T)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fns == nil {
		b.fns = make(map[int]func(T))
	}
	id := b.next
	b.next++
	b.fns[id] = fn
	b.ids = append(b.ids, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.fns, id)
			for i, v := range b.ids {
				if v == id {
					b.ids = append(b.ids[:i], b.ids[i+1:]...)
					break
				}
			}
		})
	}
}

// Emit delivers v to every observer in registration order. Returns false when
// v was dropped as stale.
func (b *Broadcaster[T]) Emit(version uint64, v T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if version <= b.last {
		return false
	}
	b.last = version
	for _, id := range b.ids {
		b.fns[id](v)
	}
	return true
}
