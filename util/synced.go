package util

import (
	"sync"
	"sync/atomic"
)

// SafeFlag is safe to use concurrently.
type SafeFlag struct {
	value atomic.Bool
}

// NewSafeFlag creates a new SafeFlag.
func NewSafeFlag() *SafeFlag {
	return &SafeFlag{}
}

// Set sets the value of the flag and returns the new value.
func (sf *SafeFlag) Set(newValue bool) bool {
	sf.value.Store(newValue)
	return newValue
}

// Value returns the current value of the flag.
func (sf *SafeFlag) Value() bool {
	return sf.value.Load()
}

// TryAcquire flips the flag from false to true. It returns false, leaving the flag
// untouched, when the flag is already held.
func (sf *SafeFlag) TryAcquire() bool {
	return sf.value.CompareAndSwap(false, true)
}

// Release clears the flag.
func (sf *SafeFlag) Release() {
	sf.value.Store(false)
}

// Observable holds a value that is replaced atomically as a whole. Readers never
// block and never see a partially updated value; subscribers receive the latest
// value after each Store (intermediate values may be skipped for slow readers).
type Observable[T any] struct {
	value atomic.Pointer[T]

	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
}

// NewObservable creates an Observable holding initial.
func NewObservable[T any](initial T) *Observable[T] {
	o := &Observable[T]{subs: make(map[int]chan T)}
	o.value.Store(&initial)
	return o
}

// Load returns the current value.
func (o *Observable[T]) Load() T {
	return *o.value.Load()
}

// Store replaces the value and notifies subscribers.
func (o *Observable[T]) Store(v T) {
	o.value.Store(&v)

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, ch := range o.subs {
		// Drop a stale pending value so the newest one always fits.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// Subscribe returns a channel that receives values stored after the call and a
// func that unsubscribes and closes the channel.
func (o *Observable[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)

	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.subs[id] = ch
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
			close(ch)
		})
	}
}
