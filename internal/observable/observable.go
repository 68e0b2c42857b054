package observable

import "sync"

// Unsubscriber removes a subscription. Calling it more than once is a no-op.
type Unsubscriber func()

// StartFunc is invoked when the subscriber count goes from zero to one. The
// returned stop function is invoked when the count drops back to zero.
//
// set may be called from any goroutine, but not synchronously from within
// start itself.
type StartFunc[T any] func(set func(T)) (stop func())

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Observable holds a single value and notifies subscribers when it changes.
//
// Callbacks run synchronously on the goroutine calling Set. A callback may
// unsubscribe, but must not call Subscribe or Set on the same Observable.
type Observable[T any] struct {
	start StartFunc[T]

	// notifyMu serializes deliveries so subscribers never see two values
	// interleaved.
	notifyMu sync.Mutex

	// mu guards value and subs.
	mu     sync.Mutex
	value  T
	subs   []subscriber[T]
	nextID uint64

	// lifeMu guards the start/stop session.
	lifeMu  sync.Mutex
	running bool
	stop    func()
}

// New creates an Observable holding initial. start may be nil.
func New[T any](initial T, start StartFunc[T]) *Observable[T] {
	return &Observable[T]{
		start: start,
		value: initial,
	}
}

// Subscribe registers fn, invokes it with the current value and returns a
// function that removes it.
func (o *Observable[T]) Subscribe(fn func(T)) Unsubscriber {
	o.notifyMu.Lock()
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.subs = append(o.subs, subscriber[T]{id: id, fn: fn})
	v := o.value
	o.mu.Unlock()

	fn(v)
	o.notifyMu.Unlock()

	o.reconcile()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.remove(id)
			o.reconcile()
		})
	}
}

// Set replaces the value and notifies every subscriber.
func (o *Observable[T]) Set(v T) {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	o.value = v
	subs := make([]subscriber[T], len(o.subs))
	copy(subs, o.subs)
	o.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Update replaces the value with fn(current) and notifies every subscriber.
func (o *Observable[T]) Update(fn func(T) T) {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	v := fn(o.value)
	o.value = v
	subs := make([]subscriber[T], len(o.subs))
	copy(subs, o.subs)
	o.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Get returns the current value without subscribing.
func (o *Observable[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

// Subscribers returns the number of active subscriptions.
func (o *Observable[T]) Subscribers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}

func (o *Observable[T]) remove(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, s := range o.subs {
		if s.id == id {
			o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
			return
		}
	}
}

// reconcile starts or stops the session so that it is running exactly when
// there is at least one subscriber.
func (o *Observable[T]) reconcile() {
	o.lifeMu.Lock()
	defer o.lifeMu.Unlock()

	active := o.Subscribers() > 0

	switch {
	case active && !o.running:
		o.running = true
		if o.start != nil {
			o.stop = o.start(o.Set)
		}
	case !active && o.running:
		o.running = false
		if o.stop != nil {
			o.stop()
			o.stop = nil
		}
	}
}
