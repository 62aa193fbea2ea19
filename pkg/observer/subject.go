// Package observer provides a small typed fan-out for in-process events.
package observer

import (
	"context"
	"errors"
	"sync"
)

// Observer receives published events of type T.
type Observer[T any] interface {
	Notify(context.Context, T) error
}

// Func adapts a plain function to Observer.
type Func[T any] func(context.Context, T) error

// Notify calls f. A nil Func is a no-op.
func (f Func[T]) Notify(ctx context.Context, evt T) error {
	if f == nil {
		return nil
	}
	return f(ctx, evt)
}

// Subject delivers each event to every attached observer in attach order.
// The zero value is ready to use.
type Subject[T any] struct {
	mu        sync.RWMutex
	observers []Observer[T]
}

// NewSubject returns a Subject with the given observers attached.
func NewSubject[T any](observers ...Observer[T]) *Subject[T] {
	s := &Subject[T]{}
	s.Attach(observers...)
	return s
}

// Attach adds observers; nil entries are skipped.
func (s *Subject[T]) Attach(observers ...Observer[T]) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range observers {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// Len reports the number of attached observers.
func (s *Subject[T]) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}

// Publish notifies every observer, even after one fails, and returns the
// joined observer errors.
func (s *Subject[T]) Publish(ctx context.Context, evt T) error {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	observers := append([]Observer[T](nil), s.observers...)
	s.mu.RUnlock()

	var errs []error
	for _, o := range observers {
		if err := o.Notify(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
