// Package registry provides a small generic concurrent registry used for
// plan caches and broker topics.
package registry

import "github.com/alphadose/haxmap"

type Registry[T any] interface {
	Get(key string) (T, bool)
	Add(key string, value T)
	// GetOrAdd returns the existing value for the key, or stores the result
	// of valueFn. The bool reports whether the value already existed.
	// valueFn may race under contention; callers needing compute-once
	// semantics should store a sync.Once wrapper.
	GetOrAdd(key string, valueFn func() T) (T, bool)
	Del(key string)
	Len() int
	// Clear removes every entry. Used by bounded caches that evict by
	// dropping wholesale.
	Clear()
	ForEach(fn func(key string, value T) bool)
}

type registry[T any] struct {
	values *haxmap.Map[string, T]
}

func New[T any]() Registry[T] {
	return &registry[T]{
		values: haxmap.New[string, T](),
	}
}

func (r *registry[T]) Get(key string) (T, bool) {
	return r.values.Get(key)
}

func (r *registry[T]) Add(key string, value T) {
	r.values.Set(key, value)
}

func (r *registry[T]) GetOrAdd(key string, valueFn func() T) (T, bool) {
	return r.values.GetOrCompute(key, valueFn)
}

func (r *registry[T]) Del(key string) {
	r.values.Del(key)
}

func (r *registry[T]) Len() int {
	return int(r.values.Len())
}

func (r *registry[T]) Clear() {
	var keys []string
	r.values.ForEach(func(k string, _ T) bool {
		keys = append(keys, k)
		return true
	})
	r.values.Del(keys...)
}

func (r *registry[T]) ForEach(fn func(key string, value T) bool) {
	r.values.ForEach(fn)
}
