package domain

import "encoding/json"

// Optional holds a value that may be missing. The zero value is missing.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some wraps a present value
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// None returns a missing value
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// Valid reports whether the value is present
func (o Optional[T]) Valid() bool {
	return o.ok
}

// MarshalJSON encodes a missing value as null
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}
