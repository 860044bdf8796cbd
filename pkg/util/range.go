package util

// Range is a half-open interval [r[0], r[1]).
type Range[T ~int | ~int8 | ~int16 | ~int32 | ~int64 |
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr] [2]T

func (r Range[T]) Size() T {
	return r[1] - r[0]
}

func (r Range[T]) Within(x T) bool {
	return x >= r[0] && x < r[1]
}

// Covers reports whether [start, start+n) lies inside r.
func (r Range[T]) Covers(start, n T) bool {
	return start >= r[0] && start+n <= r[1]
}

func (r Range[T]) Valid() bool {
	return r[1] >= r[0]
}
