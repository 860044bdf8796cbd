package util

import "math/bits"

const Nanosecond = 1_000_000_000

// ScaleRound returns round(v * num / den) without intermediate overflow.
// den must not be zero; results beyond 64 bits saturate.
func ScaleRound(v, num, den uint64) uint64 {
	hi, lo := bits.Mul64(v, num)
	lo, carry := bits.Add64(lo, den/2, 0)
	hi += carry
	if hi >= den {
		return ^uint64(0)
	}
	q, _ := bits.Div64(hi, lo, den)
	return q
}

// ToNanoseconds converts a signed value in units of 1/timescale seconds.
func ToNanoseconds(v int64, timescale uint32) int64 {
	if timescale == 0 {
		return 0
	}
	if v < 0 {
		return -int64(ScaleRound(uint64(-v), Nanosecond, uint64(timescale)))
	}
	return int64(ScaleRound(uint64(v), Nanosecond, uint64(timescale)))
}
