package dom

import "math/bits"

// bitset is a fixed-size set of block positions.
type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (b bitset) set(i int) {
	b[i/64] |= 1 << (uint(i) % 64)
}

func (b bitset) has(i int) bool {
	return b[i/64]&(1<<(uint(i)%64)) != 0
}

func (b bitset) clear(i int) {
	b[i/64] &^= 1 << (uint(i) % 64)
}

func (b bitset) reset() {
	for i := range b {
		b[i] = 0
	}
}

func (b bitset) copyFrom(o bitset) {
	copy(b, o)
}

func (b bitset) intersect(o bitset) {
	for i := range b {
		b[i] &= o[i]
	}
}

func (b bitset) equal(o bitset) bool {
	for i := range b {
		if b[i] != o[i] {
			return false
		}
	}
	return true
}

func (b bitset) count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

// members returns the set positions in increasing order.
func (b bitset) members() []int {
	var out []int
	for wi, w := range b {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			out = append(out, wi*64+tz)
			w &^= 1 << uint(tz)
		}
	}
	return out
}
