package eliasfano

import (
	"fmt"
	"math/bits"
)

// BitVector is a fixed-length array of bits packed into 64-bit words.
type BitVector struct {
	words  []uint64
	length uint64
}

// NewBitVector allocates a zero-filled vector holding length bits.
func NewBitVector(length uint64) *BitVector {
	return &BitVector{
		words:  make([]uint64, (length+63)/64),
		length: length,
	}
}

// Len returns the number of addressable bits.
func (bv *BitVector) Len() uint64 {
	return bv.length
}

// Get reports whether bit i is set. Bits past the end read as unset.
func (bv *BitVector) Get(i uint64) bool {
	if i >= bv.length {
		return false
	}
	return bv.words[i/64]&(1<<(i%64)) != 0
}

// Set writes bit i. Writing past the end is a geometry bug and panics.
func (bv *BitVector) Set(i uint64, value bool) {
	if i >= bv.length {
		panic(fmt.Sprintf("eliasfano: bit %d out of range (length %d)", i, bv.length))
	}
	if value {
		bv.words[i/64] |= 1 << (i % 64)
	} else {
		bv.words[i/64] &^= 1 << (i % 64)
	}
}

// NextSet returns the index of the first set bit at or after from.
func (bv *BitVector) NextSet(from uint64) (uint64, bool) {
	if from >= bv.length {
		return 0, false
	}
	idx := from / 64
	word := bv.words[idx] & (^uint64(0) << (from % 64))
	for {
		if word != 0 {
			pos := idx*64 + uint64(bits.TrailingZeros64(word))
			if pos >= bv.length {
				return 0, false
			}
			return pos, true
		}
		idx++
		if idx >= uint64(len(bv.words)) {
			return 0, false
		}
		word = bv.words[idx]
	}
}

// Count returns the number of set bits.
func (bv *BitVector) Count() uint64 {
	var n int
	for _, w := range bv.words {
		n += bits.OnesCount64(w)
	}
	return uint64(n)
}

// CountRange returns the number of set bits in [from, to).
func (bv *BitVector) CountRange(from, to uint64) uint64 {
	if to >= bv.length {
		if from == 0 {
			return bv.Count()
		}
		to = bv.length
	}
	var n uint64
	for i := from; i < to; {
		if i%64 == 0 && i+64 <= to {
			n += uint64(bits.OnesCount64(bv.words[i/64]))
			i += 64
			continue
		}
		if bv.Get(i) {
			n++
		}
		i++
	}
	return n
}
