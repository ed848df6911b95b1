// Package eliasfano implements the Elias–Fano encoding of a non-decreasing
// sequence of bounded integers. The high part of every value is stored in
// unary in the first region of a bit vector and the low part is packed
// MSB-first into a second region. Values are read back through a cursor
// that scans the high region for set bits.
//
// A Sequence is built once and then read through its cursor. Cursor methods
// mutate state and must not be called concurrently on one Sequence; use
// Clone to obtain an independent cursor.
package eliasfano

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

var (
	// ErrOutOfBounds is matched by every error returned from Next and Visit
	// when the requested position is not a valid element index.
	ErrOutOfBounds = errors.New("eliasfano: index out of bounds")
	// ErrZeroCount is returned by New when the element count is zero.
	ErrZeroCount = errors.New("eliasfano: element count must be positive")
)

// OutOfBoundsError reports a cursor move outside [0, Size).
type OutOfBoundsError struct {
	Position uint64
	Size     uint64
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("eliasfano: position %d out of range [0, %d)", e.Position, e.Size)
}

func (e *OutOfBoundsError) Is(target error) bool {
	return target == ErrOutOfBounds
}

// Geometry holds the constants derived from (universe, count).
type Geometry struct {
	Universe         uint64 `json:"universe"`
	Count            uint64 `json:"count"`
	LowWidth         uint64 `json:"low_width"`
	Mask             uint64 `json:"mask"`
	HighRegionLength uint64 `json:"high_region_length"`
	LowRegionOffset  uint64 `json:"low_region_offset"`
	TotalBits        uint64 `json:"total_bits"`
}

// NewGeometry derives the bit layout for count values bounded by universe.
func NewGeometry(universe, count uint64) (Geometry, error) {
	if count == 0 {
		return Geometry{}, ErrZeroCount
	}
	var lowWidth uint64
	if universe > count {
		lowWidth = msb(universe / count)
	}
	highLen := count + (universe >> lowWidth) + 2
	return Geometry{
		Universe:         universe,
		Count:            count,
		LowWidth:         lowWidth,
		Mask:             (uint64(1) << lowWidth) - 1,
		HighRegionLength: highLen,
		LowRegionOffset:  highLen,
		TotalBits:        highLen + count*lowWidth,
	}, nil
}

// String renders the geometry for diagnostics.
func (g Geometry) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Universe: %d\n", g.Universe)
	fmt.Fprintf(&sb, "Elements: %d\n", g.Count)
	fmt.Fprintf(&sb, "Lower bits: %d\n", g.LowWidth)
	fmt.Fprintf(&sb, "Higher bits length: %d\n", g.HighRegionLength)
	fmt.Fprintf(&sb, "Mask: 0b%b\n", g.Mask)
	fmt.Fprintf(&sb, "Lower bits offset: %d\n", g.LowRegionOffset)
	fmt.Fprintf(&sb, "Bit vector length: %d\n", g.TotalBits)
	return sb.String()
}

// msb returns the index of the most significant set bit, 0 for x == 0.
func msb(x uint64) uint64 {
	if x == 0 {
		return 0
	}
	return uint64(bits.Len64(x) - 1)
}

// Sequence is an Elias–Fano encoded sequence with an embedded cursor.
type Sequence struct {
	geo   Geometry
	bits  *BitVector
	built bool

	position    uint64
	value       uint64
	highPointer uint64
}

// New allocates a Sequence for count values no larger than universe.
func New(universe, count uint64) (*Sequence, error) {
	geo, err := NewGeometry(universe, count)
	if err != nil {
		return nil, fmt.Errorf("creating sequence (universe=%d): %w", universe, err)
	}
	return &Sequence{
		geo:  geo,
		bits: NewBitVector(geo.TotalBits),
	}, nil
}

// Validate reports whether values can be passed to Build on a sequence with
// the given universe.
func Validate(universe uint64, values []uint64) error {
	for i, v := range values {
		if v > universe {
			return fmt.Errorf("element %d at index %d exceeds universe %d", v, i, universe)
		}
		if i > 0 && v < values[i-1] {
			return fmt.Errorf("sequence is not sorted at index %d (%d < %d)", i, v, values[i-1])
		}
	}
	return nil
}

// Build encodes values into the sequence. It must be called exactly once
// with exactly Size() non-decreasing values, each no larger than Universe().
// Any violation panics; bits written before the violation are kept.
func (s *Sequence) Build(values []uint64) {
	if s.built {
		panic("eliasfano: sequence already built")
	}
	if uint64(len(values)) != s.geo.Count {
		panic(fmt.Sprintf("eliasfano: got %d values, sequence holds %d", len(values), s.geo.Count))
	}
	s.built = true
	for i, v := range values {
		if i > 0 && v < values[i-1] {
			panic(fmt.Sprintf("eliasfano: sequence is not sorted at index %d", i))
		}
		if v > s.geo.Universe {
			panic(fmt.Sprintf("eliasfano: element %d is greater than universe %d", v, s.geo.Universe))
		}
		idx := uint64(i)
		high := (v >> s.geo.LowWidth) + idx + 1
		s.bits.Set(high, true)
		s.writeLow(idx, v&s.geo.Mask)
		if i == 0 {
			s.value = v
			s.highPointer = high
			s.position = 0
		}
	}
}

func (s *Sequence) writeLow(idx, low uint64) {
	width := s.geo.LowWidth
	offset := s.geo.LowRegionOffset + idx*width
	for j := uint64(0); j < width; j++ {
		s.bits.Set(offset+j, low&(1<<(width-j-1)) != 0)
	}
}

func (s *Sequence) readLow(idx uint64) uint64 {
	width := s.geo.LowWidth
	offset := s.geo.LowRegionOffset + idx*width
	var low uint64
	for j := uint64(0); j < width; j++ {
		low <<= 1
		if s.bits.Get(offset + j) {
			low |= 1
		}
	}
	return low
}

// decode locates the high bit of the element at s.position, starting right
// after the high pointer (or at bit 0 before any element was visited), and
// recomputes the current value.
func (s *Sequence) decode() {
	from := s.highPointer
	if from > 0 {
		from++
	}
	h, ok := s.bits.NextSet(from)
	if !ok {
		s.value = 0
		return
	}
	s.highPointer = h
	s.value = ((h - s.position - 1) << s.geo.LowWidth) | s.readLow(s.position)
}

// Value returns the value under the cursor.
func (s *Sequence) Value() uint64 {
	return s.value
}

// Position returns the logical index of the cursor.
func (s *Sequence) Position() uint64 {
	return s.position
}

// Size returns the number of encoded elements.
func (s *Sequence) Size() uint64 {
	return s.geo.Count
}

// BitSize returns the length of the underlying bit vector.
func (s *Sequence) BitSize() uint64 {
	return s.bits.Len()
}

// HighBitsSet counts the set bits of the high region. A built sequence
// holds exactly Size() of them.
func (s *Sequence) HighBitsSet() uint64 {
	return s.bits.CountRange(0, s.geo.HighRegionLength)
}

func (s *Sequence) Universe() uint64 {
	return s.geo.Universe
}

func (s *Sequence) LowWidth() uint64 {
	return s.geo.LowWidth
}

// Geometry returns the derived layout constants.
func (s *Sequence) Geometry() Geometry {
	return s.geo
}

func (s *Sequence) String() string {
	return s.geo.String()
}

// Reset rewinds the cursor to the first element.
func (s *Sequence) Reset() {
	s.position = 0
	s.highPointer = 0
	s.decode()
}

// Next advances the cursor by one element. At the end of the sequence it
// returns an error matching ErrOutOfBounds and leaves the cursor where it
// was.
func (s *Sequence) Next() (uint64, error) {
	if s.position+1 >= s.geo.Count {
		return 0, &OutOfBoundsError{Position: s.position + 1, Size: s.geo.Count}
	}
	s.position++
	s.decode()
	return s.value, nil
}

// Visit moves the cursor to element target. Moving backwards rewinds to the
// start and scans forward again, so the cost is proportional to the
// distance scanned.
func (s *Sequence) Visit(target uint64) (uint64, error) {
	if target >= s.geo.Count {
		return 0, &OutOfBoundsError{Position: target, Size: s.geo.Count}
	}
	if target == s.position {
		return s.value, nil
	}
	if target < s.position {
		s.Reset()
		if target == 0 {
			return s.value, nil
		}
	}
	for skip := target - s.position; skip > 0; skip-- {
		h, ok := s.bits.NextSet(s.highPointer + 1)
		if !ok {
			// Unreachable for a built sequence: the high region holds Count bits.
			return 0, &OutOfBoundsError{Position: target, Size: s.geo.Count}
		}
		s.highPointer = h
	}
	s.position = target
	s.value = ((s.highPointer - s.position - 1) << s.geo.LowWidth) | s.readLow(s.position)
	return s.value, nil
}

// Clone returns a Sequence sharing this one's bit vector with its cursor
// reset to the first element. The bit vector is never written after Build,
// so clones may be read from different goroutines.
func (s *Sequence) Clone() *Sequence {
	c := &Sequence{
		geo:   s.geo,
		bits:  s.bits,
		built: s.built,
	}
	c.Reset()
	return c
}

// Values decodes the full sequence without moving this cursor.
func (s *Sequence) Values() []uint64 {
	c := s.Clone()
	out := make([]uint64, 0, c.Size())
	out = append(out, c.Value())
	for {
		v, err := c.Next()
		if err != nil {
			return out
		}
		out = append(out, v)
	}
}
