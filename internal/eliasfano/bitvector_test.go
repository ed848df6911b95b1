package eliasfano

import "testing"

func TestBitVectorGetSet(t *testing.T) {
	bv := NewBitVector(130)
	for _, i := range []uint64{0, 1, 63, 64, 127, 129} {
		bv.Set(i, true)
	}
	for i := uint64(0); i < 130; i++ {
		want := i == 0 || i == 1 || i == 63 || i == 64 || i == 127 || i == 129
		if got := bv.Get(i); got != want {
			t.Errorf("Get(%d) = %v, want %v", i, got, want)
		}
	}
	bv.Set(63, false)
	if bv.Get(63) {
		t.Error("bit 63 still set after clearing")
	}
	if bv.Get(1000) {
		t.Error("out of range Get returned true")
	}
	if bv.Count() != 5 {
		t.Errorf("Count() = %d, want 5", bv.Count())
	}
}

func TestBitVectorSetOutOfRangePanics(t *testing.T) {
	bv := NewBitVector(10)
	defer func() {
		if recover() == nil {
			t.Fatal("Set past the end did not panic")
		}
	}()
	bv.Set(10, true)
}

func TestBitVectorNextSet(t *testing.T) {
	bv := NewBitVector(300)
	for _, i := range []uint64{5, 64, 200, 299} {
		bv.Set(i, true)
	}
	tests := []struct {
		from   uint64
		want   uint64
		wantOK bool
	}{
		{0, 5, true},
		{5, 5, true},
		{6, 64, true},
		{65, 200, true},
		{201, 299, true},
		{299, 299, true},
		{300, 0, false},
		{1000, 0, false},
	}
	for _, tt := range tests {
		got, ok := bv.NextSet(tt.from)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("NextSet(%d) = %d, %v, want %d, %v", tt.from, got, ok, tt.want, tt.wantOK)
		}
	}

	empty := NewBitVector(70)
	if _, ok := empty.NextSet(0); ok {
		t.Error("NextSet on empty vector reported a set bit")
	}
}

func TestBitVectorCountRange(t *testing.T) {
	bv := NewBitVector(200)
	for i := uint64(0); i < 200; i += 3 {
		bv.Set(i, true)
	}
	var want uint64
	for i := uint64(10); i < 190; i++ {
		if i%3 == 0 {
			want++
		}
	}
	if got := bv.CountRange(10, 190); got != want {
		t.Errorf("CountRange(10, 190) = %d, want %d", got, want)
	}
	if got := bv.CountRange(0, 500); got != bv.Count() {
		t.Errorf("CountRange clamps to length: got %d, want %d", got, bv.Count())
	}
}
