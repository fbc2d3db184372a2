package native

import (
	"reflect"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

func TestSelectionVectorMask(t *testing.T) {
	sel := NewSelectionVector([]uint32{0, 2, 3}, 5)

	mask := sel.Mask()
	if mask.Len() != 5 {
		t.Errorf("mask length = %d, want 5", mask.Len())
	}
	for i, want := range []bool{true, false, true, true, false} {
		if mask.Test(uint(i)) != want {
			t.Errorf("bit %d = %v, want %v", i, mask.Test(uint(i)), want)
		}
	}

	back := SelectionFromMask(mask, 5)
	if !reflect.DeepEqual(back.Indices(), sel.Indices()) {
		t.Errorf("SelectionFromMask() = %v, want %v", back.Indices(), sel.Indices())
	}
}

func TestSelectionVectorFilter(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := testRecord(t, mem)
	defer rec.Release()

	tests := []struct {
		name    string
		indices []uint32
		want    []int32
	}{
		{"scattered", []uint32{0, 3}, []int32{-2, 7}},
		{"contiguous run", []uint32{1, 2, 3}, []int32{0, 0, 7}},
		{"all", []uint32{0, 1, 2, 3}, []int32{-2, 0, 0, 7}},
		{"none", []uint32{}, []int32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := NewSelectionVector(tt.indices, 4)
			out, err := sel.Filter(mem, rec)
			if err != nil {
				t.Fatalf("Filter() failed: %v", err)
			}
			defer out.Release()

			if out.NumRows() != int64(len(tt.indices)) {
				t.Fatalf("NumRows() = %d, want %d", out.NumRows(), len(tt.indices))
			}
			if out.NumCols() != rec.NumCols() {
				t.Fatalf("NumCols() = %d, want %d", out.NumCols(), rec.NumCols())
			}
			got := out.Column(0).(*array.Int32).Int32Values()
			if len(got) != 0 || len(tt.want) != 0 {
				if !reflect.DeepEqual(got, tt.want) {
					t.Errorf("i = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestSelectionVectorFilterKeepsNulls(t *testing.T) {
	rec := testRecord(t, memory.NewGoAllocator())
	defer rec.Release()

	out, err := NewSelectionVector([]uint32{2, 3}, 4).Filter(nil, rec)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Release()

	if !out.Column(0).IsNull(0) {
		t.Error("i[2] should stay null")
	}
	if !out.Column(3).IsNull(1) {
		t.Error("b[3] should stay null")
	}
}

func TestSelectionVectorFilterRowCountMismatch(t *testing.T) {
	rec := testRecord(t, memory.NewGoAllocator())
	defer rec.Release()

	if _, err := NewSelectionVector([]uint32{0}, 10).Filter(nil, rec); err == nil {
		t.Error("Expected error for a selection over a different row count")
	}
}
