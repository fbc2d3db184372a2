package native

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/bits-and-blooms/bitset"
)

// SelectionVector is the ascending list of row positions that satisfied a
// filter, together with the number of rows of the evaluated batch.
type SelectionVector struct {
	indices []uint32
	numRows int
}

// NewSelectionVector wraps indices, which must be ascending and below numRows.
func NewSelectionVector(indices []uint32, numRows int) *SelectionVector {
	return &SelectionVector{indices: indices, numRows: numRows}
}

// SelectionFromMask selects the positions of mask that are set.
func SelectionFromMask(mask *bitset.BitSet, numRows int) *SelectionVector {
	indices := make([]uint32, 0, mask.Count())
	for i, ok := mask.NextSet(0); ok && int(i) < numRows; i, ok = mask.NextSet(i + 1) {
		indices = append(indices, uint32(i))
	}
	return NewSelectionVector(indices, numRows)
}

// Len returns the number of selected rows.
func (s *SelectionVector) Len() int { return len(s.indices) }

// NumRows returns the row count of the evaluated batch.
func (s *SelectionVector) NumRows() int { return s.numRows }

// Index returns the i-th selected row position.
func (s *SelectionVector) Index(i int) uint32 { return s.indices[i] }

// Indices returns the selected positions. The slice must not be modified.
func (s *SelectionVector) Indices() []uint32 { return s.indices }

// Mask returns the selection as a bitset of NumRows bits.
func (s *SelectionVector) Mask() *bitset.BitSet {
	mask := bitset.New(uint(s.numRows))
	for _, i := range s.indices {
		mask.Set(uint(i))
	}
	return mask
}

// Filter returns a new record holding the selected rows of rec.
// The caller must release the returned record.
func (s *SelectionVector) Filter(mem memory.Allocator, rec arrow.Record) (arrow.Record, error) {
	if int(rec.NumRows()) != s.numRows {
		return nil, fmt.Errorf("selection over %d rows applied to a batch of %d rows", s.numRows, rec.NumRows())
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	runs := s.runs()
	cols := make([]arrow.Array, 0, rec.NumCols())
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	for i := 0; i < int(rec.NumCols()); i++ {
		col, err := takeRuns(mem, rec.Column(i), runs)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", rec.ColumnName(i), err)
		}
		cols = append(cols, col)
	}
	return array.NewRecord(rec.Schema(), cols, int64(len(s.indices))), nil
}

type run struct{ start, end int64 }

// runs groups consecutive positions so contiguous rows are copied at once.
func (s *SelectionVector) runs() []run {
	var out []run
	for _, idx := range s.indices {
		i := int64(idx)
		if n := len(out); n > 0 && out[n-1].end == i {
			out[n-1].end++
			continue
		}
		out = append(out, run{start: i, end: i + 1})
	}
	return out
}

func takeRuns(mem memory.Allocator, col arrow.Array, runs []run) (arrow.Array, error) {
	if len(runs) == 0 {
		return array.NewSlice(col, 0, 0), nil
	}
	if len(runs) == 1 && runs[0].start == 0 && runs[0].end == int64(col.Len()) {
		col.Retain()
		return col, nil
	}
	slices := make([]arrow.Array, len(runs))
	for i, r := range runs {
		slices[i] = array.NewSlice(col, r.start, r.end)
	}
	defer func() {
		for _, s := range slices {
			s.Release()
		}
	}()
	return array.Concatenate(slices, mem)
}
