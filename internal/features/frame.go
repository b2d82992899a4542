package features

import (
	"fmt"
	"math"
	"time"
)

// Frame is an aligned columnar view over one bar series: shared timestamps
// plus named float64 columns. Missing values are NaN. Column order is
// insertion order.
type Frame struct {
	Times []time.Time
	names []string
	cols  map[string][]float64
}

// NewFrame creates an empty frame over the given timestamps.
func NewFrame(times []time.Time) *Frame {
	return &Frame{
		Times: times,
		cols:  make(map[string][]float64),
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Times)
}

// AddColumn attaches a column; its length must match the frame.
func (f *Frame) AddColumn(name string, values []float64) error {
	if len(values) != f.Len() {
		return fmt.Errorf("column %s has %d rows, frame has %d", name, len(values), f.Len())
	}
	if _, exists := f.cols[name]; exists {
		return fmt.Errorf("column %s already present", name)
	}
	f.names = append(f.names, name)
	f.cols[name] = values
	return nil
}

// Column returns a column's values, or nil when absent.
func (f *Frame) Column(name string) []float64 {
	return f.cols[name]
}

// HasColumn reports whether a column exists.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Names returns column names in insertion order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// Value returns one cell, NaN when the column is absent.
func (f *Frame) Value(name string, row int) float64 {
	col := f.cols[name]
	if col == nil || row < 0 || row >= len(col) {
		return math.NaN()
	}
	return col[row]
}

// DropWarmup returns a view without the first n rows, where indicator
// warmup leaves mostly-NaN values.
func (f *Frame) DropWarmup(n int) *Frame {
	return f.Slice(n, f.Len())
}

// Slice returns a view of rows [from, to) sharing the underlying arrays.
func (f *Frame) Slice(from, to int) *Frame {
	if from < 0 {
		from = 0
	}
	if to > f.Len() {
		to = f.Len()
	}
	if from > to {
		from = to
	}

	out := NewFrame(f.Times[from:to])
	for _, name := range f.names {
		out.names = append(out.names, name)
		out.cols[name] = f.cols[name][from:to]
	}
	return out
}

// nanSlice allocates a column prefilled with NaN.
func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
