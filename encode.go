/*
Copyright © 2019 the IDM authors.
This file is part of IDM.

IDM is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

IDM is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with IDM.  If not, see <http://www.gnu.org/licenses/>.
*/

package idm

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/ctessum/sparse"
)

// MaxPairSum is the largest value of x+y that Pair accepts. Every composite
// value produced from sums up to this limit fits in a uint64.
const MaxPairSum = 1<<32 - 1

// ErrPairOverflow is returned when a (class, polygon) pair is too large to
// be encoded into a single uint64 composite value.
var ErrPairOverflow = errors.New("idm: pair sum exceeds MaxPairSum")

// Pair combines x and y into a single unique value using the Cantor
// pairing function: (x+y)(x+y+1)/2 + y.
func Pair(x, y uint64) (uint64, error) {
	s := x + y
	if s < x || s > MaxPairSum {
		return 0, fmt.Errorf("%w: (%d, %d)", ErrPairOverflow, x, y)
	}
	return triangular(s) + y, nil
}

// Unpair is the inverse of Pair. The square root in the closed-form
// inverse is only used as a starting estimate; the result is then
// corrected with exact integer comparisons so that it holds for every
// value Pair can produce, including values above 2^53.
func Unpair(v uint64) (x, y uint64) {
	w := uint64((math.Sqrt(8*float64(v)+1) - 1) / 2)
	for w > 0 && !triangularAtMost(w, v) {
		w--
	}
	for triangularAtMost(w+1, v) {
		w++
	}
	t := triangular(w)
	y = v - t
	x = w - y
	return x, y
}

// triangular returns w(w+1)/2. w must be at most MaxPairSum+1.
func triangular(w uint64) uint64 {
	if w%2 == 0 {
		return (w / 2) * (w + 1)
	}
	return w * ((w + 1) / 2)
}

// triangularAtMost reports whether w(w+1)/2 <= v, computed in 128-bit
// arithmetic so it cannot overflow.
func triangularAtMost(w, v uint64) bool {
	hi, lo := bits.Mul64(w, w+1)
	lo = lo>>1 | hi<<63
	hi >>= 1
	return hi == 0 && lo <= v
}

// CompositeGrid holds one composite unit value per grid cell, in
// row-major order.
type CompositeGrid struct {
	Ny, Nx int
	Cells  []uint64

	// NoData is the composite value of a cell whose polygon and class are
	// both no-data.
	NoData uint64
}

// Get returns the composite value at row j, column i.
func (c *CompositeGrid) Get(j, i int) uint64 { return c.Cells[j*c.Nx+i] }

// Dense converts the receiver to a floating point array. Values above
// 2^53 lose precision.
func (c *CompositeGrid) Dense() *sparse.DenseArray {
	o := sparse.ZerosDense(c.Ny, c.Nx)
	for i, v := range c.Cells {
		o.Elements[i] = float64(v)
	}
	return o
}

// EncodeGrid pairs each cell of the class grid with the corresponding cell
// of the polygon grid. Cells outside every polygon (poly == popNoData) are
// first set to ancNoData in a copy of the class grid so that unpopulated
// area collapses onto the no-data composite value.
func EncodeGrid(class, poly *IntGrid, ancNoData, popNoData int64) (*CompositeGrid, error) {
	if err := checkAlignment("ancillary", class, "population", poly); err != nil {
		return nil, err
	}
	if ancNoData < 0 || popNoData < 0 {
		return nil, &ConfigurationError{Field: "NoData",
			Msg: fmt.Sprintf("no-data values must be non-negative (ancillary=%d, population=%d)", ancNoData, popNoData)}
	}
	noData, err := Pair(uint64(ancNoData), uint64(popNoData))
	if err != nil {
		return nil, err
	}
	o := &CompositeGrid{
		Ny:     class.Ny,
		Nx:     class.Nx,
		Cells:  make([]uint64, len(class.Cells)),
		NoData: noData,
	}
	for n, p := range poly.Cells {
		c := class.Cells[n]
		if p == popNoData {
			c = ancNoData
		}
		if c < 0 || p < 0 {
			j, i := n/class.Nx, n%class.Nx
			return nil, fmt.Errorf("idm: negative grid value at row %d, column %d (class=%d, polygon=%d)", j, i, c, p)
		}
		v, err := Pair(uint64(c), uint64(p))
		if err != nil {
			return nil, err
		}
		o.Cells[n] = v
	}
	return o, nil
}

// Decode returns the class and polygon IDs of composite value v.
func Decode(v uint64) (class, polygon int64) {
	x, y := Unpair(v)
	return int64(x), int64(y)
}
