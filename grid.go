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
	"fmt"
	"math"

	"github.com/ctessum/sparse"
)

// IntGrid is a two-dimensional grid of integer cell values stored in
// row-major order. Row 0 is the southernmost row.
type IntGrid struct {
	Ny, Nx int
	Cells  []int64
}

// NewIntGrid returns a grid with ny rows and nx columns where every cell
// is set to fill.
func NewIntGrid(ny, nx int, fill int64) *IntGrid {
	g := &IntGrid{Ny: ny, Nx: nx, Cells: make([]int64, ny*nx)}
	if fill != 0 {
		for i := range g.Cells {
			g.Cells[i] = fill
		}
	}
	return g
}

// IntGridFromDense converts a two-dimensional array to an integer grid.
// Values are truncated toward zero. NaN values are replaced by noData.
func IntGridFromDense(d *sparse.DenseArray, noData int64) (*IntGrid, error) {
	if len(d.Shape) != 2 {
		return nil, fmt.Errorf("idm: grid must have 2 dimensions but has %d", len(d.Shape))
	}
	g := &IntGrid{Ny: d.Shape[0], Nx: d.Shape[1], Cells: make([]int64, len(d.Elements))}
	for i, v := range d.Elements {
		if math.IsNaN(v) {
			g.Cells[i] = noData
			continue
		}
		g.Cells[i] = int64(v)
	}
	return g, nil
}

// Get returns the value at row j, column i.
func (g *IntGrid) Get(j, i int) int64 { return g.Cells[j*g.Nx+i] }

// Set sets the value at row j, column i.
func (g *IntGrid) Set(v int64, j, i int) { g.Cells[j*g.Nx+i] = v }

// Copy returns a deep copy of the receiver.
func (g *IntGrid) Copy() *IntGrid {
	o := &IntGrid{Ny: g.Ny, Nx: g.Nx, Cells: make([]int64, len(g.Cells))}
	copy(o.Cells, g.Cells)
	return o
}

// Dense converts the receiver to a floating point array.
func (g *IntGrid) Dense() *sparse.DenseArray {
	o := sparse.ZerosDense(g.Ny, g.Nx)
	for i, v := range g.Cells {
		o.Elements[i] = float64(v)
	}
	return o
}

// checkAlignment returns a DataAlignmentError if a and b do not have the
// same shape.
func checkAlignment(aName string, a *IntGrid, bName string, b *IntGrid) error {
	if a.Ny != b.Ny || a.Nx != b.Nx {
		return &DataAlignmentError{A: aName, B: bName,
			Msg: fmt.Sprintf("shape %dx%d != %dx%d", a.Ny, a.Nx, b.Ny, b.Nx)}
	}
	if len(a.Cells) != a.Ny*a.Nx || len(b.Cells) != b.Ny*b.Nx {
		return &DataAlignmentError{A: aName, B: bName, Msg: "cell count does not match shape"}
	}
	return nil
}
