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

// Package gis reads and writes the grids and polygons used for
// dasymetric mapping.
package gis

import (
	"fmt"
	"math"
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/idm"
)

// DefaultVariable is the name of the grid variable that is read when a
// file holds more than one.
const DefaultVariable = "Band1"

// Transform locates a regular grid in space. (X0, Y0) is the lower-left
// corner of the grid; row j increases northward.
type Transform struct {
	X0, Y0 float64
	Dx, Dy float64
}

// CellCenter returns the center of the cell at row j, column i.
func (t Transform) CellCenter(j, i int) geom.Point {
	return geom.Point{
		X: t.X0 + (float64(i)+0.5)*t.Dx,
		Y: t.Y0 + (float64(j)+0.5)*t.Dy,
	}
}

// CellBounds returns the bounding box of the cell at row j, column i.
func (t Transform) CellBounds(j, i int) *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: t.X0 + float64(i)*t.Dx, Y: t.Y0 + float64(j)*t.Dy},
		Max: geom.Point{X: t.X0 + float64(i+1)*t.Dx, Y: t.Y0 + float64(j+1)*t.Dy},
	}
}

// Equal reports whether t and o describe the same grid, allowing for
// rounding in the stored attributes.
func (t Transform) Equal(o Transform) bool {
	const tol = 1.e-9
	near := func(a, b, scale float64) bool {
		return math.Abs(a-b) <= tol*math.Max(math.Abs(scale), 1)
	}
	return near(t.Dx, o.Dx, t.Dx) && near(t.Dy, o.Dy, t.Dy) &&
		near(t.X0, o.X0, t.Dx) && near(t.Y0, o.Y0, t.Dy)
}

// Raster is a single-band grid.
type Raster struct {
	// Data has shape [ny, nx].
	Data      *sparse.DenseArray
	Transform Transform

	// Projection is the spatial reference of the grid, as a proj4
	// string or WKT. It may be empty.
	Projection string

	// NoData is the value of cells without data. It is NaN if the file
	// does not specify one.
	NoData float64

	// Name is the name of the variable the data were read from or will
	// be written to.
	Name string
}

// Shape returns the number of rows and columns in r.
func (r *Raster) Shape() (ny, nx int) { return r.Data.Shape[0], r.Data.Shape[1] }

// IntGrid converts r to an integer grid, replacing no-data and NaN cells
// with noData.
func (r *Raster) IntGrid(noData int64) (*idm.IntGrid, error) {
	g, err := idm.IntGridFromDense(r.Data, noData)
	if err != nil {
		return nil, err
	}
	if !math.IsNaN(r.NoData) {
		for n, v := range r.Data.Elements {
			if v == r.NoData {
				g.Cells[n] = noData
			}
		}
	}
	return g, nil
}

// CheckAligned returns an *idm.DataAlignmentError if a and b do not have
// the same shape and transform.
func CheckAligned(aName string, a *Raster, bName string, b *Raster) error {
	aNy, aNx := a.Shape()
	bny, bnx := b.Shape()
	if aNy != bny || aNx != bnx {
		return &idm.DataAlignmentError{A: aName, B: bName,
			Msg: fmt.Sprintf("shape %dx%d != %dx%d", aNy, aNx, bny, bnx)}
	}
	if !a.Transform.Equal(b.Transform) {
		return &idm.DataAlignmentError{A: aName, B: bName,
			Msg: fmt.Sprintf("geotransform %+v != %+v", a.Transform, b.Transform)}
	}
	return nil
}

// ReadGrid reads a grid from the NetCDF file at path.
func ReadGrid(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gis: opening grid: %w", err)
	}
	defer f.Close()
	r, err := DecodeGrid(f)
	if err != nil {
		return nil, fmt.Errorf("gis: reading %s: %w", path, err)
	}
	return r, nil
}

// DecodeGrid reads a grid from a NetCDF file. The grid is read from the
// variable named DefaultVariable if there is one, and otherwise from the
// first two-dimensional variable. The file must have the global
// attributes x0, y0, dx, and dy.
func DecodeGrid(rw cdf.ReaderWriterAt) (*Raster, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, err
	}
	o := &Raster{NoData: math.NaN()}
	for _, v := range f.Header.Variables() {
		if v == DefaultVariable {
			o.Name = v
			break
		}
		if o.Name == "" && len(f.Header.Lengths(v)) == 2 {
			o.Name = v
		}
	}
	if o.Name == "" {
		return nil, fmt.Errorf("no two-dimensional variable")
	}
	dims := f.Header.Lengths(o.Name)
	if len(dims) != 2 {
		return nil, fmt.Errorf("variable %s has %d dimensions; it should have 2", o.Name, len(dims))
	}

	for _, a := range []struct {
		name string
		v    *float64
	}{
		{"x0", &o.Transform.X0}, {"y0", &o.Transform.Y0},
		{"dx", &o.Transform.Dx}, {"dy", &o.Transform.Dy},
	} {
		val, ok := attrFloat(f.Header.GetAttribute("", a.name))
		if !ok {
			return nil, fmt.Errorf("missing or invalid attribute %s", a.name)
		}
		*a.v = val
	}
	if o.Transform.Dx <= 0 || o.Transform.Dy <= 0 {
		return nil, fmt.Errorf("cell size (%g, %g) must be positive", o.Transform.Dx, o.Transform.Dy)
	}
	if p, ok := f.Header.GetAttribute("", "projection").(string); ok {
		o.Projection = p
	}
	if nd, ok := attrFloat(f.Header.GetAttribute(o.Name, "_FillValue")); ok {
		o.NoData = nd
	}

	o.Data = sparse.ZerosDense(dims...)
	n := len(o.Data.Elements)
	buf := f.Header.ZeroValue(o.Name, n)
	if _, err = f.Reader(o.Name, nil, nil).Read(buf); err != nil {
		return nil, err
	}
	switch d := buf.(type) {
	case []float64:
		copy(o.Data.Elements, d)
	case []float32:
		for i, v := range d {
			o.Data.Elements[i] = float64(v)
		}
	case []int32:
		for i, v := range d {
			o.Data.Elements[i] = float64(v)
		}
	case []int16:
		for i, v := range d {
			o.Data.Elements[i] = float64(v)
		}
	case []uint8:
		for i, v := range d {
			o.Data.Elements[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("unsupported data type %T for variable %s", buf, o.Name)
	}
	return o, nil
}

func attrFloat(a interface{}) (float64, bool) {
	switch v := a.(type) {
	case []float64:
		if len(v) > 0 {
			return v[0], true
		}
	case []float32:
		if len(v) > 0 {
			return float64(v[0]), true
		}
	case []int32:
		if len(v) > 0 {
			return float64(v[0]), true
		}
	case []int16:
		if len(v) > 0 {
			return float64(v[0]), true
		}
	}
	return 0, false
}

// WriteGrid writes r to a new NetCDF file at path.
func WriteGrid(path string, r *Raster) error {
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("gis: creating grid file: %w", err)
	}
	if err = EncodeGrid(w, r); err != nil {
		w.Close()
		return fmt.Errorf("gis: writing %s: %w", path, err)
	}
	return w.Close()
}

// EncodeGrid writes r to w in NetCDF format.
func EncodeGrid(w *os.File, r *Raster) error {
	if len(r.Data.Shape) != 2 {
		return fmt.Errorf("grid must have 2 dimensions but has %d", len(r.Data.Shape))
	}
	ny, nx := r.Shape()
	name := r.Name
	if name == "" {
		name = DefaultVariable
	}
	h := cdf.NewHeader([]string{"y", "x"}, []int{ny, nx})
	h.AddAttribute("", "comment", "IDM dasymetric mapping grid")
	h.AddAttribute("", "x0", []float64{r.Transform.X0})
	h.AddAttribute("", "y0", []float64{r.Transform.Y0})
	h.AddAttribute("", "dx", []float64{r.Transform.Dx})
	h.AddAttribute("", "dy", []float64{r.Transform.Dy})
	h.AddAttribute("", "nx", []int32{int32(nx)})
	h.AddAttribute("", "ny", []int32{int32(ny)})
	if r.Projection != "" {
		h.AddAttribute("", "projection", r.Projection)
	}
	h.AddVariable(name, []string{"y", "x"}, []float64{0})
	if !math.IsNaN(r.NoData) {
		h.AddAttribute(name, "_FillValue", []float64{r.NoData})
	}
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return err
	}
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	if _, err = f.Writer(name, start, end).Write(r.Data.Elements); err != nil {
		return fmt.Errorf("writing variable %s: %w", name, err)
	}
	return cdf.UpdateNumRecs(w)
}
