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

package gis

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/spatialmodel/idm"
)

// Feature is a polygon with the value it should be burned into a grid
// with.
type Feature struct {
	geom.Polygonal
	Value int64
}

// RasterizeByAttribute burns each feature's value into a grid with ny
// rows and nx columns. A cell takes the value of a feature if the cell's
// center is inside of or on the edge of the feature. Where features
// overlap, later features overwrite earlier ones. Cells not covered by any
// feature are set to fill.
func RasterizeByAttribute(features []Feature, ny, nx int, t Transform, fill int64) *idm.IntGrid {
	o := idm.NewIntGrid(ny, nx, fill)
	if ny == 0 || nx == 0 {
		return o
	}
	for _, f := range features {
		j0, j1, i0, i1 := cellRange(f.Bounds(), ny, nx, t)
		for j := j0; j <= j1; j++ {
			for i := i0; i <= i1; i++ {
				if t.CellCenter(j, i).Within(f.Polygonal) != geom.Outside {
					o.Set(f.Value, j, i)
				}
			}
		}
	}
	return o
}

// cellRange returns the inclusive range of rows and columns whose centers
// may fall within b.
func cellRange(b *geom.Bounds, ny, nx int, t Transform) (j0, j1, i0, i1 int) {
	i0 = clamp(int(math.Floor((b.Min.X-t.X0)/t.Dx-0.5)), 0, nx-1)
	i1 = clamp(int(math.Ceil((b.Max.X-t.X0)/t.Dx-0.5)), 0, nx-1)
	j0 = clamp(int(math.Floor((b.Min.Y-t.Y0)/t.Dy-0.5)), 0, ny-1)
	j1 = clamp(int(math.Ceil((b.Max.Y-t.Y0)/t.Dy-0.5)), 0, ny-1)
	return
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BurnGridMask returns a copy of base where every cell that has data in
// mask and is not zero is set to burn. mask must have the same shape as
// base; use CheckAligned first.
func BurnGridMask(mask *Raster, base *idm.IntGrid, burn int64) *idm.IntGrid {
	o := base.Copy()
	for n, v := range mask.Data.Elements {
		if v == 0 || math.IsNaN(v) || v == mask.NoData {
			continue
		}
		o.Cells[n] = burn
	}
	return o
}

// BurnMask returns a copy of base where every cell whose center is within
// any of the mask polygons is set to burn.
func BurnMask(mask []geom.Polygonal, base *idm.IntGrid, t Transform, burn int64) *idm.IntGrid {
	o := base.Copy()
	if len(mask) == 0 {
		return o
	}
	index := rtree.NewTree(25, 50)
	for _, m := range mask {
		index.Insert(m)
	}
	for j := 0; j < o.Ny; j++ {
		for i := 0; i < o.Nx; i++ {
			c := t.CellCenter(j, i)
			for _, mI := range index.SearchIntersect(t.CellBounds(j, i)) {
				if c.Within(mI.(geom.Polygonal)) != geom.Outside {
					o.Set(burn, j, i)
					break
				}
			}
		}
	}
	return o
}
