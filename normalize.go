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
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// OutputNoData is the density written to cells that are not part of any
// dasymetric unit.
const OutputNoData = -999.

// Normalize scales the population estimates of the units in each polygon
// so that they add up to the polygon's population count. Polygons with a
// population but no estimated population in any unit are spread evenly
// over their inhabited area (or their whole area if they have none), and
// their IDs are returned in a *DegenerateNormalizationError.
func Normalize(t *Tables, cfg *Config) error {
	uninhabited := make(map[int64]bool, len(t.Uninhabited))
	for _, k := range t.Uninhabited {
		uninhabited[k] = true
	}

	var degenerate []int64
	for _, p := range t.Polygons {
		units := t.unitsByPolygon[p.ID]
		est := make([]float64, len(units))
		for i, u := range units {
			est[i] = u.PopEst
		}
		sum := floats.Sum(est)
		if sum == 0 && p.PopCount > 0 {
			degenerate = append(degenerate, p.ID)
			n := 0
			for _, u := range units {
				if !uninhabited[u.ClassID] {
					u.PopEst = 1
					n++
				}
			}
			if n == 0 {
				for _, u := range units {
					u.PopEst = 1
				}
				n = len(units)
			}
			sum = float64(n)
		}
		p.PopEstSum = sum
		for _, u := range units {
			u.TotalFract = ratio(u.PopEst, sum)
			u.NewPop = u.TotalFract * p.PopCount
			u.NewDensity = ratio(u.NewPop, float64(u.Area))
		}
	}
	if len(degenerate) > 0 {
		cfg.logger().WithField("polygons", degenerate).
			Warn("Population estimate was zero for populated polygons; using area weighting")
		return &DegenerateNormalizationError{Polygons: degenerate}
	}
	return nil
}

// DensityGrid maps every cell of the composite grid to the NewDensity of
// its unit. Cells with the no-data composite value, or any value not in
// units, are set to OutputNoData.
func DensityGrid(composite *CompositeGrid, units []*Unit) *sparse.DenseArray {
	lookup := make(map[uint64]float64, len(units))
	for _, u := range units {
		lookup[u.Value] = u.NewDensity
	}
	o := sparse.ZerosDense(composite.Ny, composite.Nx)
	for n, v := range composite.Cells {
		d, ok := lookup[v]
		if !ok || v == composite.NoData {
			d = OutputNoData
		}
		o.Elements[n] = d
	}
	return o
}
