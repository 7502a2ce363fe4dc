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

package report

import (
	"github.com/GaryBoone/GoStats/stats"
	"github.com/ctessum/sparse"
)

// SummaryTableName is the name of the summary statistics table.
const SummaryTableName = "Summary"

// Summary holds statistics of an output density grid.
type Summary struct {
	// Cells is the number of cells with data.
	Cells int

	// Total is the sum of the cell densities, which is the total
	// population when densities are per cell.
	Total float64

	Min, Max, Mean, StdDev float64
}

// Summarize computes statistics of the cells of density that are not
// equal to noData.
func Summarize(density *sparse.DenseArray, noData float64) Summary {
	var s stats.Stats
	for _, v := range density.Elements {
		if v == noData {
			continue
		}
		s.Update(v)
	}
	if s.Count() == 0 {
		return Summary{}
	}
	return Summary{
		Cells:  s.Count(),
		Total:  s.Sum(),
		Min:    s.Min(),
		Max:    s.Max(),
		Mean:   s.Mean(),
		StdDev: s.PopulationStandardDeviation(),
	}
}

// Table returns s as a two-column table.
func (s Summary) Table() *Table {
	return &Table{
		Name:    SummaryTableName,
		Columns: []Column{{"Statistic", String}, {"Value", Float}},
		Rows: [][]interface{}{
			{"Cells", float64(s.Cells)},
			{"Total", s.Total},
			{"Min", s.Min},
			{"Max", s.Max},
			{"Mean", s.Mean},
			{"StdDev", s.StdDev},
		},
	}
}
