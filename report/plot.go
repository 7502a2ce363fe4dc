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
	"fmt"
	"io"

	"github.com/ctessum/sparse"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// histogramBins is the number of bins in density histograms.
const histogramBins = 20

// PlotDensity writes a PNG histogram of the populated cells of density to w.
func PlotDensity(w io.Writer, density *sparse.DenseArray, noData float64) error {
	var vals plotter.Values
	for _, v := range density.Elements {
		if v != noData && v > 0 {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return fmt.Errorf("report: there are no populated cells to plot")
	}

	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = "Population density"
	p.X.Label.Text = "People per cell"
	p.Y.Label.Text = "Number of cells"
	h, err := plotter.NewHist(vals, histogramBins)
	if err != nil {
		return fmt.Errorf("report: creating density histogram: %v", err)
	}
	p.Add(h)

	img := vgimg.New(6*vg.Inch, 4*vg.Inch)
	p.Draw(draw.New(img))
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("report: writing density histogram: %v", err)
	}
	return nil
}
