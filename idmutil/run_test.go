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

package idmutil

import (
	"context"
	"encoding/csv"
	"errors"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/sparse"
	goshp "github.com/jonas-p/go-shp"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/idm"
	"github.com/spatialmodel/idm/gis"
	"github.com/spatialmodel/idm/report"
	"gonum.org/v1/gonum/floats"
)

func square(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}}}
}

// writeInputs writes a 4x4 ancillary grid and four tracts covering it.
// The tracts in the lower half and upper left each have 40 people and
// only class 21. The upper right tract has 50 people, with class 21 in
// its lower row and class 41 in its upper row.
func writeInputs(t *testing.T, dir string) (popFile, ancFile string) {
	t.Helper()
	popFile = filepath.Join(dir, "tracts.shp")
	e, err := shp.NewEncoderFromFields(popFile, goshp.POLYGON,
		goshp.StringField("GEOID", 20),
		goshp.FloatField("POP", 14, 4))
	if err != nil {
		t.Fatal(err)
	}
	tracts := []struct {
		g   geom.Polygon
		id  string
		pop float64
	}{
		{g: square(0, 0, 2, 2), id: "A", pop: 40},
		{g: square(2, 0, 4, 2), id: "B", pop: 40},
		{g: square(0, 2, 2, 4), id: "C", pop: 40},
		{g: square(2, 2, 4, 4), id: "D", pop: 50},
	}
	for _, tr := range tracts {
		if err = e.EncodeFields(tr.g, tr.id, tr.pop); err != nil {
			t.Fatal(err)
		}
	}
	e.Close()

	d := sparse.ZerosDense(4, 4)
	copy(d.Elements, []float64{
		21, 21, 21, 21,
		21, 21, 21, 21,
		21, 21, 21, 21,
		21, 21, 41, 41,
	})
	ancFile = filepath.Join(dir, "landcover.nc")
	err = gis.WriteGrid(ancFile, &gis.Raster{
		Data:      d,
		Transform: gis.Transform{Dx: 1, Dy: 1},
		NoData:    math.NaN(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return popFile, ancFile
}

// testViper returns a configuration holding the default value of every
// option.
func testViper() *viper.Viper {
	v := viper.New()
	for _, o := range options {
		v.Set(o.name, o.defaultVal)
	}
	v.Set("LogLevel", "warning")
	return v
}

func testRunConfig(t *testing.T, dir string) *viper.Viper {
	t.Helper()
	popFile, ancFile := writeInputs(t, dir)
	out := filepath.Join(dir, "out")
	if err := os.Mkdir(out, os.ModePerm); err != nil {
		t.Fatal(err)
	}
	v := testViper()
	v.Set("PopulationFile", popFile)
	v.Set("PopulationKeyField", "GEOID")
	v.Set("PopulationCountField", "POP")
	v.Set("AncillaryFile", ancFile)
	v.Set("OutputDir", out)
	return v
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return recs
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	v := testRunConfig(t, dir)
	v.Set("WriteExcel", true)
	v.Set("WriteSQLite", true)
	v.Set("WritePlot", true)
	c, err := LoadConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	if err = Run(context.Background(), c, ioutil.Discard); err != nil {
		t.Fatal(err)
	}
	out := c.OutputDir

	g, err := gis.ReadGrid(filepath.Join(out, DensityRasterFile))
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{
		10, 10, 10, 10,
		10, 10, 10, 10,
		10, 10, 10, 10,
		10, 10, 15, 15,
	}
	if !floats.EqualApprox(g.Data.Elements, want, 1.e-9) {
		t.Errorf("density: %v; want %v", g.Data.Elements, want)
	}
	if total := floats.Sum(g.Data.Elements); !floats.EqualWithinRel(total, 170, 1.e-6) {
		t.Errorf("total population %g; want 170", total)
	}

	p, err := gis.ReadGrid(filepath.Join(out, PopRasterFile))
	if err != nil {
		t.Fatal(err)
	}
	wantIDs := []float64{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}
	if !floats.Equal(p.Data.Elements, wantIDs) {
		t.Errorf("polygon grid: %v; want %v", p.Data.Elements, wantIDs)
	}

	dasy, err := gis.ReadGrid(filepath.Join(out, DasyRasterFile))
	if err != nil {
		t.Fatal(err)
	}
	if class, poly := idm.Decode(uint64(dasy.Data.Get(3, 3))); class != 41 || poly != 4 {
		t.Errorf("composite cell decodes to (%d, %d); want (41, 4)", class, poly)
	}

	classes := readCSV(t, filepath.Join(out, report.ClassTableName+".csv"))
	wantClasses := [][]string{
		{"ancID", "SAMPLES", "SUM_POP_COUNT", "SUM_POP_AREA", "SAMPLEDENS", "CLASSDENS", "METHOD"},
		{"21", "3", "120", "12", "10", "10", "Sampled"},
		{"41", "0", "0", "0", "0", "15", "IAW"},
	}
	if len(classes) != len(wantClasses) {
		t.Fatalf("class table: %v", classes)
	}
	for i, row := range wantClasses {
		for j, v := range row {
			if classes[i][j] != v {
				t.Errorf("class table row %d column %d: %q; want %q", i, j, classes[i][j], v)
			}
		}
	}

	polys := readCSV(t, filepath.Join(out, report.PolygonTableName+".csv"))
	if len(polys) != 5 {
		t.Errorf("polygon table has %d rows; want 5", len(polys))
	}
	units := readCSV(t, filepath.Join(out, report.UnitTableName+".csv"))
	if len(units) != 6 {
		t.Errorf("unit table has %d rows; want 6", len(units))
	}

	for _, f := range []string{ExcelFile, SQLiteFile, HistogramFile, PolygonShapefile, "PopTable.dbf", "idm.log"} {
		if _, err := os.Stat(filepath.Join(out, f)); err != nil {
			t.Errorf("missing output: %v", err)
		}
	}
}

// writeGridMask writes a NetCDF uninhabited mask covering cell (0, 0) of
// the grid written by writeInputs, shifted by dx.
func writeGridMask(t *testing.T, dir string, dx float64) string {
	t.Helper()
	d := sparse.ZerosDense(4, 4)
	d.Set(1, 0, 0)
	path := filepath.Join(dir, "water.nc")
	err := gis.WriteGrid(path, &gis.Raster{
		Data:      d,
		Transform: gis.Transform{X0: dx, Dx: 1, Dy: 1},
		NoData:    math.NaN(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunUninhabited(t *testing.T) {
	masks := []struct {
		name  string
		write func(t *testing.T, dir string) string
	}{
		{
			name: "geojson",
			write: func(t *testing.T, dir string) string {
				mask := filepath.Join(dir, "water.geojson")
				err := ioutil.WriteFile(mask, []byte(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`), 0644)
				if err != nil {
					t.Fatal(err)
				}
				return mask
			},
		},
		{
			name:  "grid",
			write: func(t *testing.T, dir string) string { return writeGridMask(t, dir, 0) },
		},
	}
	for _, m := range masks {
		t.Run(m.name, func(t *testing.T) {
			dir := t.TempDir()
			v := testRunConfig(t, dir)
			v.Set("UninhabitedFile", m.write(t, dir))
			v.Set("WriteShapefile", false)
			c, err := LoadConfig(v)
			if err != nil {
				t.Fatal(err)
			}
			if err = Run(context.Background(), c, ioutil.Discard); err != nil {
				t.Fatal(err)
			}
			g, err := gis.ReadGrid(filepath.Join(c.OutputDir, DensityRasterFile))
			if err != nil {
				t.Fatal(err)
			}
			if d := g.Data.Get(0, 0); d != 0 {
				t.Errorf("masked cell density %g; want 0", d)
			}
			if d := g.Data.Get(0, 1); !floats.EqualWithinRel(d, 40./3, 1.e-9) {
				t.Errorf("density next to the mask %g; want %g", d, 40./3)
			}
			if total := floats.Sum(g.Data.Elements); !floats.EqualWithinRel(total, 170, 1.e-6) {
				t.Errorf("total population %g; want 170", total)
			}
			if _, err := os.Stat(filepath.Join(c.OutputDir, PolygonShapefile)); !os.IsNotExist(err) {
				t.Errorf("shapefile should not be written: %v", err)
			}
		})
	}
}

func TestRunMisalignedMask(t *testing.T) {
	dir := t.TempDir()
	v := testRunConfig(t, dir)
	v.Set("UninhabitedFile", writeGridMask(t, dir, 0.5))
	c, err := LoadConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	err = Run(context.Background(), c, ioutil.Discard)
	var e *idm.DataAlignmentError
	if !errors.As(err, &e) {
		t.Errorf("want DataAlignmentError, got %v", err)
	}
}

func TestRunDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	v := testRunConfig(t, dir)
	v.Set("PopulationKeyField", "STATE")
	popFile := filepath.Join(dir, "dup.shp")
	e, err := shp.NewEncoderFromFields(popFile, goshp.POLYGON,
		goshp.StringField("STATE", 2),
		goshp.FloatField("POP", 14, 4))
	if err != nil {
		t.Fatal(err)
	}
	for _, g := range []geom.Polygon{square(0, 0, 2, 4), square(2, 0, 4, 4)} {
		if err = e.EncodeFields(g, "WA", 10.); err != nil {
			t.Fatal(err)
		}
	}
	e.Close()
	v.Set("PopulationFile", popFile)
	c, err := LoadConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	err = Run(context.Background(), c, ioutil.Discard)
	var ce *idm.ConfigurationError
	if !errors.As(err, &ce) || ce.Field != "PopulationKeyField" {
		t.Errorf("want ConfigurationError for PopulationKeyField, got %v", err)
	}
}

func TestRunMissingInput(t *testing.T) {
	dir := t.TempDir()
	v := testRunConfig(t, dir)
	v.Set("AncillaryFile", filepath.Join(dir, "missing.nc"))
	c, err := LoadConfig(v)
	if err != nil {
		t.Fatal(err)
	}
	if err = Run(context.Background(), c, ioutil.Discard); err == nil {
		t.Error("want an error for a missing ancillary file")
	}
}

func TestNumberPolygons(t *testing.T) {
	pops := []*gis.PopPolygon{
		{Polygonal: square(0, 0, 1, 1), Key: "a", PopCount: 1},
		{Polygonal: square(1, 0, 2, 1), Key: "b", PopCount: 2},
		{Polygonal: square(2, 0, 3, 1), Key: "c", PopCount: 3},
	}
	features, sources, shapes, err := numberPolygons(pops, 2)
	if err != nil {
		t.Fatal(err)
	}
	wantIDs := []int64{1, 3, 4}
	for i, id := range wantIDs {
		if features[i].Value != id || sources[i].ID != id {
			t.Errorf("polygon %d: IDs (%d, %d); want %d", i, features[i].Value, sources[i].ID, id)
		}
		if sources[i].Key != pops[i].Key || sources[i].PopCount != pops[i].PopCount {
			t.Errorf("polygon %d: %+v", i, sources[i])
		}
		if _, ok := shapes[id]; !ok {
			t.Errorf("missing shape for %d", id)
		}
	}

	pops[2].Key = "a"
	_, _, _, err = numberPolygons(pops, 2)
	var ce *idm.ConfigurationError
	if !errors.As(err, &ce) || ce.Field != "PopulationKeyField" {
		t.Errorf("want ConfigurationError for duplicate keys, got %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	l := newLogger(ioutil.Discard, logrus.DebugLevel)
	if l.Level != logrus.DebugLevel {
		t.Errorf("level %v", l.Level)
	}
}
