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
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/idm"
	"github.com/spatialmodel/idm/gis"
	"github.com/spatialmodel/idm/report"
)

// Names of the output files.
const (
	PopRasterFile     = "PopRaster.nc"
	DasyRasterFile    = "DasyRaster.nc"
	DensityRasterFile = "DensityRaster.nc"
	PolygonShapefile  = "PopTable.shp"
	ExcelFile         = "IDMSummary.xlsx"
	SQLiteFile        = "IDMTables.sqlite"
	HistogramFile     = "DensityHistogram.png"
)

// newLogger returns a logger writing to w at the given level.
func newLogger(w io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.Out = w
	l.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableColors:   true,
	}
	l.Level = level
	return l
}

// Run carries out a dasymetric mapping run as specified by c. Log messages
// are written to stdout and to c.LogFile.
func Run(ctx context.Context, c *RunConfig, stdout io.Writer) error {
	startTime := time.Now()

	var upload uploader

	logfile, err := os.Create(upload.maybeUpload(c.LogFile))
	if err != nil {
		return fmt.Errorf("idm: problem creating log file: %v", err)
	}
	log := newLogger(io.MultiWriter(stdout, logfile), c.LogLevel)
	c.IDM.Log = log

	err = run(ctx, c, log, &upload)
	if err != nil {
		log.WithError(err).Error("run failed")
	} else {
		log.WithField("duration", time.Since(startTime).String()).Info("IDM completed successfully")
	}
	logfile.Close()
	if err != nil {
		return err
	}
	return upload.upload(ctx)
}

func run(ctx context.Context, c *RunConfig, log *logrus.Logger, upload *uploader) error {
	log.WithFields(logrus.Fields{
		"PopulationFile":       c.PopulationFile,
		"PopulationKeyField":   c.PopulationKeyField,
		"PopulationCountField": c.PopulationCountField,
		"AncillaryFile":        c.AncillaryFile,
		"UninhabitedFile":      c.UninhabitedFile,
		"OutputDir":            c.OutputDir,
		"PopAreaMin":           c.IDM.PopAreaMin,
		"SampleMin":            c.IDM.SampleMin,
		"Percent":              c.IDM.Percent,
		"PopNoData":            c.IDM.PopNoData,
		"AncNoData":            c.IDM.AncNoData,
		"PresetDensities":      c.IDM.Presets,
	}).Infof("IDM v%s", idm.Version)

	popFile, err := maybeDownload(ctx, c.PopulationFile, log)
	if err != nil {
		return err
	}
	ancFile, err := maybeDownload(ctx, c.AncillaryFile, log)
	if err != nil {
		return err
	}
	maskFile, err := maybeDownload(ctx, c.UninhabitedFile, log)
	if err != nil {
		return err
	}

	log.Info("Reading ancillary grid...")
	anc, err := gis.ReadGrid(ancFile)
	if err != nil {
		return err
	}
	var sr *proj.SR
	if anc.Projection != "" {
		if sr, err = proj.Parse(anc.Projection); err != nil {
			return fmt.Errorf("idm: parsing ancillary grid projection: %w", err)
		}
	}

	log.Info("Reading population polygons...")
	pops, err := gis.LoadPolygonPopulations(popFile, c.PopulationKeyField, c.PopulationCountField, sr)
	if err != nil {
		return err
	}
	features, sources, shapes, err := numberPolygons(pops, c.IDM.PopNoData)
	if err != nil {
		return err
	}

	ny, nx := anc.Shape()
	log.WithFields(logrus.Fields{"polygons": len(pops), "ny": ny, "nx": nx}).Info("Rasterizing population polygons...")
	polyGrid := gis.RasterizeByAttribute(features, ny, nx, anc.Transform, c.IDM.PopNoData)

	classGrid, err := anc.IntGrid(c.IDM.AncNoData)
	if err != nil {
		return err
	}
	if maskFile != "" {
		log.Info("Removing uninhabited areas...")
		if classGrid, err = burnUninhabited(maskFile, anc, classGrid, sr, c.IDM.AncNoData); err != nil {
			return err
		}
	}
	if err = ctx.Err(); err != nil {
		return err
	}

	r, err := idm.Run(ctx, c.IDM, classGrid, polyGrid, sources)
	if err != nil {
		return err
	}
	return writeOutput(ctx, c, log, upload, anc, polyGrid, r, shapes)
}

// burnUninhabited sets the cells of classGrid inside the uninhabited areas
// in maskFile to ancNoData. maskFile is either a NetCDF grid aligned with
// anc, where nonzero cells are uninhabited, or a polygon file.
func burnUninhabited(maskFile string, anc *gis.Raster, classGrid *idm.IntGrid, sr *proj.SR, ancNoData int64) (*idm.IntGrid, error) {
	if strings.EqualFold(filepath.Ext(maskFile), ".nc") {
		mask, err := gis.ReadGrid(maskFile)
		if err != nil {
			return nil, err
		}
		if err = gis.CheckAligned("ancillary", anc, "uninhabited", mask); err != nil {
			return nil, err
		}
		return gis.BurnGridMask(mask, classGrid, ancNoData), nil
	}
	mask, err := gis.LoadMask(maskFile, sr)
	if err != nil {
		return nil, err
	}
	return gis.BurnMask(mask, classGrid, anc.Transform, ancNoData), nil
}

// numberPolygons assigns each polygon an ID, starting at 1 and skipping
// popNoData, and returns the polygons to rasterize along with their
// population records and shapes keyed by ID. Polygon keys must be unique.
func numberPolygons(pops []*gis.PopPolygon, popNoData int64) ([]gis.Feature, []idm.SourcePolygon, map[int64]geom.Polygonal, error) {
	features := make([]gis.Feature, len(pops))
	sources := make([]idm.SourcePolygon, len(pops))
	shapes := make(map[int64]geom.Polygonal, len(pops))
	keys := make(map[string]int, len(pops))
	id := int64(0)
	for i, p := range pops {
		if prev, ok := keys[p.Key]; ok {
			return nil, nil, nil, &idm.ConfigurationError{Field: "PopulationKeyField",
				Msg: fmt.Sprintf("polygons %d and %d have the same key %q", prev, i, p.Key)}
		}
		keys[p.Key] = i
		id++
		if id == popNoData {
			id++
		}
		features[i] = gis.Feature{Polygonal: p.Polygonal, Value: id}
		sources[i] = idm.SourcePolygon{ID: id, Key: p.Key, PopCount: p.PopCount}
		shapes[id] = p.Polygonal
	}
	return features, sources, shapes, nil
}

func writeOutput(ctx context.Context, c *RunConfig, log *logrus.Logger, upload *uploader,
	anc *gis.Raster, polyGrid *idm.IntGrid, r *idm.Result, shapes map[int64]geom.Polygonal) error {

	out := func(name string) string { return upload.maybeUpload(outputPath(c.OutputDir, name)) }

	log.Info("Writing output grids...")
	grids := []struct {
		file string
		r    *gis.Raster
	}{
		{PopRasterFile, &gis.Raster{Data: polyGrid.Dense(), NoData: float64(c.IDM.PopNoData)}},
		{DasyRasterFile, &gis.Raster{Data: r.Composite.Dense(), NoData: float64(r.Composite.NoData)}},
		{DensityRasterFile, &gis.Raster{Data: r.Density, NoData: idm.OutputNoData}},
	}
	for _, g := range grids {
		g.r.Transform = anc.Transform
		g.r.Projection = anc.Projection
		g.r.Name = gis.DefaultVariable
		if err := gis.WriteGrid(out(g.file), g.r); err != nil {
			return err
		}
	}

	tables := report.Tables(r)
	for _, t := range tables {
		log.WithField("rows", len(t.Rows)).Infof("Writing %s...", t.Name)
		if err := report.WriteCSVFile(out(report.CSVName(t)), t); err != nil {
			return err
		}
	}

	s := report.Summarize(r.Density, idm.OutputNoData)
	log.WithFields(logrus.Fields{
		"cells":   s.Cells,
		"total":   s.Total,
		"min":     s.Min,
		"max":     s.Max,
		"mean":    s.Mean,
		"std_dev": s.StdDev,
	}).Info("Population density summary")
	var input float64
	for _, p := range r.Polygons {
		input += p.PopCount
	}
	if input > 0 && math.Abs(s.Total-input) > 1.e-6*input {
		log.WithFields(logrus.Fields{"input": input, "output": s.Total}).
			Warn("Output population differs from the population of the polygons that cover the grid")
	}
	tables = append(tables, s.Table())

	if c.WriteExcel {
		log.Infof("Writing %s...", ExcelFile)
		if err := report.WriteXLSX(out(ExcelFile), tables...); err != nil {
			return err
		}
	}
	if c.WriteSQLite {
		log.Infof("Writing %s...", SQLiteFile)
		if err := report.WriteSQLite(ctx, out(SQLiteFile), tables...); err != nil {
			return err
		}
	}
	if c.WritePlot {
		log.Infof("Writing %s...", HistogramFile)
		path := out(HistogramFile)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("idm: creating %s: %w", path, err)
		}
		if err = report.PlotDensity(f, r.Density, idm.OutputNoData); err != nil {
			f.Close()
			return err
		}
		if err = f.Close(); err != nil {
			return err
		}
	}
	if c.WriteShapefile {
		log.Infof("Writing %s...", PolygonShapefile)
		if err := report.WritePolygons(out(PolygonShapefile), r.Polygons, shapes, anc.Projection); err != nil {
			return err
		}
	}
	return upload.err
}
