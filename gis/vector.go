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
	"fmt"
	"io/ioutil"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	"github.com/spatialmodel/idm"
)

// PopPolygon is an enumeration polygon with a known population.
type PopPolygon struct {
	geom.Polygonal

	// Key is the value of the polygon's identifier field.
	Key      string
	PopCount float64
}

// LoadPolygonPopulations reads the polygons in the shapefile at path,
// along with the values of idField and countField. countField is either
// the name of a numeric field or an expression combining several of them,
// for example "POP_M + POP_F". If sr is not nil, the polygons are
// converted to that spatial reference. Empty or null values are read as
// zero.
func LoadPolygonPopulations(path, idField, countField string, sr *proj.SR) ([]*PopPolygon, error) {
	count, err := newCountExpression(countField)
	if err != nil {
		return nil, err
	}

	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("gis: opening population shapefile: %w", err)
	}
	defer d.Close()

	var trans proj.Transformer
	if sr != nil {
		if trans, err = shapefileTransform(d, sr); err != nil {
			return nil, fmt.Errorf("gis: population shapefile %s: %w", path, err)
		}
	}

	var o []*PopPolygon
	for {
		g, fields, more := d.DecodeRowFields(append([]string{idField}, count.fields...)...)
		if !more {
			break
		}
		if err = d.Error(); err != nil {
			return nil, fmt.Errorf("gis: reading population shapefile %s: %w", path, err)
		}
		p := &PopPolygon{Key: strings.Trim(fields[idField], "\x00 ")}
		p.PopCount, err = count.evaluate(fields)
		if err != nil {
			return nil, fmt.Errorf("gis: population of polygon %q: %w", p.Key, err)
		}
		if math.IsNaN(p.PopCount) || math.IsInf(p.PopCount, 0) || p.PopCount < 0 {
			return nil, &idm.ConfigurationError{Field: "PopulationCountField",
				Msg: fmt.Sprintf("invalid population %g for polygon %q in %s", p.PopCount, p.Key, path)}
		}
		if trans != nil {
			if g, err = g.Transform(trans); err != nil {
				return nil, fmt.Errorf("gis: transforming polygon %q: %w", p.Key, err)
			}
		}
		poly, ok := g.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("gis: population shapes need to be polygons but %q is %T", p.Key, g)
		}
		p.Polygonal = poly
		o = append(o, p)
	}
	if err = d.Error(); err != nil {
		return nil, fmt.Errorf("gis: reading population shapefile %s: %w", path, err)
	}
	return o, nil
}

// LoadMask reads the polygons in a shapefile or GeoJSON file. Shapefile
// polygons are converted to sr if it is not nil; GeoJSON polygons are
// assumed to already be in the grid's spatial reference.
func LoadMask(path string, sr *proj.SR) ([]geom.Polygonal, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".geojson":
		b, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("gis: reading mask file: %w", err)
		}
		g, err := geojson.Decode(b)
		if err != nil {
			return nil, fmt.Errorf("gis: decoding mask %s: %w", path, err)
		}
		switch m := g.(type) {
		case geom.Polygon:
			return []geom.Polygonal{m}, nil
		case geom.MultiPolygon:
			return []geom.Polygonal{m}, nil
		default:
			return nil, fmt.Errorf("gis: invalid mask geometry type %T", g)
		}
	case ".shp":
		d, err := shp.NewDecoder(path)
		if err != nil {
			return nil, fmt.Errorf("gis: opening mask shapefile: %w", err)
		}
		defer d.Close()
		var trans proj.Transformer
		if sr != nil {
			if trans, err = shapefileTransform(d, sr); err != nil {
				return nil, fmt.Errorf("gis: mask shapefile %s: %w", path, err)
			}
		}
		var o []geom.Polygonal
		for {
			g, _, more := d.DecodeRowFields()
			if !more {
				break
			}
			if err = d.Error(); err != nil {
				return nil, fmt.Errorf("gis: reading mask shapefile %s: %w", path, err)
			}
			if trans != nil {
				if g, err = g.Transform(trans); err != nil {
					return nil, err
				}
			}
			p, ok := g.(geom.Polygonal)
			if !ok {
				return nil, fmt.Errorf("gis: mask shapes need to be polygons but got %T", g)
			}
			o = append(o, p)
		}
		if err = d.Error(); err != nil {
			return nil, fmt.Errorf("gis: reading mask shapefile %s: %w", path, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("gis: unsupported mask file type %q", filepath.Ext(path))
	}
}

// shapefileTransform returns a transform from the shapefile's spatial
// reference to sr, or nil if the two are the same.
func shapefileTransform(d *shp.Decoder, sr *proj.SR) (proj.Transformer, error) {
	src, err := d.SR()
	if err != nil {
		return nil, err
	}
	if src.Equal(sr, 0) {
		return nil, nil
	}
	return src.NewTransform(sr)
}

// countExpression calculates a population count from shapefile fields.
type countExpression struct {
	expr   *govaluate.EvaluableExpression
	fields []string
}

func newCountExpression(countField string) (*countExpression, error) {
	expr, err := govaluate.NewEvaluableExpression(countField)
	if err != nil {
		return nil, fmt.Errorf("gis: invalid population count expression %q: %w", countField, err)
	}
	c := &countExpression{expr: expr}
	seen := make(map[string]bool)
	for _, v := range expr.Vars() {
		if !seen[v] {
			seen[v] = true
			c.fields = append(c.fields, v)
		}
	}
	return c, nil
}

func (c *countExpression) evaluate(fields map[string]string) (float64, error) {
	params := make(map[string]interface{}, len(c.fields))
	for _, f := range c.fields {
		v, err := s2f(fields[f])
		if err != nil {
			return 0, fmt.Errorf("field %s: %w", f, err)
		}
		params[f] = v
	}
	r, err := c.expr.Evaluate(params)
	if err != nil {
		return 0, err
	}
	v, ok := r.(float64)
	if !ok {
		return 0, fmt.Errorf("expression %q evaluates to %T, not a number", c.expr.String(), r)
	}
	return v, nil
}

func s2f(s string) (float64, error) {
	s = strings.Trim(s, "\x00* ")
	if s == "" {
		// null value
		return 0., nil
	}
	return strconv.ParseFloat(s, 64)
}
