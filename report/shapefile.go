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
	"io/ioutil"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
	"github.com/spatialmodel/idm"
)

// WritePolygons writes the source polygon relation as a polygon shapefile
// at path. shapes holds the geometry of each polygon by ID; polygons
// without a shape are skipped. If projection is not empty it is written
// to the matching .prj file.
func WritePolygons(path string, polys []*idm.Polygon, shapes map[int64]geom.Polygonal, projection string) error {
	e, err := shp.NewEncoderFromFields(path, goshp.POLYGON,
		goshp.NumberField("polyID", 10),
		goshp.StringField("KEY", 40),
		goshp.FloatField("POP_COUNT", 16, 4),
		goshp.NumberField("AREA", 10),
		goshp.NumberField("POP_AREA", 10),
		goshp.FloatField("POP_DENS", 16, 8),
		goshp.NumberField("REP_CAT", 10),
	)
	if err != nil {
		return fmt.Errorf("report: creating shapefile %s: %w", path, err)
	}
	for _, p := range polys {
		s, ok := shapes[p.ID]
		if !ok {
			continue
		}
		var rep int
		if p.Representative {
			rep = int(p.RepClass)
		}
		err = e.EncodeFields(flatten(s), int(p.ID), p.Key, p.PopCount,
			p.Area, p.PopArea, p.PopDensity, rep)
		if err != nil {
			e.Close()
			return fmt.Errorf("report: writing polygon %d: %w", p.ID, err)
		}
	}
	e.Close()

	if projection != "" {
		prj := strings.TrimSuffix(path, ".shp") + ".prj"
		if err = ioutil.WriteFile(prj, []byte(projection), 0644); err != nil {
			return fmt.Errorf("report: writing projection: %w", err)
		}
	}
	return nil
}

// flatten combines the rings of all polygons in p into a single polygon.
func flatten(p geom.Polygonal) geom.Polygon {
	if pp, ok := p.(geom.Polygon); ok {
		return pp
	}
	var o geom.Polygon
	for _, pp := range p.Polygons() {
		o = append(o, pp...)
	}
	return o
}
