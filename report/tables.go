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

// Package report writes the relations produced by a dasymetric mapping
// run as CSV files, spreadsheets, SQLite databases, and shapefiles.
package report

import (
	"fmt"
	"strconv"

	"github.com/spatialmodel/idm"
)

// ColumnType is the type of the values in a column.
type ColumnType int

// These are the column types.
const (
	Int ColumnType = iota
	Float
	String
)

// Column describes one column of a Table.
type Column struct {
	Name string
	Type ColumnType
}

// Table is a relation ready to be written. Every row holds one value per
// column: int64 or uint64 for Int columns, float64 for Float columns, and
// string for String columns.
type Table struct {
	// Name is used as the file, sheet, or database table name.
	Name    string
	Columns []Column
	Rows    [][]interface{}
}

// These are the names of the tables.
const (
	UnitTableName    = "DasyWorkTable"
	PolygonTableName = "PopTable"
	ClassTableName   = "SamplingSummaryTable"
)

// UnitTable returns the dasymetric unit relation.
func UnitTable(units []*idm.Unit) *Table {
	t := &Table{
		Name: UnitTableName,
		Columns: []Column{
			{"Value", Int}, {"Count", Int}, {"polyID", Int}, {"ancID", Int},
			{"POP_COUNT", Float}, {"POP_AREA", Int}, {"PURITY", Float}, {"REP", Int},
			{"CLASSDENS", Float}, {"POP_EST", Float}, {"REM_AREA", Int},
			{"TOTALFRACT", Float}, {"NEW_POP", Float}, {"NEWDENSITY", Float},
		},
	}
	for _, u := range units {
		t.Rows = append(t.Rows, []interface{}{
			u.Value, int64(u.Area), u.PolygonID, u.ClassID,
			u.PopCount, int64(u.PopArea), u.Purity, b2i(u.Representative),
			u.ClassDensity, u.PopEst, int64(u.RemArea),
			u.TotalFract, u.NewPop, u.NewDensity,
		})
	}
	return t
}

// PolygonTable returns the source polygon relation.
func PolygonTable(polys []*idm.Polygon) *Table {
	t := &Table{
		Name: PolygonTableName,
		Columns: []Column{
			{"polyID", Int}, {"KEY", String}, {"POP_COUNT", Float}, {"AREA", Int},
			{"POP_AREA", Int}, {"POP_DENS", Float}, {"REP_CAT", Int},
		},
	}
	for _, p := range polys {
		var rep int64
		if p.Representative {
			rep = p.RepClass
		}
		t.Rows = append(t.Rows, []interface{}{
			p.ID, p.Key, p.PopCount, int64(p.Area),
			int64(p.PopArea), p.PopDensity, rep,
		})
	}
	return t
}

// ClassTable returns the class density and sampling summary relation.
func ClassTable(classes []*idm.ClassDensity) *Table {
	t := &Table{
		Name: ClassTableName,
		Columns: []Column{
			{"ancID", Int}, {"SAMPLES", Int}, {"SUM_POP_COUNT", Float}, {"SUM_POP_AREA", Int},
			{"SAMPLEDENS", Float}, {"CLASSDENS", Float}, {"METHOD", String},
		},
	}
	for _, c := range classes {
		t.Rows = append(t.Rows, []interface{}{
			c.Class, int64(c.SampleCount), c.SumPopCount, int64(c.SumPopArea),
			c.SampleDensity, c.Density, string(c.Method),
		})
	}
	return t
}

// Tables returns all three relations of a run.
func Tables(r *idm.Result) []*Table {
	return []*Table{UnitTable(r.Units), PolygonTable(r.Polygons), ClassTable(r.Classes)}
}

// Header returns the column names of t.
func (t *Table) Header() []string {
	h := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		h[i] = c.Name
	}
	return h
}

// format returns the text form of a table value.
func format(v interface{}) string {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
