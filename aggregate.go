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
	"fmt"
	"math"
	"sort"
)

// Method is the way a class density was obtained.
type Method string

// These are the class density methods.
const (
	Sampled Method = "Sampled"
	Preset  Method = "Preset"
	IAW     Method = "IAW"
)

// SourcePolygon holds the known population of one enumeration polygon.
// ID is the value the polygon is burned into the polygon grid with;
// Key is the polygon's identifier in the source data set.
type SourcePolygon struct {
	ID       int64
	Key      string
	PopCount float64
}

// Unit is a dasymetric unit: the set of cells that share one ancillary
// class and one source polygon.
type Unit struct {
	// Value is the composite value of the unit.
	Value     uint64
	PolygonID int64
	ClassID   int64

	// Area is the number of cells in the unit.
	Area int

	PopCount float64 // population of the polygon
	PopArea  int     // inhabited area of the polygon

	Purity         float64
	Representative bool

	ClassDensity float64
	PopEst       float64
	RemArea      int
	TotalFract   float64
	NewPop       float64
	NewDensity   float64
}

// Polygon is a source polygon with the working columns filled in by the
// estimation stages.
type Polygon struct {
	ID       int64
	Key      string
	PopCount float64

	// Area is the number of cells burned with the polygon's ID.
	Area int
	// PopArea is the number of those cells with an inhabited class.
	PopArea    int
	PopDensity float64

	// RepClass is the last sampled class the polygon was representative
	// of, in ascending class order. It is only meaningful when
	// Representative is true.
	RepClass       int64
	Representative bool

	RemArea   int
	PopEstSum float64
	PopDiff   float64
}

// ClassDensity is the representative density of one ancillary class.
type ClassDensity struct {
	Class   int64
	Method  Method
	Density float64

	// Sampling summary.
	SampleCount   int
	SumPopCount   float64
	SumPopArea    int
	SampleDensity float64
}

// Presets maps ancillary classes to fixed densities. A density of zero
// marks the class as uninhabited.
type Presets map[int64]float64

// Tables holds the relations produced while estimating population.
type Tables struct {
	// Units is sorted by Value.
	Units []*Unit
	// Polygons is sorted by ID.
	Polygons []*Polygon
	// Classes is sorted by Class.
	Classes []*ClassDensity

	// Inhabited and Uninhabited partition the classes present in Units.
	Inhabited, Uninhabited []int64

	// Unsampled are the inhabited classes with neither enough samples
	// nor a preset density.
	Unsampled []int64

	// MissingCounts are polygon IDs that appear in the polygon grid
	// but have no population count. They are treated as having zero
	// population.
	MissingCounts []int64

	// Unplaced are polygons with a population count that do not cover
	// any grid cell. Their population cannot be redistributed.
	Unplaced []int64

	polygons       map[int64]*Polygon
	unitsByPolygon map[int64][]*Unit
	unitsByClass   map[int64][]*Unit
	classes        map[int64]*ClassDensity

	// pending holds the sampling summary of unsampled classes until
	// their density is known.
	pending map[int64]*ClassDensity
}

// Polygon returns the polygon with the given ID, or nil.
func (t *Tables) Polygon(id int64) *Polygon { return t.polygons[id] }

// Class returns the density entry for class k, or nil if k has none.
func (t *Tables) Class(k int64) *ClassDensity { return t.classes[k] }

// PolygonUnits returns the units of polygon id.
func (t *Tables) PolygonUnits(id int64) []*Unit { return t.unitsByPolygon[id] }

// ClassUnits returns the units of class k.
func (t *Tables) ClassUnits(k int64) []*Unit { return t.unitsByClass[k] }

// setClass adds or replaces a class density entry, keeping Classes sorted.
func (t *Tables) setClass(c *ClassDensity) {
	if _, ok := t.classes[c.Class]; ok {
		for i, o := range t.Classes {
			if o.Class == c.Class {
				t.Classes[i] = c
			}
		}
	} else {
		t.Classes = append(t.Classes, c)
		sort.Slice(t.Classes, func(i, j int) bool { return t.Classes[i].Class < t.Classes[j].Class })
	}
	t.classes[c.Class] = c
}

// Aggregate builds the unit and polygon relations from the composite grid
// and the polygon grid it was encoded from. Cells with the no-data
// composite value are not part of any unit. Classes with a preset density
// of zero, and ancNoData, are uninhabited: their area is left out of each
// polygon's PopArea.
func Aggregate(composite *CompositeGrid, poly *IntGrid, ancNoData, popNoData int64,
	pops []SourcePolygon, presets Presets) (*Tables, error) {

	if composite.Ny != poly.Ny || composite.Nx != poly.Nx || len(composite.Cells) != len(poly.Cells) {
		return nil, &DataAlignmentError{A: "composite", B: "population",
			Msg: fmt.Sprintf("shape %dx%d != %dx%d", composite.Ny, composite.Nx, poly.Ny, poly.Nx)}
	}

	counts := make(map[int64]SourcePolygon, len(pops))
	for _, p := range pops {
		if _, ok := counts[p.ID]; ok {
			return nil, &ConfigurationError{Field: "PopulationKeyField",
				Msg: fmt.Sprintf("duplicate polygon ID %d (key %q)", p.ID, p.Key)}
		}
		if math.IsNaN(p.PopCount) || math.IsInf(p.PopCount, 0) || p.PopCount < 0 {
			return nil, &ConfigurationError{Field: "PopulationCountField",
				Msg: fmt.Sprintf("invalid population %g for polygon %q", p.PopCount, p.Key)}
		}
		counts[p.ID] = p
	}

	unitArea := make(map[uint64]int)
	polyArea := make(map[int64]int)
	for n, v := range composite.Cells {
		if p := poly.Cells[n]; p != popNoData {
			polyArea[p]++
		}
		if v == composite.NoData {
			continue
		}
		unitArea[v]++
	}

	t := &Tables{
		polygons:       make(map[int64]*Polygon, len(polyArea)),
		unitsByPolygon: make(map[int64][]*Unit),
		unitsByClass:   make(map[int64][]*Unit),
		classes:        make(map[int64]*ClassDensity),
	}

	for id, area := range polyArea {
		p := &Polygon{ID: id, Area: area}
		if c, ok := counts[id]; ok {
			p.Key = c.Key
			p.PopCount = c.PopCount
		} else {
			p.Key = fmt.Sprint(id)
			t.MissingCounts = append(t.MissingCounts, id)
		}
		t.Polygons = append(t.Polygons, p)
		t.polygons[id] = p
	}
	sort.Slice(t.Polygons, func(i, j int) bool { return t.Polygons[i].ID < t.Polygons[j].ID })
	sortIDs(t.MissingCounts)

	for id, c := range counts {
		if _, ok := polyArea[id]; !ok && c.PopCount > 0 {
			t.Unplaced = append(t.Unplaced, id)
		}
	}
	sortIDs(t.Unplaced)

	uninhabited := make(map[int64]bool)
	uninhabited[ancNoData] = true
	for k, d := range presets {
		if d == 0 {
			uninhabited[k] = true
		}
	}

	for v, area := range unitArea {
		class, id := Decode(v)
		p, ok := t.polygons[id]
		if !ok {
			return nil, fmt.Errorf("idm: composite value %d refers to polygon %d, which is not in the polygon grid", v, id)
		}
		u := &Unit{
			Value:     v,
			PolygonID: id,
			ClassID:   class,
			Area:      area,
			PopCount:  p.PopCount,
		}
		t.Units = append(t.Units, u)
		if !uninhabited[class] {
			p.PopArea += area
		}
	}
	sort.Slice(t.Units, func(i, j int) bool { return t.Units[i].Value < t.Units[j].Value })

	seen := make(map[int64]bool)
	for _, u := range t.Units {
		u.PopArea = t.polygons[u.PolygonID].PopArea
		t.unitsByPolygon[u.PolygonID] = append(t.unitsByPolygon[u.PolygonID], u)
		t.unitsByClass[u.ClassID] = append(t.unitsByClass[u.ClassID], u)
		if !seen[u.ClassID] {
			seen[u.ClassID] = true
			if uninhabited[u.ClassID] {
				t.Uninhabited = append(t.Uninhabited, u.ClassID)
			} else {
				t.Inhabited = append(t.Inhabited, u.ClassID)
			}
		}
	}
	sortIDs(t.Inhabited)
	sortIDs(t.Uninhabited)

	for _, p := range t.Polygons {
		p.PopDensity = ratio(p.PopCount, float64(p.PopArea))
	}
	return t, nil
}

// ratio returns a/b, or 0 if b is 0.
func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
