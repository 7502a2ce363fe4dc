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
	"math"

	"github.com/sirupsen/logrus"
)

// IntelligentArealWeighting estimates a density for each class in
// t.Unsampled from the population that the sampled and preset classes
// leave unexplained in each polygon. It must be called after
// EstimateDensities. If the density of any class cannot be determined,
// an *EstimationUndefinedError is returned; the remaining classes are
// still estimated.
func IntelligentArealWeighting(t *Tables, cfg *Config) error {
	if len(t.Unsampled) == 0 {
		return nil
	}
	log := cfg.logger()
	log.WithField("classes", t.Unsampled).Info("Performing intelligent areal weighting for unsampled classes...")

	unsampled := make(map[int64]bool, len(t.Unsampled))
	for _, k := range t.Unsampled {
		unsampled[k] = true
	}

	for _, p := range t.Polygons {
		p.RemArea = 0
		p.PopEstSum = 0
		for _, u := range t.unitsByPolygon[p.ID] {
			u.RemArea = 0
			if unsampled[u.ClassID] {
				u.RemArea = u.Area
				p.RemArea += u.Area
			}
			p.PopEstSum += u.PopEst
		}
		p.PopDiff = p.PopCount - p.PopEstSum
	}

	// Provisional estimates for the units of unsampled classes.
	for _, u := range t.Units {
		if !unsampled[u.ClassID] {
			continue
		}
		p := t.polygons[u.PolygonID]
		if p.RemArea == 0 {
			continue
		}
		u.PopEst = math.Max(p.PopDiff, 0) * float64(u.RemArea) / float64(p.RemArea)
	}

	type classSum struct {
		pop  float64
		area int
	}
	sums := make([]classSum, len(t.Unsampled))
	forEachClass(t.Unsampled, cfg.Workers, func(i int) {
		for _, u := range t.unitsByClass[t.Unsampled[i]] {
			if t.polygons[u.PolygonID].RemArea == 0 {
				continue
			}
			sums[i].pop += u.PopEst
			sums[i].area += u.RemArea
		}
	})

	var undefined []int64
	for i, k := range t.Unsampled {
		s := sums[i]
		if s.area == 0 {
			undefined = append(undefined, k)
			for _, u := range t.unitsByClass[k] {
				u.ClassDensity = 0
				u.PopEst = 0
			}
			continue
		}
		d := s.pop / float64(s.area)
		c := t.pending[k]
		if c == nil {
			c = &ClassDensity{Class: k}
		}
		c.Method = IAW
		c.Density = d
		t.setClass(c)
		log.WithFields(logrus.Fields{"class": k, "density": d}).Debug("IAW class density")
		for _, u := range t.unitsByClass[k] {
			u.ClassDensity = d
			u.PopEst = float64(u.Area) * d
		}
	}
	if len(undefined) > 0 {
		return &EstimationUndefinedError{Classes: undefined}
	}
	return nil
}
