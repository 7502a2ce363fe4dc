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
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// classSample is the result of sampling one class.
type classSample struct {
	class       int64
	count       int
	sumPopCount float64
	sumPopArea  int
	reps        []int64 // representative polygons, ascending
}

// forEachClass concurrently calls f for every index of classes. Worker pp
// handles indices pp, pp+nprocs, ... so f must only write to state owned
// by its index.
func forEachClass(classes []int64, nprocs int, f func(i int)) {
	if nprocs <= 0 {
		nprocs = runtime.GOMAXPROCS(0)
	}
	if nprocs > len(classes) {
		nprocs = len(classes)
	}
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			for ii := pp; ii < len(classes); ii += nprocs {
				f(ii)
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()
}

// sampleClass computes the purity of every unit of class k and finds the
// polygons that are representative of it. Only units of class k are
// modified.
func sampleClass(t *Tables, k int64, popAreaMin int, percent float64) classSample {
	s := classSample{class: k}
	for _, u := range t.unitsByClass[k] {
		u.Purity = ratio(float64(u.Area), float64(u.PopArea))
		u.Representative = u.PopArea > popAreaMin && u.Purity >= percent
		if !u.Representative {
			continue
		}
		s.count++
		s.sumPopCount += u.PopCount
		s.sumPopArea += u.PopArea
		s.reps = append(s.reps, u.PolygonID)
	}
	return s
}

// EstimateDensities determines a density for every class that can be
// sampled or has a preset, and sets the first population estimate of
// every unit. Inhabited classes with neither are listed in t.Unsampled for
// IntelligentArealWeighting.
func EstimateDensities(t *Tables, cfg *Config) {
	log := cfg.logger()

	samples := make([]classSample, len(t.Inhabited))
	forEachClass(t.Inhabited, cfg.Workers, func(i int) {
		samples[i] = sampleClass(t, t.Inhabited[i], cfg.PopAreaMin, cfg.Percent)
	})

	t.Unsampled = t.Unsampled[:0]
	t.pending = make(map[int64]*ClassDensity)
	for _, s := range samples {
		c := &ClassDensity{
			Class:         s.class,
			SampleCount:   s.count,
			SumPopCount:   s.sumPopCount,
			SumPopArea:    s.sumPopArea,
			SampleDensity: ratio(s.sumPopCount, float64(s.sumPopArea)),
		}
		sampled := s.count >= cfg.SampleMin
		if sampled {
			log.WithFields(logrus.Fields{"class": s.class, "samples": s.count}).
				Infof("Class %d was sufficiently sampled with %d representative source units.", s.class, s.count)
			c.Method = Sampled
			c.Density = c.SampleDensity
			for _, id := range s.reps {
				p := t.polygons[id]
				p.RepClass = s.class
				p.Representative = true
			}
		} else {
			log.WithFields(logrus.Fields{"class": s.class, "samples": s.count}).
				Infof("Class %d was not sufficiently sampled with only %d representative source units.", s.class, s.count)
		}
		if d, ok := cfg.Presets[s.class]; ok {
			c.Method = Preset
			c.Density = d
		} else if !sampled {
			t.Unsampled = append(t.Unsampled, s.class)
			t.pending[s.class] = c
			continue
		}
		t.setClass(c)
	}

	// Presets for classes that are not inhabited, or not in the data at
	// all, are still listed.
	for k, d := range cfg.Presets {
		if _, ok := t.classes[k]; !ok {
			t.setClass(&ClassDensity{Class: k, Method: Preset, Density: d})
		}
	}

	for _, u := range t.Units {
		u.ClassDensity = 0
		u.PopEst = 0
		if u.ClassID == cfg.AncNoData {
			continue
		}
		if c, ok := t.classes[u.ClassID]; ok {
			u.ClassDensity = c.Density
			u.PopEst = float64(u.Area) * c.Density
		}
	}
}
