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

// Package idm redistributes population counts from enumeration polygons
// onto the cells of a categorical ancillary grid using intelligent
// dasymetric mapping.
package idm

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// Version gives the version number.
const Version = "1.0.0"

// Config holds the parameters of a dasymetric mapping run.
type Config struct {
	// PopAreaMin is the inhabited area, in cells, that a polygon must
	// exceed before it can be used as a sample.
	PopAreaMin int

	// SampleMin is the number of representative polygons a class needs
	// to be considered sampled.
	SampleMin int

	// Percent is the fraction of a polygon's inhabited area a class must
	// cover for the polygon to be representative of that class.
	Percent float64

	// PopNoData and AncNoData are the no-data values of the polygon grid
	// and the ancillary grid.
	PopNoData, AncNoData int64

	// Presets holds fixed densities by ancillary class.
	Presets Presets

	// Workers is the number of goroutines used for per-class
	// calculations. If it is <= 0, runtime.GOMAXPROCS(0) is used.
	Workers int

	// Log receives progress messages. If it is nil, the standard logger
	// is used.
	Log logrus.FieldLogger
}

// DefaultConfig returns a configuration with the default parameter values.
func DefaultConfig() *Config {
	return &Config{
		PopAreaMin: 1,
		SampleMin:  3,
		Percent:    0.95,
		Presets:    make(Presets),
	}
}

func (c *Config) logger() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

// Validate checks that the parameters are in range.
func (c *Config) Validate() error {
	switch {
	case c.PopAreaMin < 0:
		return &ConfigurationError{Field: "PopAreaMin", Msg: fmt.Sprintf("must be >= 0 but is %d", c.PopAreaMin)}
	case c.SampleMin < 1:
		return &ConfigurationError{Field: "SampleMin", Msg: fmt.Sprintf("must be >= 1 but is %d", c.SampleMin)}
	case math.IsNaN(c.Percent) || c.Percent < 0 || c.Percent > 1:
		return &ConfigurationError{Field: "Percent", Msg: fmt.Sprintf("must be in [0, 1] but is %g", c.Percent)}
	case c.PopNoData < 0:
		return &ConfigurationError{Field: "PopNoData", Msg: fmt.Sprintf("must be >= 0 but is %d", c.PopNoData)}
	case c.AncNoData < 0:
		return &ConfigurationError{Field: "AncNoData", Msg: fmt.Sprintf("must be >= 0 but is %d", c.AncNoData)}
	}
	for k, d := range c.Presets {
		if k < 0 {
			return &ConfigurationError{Field: "PresetDensities", Msg: fmt.Sprintf("class %d is negative", k)}
		}
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			return &ConfigurationError{Field: "PresetDensities",
				Msg: fmt.Sprintf("density %g for class %d must be a non-negative number", d, k)}
		}
	}
	return nil
}

// Result holds the output of Run.
type Result struct {
	*Tables

	// Composite is the grid of dasymetric unit values.
	Composite *CompositeGrid

	// Density is the estimated population density of each cell, with
	// OutputNoData outside of every unit.
	Density *sparse.DenseArray

	// Warnings holds non-fatal problems: *EstimationUndefinedError and
	// *DegenerateNormalizationError.
	Warnings []error
}

// Run estimates the population density of each cell of the class grid.
// poly holds the ID of the source polygon covering each cell and pops holds
// the population of each polygon. Cells of class that should never be
// inhabited can be set to cfg.AncNoData beforehand.
func Run(ctx context.Context, cfg *Config, class, poly *IntGrid, pops []SourcePolygon) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.logger()
	r := new(Result)

	log.Info("Creating dasymetric units...")
	var err error
	r.Composite, err = EncodeGrid(class, poly, cfg.AncNoData, cfg.PopNoData)
	if err != nil {
		return nil, fmt.Errorf("idm: encoding dasymetric units: %w", err)
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	r.Tables, err = Aggregate(r.Composite, poly, cfg.AncNoData, cfg.PopNoData, pops, cfg.Presets)
	if err != nil {
		return nil, fmt.Errorf("idm: aggregating dasymetric units: %w", err)
	}
	log.WithFields(logrus.Fields{
		"units":       len(r.Units),
		"polygons":    len(r.Polygons),
		"inhabited":   r.Inhabited,
		"uninhabited": r.Uninhabited,
	}).Info("Created dasymetric units")
	if len(r.MissingCounts) > 0 {
		log.WithField("polygons", r.MissingCounts).Warn("Polygons have no population count; using 0")
	}
	if len(r.Unplaced) > 0 {
		log.WithField("polygons", r.Unplaced).Warn("Populated polygons do not cover any grid cell")
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	log.Info("Selecting representative source units...")
	EstimateDensities(r.Tables, cfg)
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	if err = IntelligentArealWeighting(r.Tables, cfg); err != nil {
		var u *EstimationUndefinedError
		if !errors.As(err, &u) {
			return nil, err
		}
		log.WithField("classes", u.Classes).Warn("Unable to estimate density for some unsampled classes")
		r.Warnings = append(r.Warnings, err)
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	log.Info("Redistributing population...")
	if err = Normalize(r.Tables, cfg); err != nil {
		var d *DegenerateNormalizationError
		if !errors.As(err, &d) {
			return nil, err
		}
		r.Warnings = append(r.Warnings, err)
	}
	r.Density = DensityGrid(r.Composite, r.Units)
	return r, nil
}
