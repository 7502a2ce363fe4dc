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
	"strings"
)

// ConfigurationError reports a missing or invalid configuration value.
// It is always fatal.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("idm: invalid configuration for %s: %s", e.Field, e.Msg)
}

// DataAlignmentError reports that two input grids do not share the same
// shape or georeferencing. It is always fatal.
type DataAlignmentError struct {
	A, B string
	Msg  string
}

func (e *DataAlignmentError) Error() string {
	return fmt.Sprintf("idm: %s and %s grids are not aligned: %s", e.A, e.B, e.Msg)
}

// EstimationUndefinedError lists the ancillary classes for which intelligent
// areal weighting could not derive a density because they had no remaining
// area. It is reported as a warning; the classes are left out of the density
// table and their units receive no population from them.
type EstimationUndefinedError struct {
	Classes []int64
}

func (e *EstimationUndefinedError) Error() string {
	return fmt.Sprintf("idm: density is undefined for unsampled classes %s", joinIDs(e.Classes))
}

// DegenerateNormalizationError lists the source polygons that had a
// positive population but a zero total estimate. Their population was
// spread by area instead. It is reported as a warning.
type DegenerateNormalizationError struct {
	Polygons []int64
}

func (e *DegenerateNormalizationError) Error() string {
	return fmt.Sprintf("idm: population estimate was zero for populated polygons %s; "+
		"using area weighting", joinIDs(e.Polygons))
}

func joinIDs(ids []int64) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = fmt.Sprint(id)
	}
	return "[" + strings.Join(s, " ") + "]"
}
