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

	"github.com/tealeg/xlsx"
)

// WriteXLSX writes each table to its own sheet of a new Microsoft Excel
// file at path.
func WriteXLSX(path string, tables ...*Table) error {
	f := xlsx.NewFile()
	for _, t := range tables {
		s, err := f.AddSheet(t.Name)
		if err != nil {
			return fmt.Errorf("report: adding sheet %s: %v", t.Name, err)
		}
		h := s.AddRow()
		for _, name := range t.Header() {
			h.AddCell().SetString(name)
		}
		for _, row := range t.Rows {
			r := s.AddRow()
			for _, v := range row {
				c := r.AddCell()
				switch x := v.(type) {
				case int64:
					c.SetInt64(x)
				case float64:
					c.SetFloat(x)
				default:
					// uint64 may not fit in a spreadsheet number.
					c.SetString(format(x))
				}
			}
		}
	}
	if err := f.Save(path); err != nil {
		return fmt.Errorf("report: saving %s: %v", path, err)
	}
	return nil
}
