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
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	_ "modernc.org/sqlite" // database driver
)

// sqlNames maps table names to database table names.
var sqlNames = map[string]string{
	UnitTableName:    "dasy_units",
	PolygonTableName: "source_polygons",
	ClassTableName:   "class_density",
	SummaryTableName: "summary",
}

// SQLName returns the database table name for t.
func SQLName(t *Table) string {
	if n, ok := sqlNames[t.Name]; ok {
		return n
	}
	return strings.ToLower(t.Name)
}

// WriteSQLite writes the tables to the SQLite database at path, replacing
// any tables with the same names.
func WriteSQLite(ctx context.Context, path string, tables ...*Table) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("report: opening database: %w", err)
	}
	defer db.Close()
	if err = db.PingContext(ctx); err != nil {
		return fmt.Errorf("report: opening database %s: %w", path, err)
	}
	for _, t := range tables {
		if err = writeSQLTable(ctx, db, t); err != nil {
			return fmt.Errorf("report: writing table %s: %w", SQLName(t), err)
		}
	}
	return nil
}

func writeSQLTable(ctx context.Context, db *sql.DB, t *Table) error {
	name := SQLName(t)
	cols := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		typ := "REAL"
		switch c.Type {
		case Int:
			typ = "INTEGER"
		case String:
			typ = "TEXT"
		}
		cols[i] = fmt.Sprintf("%q %s", c.Name, typ)
		marks[i] = "?"
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", name)); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %q (%s)", name, strings.Join(cols, ", "))); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %q VALUES (%s)", name, strings.Join(marks, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]interface{}, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			args[i] = v
			if u, ok := v.(uint64); ok {
				if u > math.MaxInt64 {
					args[i] = format(u)
				} else {
					args[i] = int64(u)
				}
			}
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}
