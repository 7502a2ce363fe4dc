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
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestPair(t *testing.T) {
	tests := []struct {
		x, y, v uint64
	}{
		{x: 0, y: 0, v: 0},
		{x: 1, y: 0, v: 1},
		{x: 0, y: 1, v: 2},
		{x: 2, y: 0, v: 3},
		{x: 2, y: 3, v: 18},
		{x: 11, y: 1, v: 79},
		{x: 82, y: 1234, v: 867820},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d_%d", test.x, test.y), func(t *testing.T) {
			v, err := Pair(test.x, test.y)
			if err != nil {
				t.Fatal(err)
			}
			if v != test.v {
				t.Errorf("Pair(%d, %d) = %d; want %d", test.x, test.y, v, test.v)
			}
			x, y := Unpair(v)
			if x != test.x || y != test.y {
				t.Errorf("Unpair(%d) = (%d, %d); want (%d, %d)", v, x, y, test.x, test.y)
			}
		})
	}
}

func TestPairRoundTrip(t *testing.T) {
	for x := uint64(0); x < 120; x++ {
		for y := uint64(0); y < 120; y++ {
			v, err := Pair(x, y)
			if err != nil {
				t.Fatal(err)
			}
			if xx, yy := Unpair(v); xx != x || yy != y {
				t.Fatalf("Unpair(Pair(%d, %d)) = (%d, %d)", x, y, xx, yy)
			}
		}
	}
}

func TestPairLarge(t *testing.T) {
	const m = MaxPairSum
	tests := []struct {
		x, y uint64
	}{
		{x: 1 << 27, y: 1 << 27},
		{x: 1 << 30, y: 3},
		{x: 94906265, y: 94906266}, // sum just above sqrt(2^54)
		{x: m, y: 0},
		{x: 0, y: m},
		{x: m / 2, y: m - m/2},
		{x: m - 1, y: 1},
		{x: 12345, y: m - 12345},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d_%d", test.x, test.y), func(t *testing.T) {
			v, err := Pair(test.x, test.y)
			if err != nil {
				t.Fatal(err)
			}
			if test.x+test.y > 1<<27 && v < 1<<53 {
				t.Errorf("expected value above 2^53 but got %d", v)
			}
			x, y := Unpair(v)
			if x != test.x || y != test.y {
				t.Errorf("Unpair(%d) = (%d, %d); want (%d, %d)", v, x, y, test.x, test.y)
			}
			// Neighboring values must decode to neighboring pairs.
			if test.y > 0 {
				x2, y2 := Unpair(v - 1)
				if x2 != test.x+1 || y2 != test.y-1 {
					t.Errorf("Unpair(%d) = (%d, %d); want (%d, %d)", v-1, x2, y2, test.x+1, test.y-1)
				}
			}
		})
	}
}

func TestPairOverflow(t *testing.T) {
	tests := []struct {
		x, y uint64
	}{
		{x: MaxPairSum + 1, y: 0},
		{x: 0, y: MaxPairSum + 1},
		{x: math.MaxUint64, y: 1},
		{x: 1 << 40, y: 1 << 40},
	}
	for _, test := range tests {
		if _, err := Pair(test.x, test.y); !errors.Is(err, ErrPairOverflow) {
			t.Errorf("Pair(%d, %d): want ErrPairOverflow, got %v", test.x, test.y, err)
		}
	}
}

func TestEncodeGrid(t *testing.T) {
	class := &IntGrid{Ny: 2, Nx: 3, Cells: []int64{
		11, 21, 21,
		0, 41, 11,
	}}
	poly := &IntGrid{Ny: 2, Nx: 3, Cells: []int64{
		1, 1, 0,
		2, 2, 2,
	}}
	c, err := EncodeGrid(class, poly, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if c.NoData != 0 {
		t.Errorf("no-data composite = %d; want 0", c.NoData)
	}
	want := [][2]int64{
		{11, 1}, {21, 1}, {0, 0},
		{0, 2}, {41, 2}, {11, 2},
	}
	for n, v := range c.Cells {
		k, p := Decode(v)
		if k != want[n][0] || p != want[n][1] {
			t.Errorf("cell %d: decoded (%d, %d); want %v", n, k, p, want[n])
		}
	}
	if c.Get(0, 2) != c.NoData {
		t.Errorf("cell outside of polygons should have no-data composite value")
	}
	if class.Get(0, 2) != 21 {
		t.Errorf("class grid should not be modified")
	}
}

func TestEncodeGridErrors(t *testing.T) {
	t.Run("alignment", func(t *testing.T) {
		_, err := EncodeGrid(NewIntGrid(2, 2, 1), NewIntGrid(2, 3, 1), 0, 0)
		var e *DataAlignmentError
		if !errors.As(err, &e) {
			t.Fatalf("want DataAlignmentError, got %v", err)
		}
	})
	t.Run("negative no-data", func(t *testing.T) {
		_, err := EncodeGrid(NewIntGrid(2, 2, 1), NewIntGrid(2, 2, 1), -1, 0)
		var e *ConfigurationError
		if !errors.As(err, &e) {
			t.Fatalf("want ConfigurationError, got %v", err)
		}
	})
	t.Run("negative value", func(t *testing.T) {
		_, err := EncodeGrid(NewIntGrid(2, 2, -5), NewIntGrid(2, 2, 1), 0, 0)
		if err == nil {
			t.Fatal("want error for negative class")
		}
	})
}
