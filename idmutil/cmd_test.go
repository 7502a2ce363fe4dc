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

package idmutil

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spatialmodel/idm"
)

func TestVersion(t *testing.T) {
	b := new(bytes.Buffer)
	Root.SetOutput(b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := fmt.Sprintf("IDM v%s\n", idm.Version); b.String() != want {
		t.Errorf("%q != %q", b.String(), want)
	}
}

func TestDecode(t *testing.T) {
	v, err := idm.Pair(41, 4)
	if err != nil {
		t.Fatal(err)
	}
	b := new(bytes.Buffer)
	Root.SetOutput(b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"decode", fmt.Sprint(v), "0"})
	if err = Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := "41 4\n0 0\n"; b.String() != want {
		t.Errorf("%q != %q", b.String(), want)
	}

	Root.SetArgs([]string{"decode", "-3"})
	if err = Root.Execute(); err == nil {
		t.Error("want an error for a negative value")
	}
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	popFile, ancFile := writeInputs(t, dir)
	cfgFile := filepath.Join(dir, "config.toml")
	cfg := fmt.Sprintf(`PopulationFile = %q
PopulationKeyField = "GEOID"
PopulationCountField = "POP"
AncillaryFile = %q
OutputDir = %q
LogLevel = "error"
WriteShapefile = false

[PresetDensities]
41 = 2.0
`, popFile, ancFile, dir)
	if err := ioutil.WriteFile(cfgFile, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	b := new(bytes.Buffer)
	Root.SetOutput(b)
	defer Root.SetOutput(nil)
	Cfg.Set("config", cfgFile)
	defer Cfg.Set("config", "")
	Root.SetArgs([]string{"run"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(Cfg)
	if err != nil {
		t.Fatal(err)
	}
	if c.IDM.Presets[41] != 2 {
		t.Errorf("presets: %v", c.IDM.Presets)
	}
	if strings.Contains(b.String(), "level=error") {
		t.Errorf("run logged errors: %s", b.String())
	}
}
