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
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/idm"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// RunConfig holds the information needed to carry out a dasymetric
// mapping run from input files.
type RunConfig struct {
	// PopulationFile is a polygon shapefile with a population count
	// for each polygon, in the fields PopulationCountField and keyed by
	// PopulationKeyField.
	PopulationFile       string
	PopulationKeyField   string
	PopulationCountField string

	// AncillaryFile is a NetCDF grid of ancillary classes.
	AncillaryFile string

	// UninhabitedFile, if set, is a shapefile or GeoJSON file of areas
	// that are known to have no population.
	UninhabitedFile string

	// OutputDir is a local directory or blob location.
	OutputDir string

	LogFile  string
	LogLevel logrus.Level

	WriteExcel, WriteSQLite, WritePlot, WriteShapefile bool

	IDM *idm.Config
}

// LoadConfig reads a RunConfig from cfg. Environment variables in paths
// and field names are expanded.
func LoadConfig(cfg *viper.Viper) (*RunConfig, error) {
	c := &RunConfig{
		PopulationFile:       os.ExpandEnv(cfg.GetString("PopulationFile")),
		PopulationKeyField:   os.ExpandEnv(cfg.GetString("PopulationKeyField")),
		PopulationCountField: os.ExpandEnv(cfg.GetString("PopulationCountField")),
		AncillaryFile:        os.ExpandEnv(cfg.GetString("AncillaryFile")),
		UninhabitedFile:      os.ExpandEnv(cfg.GetString("UninhabitedFile")),
		OutputDir:            os.ExpandEnv(cfg.GetString("OutputDir")),
		WriteExcel:           cfg.GetBool("WriteExcel"),
		WriteSQLite:          cfg.GetBool("WriteSQLite"),
		WritePlot:            cfg.GetBool("WritePlot"),
		WriteShapefile:       cfg.GetBool("WriteShapefile"),
	}
	required := []struct{ name, val string }{
		{"PopulationFile", c.PopulationFile},
		{"PopulationKeyField", c.PopulationKeyField},
		{"PopulationCountField", c.PopulationCountField},
		{"AncillaryFile", c.AncillaryFile},
		{"OutputDir", c.OutputDir},
	}
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			return nil, &idm.ConfigurationError{Field: r.name, Msg: "must be specified"}
		}
	}
	if !IsBlob(c.OutputDir) {
		if _, err := os.Stat(c.OutputDir); err != nil {
			return nil, &idm.ConfigurationError{Field: "OutputDir", Msg: err.Error()}
		}
	}
	c.LogFile = checkLogFile(os.ExpandEnv(cfg.GetString("LogFile")), c.OutputDir)

	var err error
	c.LogLevel, err = logrus.ParseLevel(cfg.GetString("LogLevel"))
	if err != nil {
		return nil, &idm.ConfigurationError{Field: "LogLevel", Msg: err.Error()}
	}

	c.IDM = idm.DefaultConfig()
	ints := []struct {
		name string
		dst  *int
	}{
		{"PopAreaMin", &c.IDM.PopAreaMin},
		{"SampleMin", &c.IDM.SampleMin},
		{"Workers", &c.IDM.Workers},
	}
	for _, v := range ints {
		if *v.dst, err = cast.ToIntE(cfg.Get(v.name)); err != nil {
			return nil, &idm.ConfigurationError{Field: v.name, Msg: err.Error()}
		}
	}
	noData := []struct {
		name string
		dst  *int64
	}{
		{"PopNoData", &c.IDM.PopNoData},
		{"AncNoData", &c.IDM.AncNoData},
	}
	for _, v := range noData {
		if *v.dst, err = cast.ToInt64E(cfg.Get(v.name)); err != nil {
			return nil, &idm.ConfigurationError{Field: v.name, Msg: err.Error()}
		}
	}
	if c.IDM.Percent, err = cast.ToFloat64E(cfg.Get("Percent")); err != nil {
		return nil, &idm.ConfigurationError{Field: "Percent", Msg: err.Error()}
	}

	if c.IDM.Presets, err = presetDensities(cfg); err != nil {
		return nil, err
	}
	if err = c.IDM.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// checkLogFile fills in a default value for the log file path if one
// isn't specified.
func checkLogFile(logFile, outputDir string) string {
	if logFile == "" {
		logFile = outputPath(outputDir, "idm.log")
	}
	return logFile
}

// presetDensities combines the densities in the file named by PresetFile
// with those in PresetDensities. Entries in PresetDensities take
// precedence.
func presetDensities(cfg *viper.Viper) (idm.Presets, error) {
	p := make(idm.Presets)
	if f := os.ExpandEnv(cfg.GetString("PresetFile")); f != "" {
		m, err := readPresetFile(f)
		if err != nil {
			return nil, &idm.ConfigurationError{Field: "PresetFile", Msg: err.Error()}
		}
		if err = addPresets(p, m); err != nil {
			return nil, &idm.ConfigurationError{Field: "PresetFile", Msg: err.Error()}
		}
	}
	m, err := getStringMap("PresetDensities", cfg)
	if err != nil {
		return nil, &idm.ConfigurationError{Field: "PresetDensities", Msg: err.Error()}
	}
	if err = addPresets(p, m); err != nil {
		return nil, &idm.ConfigurationError{Field: "PresetDensities", Msg: err.Error()}
	}
	return p, nil
}

// addPresets parses the class keys and density values of m into p.
func addPresets(p idm.Presets, m map[string]interface{}) error {
	for k, v := range m {
		class, err := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
		if err != nil {
			return fmt.Errorf("class %q is not an integer", k)
		}
		d, err := cast.ToFloat64E(v)
		if err != nil {
			return fmt.Errorf("density for class %d: %v", class, err)
		}
		p[class] = d
	}
	return nil
}

// readPresetFile reads a map of class densities from a JSON, TOML, or
// YAML file, chosen by the file extension.
func readPresetFile(path string) (map[string]interface{}, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	o := make(map[string]interface{})
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err = json.Unmarshal(b, &o); err != nil {
			return nil, err
		}
	case ".toml":
		if _, err = toml.Decode(string(b), &o); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		var y map[interface{}]interface{}
		if err = yaml.Unmarshal(b, &y); err != nil {
			return nil, err
		}
		for k, v := range y {
			o[fmt.Sprint(k)] = v
		}
	default:
		return nil, fmt.Errorf("unsupported preset file type %q", ext)
	}
	return o, nil
}

// getStringMap returns a map from a viper configuration, accounting for
// the fact that it might be a JSON object if it was set from a command
// line argument or environment variable.
func getStringMap(varName string, cfg *viper.Viper) (map[string]interface{}, error) {
	switch i := cfg.Get(varName).(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		return i, nil
	case map[string]string:
		o := make(map[string]interface{}, len(i))
		for k, v := range i {
			o[k] = v
		}
		return o, nil
	case map[interface{}]interface{}:
		return cast.ToStringMapE(i)
	case string:
		o := make(map[string]interface{})
		if strings.TrimSpace(i) == "" {
			return o, nil
		}
		if err := json.Unmarshal([]byte(i), &o); err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("invalid type %T", i)
	}
}
