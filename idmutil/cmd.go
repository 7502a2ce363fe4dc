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
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/idm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to IDM.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "PopulationFile",
			usage: `
              PopulationFile is the path to a polygon shapefile holding the
              population of each enumeration unit (e.g., census tracts). It can
              be a local path, an http(s) URL, or a gs://, s3://, or file://
              blob location.`,
			shorthand:  "p",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "PopulationKeyField",
			usage: `
              PopulationKeyField is the PopulationFile attribute that uniquely
              identifies each polygon.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "PopulationCountField",
			usage: `
              PopulationCountField is the PopulationFile attribute holding
              the population count of each polygon. It can also be an
              expression combining numeric attributes, e.g. "POP_M + POP_F".`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "AncillaryFile",
			usage: `
              AncillaryFile is the path to a NetCDF grid of integer ancillary
              classes (e.g., land cover). Its grid defines the output grid.`,
			shorthand:  "a",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "UninhabitedFile",
			usage: `
              UninhabitedFile is an optional shapefile or GeoJSON file of
              areas known to have no population. Grid cells with centers inside
              of these areas are set to AncNoData. It may also be a NetCDF grid
              aligned with AncillaryFile, where nonzero cells are uninhabited.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory that output files are written to.
              It can be a gs://, s3://, or file:// blob location.`,
			shorthand:  "o",
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired log file location. If it is
              not specified, the log is written to idm.log in OutputDir.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum severity of log messages: debug, info,
              warning, or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "PopAreaMin",
			usage: `
              PopAreaMin is the inhabited area, in grid cells, that a polygon
              must exceed to be used as a sample of an ancillary class.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SampleMin",
			usage: `
              SampleMin is the number of representative polygons needed for a
              class to be considered sampled.`,
			defaultVal: 3,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Percent",
			usage: `
              Percent is the fraction (0-1) of a polygon's inhabited area a
              class must cover for the polygon to be representative of it.`,
			defaultVal: 0.95,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "PopNoData",
			usage: `
              PopNoData is the polygon grid value of cells outside of every
              population polygon. Polygons are numbered from 1, skipping this
              value.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "AncNoData",
			usage: `
              AncNoData is the no-data value of the ancillary grid. Cells with
              this value are treated as uninhabited.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "PresetDensities",
			usage: `
              PresetDensities maps ancillary classes to fixed population
              densities in people per grid cell, for example {"11": 0, "21": 2.5}.
              A density of 0 marks the class as uninhabited.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "PresetFile",
			usage: `
              PresetFile is an optional JSON, TOML, or YAML file holding preset
              densities in the same format as PresetDensities. Values in
              PresetDensities take precedence.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "WriteExcel",
			usage: `
              WriteExcel specifies whether to write the output tables and
              summary statistics to IDMSummary.xlsx.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "WriteSQLite",
			usage: `
              WriteSQLite specifies whether to write the output tables to the
              SQLite database IDMTables.sqlite.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "WritePlot",
			usage: `
              WritePlot specifies whether to write a histogram of the output
              population density to DensityHistogram.png.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "WriteShapefile",
			usage: `
              WriteShapefile specifies whether to write the population polygons
              with their estimation results to PopTable.shp.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of goroutines used for per-class
              calculations. Values <= 0 use the number of processors.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("IDM")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				json.NewEncoder(b).Encode(v)
				set.StringP(option.name, option.shorthand, b.String(), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}

	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(decodeCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("idm: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "idm",
	Short: "Intelligent dasymetric mapping of population.",
	Long: `IDM redistributes the population of enumeration polygons (e.g., census
tracts) onto a raster grid of ancillary classes (e.g., land cover), using
densities sampled from polygons dominated by a single class and intelligent
areal weighting for the remaining classes.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'IDM_var' where 'var' is the
name of the variable to be set. Paths are additionally allowed to contain
environment variables within them.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of IDM.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "IDM v%s\n", idm.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd carries out a dasymetric mapping run.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Redistribute polygon population onto the ancillary grid.",
	Long: `run reads the population polygons and the ancillary grid, estimates a
population density for every ancillary class, and writes the population
density grid, the intermediate grids, and the estimation tables to OutputDir.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := LoadConfig(Cfg)
		if err != nil {
			return err
		}
		return Run(context.Background(), c, cmd.OutOrStdout())
	},
	DisableAutoGenTag: true,
}

// decodeCmd prints the ancillary class and polygon of composite values.
var decodeCmd = &cobra.Command{
	Use:   "decode value...",
	Short: "Decode composite unit values.",
	Long: `decode prints the ancillary class and the polygon ID that each
given composite value (as found in DasyRaster.nc or DasyWorkTable.csv)
was created from.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, a := range args {
			v, err := strconv.ParseUint(a, 10, 64)
			if err != nil {
				return fmt.Errorf("idm: invalid composite value %q: %v", a, err)
			}
			class, poly := idm.Decode(v)
			fmt.Fprintf(cmd.OutOrStdout(), "%d %d\n", class, poly)
		}
		return nil
	},
	DisableAutoGenTag: true,
}
