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
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/idm/gis"
)

func testLog() logrus.FieldLogger {
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}

func TestMaybeDownloadLocal(t *testing.T) {
	for _, path := range []string{"/dev/null", "/blah/test/", ""} {
		k, err := maybeDownload(context.Background(), path, testLog())
		if err != nil {
			t.Fatal(err)
		}
		if k != path {
			t.Errorf("expected %q, got %q", path, k)
		}
	}
}

func TestMaybeDownloadRemote(t *testing.T) {
	dir := t.TempDir()
	popFile, _ := writeInputs(t, dir)
	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()

	k, err := maybeDownload(context.Background(), srv.URL+"/"+filepath.Base(popFile), testLog())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(k, "tracts.shp") || k == popFile {
		t.Fatalf("expected tempDir/tracts.shp, got %s", k)
	}
	for _, ext := range []string{".dbf", ".shx"} {
		if _, err := os.Stat(strings.TrimSuffix(k, ".shp") + ext); err != nil {
			t.Errorf("missing %s file: %v", ext, err)
		}
	}
	if _, err := os.Stat(strings.TrimSuffix(k, ".shp") + ".prj"); !os.IsNotExist(err) {
		t.Errorf("there should be no projection file: %v", err)
	}
	pops, err := gis.LoadPolygonPopulations(k, "GEOID", "POP", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(pops) != 4 {
		t.Errorf("got %d polygons; want 4", len(pops))
	}
}

func TestMaybeDownloadRemoteFail(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	path := srv.URL + "/landcover.nc"
	k, err := maybeDownload(ctx, path, testLog())
	if err == nil {
		t.Error("want an error for a missing file")
	}
	if k != path {
		t.Errorf("expected %s, got %s", path, k)
	}
}

func TestIsBlob(t *testing.T) {
	tests := []struct {
		path string
		blob bool
	}{
		{path: "gs://bucket/tracts.shp", blob: true},
		{path: "s3://bucket/out", blob: true},
		{path: "file://bucket/out", blob: true},
		{path: "https://example.com/tracts.shp"},
		{path: "/data/tracts.shp"},
	}
	for _, test := range tests {
		if b := IsBlob(test.path); b != test.blob {
			t.Errorf("IsBlob(%q) = %v", test.path, b)
		}
	}
}

func TestExpandShp(t *testing.T) {
	want := []string{"a/tracts.shp", "a/tracts.dbf", "a/tracts.shx", "a/tracts.prj"}
	if got := expandShp("a/tracts.shp"); !reflect.DeepEqual(got, want) {
		t.Errorf("%v != %v", got, want)
	}
	if got := expandShp("landcover.nc"); !reflect.DeepEqual(got, []string{"landcover.nc"}) {
		t.Errorf("got %v", got)
	}
}

func TestOpenBucketInvalid(t *testing.T) {
	if _, err := OpenBucket(context.Background(), "ftp://bucket"); err == nil {
		t.Error("want an error for an invalid provider")
	}
}

func TestMaybeUpload(t *testing.T) {
	var u uploader
	if p := u.maybeUpload("/data/out/DensityRaster.nc"); p != "/data/out/DensityRaster.nc" {
		t.Errorf("local path changed to %s", p)
	}
	p := u.maybeUpload(outputPath("gs://bucket/run1/", "PopTable.shp"))
	if u.err != nil {
		t.Fatal(u.err)
	}
	if p != filepath.Join(u.dir, "PopTable.shp") {
		t.Errorf("staged path %s", p)
	}
	if len(u.files) != 4 {
		t.Fatalf("got %d staged files; want 4", len(u.files))
	}
	if u.files[1] != [2]string{filepath.Join(u.dir, "PopTable.dbf"), "gs://bucket/run1/PopTable.dbf"} {
		t.Errorf("staged %v", u.files[1])
	}
	os.RemoveAll(u.dir)
}
