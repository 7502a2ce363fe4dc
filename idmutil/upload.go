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
	"fmt"
	"io"
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-cloud/blob"
)

// uploader stages output files bound for blob storage in a local
// directory and copies them to their destination after the run.
type uploader struct {
	// files holds pairs of local file paths and the blob storage paths
	// they should be uploaded to.
	files [][2]string
	err   error
	dir   string
}

// outputPath returns the location of the output file name within dir,
// which may be a local directory or a blob location.
func outputPath(dir, name string) string {
	if IsBlob(dir) {
		return strings.TrimSuffix(dir, "/") + "/" + name
	}
	return filepath.Join(dir, name)
}

// maybeUpload checks whether path refers to a blob storage location. If
// it does, a temporary local path is returned and the file will be
// uploaded when upload is called. Otherwise, path is returned unchanged.
func (u *uploader) maybeUpload(path string) string {
	if u.err != nil {
		return ""
	}
	if !IsBlob(path) {
		return path
	}
	if u.dir == "" {
		u.dir, u.err = ioutil.TempDir("", "idm")
		if u.err != nil {
			return ""
		}
	}
	files := expandShp(path)
	for _, f := range files {
		u.files = append(u.files, [2]string{
			filepath.Join(u.dir, filepath.Base(f)),
			f,
		})
	}
	return filepath.Join(u.dir, filepath.Base(files[0]))
}

// upload copies the staged files to blob storage. Staged files that were
// never written, such as an optional .prj file, are skipped.
func (u *uploader) upload(ctx context.Context) error {
	if u.err != nil {
		return u.err
	}
	for _, files := range u.files {
		if err := uploadFile(ctx, files[0], files[1]); err != nil {
			return err
		}
	}
	return nil
}

func uploadFile(ctx context.Context, local, remote string) error {
	r, err := os.Open(local)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("idmutil: opening file '%s' for upload: %w", local, err)
	}
	defer r.Close()
	u, err := url.Parse(remote)
	if err != nil {
		return fmt.Errorf("idmutil: parsing url '%s' for upload: %w", remote, err)
	}
	bucket, err := OpenBucket(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return fmt.Errorf("idmutil: opening bucket to upload file '%s': %w", remote, err)
	}
	w, err := bucket.NewWriter(ctx, strings.TrimPrefix(u.Path, "/"), &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("idmutil: opening writer to upload file '%s': %w", remote, err)
	}
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("idmutil: uploading file '%s' to '%s': %w", local, remote, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("idmutil: uploading file '%s' to '%s': %w", local, remote, err)
	}
	return nil
}
