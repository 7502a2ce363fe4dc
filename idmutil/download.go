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
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cenkalti/backoff"
	"github.com/google/go-cloud/blob"
	"github.com/google/go-cloud/blob/fileblob"
	"github.com/google/go-cloud/blob/gcsblob"
	"github.com/google/go-cloud/blob/s3blob"
	"github.com/google/go-cloud/gcp"
	"github.com/sirupsen/logrus"
)

// downloadRetries is the number of times a failed download is retried.
const downloadRetries = 4

// maybeDownload checks if path is an existing local file. If not, and
// path is a URL or blob location, the file is downloaded to a temporary
// directory and the local path is returned. For shapefiles, the
// associated .dbf, .shx and .prj files are downloaded as well. Other paths
// are returned unchanged.
func maybeDownload(ctx context.Context, path string, log logrus.FieldLogger) (string, error) {
	if path == "" {
		return path, nil
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path, nil
	}

	var get func(ctx context.Context, remote string) (io.ReadCloser, error)
	var files []string
	switch {
	case strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://"):
		get = getHTTP
		files = expandShp(path)
	case IsBlob(path):
		u, err := url.Parse(path)
		if err != nil {
			return path, fmt.Errorf("idmutil: parsing blob location %s: %w", path, err)
		}
		bucket, err := OpenBucket(ctx, u.Scheme+"://"+u.Host)
		if err != nil {
			return path, err
		}
		get = func(ctx context.Context, remote string) (io.ReadCloser, error) {
			u, err := url.Parse(remote)
			if err != nil {
				return nil, err
			}
			return bucket.NewReader(ctx, strings.TrimPrefix(u.Path, "/"))
		}
		files = expandShp(path)
	default:
		return path, nil
	}

	dir, err := ioutil.TempDir("", "idm")
	if err != nil {
		return path, fmt.Errorf("idmutil: creating temporary download directory: %w", err)
	}
	for _, remote := range files {
		local := filepath.Join(dir, filepath.Base(remote))
		if remote != files[0] && filepath.Ext(remote) == ".prj" {
			// Shapefiles do not need to have a projection file.
			if err := fetch(ctx, get, remote, local); err != nil {
				os.Remove(local)
				log.WithField("file", remote).Warn("projection file not found")
			}
			continue
		}
		op := func() error { return fetch(ctx, get, remote, local) }
		b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), downloadRetries), ctx)
		notify := func(err error, d time.Duration) {
			log.WithField("file", remote).Warnf("%v: retrying in %v", err, d)
		}
		if err := backoff.RetryNotify(op, b, notify); err != nil {
			return path, fmt.Errorf("idmutil: downloading %s: %w", remote, err)
		}
		log.WithField("file", remote).Debug("downloaded")
	}
	return filepath.Join(dir, filepath.Base(files[0])), nil
}

// fetch copies the remote file to local using get.
func fetch(ctx context.Context, get func(context.Context, string) (io.ReadCloser, error), remote, local string) error {
	r, err := get(ctx, remote)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := os.Create(local)
	if err != nil {
		return err
	}
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func getHTTP(ctx context.Context, remote string) (io.ReadCloser, error) {
	req, err := http.NewRequest(http.MethodGet, remote, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %s", remote, resp.Status)
	}
	return resp.Body, nil
}

// IsBlob returns whether the given filename represents a blob.
// (i.e., if it starts with `gs://`, 's3://', or 'file://').
func IsBlob(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

// OpenBucket returns the blob storage bucket specified by bucketName,
// where bucketName must be in the format 'provider://name'. Only the host
// part of the name is used.
// The accepted storage providers are "file" for the local filesystem,
// "gs" for Google Cloud Storage, and "s3" for AWS S3.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	u, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("idmutil: opening bucket: %w", err)
	}
	switch u.Scheme {
	case "file":
		return fileblob.NewBucket(u.Hostname())
	case "gs":
		return gsBucket(ctx, u.Hostname())
	case "s3":
		return s3Bucket(ctx, u.Hostname())
	default:
		return nil, fmt.Errorf("idmutil: invalid storage provider %q", u.Scheme)
	}
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, name, c)
}

// s3Bucket opens an s3 storage bucket using the AWS_REGION,
// AWS_ACCESS_KEY_ID, and AWS_SECRET_ACCESS_KEY environment variables.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	s, err := session.NewSession(c)
	if err != nil {
		return nil, err
	}
	return s3blob.OpenBucket(ctx, s, name)
}

// expandShp returns the given file + associated [.dbf, .shx, .prj]
// files if the given file has the .shp extension, and returns the given
// file otherwise
func expandShp(filename string) []string {
	o := []string{filename}
	if filepath.Ext(filename) != ".shp" {
		return o
	}
	base := strings.TrimSuffix(filename, ".shp")
	for _, ext := range []string{".dbf", ".shx", ".prj"} {
		o = append(o, base+ext)
	}
	return o
}
