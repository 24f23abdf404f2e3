// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blob

import (
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/reelsense/reelsense/config"
)

const (
	modelPrefix = "model-"
	modelSuffix = ".bin"
	timeLayout  = "20060102T150405Z"
)

// Store keeps model snapshots as named blobs.
type Store interface {
	// Open a blob for reading.
	Open(name string) (io.ReadCloser, error)
	// Create a blob for writing. The done channel is closed once the blob is
	// persisted after the writer is closed, or discarded after Abort.
	Create(name string) (io.WriteCloser, chan struct{}, error)
	// List names of all blobs.
	List() ([]string, error)
	// Remove a blob.
	Remove(name string) error
}

// Open a blob store by URI:
//
//	s3://bucket/prefix
//	gcs://bucket/prefix
//	azblob://container/prefix
//	/path/to/dir or file:///path/to/dir
func Open(uri string, cfg config.BlobConfig) (Store, error) {
	switch {
	case strings.HasPrefix(uri, "s3://"), strings.HasPrefix(uri, "gcs://"), strings.HasPrefix(uri, "azblob://"):
		u, err := url.Parse(uri)
		if err != nil {
			return nil, errors.Trace(err)
		}
		prefix := strings.TrimPrefix(u.Path, "/")
		switch u.Scheme {
		case "s3":
			return NewS3(cfg.S3, u.Host, prefix)
		case "gcs":
			return NewGCS(cfg.GCS, u.Host, prefix)
		default:
			return NewAzureBlob(cfg.Azure, u.Host, prefix)
		}
	case strings.HasPrefix(uri, "file://"):
		return NewPOSIX(strings.TrimPrefix(uri, "file://")), nil
	case strings.Contains(uri, "://"):
		return nil, errors.NotSupportedf("blob store %s", uri)
	default:
		return NewPOSIX(uri), nil
	}
}

// Abort discards a blob opened by Create. The blob is never committed and
// the done channel is still closed.
func Abort(w io.WriteCloser, cause error) error {
	if cause == nil {
		cause = errors.New("blob write aborted")
	}
	if aborter, ok := w.(interface{ CloseWithError(error) error }); ok {
		return aborter.CloseWithError(cause)
	}
	return w.Close()
}

// ModelName returns the blob name of a model snapshot saved at the given time.
func ModelName(t time.Time) string {
	return modelPrefix + t.UTC().Format(timeLayout) + modelSuffix
}

// IsModelName reports whether a blob holds a model snapshot.
func IsModelName(name string) bool {
	if !strings.HasPrefix(name, modelPrefix) || !strings.HasSuffix(name, modelSuffix) {
		return false
	}
	_, err := time.Parse(timeLayout, strings.TrimSuffix(strings.TrimPrefix(name, modelPrefix), modelSuffix))
	return err == nil
}

// Models lists model snapshots from oldest to latest.
func Models(store Store) ([]string, error) {
	names, err := store.List()
	if err != nil {
		return nil, errors.Trace(err)
	}
	var models []string
	for _, name := range names {
		if IsModelName(name) {
			models = append(models, name)
		}
	}
	sort.Strings(models)
	return models, nil
}

// Latest returns the name of the latest model snapshot.
func Latest(store Store) (string, error) {
	models, err := Models(store)
	if err != nil {
		return "", errors.Trace(err)
	}
	if len(models) == 0 {
		return "", errors.NotFoundf("model snapshot")
	}
	return models[len(models)-1], nil
}

// Prune removes all but the latest keep model snapshots.
func Prune(store Store, keep int) error {
	models, err := Models(store)
	if err != nil {
		return errors.Trace(err)
	}
	for i := 0; i < len(models)-keep; i++ {
		if err = store.Remove(models[i]); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
