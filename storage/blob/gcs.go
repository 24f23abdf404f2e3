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
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/juju/errors"
	"github.com/reelsense/reelsense/config"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCS(cfg config.GCSConfig, bucket, prefix string) (*GCS, error) {
	var opts []option.ClientOption
	if endpoint := os.Getenv("GCS_EMULATOR_ENDPOINT"); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &GCS{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (g *GCS) Open(name string) (io.ReadCloser, error) {
	path := filepath.Join(g.prefix, name)
	return g.client.Bucket(g.bucket).Object(path).NewReader(context.Background())
}

func (g *GCS) Create(name string) (io.WriteCloser, chan struct{}, error) {
	path := filepath.Join(g.prefix, name)
	ctx, cancel := context.WithCancel(context.Background())
	wc := g.client.Bucket(g.bucket).Object(path).NewWriter(ctx)
	done := make(chan struct{})
	return &gcsWriter{Writer: wc, cancel: cancel, done: done}, done, nil
}

type gcsWriter struct {
	*storage.Writer
	cancel context.CancelFunc
	done   chan struct{}
}

func (w *gcsWriter) Close() error {
	defer close(w.done)
	defer w.cancel()
	return w.Writer.Close()
}

// CloseWithError cancels the upload so that the object is never finalized.
func (w *gcsWriter) CloseWithError(error) error {
	defer close(w.done)
	w.cancel()
	_ = w.Writer.Close()
	return nil
}

func (g *GCS) List() ([]string, error) {
	var names []string
	it := g.client.Bucket(g.bucket).Objects(context.Background(), &storage.Query{
		Prefix: g.prefix,
	})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		name := strings.TrimPrefix(strings.TrimPrefix(attrs.Name, g.prefix), "/")
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func (g *GCS) Remove(name string) error {
	path := filepath.Join(g.prefix, name)
	return g.client.Bucket(g.bucket).Object(path).Delete(context.Background())
}
