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

package engine

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/juju/errors"
	"github.com/reelsense/reelsense/base/encoding"
	"github.com/reelsense/reelsense/base/log"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/model/cf"
	"github.com/reelsense/reelsense/model/content"
	"github.com/reelsense/reelsense/storage/blob"
	"go.uber.org/zap"
)

const (
	snapshotVersion = 1
	// DefaultKeepSnapshots is the number of snapshots kept in a blob store.
	DefaultKeepSnapshots = 3
)

type snapshotHeader struct {
	Version   int
	TrainedAt time.Time
	Score     cf.Score
}

// Save writes the engine to a byte stream.
func (e *Engine) Save(w io.Writer) error {
	if err := e.Ready(); err != nil {
		return err
	}
	if err := encoding.WriteGob(w, snapshotHeader{
		Version:   snapshotVersion,
		TrainedAt: e.TrainedAt,
		Score:     e.Score,
	}); err != nil {
		return errors.Trace(err)
	}
	if err := e.Dataset.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := cf.MarshalModel(w, e.CF); err != nil {
		return errors.Trace(err)
	}
	if err := e.Content.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(encoding.WriteGob(w, e.TestSet))
}

// Load reads an engine written by Save.
func Load(r io.Reader, profileSize int) (*Engine, error) {
	var header snapshotHeader
	if err := encoding.ReadGob(r, &header); err != nil {
		return nil, errors.Trace(err)
	}
	if header.Version != snapshotVersion {
		return nil, errors.NotSupportedf("snapshot version %d", header.Version)
	}
	d, err := dataset.UnmarshalDataset(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	cfModel, err := cf.UnmarshalModel(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	contentModel := content.NewModel(nil)
	if err = contentModel.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	var testSet []dataset.Rating
	if err = encoding.ReadGob(r, &testSet); err != nil {
		return nil, errors.Trace(err)
	}
	e := New(d, cfModel, contentModel, profileSize)
	e.TestSet = testSet
	e.Score = header.Score
	e.TrainedAt = header.TrainedAt
	return e, nil
}

// SaveToBlob writes a timestamped snapshot to a blob store and removes all
// but the latest keep snapshots.
func (e *Engine) SaveToBlob(store blob.Store, keep int) (string, error) {
	name := blob.ModelName(e.TrainedAt)
	w, done, err := store.Create(name)
	if err != nil {
		return "", errors.Trace(err)
	}
	buf := bufio.NewWriter(w)
	if err = e.Save(buf); err == nil {
		err = buf.Flush()
	}
	if err != nil {
		_ = blob.Abort(w, err)
		<-done
		return "", errors.Trace(err)
	}
	if err = w.Close(); err != nil {
		return "", errors.Trace(err)
	}
	<-done
	if keep > 0 {
		if err = blob.Prune(store, keep); err != nil {
			log.Logger().Warn("failed to prune snapshots", zap.Error(err))
		}
	}
	log.Logger().Info("save snapshot", zap.String("name", name))
	return name, nil
}

// LoadFromBlob reads the latest snapshot of a blob store. Transient failures
// are retried. An empty store is reported as not found without retrying.
func LoadFromBlob(ctx context.Context, store blob.Store, profileSize int) (*Engine, error) {
	return backoff.Retry(ctx, func() (*Engine, error) {
		name, err := blob.Latest(store)
		if err != nil {
			if errors.Is(err, errors.NotFound) {
				return nil, backoff.Permanent(err)
			}
			return nil, errors.Trace(err)
		}
		r, err := store.Open(name)
		if err != nil {
			return nil, errors.Trace(err)
		}
		defer r.Close()
		e, err := Load(bufio.NewReader(r), profileSize)
		if err != nil {
			if errors.Is(err, errors.NotSupported) {
				return nil, backoff.Permanent(err)
			}
			return nil, errors.Trace(err)
		}
		log.Logger().Info("load snapshot", zap.String("name", name))
		return e, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))
}
