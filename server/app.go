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

package server

import (
	"context"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/reelsense/reelsense/base/log"
	"github.com/reelsense/reelsense/base/progress"
	"github.com/reelsense/reelsense/config"
	"github.com/reelsense/reelsense/engine"
	"github.com/reelsense/reelsense/storage/blob"
	"github.com/reelsense/reelsense/storage/cache"
	"github.com/reelsense/reelsense/storage/data"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// App is the application context shared by request handlers. The serving
// engine is swapped atomically so that requests never wait for training.
type App struct {
	Config      *config.Config
	DataClient  data.Database
	CacheClient cache.Database
	BlobStore   blob.Store
	Tracer      *progress.Tracer

	engine     atomic.Pointer[engine.Engine]
	generation atomic.Int64
	trainLock  sync.Mutex
}

func NewApp(cfg *config.Config) *App {
	return &App{
		Config:      cfg,
		DataClient:  data.NoDatabase{},
		CacheClient: cache.NewLocal(cfg.Cache.TTL, cfg.Cache.Capacity),
		Tracer:      progress.NewTracer("reelsense"),
	}
}

// Engine returns the serving engine or ErrModelNotReady if none is loaded.
func (a *App) Engine() (*engine.Engine, error) {
	e := a.engine.Load()
	if err := e.Ready(); err != nil {
		return nil, err
	}
	return e, nil
}

// Generation counts engine swaps. Cached responses are keyed by it, so a
// response computed by a replaced engine is never served after a swap.
func (a *App) Generation() int64 {
	return a.generation.Load()
}

// Swap replaces the serving engine and purges cached responses.
func (a *App) Swap(e *engine.Engine) {
	a.engine.Store(e)
	a.generation.Inc()
	if e != nil {
		ModelReady.Set(1)
	} else {
		ModelReady.Set(0)
	}
	if a.CacheClient != nil {
		if err := a.CacheClient.Purge(context.Background()); err != nil {
			log.Logger().Warn("failed to purge cache", zap.Error(err))
		}
	}
}

// Retrain trains a new engine from the data store, saves a snapshot and
// swaps it in. Concurrent retraining is rejected.
func (a *App) Retrain(ctx context.Context) (*engine.TrainResult, error) {
	if !a.trainLock.TryLock() {
		return nil, errors.AlreadyExistsf("training job")
	}
	defer a.trainLock.Unlock()
	ctx, span := a.Tracer.Start(ctx, "Retrain", 1)
	defer span.End()
	start := time.Now()
	e, result, err := engine.TrainFromDatabase(ctx, a.DataClient, a.Config)
	if err != nil {
		span.Fail(err)
		return nil, errors.Trace(err)
	}
	TrainSeconds.Observe(time.Since(start).Seconds())
	if a.BlobStore != nil {
		if _, err = e.SaveToBlob(a.BlobStore, engine.DefaultKeepSnapshots); err != nil {
			log.Logger().Error("failed to save snapshot", zap.Error(err))
		}
	}
	a.Swap(e)
	span.Add(1)
	return result, nil
}

// Reload swaps in the latest snapshot of the blob store.
func (a *App) Reload(ctx context.Context) error {
	if a.BlobStore == nil {
		return errors.NotAssignedf("blob store")
	}
	e, err := engine.LoadFromBlob(ctx, a.BlobStore, a.Config.Recommend.ProfileSize)
	if err != nil {
		return errors.Trace(err)
	}
	a.Swap(e)
	return nil
}
