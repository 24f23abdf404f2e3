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

package cache

import (
	"context"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/reelsense/reelsense/base/log"
	"github.com/reelsense/reelsense/storage"
	"go.uber.org/zap"
)

const (
	Recommendations = "recommendations"
	SimilarMovies   = "similar_movies"
	Explanations    = "explanations"
	Predictions     = "predictions"
	Profiles        = "profiles"
)

var ErrObjectNotExist = errors.NotFoundf("object")

// Key creates a cache key from a namespace and its components.
func Key(namespace string, parts ...string) string {
	if len(parts) == 0 {
		return namespace
	}
	return namespace + "/" + strings.Join(parts, "/")
}

// Database caches rendered responses between model swaps.
type Database interface {
	Close() error
	Ping() error
	// Get returns ErrObjectNotExist if the key is missing or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value. A zero ttl keeps the default expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Purge drops every cached value.
	Purge(ctx context.Context) error
}

// Open a cache. An empty path keeps values in process memory.
func Open(path, tablePrefix string, ttl time.Duration, capacity uint64) (Database, error) {
	if path == "" {
		return NewLocal(ttl, capacity), nil
	}
	if strings.HasPrefix(path, storage.RedisPrefix) || strings.HasPrefix(path, storage.RedissPrefix) {
		opt, err := redis.ParseURL(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		database := new(Redis)
		database.client = redis.NewClient(opt)
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		database.ttl = ttl
		if err = redisotel.InstrumentTracing(database.client); err != nil {
			log.Logger().Warn("failed to instrument redis tracing", zap.Error(err))
		}
		return database, nil
	}
	return nil, errors.NotSupportedf("cache %s", path)
}
