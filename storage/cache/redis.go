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
	"time"

	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
	"github.com/reelsense/reelsense/storage"
)

// Redis cache storage.
type Redis struct {
	storage.TablePrefix
	client *redis.Client
	ttl    time.Duration
}

// Close redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Ping() error {
	return r.client.Ping(context.Background()).Err()
}

// Get returns a value from Redis.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.Key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Annotate(ErrObjectNotExist, key)
		}
		return nil, errors.Trace(err)
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = r.ttl
	}
	return errors.Trace(r.client.Set(ctx, r.Key(key), value, ttl).Err())
}

// Purge deletes keys under the table prefix. Without a prefix the whole
// database is flushed.
func (r *Redis) Purge(ctx context.Context) error {
	if r.TablePrefix == "" {
		return errors.Trace(r.client.FlushDB(ctx).Err())
	}
	iter := r.client.Scan(ctx, 0, r.Key("*"), 1000).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 1000 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return errors.Trace(err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return errors.Trace(err)
	}
	if len(keys) > 0 {
		return errors.Trace(r.client.Del(ctx, keys...).Err())
	}
	return nil
}
