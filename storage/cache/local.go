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

	"github.com/jellydator/ttlcache/v3"
	"github.com/juju/errors"
)

// Local keeps values in an expiring in-process cache.
type Local struct {
	cache *ttlcache.Cache[string, []byte]
}

func NewLocal(ttl time.Duration, capacity uint64) *Local {
	opts := []ttlcache.Option[string, []byte]{ttlcache.WithTTL[string, []byte](ttl)}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, []byte](capacity))
	}
	local := &Local{cache: ttlcache.New[string, []byte](opts...)}
	go local.cache.Start()
	return local
}

func (l *Local) Close() error {
	l.cache.Stop()
	return nil
}

func (l *Local) Ping() error {
	return nil
}

func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	item := l.cache.Get(key)
	if item == nil {
		return nil, errors.Annotate(ErrObjectNotExist, key)
	}
	return item.Value(), nil
}

func (l *Local) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = ttlcache.DefaultTTL
	}
	l.cache.Set(key, value, ttl)
	return nil
}

func (l *Local) Purge(_ context.Context) error {
	l.cache.DeleteAll()
	return nil
}

// Len returns the number of cached values.
func (l *Local) Len() int {
	return l.cache.Len()
}
