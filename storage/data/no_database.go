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

package data

import (
	"context"

	"github.com/reelsense/reelsense/dataset"
)

// NoDatabase is used when no data store is configured.
type NoDatabase struct{}

func (NoDatabase) Init() error {
	return ErrNoDatabase
}

func (NoDatabase) Ping() error {
	return ErrNoDatabase
}

func (NoDatabase) Close() error {
	return ErrNoDatabase
}

func (NoDatabase) Purge() error {
	return ErrNoDatabase
}

func (NoDatabase) BatchInsertMovies(_ context.Context, _ []dataset.Movie) error {
	return ErrNoDatabase
}

func (NoDatabase) BatchInsertRatings(_ context.Context, _ []dataset.Rating) error {
	return ErrNoDatabase
}

func (NoDatabase) GetMovie(_ context.Context, _ int32) (dataset.Movie, error) {
	return dataset.Movie{}, ErrNoDatabase
}

func (NoDatabase) GetMovies(_ context.Context) ([]dataset.Movie, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) CountRatings(_ context.Context) (int, error) {
	return 0, ErrNoDatabase
}

func (NoDatabase) GetRatingStream(_ context.Context, _ int) (chan []dataset.Rating, chan error) {
	ratingChan := make(chan []dataset.Rating)
	errChan := make(chan error, 1)
	close(ratingChan)
	errChan <- ErrNoDatabase
	close(errChan)
	return ratingChan, errChan
}
