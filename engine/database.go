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
	"context"

	"github.com/juju/errors"
	"github.com/reelsense/reelsense/base/log"
	"github.com/reelsense/reelsense/base/progress"
	"github.com/reelsense/reelsense/config"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/storage/data"
	"go.uber.org/zap"
)

// Import writes a MovieLens snapshot into a database in batches.
func Import(ctx context.Context, database data.Database, ml *dataset.MovieLens, batchSize int) error {
	if batchSize <= 0 {
		batchSize = data.DefaultBatchSize
	}
	ctx, span := progress.Start(ctx, "Import", len(ml.Movies)+len(ml.Ratings))
	defer span.End()
	for i := 0; i < len(ml.Movies); i += batchSize {
		batch := ml.Movies[i:min(i+batchSize, len(ml.Movies))]
		if err := database.BatchInsertMovies(ctx, batch); err != nil {
			span.Fail(err)
			return errors.Trace(err)
		}
		span.Add(len(batch))
	}
	for i := 0; i < len(ml.Ratings); i += batchSize {
		batch := ml.Ratings[i:min(i+batchSize, len(ml.Ratings))]
		if err := database.BatchInsertRatings(ctx, batch); err != nil {
			span.Fail(err)
			return errors.Trace(err)
		}
		span.Add(len(batch))
	}
	log.Logger().Info("import movielens",
		zap.Int("n_movies", len(ml.Movies)),
		zap.Int("n_ratings", len(ml.Ratings)))
	return nil
}

// TrainFromDatabase trains an engine on the catalog and ratings stored in a
// database.
func TrainFromDatabase(ctx context.Context, database data.Database, cfg *config.Config) (*Engine, *TrainResult, error) {
	movies, err := database.GetMovies(ctx)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	ratings, err := data.GetRatings(ctx, database, data.DefaultBatchSize)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	log.Logger().Info("load training data",
		zap.Int("n_movies", len(movies)),
		zap.Int("n_ratings", len(ratings)))
	return Train(ctx, ratings, movies, cfg)
}
