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
	"github.com/reelsense/reelsense/base/progress"
	"github.com/reelsense/reelsense/config"
	"github.com/reelsense/reelsense/evaluator"
	"github.com/reelsense/reelsense/logics"
)

// Names of the recommenders compared by Evaluate.
const (
	HybridName    = "hybrid"
	HybridMMRName = "hybrid_mmr"
	PopularName   = "popular"
)

// Evaluate compares the hybrid recommender with and without diversity
// re-ranking against a popularity baseline on the held out ratings.
func (e *Engine) Evaluate(ctx context.Context, cfg *config.Config) (*evaluator.Report, error) {
	if err := e.Ready(); err != nil {
		return nil, err
	}
	if len(e.TestSet) == 0 {
		return nil, errors.NotValidf("empty test set")
	}
	if cfg == nil {
		cfg = config.GetDefaultConfig()
	}
	ctx, span := progress.Start(ctx, "Evaluate", 1)
	defer span.End()

	harness := evaluator.NewHarness(e.Dataset, e.Content.Similarity)
	harness.TopK = cfg.Recommend.TopK
	harness.NumUsers = cfg.Evaluation.NumUsers
	harness.RandomState = int64(cfg.Evaluation.RandomState)
	harness.Jobs = cfg.Model.Jobs
	harness.LongTailThreshold = cfg.Diversity.LongTailThreshold

	hybrid := DefaultRecommendOptions(cfg)
	hybrid.Diversify, hybrid.Diversity = false, nil
	diversified := hybrid
	diversified.Diversify = true
	options := cfg.Diversity.DiversityOptions
	diversified.Diversity = &options
	report, err := harness.Evaluate(ctx, e.TestSet,
		evaluator.Recommender{Name: HybridName, Recommend: e.recommendFunc(hybrid)},
		evaluator.Recommender{Name: HybridMMRName, Recommend: e.recommendFunc(diversified)},
		evaluator.Recommender{Name: PopularName, Recommend: e.popularFunc()},
	)
	if err != nil {
		span.Fail(err)
		return nil, errors.Trace(err)
	}
	accuracy := e.CF.Evaluate(e.TestSet)
	report.Accuracy = &accuracy
	span.Add(1)
	return report, nil
}

func (e *Engine) recommendFunc(options RecommendOptions) evaluator.RecommendFunc {
	return func(_ context.Context, userId int32, k int) ([]int32, error) {
		opts := options
		opts.N = k
		return e.RecommendIds(userId, opts)
	}
}

// popularFunc recommends the most rated movies a user has not rated.
func (e *Engine) popularFunc() evaluator.RecommendFunc {
	popular := logics.Popular(e.Dataset, e.Dataset.CountMovies())
	return func(_ context.Context, userId int32, k int) ([]int32, error) {
		var ids []int32
		for _, movie := range popular {
			if len(ids) >= k {
				break
			}
			if !e.Dataset.IsRated(userId, movie.MovieId) {
				ids = append(ids, movie.MovieId)
			}
		}
		return ids, nil
	}
}
