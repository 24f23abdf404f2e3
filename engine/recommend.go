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
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/reelsense/reelsense/config"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/logics"
)

// diversifyFactor scales the candidates fetched before re-ranking.
const diversifyFactor = 3

// RecommendOptions controls a single recommendation request.
type RecommendOptions struct {
	N         int
	CFWeight  float32
	PoolCap   int
	Diversify bool
	Lambda    float32
	// Diversity enables genre, decade and long-tail constraints when
	// diversifying. Nil means plain MMR.
	Diversity *logics.DiversityOptions
	Context   string
	Device    string
	Explain   bool
}

// DefaultRecommendOptions derives request options from a configuration.
func DefaultRecommendOptions(cfg *config.Config) RecommendOptions {
	if cfg == nil {
		cfg = config.GetDefaultConfig()
	}
	options := RecommendOptions{
		N:         cfg.Recommend.TopK,
		CFWeight:  cfg.Recommend.CFWeight,
		PoolCap:   cfg.Recommend.PoolCap,
		Diversify: cfg.Diversity.Enable,
		Lambda:    cfg.Diversity.Lambda,
	}
	if cfg.Diversity.Enable {
		diversity := cfg.Diversity.DiversityOptions
		options.Diversity = &diversity
	}
	return options
}

func (options *RecommendOptions) validate() error {
	if options.N < 0 {
		return errors.NotValidf("n %d", options.N)
	}
	if options.CFWeight < 0 || options.CFWeight > 1 {
		return errors.NotValidf("cf weight %v", options.CFWeight)
	}
	if options.Lambda < 0 || options.Lambda > 1 {
		return errors.NotValidf("lambda %v", options.Lambda)
	}
	if !logics.ValidContext(options.Context, options.Device) {
		return errors.NotValidf("context %q on device %q", options.Context, options.Device)
	}
	return nil
}

// Recommendation is a recommended movie with its scores.
type Recommendation struct {
	logics.Candidate
	Movie       dataset.Movie       `json:"movie"`
	Explanation *logics.Explanation `json:"explanation,omitempty"`
}

// Recommend returns the top n movies for a user. Hybrid scores are adjusted
// by the viewing context, then re-ranked for diversity if asked, and finally
// explained if asked.
func (e *Engine) Recommend(userId int32, options RecommendOptions) ([]Recommendation, error) {
	if err := e.Ready(); err != nil {
		return nil, err
	}
	if err := options.validate(); err != nil {
		return nil, err
	}
	if options.N == 0 {
		return []Recommendation{}, nil
	}
	fetch := options.N
	if options.Diversify || options.Context != "" || options.Device != "" {
		fetch *= diversifyFactor
	}
	candidates, err := e.recommender.Recommend(userId, fetch, options.CFWeight, options.PoolCap)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if options.Context != "" || options.Device != "" {
		for i := range candidates {
			movie, _ := e.Dataset.GetMovie(candidates[i].MovieId)
			candidates[i].Score = logics.AdjustByContext(candidates[i].Score, movie.Genres, options.Context, options.Device)
		}
		logics.SortCandidates(candidates)
	}
	if options.Diversify {
		var diversity *logics.Diversity
		if options.Diversity != nil {
			diversity = &logics.Diversity{
				Options:    *options.Diversity,
				Catalog:    e.Dataset,
				UserGenres: e.userGenres(userId),
			}
		}
		candidates = logics.RerankWithDiversity(candidates, options.N, options.Lambda, e.Content.Similarity, diversity)
	} else if len(candidates) > options.N {
		candidates = candidates[:options.N]
	}
	recommendations := make([]Recommendation, len(candidates))
	for i, candidate := range candidates {
		recommendations[i].Candidate = candidate
		recommendations[i].Movie, _ = e.Dataset.GetMovie(candidate.MovieId)
		if options.Explain {
			explanation, err := e.recommender.Explain(userId, candidate.MovieId, options.CFWeight)
			if err != nil {
				return nil, errors.Trace(err)
			}
			recommendations[i].Explanation = &explanation
		}
	}
	return recommendations, nil
}

// RecommendIds returns only the movie ids of Recommend.
func (e *Engine) RecommendIds(userId int32, options RecommendOptions) ([]int32, error) {
	recommendations, err := e.Recommend(userId, options)
	if err != nil {
		return nil, err
	}
	ids := make([]int32, len(recommendations))
	for i, r := range recommendations {
		ids[i] = r.MovieId
	}
	return ids, nil
}

func (e *Engine) userGenres(userId int32) mapset.Set[string] {
	genres := mapset.NewThreadUnsafeSet[string]()
	for _, r := range e.Dataset.GetUserRatings(userId) {
		if movie, ok := e.Dataset.GetMovie(r.MovieId); ok {
			genres.Append(movie.Genres...)
		}
	}
	return genres
}

// Popular returns the most rated movies.
func (e *Engine) Popular(n int) ([]dataset.Movie, error) {
	if err := e.Ready(); err != nil {
		return nil, err
	}
	return logics.Popular(e.Dataset, n), nil
}

// TopRated returns the best rated movies among those with at least
// minRatings ratings.
func (e *Engine) TopRated(n, minRatings int) ([]dataset.Movie, error) {
	if err := e.Ready(); err != nil {
		return nil, err
	}
	return logics.TopRated(e.Dataset, n, minRatings), nil
}
