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

package logics

import (
	"sort"

	"github.com/juju/errors"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/model/content"
)

const (
	DefaultCFWeight    float32 = 0.7
	DefaultTopK                = 10
	DefaultPoolCap             = 500
	DefaultProfileSize         = 5
)

// Candidate is a scored movie of a recommendation list.
type Candidate struct {
	MovieId      int32   `json:"movie_id"`
	Score        float32 `json:"score"`
	CFScore      float32 `json:"cf_score"`
	ContentScore float32 `json:"content_score"`
}

// RatingPredictor predicts explicit ratings in [0.5, 5].
type RatingPredictor interface {
	Predict(userId, movieId int32) float32
}

// ContentScorer scores a movie against a profile of movies.
type ContentScorer interface {
	MeanSimilarity(profile []int32, movieId int32) float32
	Similarity(a, b int32) float32
	TopKSimilar(movieId int32, k int) []content.Neighbor
}

// Recommender blends collaborative filtering and content similarity.
type Recommender struct {
	dataset     *dataset.Dataset
	cf          RatingPredictor
	content     ContentScorer
	ProfileSize int
}

func NewRecommender(d *dataset.Dataset, cf RatingPredictor, content ContentScorer) *Recommender {
	return &Recommender{
		dataset:     d,
		cf:          cf,
		content:     content,
		ProfileSize: DefaultProfileSize,
	}
}

// Ready returns ErrModelNotReady if any collaborator is missing or the catalog is empty.
func (r *Recommender) Ready() error {
	if r == nil || r.dataset == nil || r.cf == nil || r.content == nil || r.dataset.CountMovies() == 0 {
		return ErrModelNotReady
	}
	return nil
}

// NormalizeRating maps a rating in [0.5, 5] onto [0, 1].
func NormalizeRating(rating float32) float32 {
	return (rating - dataset.MinRating) / (dataset.MaxRating - dataset.MinRating)
}

// Profile returns the movies representing the taste of a user.
func (r *Recommender) Profile(userId int32) []int32 {
	return content.TopRated(r.dataset.GetUserRatings(userId), r.ProfileSize)
}

// Score blends the scores of a single movie for a user.
func (r *Recommender) Score(userId, movieId int32, profile []int32, cfWeight float32) Candidate {
	cfScore := NormalizeRating(r.cf.Predict(userId, movieId))
	contentScore := r.content.MeanSimilarity(profile, movieId)
	return Candidate{
		MovieId:      movieId,
		Score:        cfWeight*cfScore + (1-cfWeight)*contentScore,
		CFScore:      cfScore,
		ContentScore: contentScore,
	}
}

// Pool returns movies the user has not rated. When there are more than
// poolCap of them, the most rated ones are kept in catalog order.
func (r *Recommender) Pool(userId int32, poolCap int) []dataset.Movie {
	var pool []dataset.Movie
	for _, movie := range r.dataset.GetMovies() {
		if !r.dataset.IsRated(userId, movie.MovieId) {
			pool = append(pool, movie)
		}
	}
	if poolCap > 0 && len(pool) > poolCap {
		sort.SliceStable(pool, func(i, j int) bool {
			return pool[i].NumRatings > pool[j].NumRatings
		})
		pool = pool[:poolCap]
	}
	return pool
}

// Recommend returns the top k unrated movies of a user ordered by blended
// score. Users without ratings are ranked by collaborative filtering alone
// since their content profile is empty.
func (r *Recommender) Recommend(userId int32, k int, cfWeight float32, poolCap int) ([]Candidate, error) {
	if err := r.Ready(); err != nil {
		return nil, err
	}
	if cfWeight < 0 || cfWeight > 1 {
		return nil, errors.NotValidf("cf weight %v", cfWeight)
	}
	if k <= 0 {
		return []Candidate{}, nil
	}
	profile := r.Profile(userId)
	pool := r.Pool(userId, poolCap)
	candidates := make([]Candidate, len(pool))
	for i, movie := range pool {
		candidates[i] = r.Score(userId, movie.MovieId, profile, cfWeight)
	}
	SortCandidates(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// SortCandidates orders candidates by descending score, keeping the input
// order of equal scores.
func SortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}
