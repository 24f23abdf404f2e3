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
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/reelsense/reelsense/model/content"
	"github.com/samber/lo"
)

const (
	maxOverlapGenres = 3
	numSimilarTitles = 3
	lesserKnown      = 10
	belowAverage     = 3.0
)

// TrustMetrics exposes the numbers behind an explanation.
type TrustMetrics struct {
	CFScore       float32  `json:"cf_score"`
	ContentScore  float32  `json:"content_score"`
	Confidence    float32  `json:"confidence"`
	GenreOverlap  []string `json:"genre_overlap"`
	SimilarTitles []string `json:"similar_titles"`
}

// Explanation is a multi-level rationale of a recommendation.
type Explanation struct {
	UserId          int32        `json:"user_id"`
	MovieId         int32        `json:"movie_id"`
	Title           string       `json:"title"`
	PredictedRating float32      `json:"predicted_rating"`
	Score           float32      `json:"score"`
	Simple          string       `json:"simple"`
	Intermediate    string       `json:"intermediate"`
	Advanced        string       `json:"advanced"`
	WhyNot          string       `json:"why_not,omitempty"`
	Confidence      float32      `json:"confidence"`
	Trust           TrustMetrics `json:"trust"`
}

// Explain tells a user why a movie is recommended.
func (r *Recommender) Explain(userId, movieId int32, cfWeight float32) (Explanation, error) {
	if err := r.Ready(); err != nil {
		return Explanation{}, err
	}
	movie, ok := r.dataset.GetMovie(movieId)
	if !ok {
		return Explanation{}, errors.NotFoundf("movie %d", movieId)
	}
	profile := r.Profile(userId)
	candidate := r.Score(userId, movieId, profile, cfWeight)
	predicted := r.cf.Predict(userId, movieId)
	explanation := Explanation{
		UserId:          userId,
		MovieId:         movieId,
		Title:           movie.Title,
		PredictedRating: predicted,
		Score:           candidate.Score,
		Confidence:      min(1, candidate.Score*1.1),
	}
	explanation.Trust = TrustMetrics{
		CFScore:      candidate.CFScore,
		ContentScore: candidate.ContentScore,
		Confidence:   explanation.Confidence,
		GenreOverlap: []string{},
		SimilarTitles: lo.FilterMap(r.content.TopKSimilar(movieId, numSimilarTitles), func(n content.Neighbor, _ int) (string, bool) {
			similar, ok := r.dataset.GetMovie(n.MovieId)
			return similar.Title, ok
		}),
	}

	genres := strings.Join(movie.Genres, ", ")
	switch {
	case len(profile) == 0:
		explanation.Simple = fmt.Sprintf("'%s' is popular with viewers like you.", movie.Title)
		explanation.Intermediate = fmt.Sprintf("You have not rated any movies yet, so we recommend '%s', a well received %s film.", movie.Title, genres)
	default:
		liked, overlap := r.findOverlap(profile, movie.Genres)
		explanation.Trust.GenreOverlap = overlap
		if len(overlap) > 0 {
			explanation.Simple = fmt.Sprintf("Because you liked '%s'.", liked)
			explanation.Intermediate = fmt.Sprintf("Because you liked '%s', we recommend '%s' which shares the genres: %s.",
				liked, movie.Title, strings.Join(overlap, ", "))
		} else {
			explanation.Simple = "Matches your viewing patterns."
			explanation.Intermediate = fmt.Sprintf("We recommend '%s' because it matches your personal movie preferences and popular trends.", movie.Title)
		}
	}
	explanation.Advanced = fmt.Sprintf("Hybrid score %.3f = %.2f x collaborative %.3f (predicted rating %.1f) + %.2f x content %.3f (mean similarity to your top %d rated movies).",
		candidate.Score, cfWeight, candidate.CFScore, predicted, 1-cfWeight, candidate.ContentScore, r.ProfileSize)

	switch {
	case predicted < belowAverage:
		explanation.WhyNot = fmt.Sprintf("Predicted rating (%.1f) is below average for your taste.", predicted)
	case movie.NumRatings < lesserKnown:
		explanation.WhyNot = "This is a lesser-known film with few ratings, so the prediction is less certain."
	}
	return explanation, nil
}

// findOverlap returns the first liked movie sharing genres with the
// candidate, and the shared genres in the order of the candidate.
func (r *Recommender) findOverlap(profile []int32, genres []string) (string, []string) {
	for _, movieId := range profile {
		liked, ok := r.dataset.GetMovie(movieId)
		if !ok {
			continue
		}
		likedGenres := mapset.NewThreadUnsafeSet(liked.Genres...)
		overlap := lo.Filter(genres, func(genre string, _ int) bool {
			return likedGenres.Contains(genre)
		})
		if len(overlap) > 0 {
			return liked.Title, overlap[:min(maxOverlapGenres, len(overlap))]
		}
	}
	return "", nil
}
