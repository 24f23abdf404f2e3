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
	"context"
	"testing"

	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/model/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPredictor struct {
	ratings map[int32]float32
	calls   int
}

func (m *mockPredictor) Predict(_, movieId int32) float32 {
	m.calls++
	if rating, exist := m.ratings[movieId]; exist {
		return rating
	}
	return 3.5
}

type countingScorer struct {
	*content.Model
	calls int
}

func (c *countingScorer) MeanSimilarity(profile []int32, movieId int32) float32 {
	c.calls++
	return c.Model.MeanSimilarity(profile, movieId)
}

func newTestDataset() *dataset.Dataset {
	movies := []dataset.Movie{
		{MovieId: 1, Title: "Heat (1995)", Year: 1995, Genres: []string{"Action", "Crime"}},
		{MovieId: 2, Title: "Ronin (1998)", Year: 1998, Genres: []string{"Action", "Crime"}},
		{MovieId: 3, Title: "Notting Hill (1999)", Year: 1999, Genres: []string{"Comedy", "Romance"}},
		{MovieId: 4, Title: "Amelie (2001)", Year: 2001, Genres: []string{"Comedy", "Romance"}},
		{MovieId: 5, Title: "Microcosmos (1996)", Year: 1996, Genres: []string{"Documentary"}},
		{MovieId: 6, Title: "Toy Story (1995)", Year: 1995, Genres: []string{"Animation", "Children"}},
	}
	ratings := []dataset.Rating{
		{UserId: 1, MovieId: 1, Rating: 5, Timestamp: 1},
		{UserId: 2, MovieId: 2, Rating: 4, Timestamp: 2},
		{UserId: 2, MovieId: 3, Rating: 3, Timestamp: 3},
		{UserId: 2, MovieId: 5, Rating: 2, Timestamp: 4},
		{UserId: 3, MovieId: 2, Rating: 5, Timestamp: 5},
		{UserId: 3, MovieId: 3, Rating: 4, Timestamp: 6},
	}
	return dataset.NewDataset(ratings, movies)
}

func newTestRecommender(t *testing.T) (*Recommender, *mockPredictor, *countingScorer) {
	d := newTestDataset()
	contentModel := content.NewModel(nil)
	require.NoError(t, contentModel.Fit(context.Background(), d.GetMovies()))
	predictor := &mockPredictor{ratings: map[int32]float32{2: 4.5, 3: 2, 4: 3, 5: 5, 6: 1}}
	scorer := &countingScorer{Model: contentModel}
	return NewRecommender(d, predictor, scorer), predictor, scorer
}

func movieIds(candidates []Candidate) []int32 {
	ids := make([]int32, len(candidates))
	for i, c := range candidates {
		ids[i] = c.MovieId
	}
	return ids
}

func TestRecommender_NotReady(t *testing.T) {
	var r *Recommender
	_, err := r.Recommend(1, 10, DefaultCFWeight, DefaultPoolCap)
	assert.ErrorIs(t, err, ErrModelNotReady)
	_, err = NewRecommender(newTestDataset(), nil, nil).Recommend(1, 10, DefaultCFWeight, DefaultPoolCap)
	assert.ErrorIs(t, err, ErrModelNotReady)
	_, err = NewRecommender(dataset.NewDataset(nil, nil), &mockPredictor{}, content.NewModel(nil)).
		Recommend(1, 10, DefaultCFWeight, DefaultPoolCap)
	assert.ErrorIs(t, err, ErrModelNotReady)
	_, err = r.Explain(1, 1, DefaultCFWeight)
	assert.ErrorIs(t, err, ErrModelNotReady)
}

func TestRecommender_Recommend(t *testing.T) {
	r, _, _ := newTestRecommender(t)

	// collaborative filtering only
	candidates, err := r.Recommend(1, 10, 1, DefaultPoolCap)
	require.NoError(t, err)
	assert.Equal(t, []int32{5, 2, 4, 3, 6}, movieIds(candidates))
	assert.InDelta(t, 1, candidates[0].Score, 1e-5)
	assert.InDelta(t, 4.0/4.5, candidates[1].CFScore, 1e-5)

	// content only, ties keep catalog order
	candidates, err = r.Recommend(1, 10, 0, DefaultPoolCap)
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 3, 4, 5, 6}, movieIds(candidates))
	assert.InDelta(t, 1, candidates[0].ContentScore, 1e-5)

	// blended
	candidates, err = r.Recommend(1, 2, 0.5, DefaultPoolCap)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, int32(2), candidates[0].MovieId)
	assert.InDelta(t, 0.5*4/4.5+0.5, candidates[0].Score, 1e-5)
	for _, c := range candidates {
		assert.NotEqual(t, int32(1), c.MovieId)
	}

	candidates, err = r.Recommend(1, 0, 0.5, DefaultPoolCap)
	require.NoError(t, err)
	assert.Empty(t, candidates)
	_, err = r.Recommend(1, 10, 1.5, DefaultPoolCap)
	assert.Error(t, err)
}

func TestRecommender_ColdStart(t *testing.T) {
	r, _, _ := newTestRecommender(t)
	candidates, err := r.Recommend(100, 10, 0.7, DefaultPoolCap)
	require.NoError(t, err)
	// no content profile, ranked by collaborative filtering
	assert.Equal(t, []int32{5, 2, 1, 4, 3, 6}, movieIds(candidates))
	for _, c := range candidates {
		assert.Zero(t, c.ContentScore)
	}
}

func TestRecommender_PoolCap(t *testing.T) {
	r, predictor, scorer := newTestRecommender(t)
	candidates, err := r.Recommend(1, 10, 0.7, 2)
	require.NoError(t, err)
	// the two most rated unrated movies
	assert.ElementsMatch(t, []int32{2, 3}, movieIds(candidates))
	assert.Equal(t, 2, predictor.calls)
	assert.Equal(t, 2, scorer.calls)

	pool := r.Pool(1, 3)
	assert.Equal(t, []int32{2, 3, 5}, []int32{pool[0].MovieId, pool[1].MovieId, pool[2].MovieId})
	assert.Len(t, r.Pool(1, 0), 5)
}

func TestNormalizeRating(t *testing.T) {
	assert.Zero(t, NormalizeRating(dataset.MinRating))
	assert.Equal(t, float32(1), NormalizeRating(dataset.MaxRating))
}
