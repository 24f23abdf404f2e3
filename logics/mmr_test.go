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
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
)

func noSimilarity(_, _ int32) float32 {
	return 0
}

func TestRerank(t *testing.T) {
	assert.Empty(t, Rerank(nil, 10, DefaultLambda, noSimilarity))
	candidates := []Candidate{
		{MovieId: 1, Score: 0.9},
		{MovieId: 2, Score: 0.85},
		{MovieId: 3, Score: 0.5},
	}
	assert.Empty(t, Rerank(candidates, 0, DefaultLambda, noSimilarity))
	// k larger than the number of candidates
	assert.Equal(t, []int32{1, 2, 3}, movieIds(Rerank(candidates, 10, DefaultLambda, noSimilarity)))

	similarity := func(a, b int32) float32 {
		if (a == 1 && b == 2) || (a == 2 && b == 1) {
			return 1
		}
		return 0
	}
	// 0.5 * 0.85 - 0.5 * 1 < 0.5 * 0.5
	assert.Equal(t, []int32{1, 3, 2}, movieIds(Rerank(candidates, 3, DefaultLambda, similarity)))
	assert.Equal(t, []int32{1, 3}, movieIds(Rerank(candidates, 2, DefaultLambda, similarity)))
	// pure relevance
	assert.Equal(t, []int32{1, 2, 3}, movieIds(Rerank(candidates, 3, 1, similarity)))
	// the input is not modified
	assert.Equal(t, []int32{1, 2, 3}, movieIds(candidates))

	// the most relevant candidate is the seed and ties go to the earlier one
	assert.Equal(t, []int32{2, 1, 3}, movieIds(Rerank([]Candidate{
		{MovieId: 1, Score: 0.2},
		{MovieId: 2, Score: 0.9},
		{MovieId: 3, Score: 0.2},
	}, 3, DefaultLambda, noSimilarity)))
}

func pairSimilarity(pairs map[[2]int32]float32) Similarity {
	return func(a, b int32) float32 {
		if sim, ok := pairs[[2]int32{a, b}]; ok {
			return sim
		}
		return pairs[[2]int32{b, a}]
	}
}

func TestRerank_Redundancy(t *testing.T) {
	similarity := pairSimilarity(map[[2]int32]float32{{1, 2}: 0.95})
	candidates := []Candidate{
		{MovieId: 1, Score: 0.9},
		{MovieId: 2, Score: 0.88},
		{MovieId: 3, Score: 0.8},
		{MovieId: 4, Score: 0.6},
		{MovieId: 5, Score: 0.5},
	}
	// the near duplicate of the seed leaves the top 3
	top := movieIds(Rerank(candidates, 3, 0.3, similarity))
	assert.Equal(t, []int32{1, 3, 4}, top)
	assert.NotContains(t, top, int32(2))
	// it stays when there are not enough dissimilar candidates
	assert.Equal(t, []int32{1, 3, 2}, movieIds(Rerank(candidates[:3], 3, 0.3, similarity)))
}

func TestRerank_ZeroLambda(t *testing.T) {
	similarity := pairSimilarity(map[[2]int32]float32{
		{1, 2}: 0.6,
		{1, 3}: 0.2,
		{3, 4}: 0.5,
	})
	candidates := []Candidate{
		{MovieId: 1, Score: 0.9},
		{MovieId: 2, Score: 0.8},
		{MovieId: 3, Score: 0.7},
		{MovieId: 4, Score: 0.1},
	}
	// relevance only picks the seed, then redundancy is minimized
	assert.Equal(t, []int32{1, 4, 3, 2}, movieIds(Rerank(candidates, 4, 0, similarity)))
}

func TestRerankWithDiversity(t *testing.T) {
	d := newTestDataset()
	candidates := []Candidate{
		{MovieId: 1, Score: 0.9},
		{MovieId: 2, Score: 0.8},
		{MovieId: 3, Score: 0.7},
	}
	options := DefaultDiversityOptions()
	options.Serendipity = false
	assert.Equal(t, []int32{1, 2, 3}, movieIds(RerankWithDiversity(candidates, 3, DefaultLambda, noSimilarity, nil)))
	// the second action movie exceeds the genre ratio
	assert.Equal(t, []int32{1, 3, 2}, movieIds(RerankWithDiversity(candidates, 3, DefaultLambda, noSimilarity,
		&Diversity{Options: options, Catalog: d})))

	// a new decade wins a tie
	assert.Equal(t, []int32{3, 4, 6}, movieIds(RerankWithDiversity([]Candidate{
		{MovieId: 3, Score: 0.9},
		{MovieId: 6, Score: 0.5},
		{MovieId: 4, Score: 0.5},
	}, 3, DefaultLambda, noSimilarity, &Diversity{Options: DiversityOptions{DecadeBonus: 0.1, MaxGenreRatio: 1}, Catalog: d})))
}

func TestRerankWithDiversity_Serendipity(t *testing.T) {
	d := newTestDataset()
	candidates := []Candidate{
		{MovieId: 1, Score: 0.9},
		{MovieId: 2, Score: 0.8},
		{MovieId: 3, Score: 0.7},
		{MovieId: 4, Score: 0.6},
		{MovieId: 6, Score: 0.5},
		{MovieId: 5, Score: 0.1},
	}
	options := DiversityOptions{
		MaxGenreRatio:     1,
		Serendipity:       true,
		SerendipityWindow: 20,
		SerendipityGenres: DefaultDiversityOptions().SerendipityGenres,
	}
	selected := RerankWithDiversity(candidates, 5, DefaultLambda, noSimilarity, &Diversity{
		Options:    options,
		Catalog:    d,
		UserGenres: mapset.NewSet("Action", "Crime"),
	})
	assert.Equal(t, []int32{1, 2, 3, 4, 5}, movieIds(selected))

	// every serendipity genre has been explored
	selected = RerankWithDiversity(candidates, 5, DefaultLambda, noSimilarity, &Diversity{
		Options:    options,
		Catalog:    d,
		UserGenres: mapset.NewSet(options.SerendipityGenres...),
	})
	assert.Equal(t, []int32{1, 2, 3, 4, 6}, movieIds(selected))

	// fewer than five items
	selected = RerankWithDiversity(candidates, 4, DefaultLambda, noSimilarity, &Diversity{Options: options, Catalog: d})
	assert.Equal(t, []int32{1, 2, 3, 4}, movieIds(selected))
}

func TestDecade(t *testing.T) {
	d := newTestDataset()
	movie, _ := d.GetMovie(4)
	assert.Equal(t, 2000, Decade(movie))
	movie, _ = d.GetMovie(1)
	assert.Equal(t, 1990, Decade(movie))
	movie.Year = 0
	assert.Equal(t, 2000, Decade(movie))
}
