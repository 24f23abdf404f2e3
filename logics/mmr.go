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
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/reelsense/reelsense/dataset"
	"github.com/samber/lo"
)

const DefaultLambda float32 = 0.5

// Similarity between two movies in [0, 1].
type Similarity func(a, b int32) float32

// DiversityOptions configures the constraints added to MMR.
type DiversityOptions struct {
	MaxGenreRatio     float32  `mapstructure:"max_genre_ratio" validate:"gte=0,lte=1"`
	GenrePenalty      float32  `mapstructure:"genre_penalty" validate:"gte=0"`
	DecadeBonus       float32  `mapstructure:"decade_bonus" validate:"gte=0"`
	LongTailThreshold int      `mapstructure:"long_tail_threshold" validate:"gte=0"`
	LongTailBonus     float32  `mapstructure:"long_tail_bonus" validate:"gte=0"`
	MaxLongTailRatio  float32  `mapstructure:"max_long_tail_ratio" validate:"gte=0,lte=1"`
	Serendipity       bool     `mapstructure:"serendipity"`
	SerendipityWindow int      `mapstructure:"serendipity_window" validate:"gte=0"`
	SerendipityGenres []string `mapstructure:"serendipity_genres"`
}

func DefaultDiversityOptions() DiversityOptions {
	return DiversityOptions{
		MaxGenreRatio:     0.3,
		GenrePenalty:      0.3,
		DecadeBonus:       0.1,
		LongTailThreshold: 1000,
		LongTailBonus:     0.15,
		MaxLongTailRatio:  0.2,
		Serendipity:       true,
		SerendipityWindow: 20,
		SerendipityGenres: []string{"Documentary", "Foreign", "Film-Noir", "Musical"},
	}
}

// Diversity carries what the multi-dimensional constraints need to know about
// movies and the user.
type Diversity struct {
	Options    DiversityOptions
	Catalog    *dataset.Dataset
	UserGenres mapset.Set[string]
}

// Decade of a movie. Movies without a release year count as the 2000s.
func Decade(movie dataset.Movie) int {
	year := movie.Year
	if year == 0 {
		year = 2000
	}
	return year / 10 * 10
}

// Rerank selects k candidates by Maximal Marginal Relevance:
//
//	mmr(c) = lambda * score(c) - (1 - lambda) * max_{s in selected} sim(c, s)
//
// The highest scored candidate is picked first and ties go to the earlier
// candidate.
func Rerank(candidates []Candidate, k int, lambda float32, similarity Similarity) []Candidate {
	return RerankWithDiversity(candidates, k, lambda, similarity, nil)
}

type diversityState struct {
	*Diversity
	genres   map[string]int
	decades  mapset.Set[int]
	longTail int
}

func (s *diversityState) movie(movieId int32) dataset.Movie {
	movie, _ := s.Catalog.GetMovie(movieId)
	return movie
}

func (s *diversityState) isLongTail(movie dataset.Movie) bool {
	return movie.NumRatings < s.Options.LongTailThreshold
}

func (s *diversityState) adjust(movieId int32, numSelected int) float32 {
	movie := s.movie(movieId)
	var adjustment float32
	for _, genre := range movie.Genres {
		if float32(s.genres[genre])/float32(numSelected) > s.Options.MaxGenreRatio {
			adjustment -= s.Options.GenrePenalty
		}
	}
	if !s.decades.Contains(Decade(movie)) {
		adjustment += s.Options.DecadeBonus
	}
	if s.isLongTail(movie) && float32(s.longTail)/float32(numSelected) < s.Options.MaxLongTailRatio {
		adjustment += s.Options.LongTailBonus
	}
	return adjustment
}

func (s *diversityState) add(movieId int32) {
	movie := s.movie(movieId)
	for _, genre := range movie.Genres {
		s.genres[genre]++
	}
	s.decades.Add(Decade(movie))
	if s.isLongTail(movie) {
		s.longTail++
	}
}

// RerankWithDiversity extends Rerank with genre, decade and long-tail
// constraints and an optional serendipity slot. A nil diversity reduces to
// plain MMR.
func RerankWithDiversity(candidates []Candidate, k int, lambda float32, similarity Similarity, diversity *Diversity) []Candidate {
	if len(candidates) == 0 || k <= 0 {
		return []Candidate{}
	}
	var state *diversityState
	if diversity != nil && diversity.Catalog != nil {
		state = &diversityState{
			Diversity: diversity,
			genres:    make(map[string]int),
			decades:   mapset.NewThreadUnsafeSet[int](),
		}
	}
	remaining := make([]Candidate, len(candidates))
	copy(remaining, candidates)
	selected := make([]Candidate, 0, min(k, len(candidates)))
	// seed with the most relevant candidate
	first := 0
	for i := range remaining {
		if remaining[i].Score > remaining[first].Score {
			first = i
		}
	}
	selected = append(selected, remaining[first])
	remaining = append(remaining[:first], remaining[first+1:]...)
	if state != nil {
		state.add(selected[0].MovieId)
	}
	for len(selected) < k && len(remaining) > 0 {
		best, bestScore := -1, float32(0)
		for i, candidate := range remaining {
			var maxSim float32
			for _, s := range selected {
				maxSim = max(maxSim, similarity(candidate.MovieId, s.MovieId))
			}
			score := lambda*candidate.Score - (1-lambda)*maxSim
			if state != nil {
				score += state.adjust(candidate.MovieId, len(selected))
			}
			if best < 0 || score > bestScore {
				best, bestScore = i, score
			}
		}
		selected = append(selected, remaining[best])
		if state != nil {
			state.add(remaining[best].MovieId)
		}
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	if state != nil && state.Options.Serendipity && len(selected) >= 5 {
		if pick, ok := state.serendipity(remaining); ok {
			selected[len(selected)-1] = pick
		}
	}
	return selected
}

// serendipity finds the first remaining candidate within the window that
// belongs to a genre the user has never rated.
func (s *diversityState) serendipity(remaining []Candidate) (Candidate, bool) {
	unexplored := mapset.NewThreadUnsafeSet(lo.Filter(s.Options.SerendipityGenres, func(genre string, _ int) bool {
		return s.UserGenres == nil || !s.UserGenres.Contains(genre)
	})...)
	if unexplored.Cardinality() == 0 {
		return Candidate{}, false
	}
	window := remaining
	if s.Options.SerendipityWindow > 0 && len(window) > s.Options.SerendipityWindow {
		window = window[:s.Options.SerendipityWindow]
	}
	for _, candidate := range window {
		if lo.SomeBy(s.movie(candidate.MovieId).Genres, func(genre string) bool { return unexplored.Contains(genre) }) {
			return candidate, true
		}
	}
	return Candidate{}, false
}
