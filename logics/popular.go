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

	"github.com/reelsense/reelsense/dataset"
	"github.com/samber/lo"
)

const DefaultMinRatings = 50

// Popular returns the n most rated movies. Ties are broken by mean rating,
// then by movie id.
func Popular(d *dataset.Dataset, n int) []dataset.Movie {
	movies := make([]dataset.Movie, d.CountMovies())
	copy(movies, d.GetMovies())
	sort.SliceStable(movies, func(i, j int) bool {
		if movies[i].NumRatings != movies[j].NumRatings {
			return movies[i].NumRatings > movies[j].NumRatings
		}
		return movies[i].AvgRating > movies[j].AvgRating
	})
	return movies[:min(max(n, 0), len(movies))]
}

// TopRated returns the n movies with the highest mean rating among movies
// rated at least minRatings times. Ties go to the more rated movie.
func TopRated(d *dataset.Dataset, n, minRatings int) []dataset.Movie {
	movies := lo.Filter(d.GetMovies(), func(movie dataset.Movie, _ int) bool {
		return movie.NumRatings >= minRatings && movie.NumRatings > 0
	})
	sort.SliceStable(movies, func(i, j int) bool {
		if movies[i].AvgRating != movies[j].AvgRating {
			return movies[i].AvgRating > movies[j].AvgRating
		}
		return movies[i].NumRatings > movies[j].NumRatings
	})
	return movies[:min(max(n, 0), len(movies))]
}

// PopularityRanks ranks movies by rating count starting from 1.
func PopularityRanks(d *dataset.Dataset) map[int32]int {
	ranks := make(map[int32]int, d.CountMovies())
	for i, movie := range Popular(d, d.CountMovies()) {
		ranks[movie.MovieId] = i + 1
	}
	return ranks
}
