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

// numGenres normalizes the discovery quotient.
const numGenres = 20

// UserProfile summarizes the taste of a user.
type UserProfile struct {
	UserId            int32              `json:"user_id"`
	RatingCount       int                `json:"rating_count"`
	AvgRating         float32            `json:"avg_rating"`
	GenreAffinity     map[string]float32 `json:"genre_affinity"`
	GenreCount        map[string]int     `json:"-"`
	DiscoveryQuotient float32            `json:"discovery_quotient"`
	FavoriteGenres    []string           `json:"favorite_genres"`
}

// BuildProfile computes the profile of a user from the ratings in a dataset.
// Users without ratings get an empty profile.
func BuildProfile(d *dataset.Dataset, userId int32) UserProfile {
	profile := UserProfile{
		UserId:        userId,
		GenreAffinity: make(map[string]float32),
		GenreCount:    make(map[string]int),
	}
	ratings := d.GetUserRatings(userId)
	if len(ratings) == 0 {
		return profile
	}
	sums := make(map[string]float32)
	var total float32
	for _, r := range ratings {
		total += r.Rating
		movie, ok := d.GetMovie(r.MovieId)
		if !ok {
			continue
		}
		for _, genre := range movie.Genres {
			sums[genre] += r.Rating
			profile.GenreCount[genre]++
		}
	}
	for genre, sum := range sums {
		profile.GenreAffinity[genre] = sum / float32(profile.GenreCount[genre])
	}
	profile.RatingCount = len(ratings)
	profile.AvgRating = total / float32(len(ratings))
	profile.DiscoveryQuotient = min(1, float32(len(profile.GenreAffinity))/numGenres)
	genres := lo.Keys(profile.GenreAffinity)
	sort.Slice(genres, func(i, j int) bool {
		a, b := genres[i], genres[j]
		if profile.GenreAffinity[a] != profile.GenreAffinity[b] {
			return profile.GenreAffinity[a] > profile.GenreAffinity[b]
		}
		if profile.GenreCount[a] != profile.GenreCount[b] {
			return profile.GenreCount[a] > profile.GenreCount[b]
		}
		return a < b
	})
	profile.FavoriteGenres = genres[:min(3, len(genres))]
	return profile
}
