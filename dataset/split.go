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

package dataset

import (
	"sort"

	"github.com/samber/lo"
)

// Deduplicate keeps the latest observation of every (user, movie) pair. Ties
// on timestamp keep the later one in input order. The first-seen order of
// pairs is preserved.
func Deduplicate(ratings []Rating) []Rating {
	type pair struct{ user, movie int32 }
	latest := make(map[pair]int, len(ratings))
	order := make([]pair, 0, len(ratings))
	for i, r := range ratings {
		key := pair{r.UserId, r.MovieId}
		if j, exist := latest[key]; exist {
			if r.Timestamp >= ratings[j].Timestamp {
				latest[key] = i
			}
		} else {
			latest[key] = i
			order = append(order, key)
		}
	}
	return lo.Map(order, func(key pair, _ int) Rating {
		return ratings[latest[key]]
	})
}

// SplitByTime splits ratings per user chronologically: the oldest part goes to
// the train set and the newest testRatio part to the test set. Every user
// keeps at least one rating in the train set.
func SplitByTime(ratings []Rating, testRatio float64) (train, test []Rating) {
	byUser := lo.GroupBy(ratings, func(r Rating) int32 { return r.UserId })
	users := lo.Keys(byUser)
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	for _, userId := range users {
		userRatings := byUser[userId]
		sort.SliceStable(userRatings, func(i, j int) bool {
			return userRatings[i].Timestamp < userRatings[j].Timestamp
		})
		cut := int(float64(len(userRatings)) * (1 - testRatio))
		if cut < 1 {
			cut = 1
		}
		train = append(train, userRatings[:cut]...)
		test = append(test, userRatings[cut:]...)
	}
	return
}

// GroupByUser collects the movie ids of each user, keeping input order.
func GroupByUser(ratings []Rating) map[int32][]int32 {
	groups := make(map[int32][]int32)
	for _, r := range ratings {
		groups[r.UserId] = append(groups[r.UserId], r.MovieId)
	}
	return groups
}
