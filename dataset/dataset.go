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
	"io"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/reelsense/reelsense/base/encoding"
	"github.com/samber/lo"
)

const (
	MinRating float32 = 0.5
	MaxRating float32 = 5.0
)

// Rating is a single observation of a user rating a movie.
type Rating struct {
	UserId    int32   `json:"user_id"`
	MovieId   int32   `json:"movie_id"`
	Rating    float32 `json:"rating"`
	Timestamp int64   `json:"timestamp"`
}

// Movie is an item of the catalog. Genres and Tags are normalized token lists.
type Movie struct {
	MovieId    int32    `json:"movie_id"`
	Title      string   `json:"title"`
	Year       int      `json:"year,omitempty"`
	Genres     []string `json:"genres"`
	Tags       []string `json:"tags,omitempty"`
	NumRatings int      `json:"num_ratings"`
	AvgRating  float32  `json:"avg_rating"`
}

// ValidateRating rejects observations that must never reach the models.
func ValidateRating(r Rating) error {
	if r.UserId <= 0 {
		return errors.NotValidf("user id %d", r.UserId)
	}
	if r.MovieId <= 0 {
		return errors.NotValidf("movie id %d", r.MovieId)
	}
	if r.Rating < MinRating || r.Rating > MaxRating {
		return errors.NotValidf("rating %v", r.Rating)
	}
	return nil
}

// Dataset is the in-memory rating matrix store. It is read-only once built.
type Dataset struct {
	ratings     []Rating
	movies      []Movie
	movieIndex  map[int32]int
	users       []int32
	userRatings map[int32][]Rating
	userRated   map[int32]mapset.Set[int32]
	globalMean  float32
}

// NewDataset builds the store. Movies are ordered by id and their popularity
// statistics are recomputed from ratings.
func NewDataset(ratings []Rating, movies []Movie) *Dataset {
	d := &Dataset{
		ratings:     ratings,
		movies:      make([]Movie, len(movies)),
		movieIndex:  make(map[int32]int, len(movies)),
		userRatings: make(map[int32][]Rating),
		userRated:   make(map[int32]mapset.Set[int32]),
	}
	copy(d.movies, movies)
	sort.SliceStable(d.movies, func(i, j int) bool {
		return d.movies[i].MovieId < d.movies[j].MovieId
	})
	for i, movie := range d.movies {
		d.movieIndex[movie.MovieId] = i
		d.movies[i].NumRatings = 0
		d.movies[i].AvgRating = 0
	}
	sums := make([]float64, len(d.movies))
	var total float64
	for _, r := range ratings {
		total += float64(r.Rating)
		if _, exist := d.userRatings[r.UserId]; !exist {
			d.users = append(d.users, r.UserId)
			d.userRated[r.UserId] = mapset.NewThreadUnsafeSet[int32]()
		}
		d.userRatings[r.UserId] = append(d.userRatings[r.UserId], r)
		d.userRated[r.UserId].Add(r.MovieId)
		if i, exist := d.movieIndex[r.MovieId]; exist {
			d.movies[i].NumRatings++
			sums[i] += float64(r.Rating)
		}
	}
	for i := range d.movies {
		if d.movies[i].NumRatings > 0 {
			d.movies[i].AvgRating = float32(sums[i] / float64(d.movies[i].NumRatings))
		}
	}
	if len(ratings) > 0 {
		d.globalMean = float32(total / float64(len(ratings)))
	}
	sort.Slice(d.users, func(i, j int) bool { return d.users[i] < d.users[j] })
	return d
}

func (d *Dataset) CountRatings() int {
	return len(d.ratings)
}

func (d *Dataset) CountMovies() int {
	return len(d.movies)
}

func (d *Dataset) CountUsers() int {
	return len(d.users)
}

// GetRatings returns all ratings in insertion order.
func (d *Dataset) GetRatings() []Rating {
	return d.ratings
}

// GetMovies returns the catalog ordered by movie id.
func (d *Dataset) GetMovies() []Movie {
	return d.movies
}

// GetUsers returns user ids in ascending order.
func (d *Dataset) GetUsers() []int32 {
	return d.users
}

func (d *Dataset) GetMovie(movieId int32) (Movie, bool) {
	if i, exist := d.movieIndex[movieId]; exist {
		return d.movies[i], true
	}
	return Movie{}, false
}

// GetUserRatings returns ratings of a user. Unknown users have no ratings.
func (d *Dataset) GetUserRatings(userId int32) []Rating {
	return d.userRatings[userId]
}

// IsRated returns true if the user has rated the movie.
func (d *Dataset) IsRated(userId, movieId int32) bool {
	if rated, exist := d.userRated[userId]; exist {
		return rated.Contains(movieId)
	}
	return false
}

// GlobalMean returns the mean of all ratings or zero if there are none.
func (d *Dataset) GlobalMean() float32 {
	return d.globalMean
}

// Genres counts movies per genre.
func (d *Dataset) Genres() map[string]int {
	genres := make(map[string]int)
	for _, movie := range d.movies {
		for _, genre := range movie.Genres {
			genres[genre]++
		}
	}
	return genres
}

// SearchMovies returns at most n movies whose title contains the query, case-insensitively.
func (d *Dataset) SearchMovies(query string, n int) []Movie {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	matched := lo.Filter(d.movies, func(movie Movie, _ int) bool {
		return strings.Contains(strings.ToLower(movie.Title), query)
	})
	if n >= 0 && len(matched) > n {
		matched = matched[:n]
	}
	return matched
}

// Sparsity returns the fraction of the user x movie matrix without a rating.
func (d *Dataset) Sparsity() float64 {
	cells := float64(len(d.users)) * float64(len(d.movies))
	if cells == 0 {
		return 0
	}
	return 1 - float64(len(d.ratings))/cells
}

// Marshal writes ratings and movies to byte stream.
func (d *Dataset) Marshal(w io.Writer) error {
	userIds := make([]int32, len(d.ratings))
	movieIds := make([]int32, len(d.ratings))
	values := make([]float32, len(d.ratings))
	timestamps := make([]int64, len(d.ratings))
	for i, r := range d.ratings {
		userIds[i], movieIds[i], values[i], timestamps[i] = r.UserId, r.MovieId, r.Rating, r.Timestamp
	}
	if err := encoding.WriteSlice(w, userIds); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteSlice(w, movieIds); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteSlice(w, values); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteSlice(w, timestamps); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(encoding.WriteGob(w, d.movies))
}

// UnmarshalDataset reads a dataset written by Marshal.
func UnmarshalDataset(r io.Reader) (*Dataset, error) {
	userIds, err := encoding.ReadSlice[int32](r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	movieIds, err := encoding.ReadSlice[int32](r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	values, err := encoding.ReadSlice[float32](r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	timestamps, err := encoding.ReadSlice[int64](r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(movieIds) != len(userIds) || len(values) != len(userIds) || len(timestamps) != len(userIds) {
		return nil, errors.New("corrupted ratings")
	}
	var movies []Movie
	if err = encoding.ReadGob(r, &movies); err != nil {
		return nil, errors.Trace(err)
	}
	ratings := make([]Rating, len(userIds))
	for i := range ratings {
		ratings[i] = Rating{UserId: userIds[i], MovieId: movieIds[i], Rating: values[i], Timestamp: timestamps[i]}
	}
	return NewDataset(ratings, movies), nil
}
