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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDataset() *Dataset {
	movies := []Movie{
		{MovieId: 3, Title: "Grumpier Old Men (1995)", Year: 1995, Genres: []string{"Comedy", "Romance"}},
		{MovieId: 1, Title: "Toy Story (1995)", Year: 1995, Genres: []string{"Adventure", "Animation", "Children"}},
		{MovieId: 2, Title: "Jumanji (1995)", Year: 1995, Genres: []string{"Adventure", "Children"}},
	}
	ratings := []Rating{
		{UserId: 1, MovieId: 1, Rating: 4, Timestamp: 10},
		{UserId: 1, MovieId: 2, Rating: 3, Timestamp: 20},
		{UserId: 2, MovieId: 1, Rating: 5, Timestamp: 30},
		{UserId: 2, MovieId: 99, Rating: 2, Timestamp: 40},
	}
	return NewDataset(ratings, movies)
}

func TestDataset(t *testing.T) {
	d := newTestDataset()
	assert.Equal(t, 4, d.CountRatings())
	assert.Equal(t, 3, d.CountMovies())
	assert.Equal(t, 2, d.CountUsers())
	assert.Equal(t, []int32{1, 2}, d.GetUsers())
	assert.Equal(t, int32(1), d.GetMovies()[0].MovieId)
	assert.Equal(t, int32(3), d.GetMovies()[2].MovieId)
	assert.InDelta(t, 3.5, d.GlobalMean(), 1e-6)

	movie, ok := d.GetMovie(1)
	assert.True(t, ok)
	assert.Equal(t, 2, movie.NumRatings)
	assert.InDelta(t, 4.5, movie.AvgRating, 1e-6)
	movie, ok = d.GetMovie(3)
	assert.True(t, ok)
	assert.Zero(t, movie.NumRatings)
	_, ok = d.GetMovie(99)
	assert.False(t, ok)

	assert.Len(t, d.GetUserRatings(1), 2)
	assert.Empty(t, d.GetUserRatings(100))
	assert.True(t, d.IsRated(1, 2))
	assert.False(t, d.IsRated(1, 3))
	assert.False(t, d.IsRated(100, 1))

	assert.Equal(t, map[string]int{"Adventure": 2, "Animation": 1, "Children": 2, "Comedy": 1, "Romance": 1}, d.Genres())
	assert.Equal(t, "Jumanji (1995)", d.SearchMovies("jumanji", 10)[0].Title)
	assert.Len(t, d.SearchMovies("1995", 2), 2)
	assert.Empty(t, d.SearchMovies("  ", 10))
	assert.InDelta(t, 1-4.0/6.0, d.Sparsity(), 1e-9)
}

func TestDataset_Marshal(t *testing.T) {
	d := newTestDataset()
	buf := bytes.NewBuffer(nil)
	require.NoError(t, d.Marshal(buf))
	restored, err := UnmarshalDataset(buf)
	require.NoError(t, err)
	assert.Equal(t, d.GetRatings(), restored.GetRatings())
	assert.Equal(t, d.GetMovies(), restored.GetMovies())
	assert.Equal(t, d.GetUsers(), restored.GetUsers())
}

func TestValidateRating(t *testing.T) {
	assert.NoError(t, ValidateRating(Rating{UserId: 1, MovieId: 1, Rating: 0.5}))
	assert.NoError(t, ValidateRating(Rating{UserId: 1, MovieId: 1, Rating: 5}))
	assert.Error(t, ValidateRating(Rating{UserId: 0, MovieId: 1, Rating: 3}))
	assert.Error(t, ValidateRating(Rating{UserId: 1, MovieId: 0, Rating: 3}))
	assert.Error(t, ValidateRating(Rating{UserId: 1, MovieId: 1, Rating: 5.5}))
	assert.Error(t, ValidateRating(Rating{UserId: 1, MovieId: 1, Rating: 0}))
}

func TestDeduplicate(t *testing.T) {
	ratings := Deduplicate([]Rating{
		{UserId: 1, MovieId: 1, Rating: 2, Timestamp: 10},
		{UserId: 1, MovieId: 2, Rating: 3, Timestamp: 10},
		{UserId: 1, MovieId: 1, Rating: 4, Timestamp: 20},
		{UserId: 1, MovieId: 1, Rating: 1, Timestamp: 5},
	})
	assert.Equal(t, []Rating{
		{UserId: 1, MovieId: 1, Rating: 4, Timestamp: 20},
		{UserId: 1, MovieId: 2, Rating: 3, Timestamp: 10},
	}, ratings)
}

func TestSplitByTime(t *testing.T) {
	var ratings []Rating
	for i := 0; i < 10; i++ {
		ratings = append(ratings, Rating{UserId: 1, MovieId: int32(i + 1), Rating: 3, Timestamp: int64(100 - i)})
	}
	ratings = append(ratings, Rating{UserId: 2, MovieId: 1, Rating: 3, Timestamp: 1})
	train, test := SplitByTime(ratings, 0.2)
	assert.Len(t, train, 9)
	assert.Len(t, test, 2)
	// the newest ratings of user 1 are the ones with the smallest movie ids
	assert.ElementsMatch(t, []int32{1, 2}, []int32{test[0].MovieId, test[1].MovieId})
	for _, r := range test {
		assert.Equal(t, int32(1), r.UserId)
	}
	assert.Equal(t, map[int32][]int32{1: {2, 1}}, GroupByUser(test))
}

func TestParseYear(t *testing.T) {
	assert.Equal(t, 1995, ParseYear("Toy Story (1995)"))
	assert.Equal(t, 2003, ParseYear("Big Fish (2003) (2003)"))
	assert.Equal(t, 1994, ParseYear("Léon (Professional, The) (1994)"))
	assert.Equal(t, 0, ParseYear("Untitled"))
}

func TestParseGenres(t *testing.T) {
	assert.Equal(t, []string{"Adventure", "Comedy"}, ParseGenres("Adventure|Comedy|Adventure"))
	assert.Equal(t, []string{}, ParseGenres("(no genres listed)"))
}

func TestReadRatings(t *testing.T) {
	text := "userId,movieId,rating,timestamp\n1,1,4.0,964982703\n1,3,7.0,964981247\nx,3,4.0,1\n2,3,0.5,964981247\n"
	ratings, skipped, err := ReadRatings(strings.NewReader(text))
	assert.NoError(t, err)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, []Rating{
		{UserId: 1, MovieId: 1, Rating: 4, Timestamp: 964982703},
		{UserId: 2, MovieId: 3, Rating: 0.5, Timestamp: 964981247},
	}, ratings)
}

func TestLoadMovieLens(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "movies.csv"), []byte(
		"movieId,title,genres\n"+
			"1,Toy Story (1995),Adventure|Animation|Children|Comedy|Fantasy\n"+
			"2,\"American President, The (1995)\",Comedy|Drama|Romance\n"+
			"3,Unknown,(no genres listed)\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ratings.csv"), []byte(
		"userId,movieId,rating,timestamp\n1,1,4.0,10\n1,1,5.0,20\n1,2,3.5,30\n"), 0644))

	// tags are optional
	ml, err := LoadMovieLens(dir)
	require.NoError(t, err)
	assert.Len(t, ml.Movies, 3)
	assert.Equal(t, "American President, The (1995)", ml.Movies[1].Title)
	assert.Equal(t, 1995, ml.Movies[1].Year)
	assert.Empty(t, ml.Movies[2].Genres)
	assert.Equal(t, []Rating{
		{UserId: 1, MovieId: 1, Rating: 5, Timestamp: 20},
		{UserId: 1, MovieId: 2, Rating: 3.5, Timestamp: 30},
	}, ml.Ratings)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tags.csv"), []byte(
		"userId,movieId,tag,timestamp\n1,1, Pixar ,1\n2,1,fun,2\n"), 0644))
	ml, err = LoadMovieLens(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"pixar", "fun"}, ml.Movies[0].Tags)
	assert.Nil(t, ml.Movies[1].Tags)

	_, err = LoadMovieLens(t.TempDir())
	assert.Error(t, err)
}
