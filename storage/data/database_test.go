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

package data

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jaswdr/faker"
	"github.com/juju/errors"
	"github.com/reelsense/reelsense/dataset"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type baseTestSuite struct {
	suite.Suite
	Database
}

func (suite *baseTestSuite) SetupTest() {
	suite.NoError(suite.Database.Purge())
}

func (suite *baseTestSuite) TearDownSuite() {
	suite.NoError(suite.Database.Close())
}

func fakeMovies(n int) []dataset.Movie {
	fake := faker.New()
	genres := []string{"Action", "Comedy", "Drama", "Documentary", "Romance"}
	movies := make([]dataset.Movie, n)
	for i := range movies {
		movies[i] = dataset.Movie{
			MovieId: int32(i + 1),
			Title:   fake.Lorem().Sentence(3),
			Year:    fake.IntBetween(1950, 2020),
			Genres:  []string{fake.RandomStringElement(genres)},
			Tags:    []string{fake.Lorem().Word()},
		}
	}
	return movies
}

func (suite *baseTestSuite) TestMovies() {
	ctx := context.Background()
	movies := fakeMovies(5)
	lo.Reverse(movies)
	err := suite.BatchInsertMovies(ctx, movies)
	suite.NoError(err)
	lo.Reverse(movies)

	// movies are ordered by id
	stored, err := suite.GetMovies(ctx)
	suite.NoError(err)
	suite.Equal(movies, stored)

	movie, err := suite.GetMovie(ctx, 3)
	suite.NoError(err)
	suite.Equal(movies[2], movie)
	_, err = suite.GetMovie(ctx, 100)
	suite.True(errors.Is(err, errors.NotFound))

	// overwrite a movie
	updated := movies[0]
	updated.Title = "Toy Story (1995)"
	updated.Tags = nil
	suite.NoError(suite.BatchInsertMovies(ctx, []dataset.Movie{updated}))
	movie, err = suite.GetMovie(ctx, updated.MovieId)
	suite.NoError(err)
	suite.Equal(updated, movie)
	stored, err = suite.GetMovies(ctx)
	suite.NoError(err)
	suite.Len(stored, 5)
}

func (suite *baseTestSuite) TestRatings() {
	ctx := context.Background()
	ratings := []dataset.Rating{
		{UserId: 2, MovieId: 1, Rating: 3, Timestamp: 10},
		{UserId: 1, MovieId: 2, Rating: 4.5, Timestamp: 20},
		{UserId: 1, MovieId: 1, Rating: 1, Timestamp: 30},
		{UserId: 1, MovieId: 1, Rating: 2, Timestamp: 40},
		{UserId: 3, MovieId: 3, Rating: 5, Timestamp: 50},
	}
	suite.NoError(suite.BatchInsertRatings(ctx, ratings))
	count, err := suite.CountRatings(ctx)
	suite.NoError(err)
	suite.Equal(4, count)

	// a later insert replaces the stored rating
	suite.NoError(suite.BatchInsertRatings(ctx, []dataset.Rating{{UserId: 3, MovieId: 3, Rating: 0.5, Timestamp: 60}}))

	// stream in batches
	ratingChan, errChan := suite.GetRatingStream(ctx, 3)
	var batches [][]dataset.Rating
	for batch := range ratingChan {
		batches = append(batches, batch)
	}
	suite.NoError(<-errChan)
	suite.Len(batches, 2)
	suite.Equal([]dataset.Rating{
		{UserId: 1, MovieId: 1, Rating: 2, Timestamp: 40},
		{UserId: 1, MovieId: 2, Rating: 4.5, Timestamp: 20},
		{UserId: 2, MovieId: 1, Rating: 3, Timestamp: 10},
		{UserId: 3, MovieId: 3, Rating: 0.5, Timestamp: 60},
	}, lo.Flatten(batches))

	all, err := GetRatings(ctx, suite.Database, DefaultBatchSize)
	suite.NoError(err)
	suite.Len(all, 4)

	// invalid ratings are rejected
	err = suite.BatchInsertRatings(ctx, []dataset.Rating{{UserId: 1, MovieId: 1, Rating: 6}})
	suite.True(errors.Is(err, errors.NotValid))
}

func (suite *baseTestSuite) TestPurge() {
	ctx := context.Background()
	suite.NoError(suite.BatchInsertMovies(ctx, fakeMovies(3)))
	suite.NoError(suite.BatchInsertRatings(ctx, []dataset.Rating{{UserId: 1, MovieId: 1, Rating: 4}}))
	suite.NoError(suite.Purge())
	movies, err := suite.GetMovies(ctx)
	suite.NoError(err)
	suite.Empty(movies)
	count, err := suite.CountRatings(ctx)
	suite.NoError(err)
	suite.Zero(count)
}

type SQLiteTestSuite struct {
	baseTestSuite
}

func (suite *SQLiteTestSuite) SetupSuite() {
	var err error
	path := filepath.Join(suite.T().TempDir(), "reelsense.db")
	suite.Database, err = Open("sqlite://"+path, "")
	suite.NoError(err)
	suite.NoError(suite.Database.Init())
	suite.NoError(suite.Database.Ping())
}

func TestSQLite(t *testing.T) {
	suite.Run(t, new(SQLiteTestSuite))
}

func TestOpen(t *testing.T) {
	_, err := Open("redis://localhost:6379", "")
	assert.True(t, errors.Is(err, errors.NotSupported))
}
