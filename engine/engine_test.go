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

package engine

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/reelsense/reelsense/config"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/logics"
	"github.com/reelsense/reelsense/model/content"
	"github.com/reelsense/reelsense/storage/blob"
	"github.com/reelsense/reelsense/storage/data"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var testGenres = [][]string{
	{"Action", "Crime"},
	{"Comedy", "Romance"},
	{"Documentary"},
	{"Animation", "Children"},
}

func newTestMovies(n int) []dataset.Movie {
	movies := make([]dataset.Movie, n)
	for i := range movies {
		year := 1980 + i*3
		movies[i] = dataset.Movie{
			MovieId: int32(i + 1),
			Title:   fmt.Sprintf("Movie %d (%d)", i+1, year),
			Year:    year,
			Genres:  testGenres[i%len(testGenres)],
			Tags:    []string{fmt.Sprintf("tag%d", i%3)},
		}
	}
	return movies
}

// newTestRatings lets even users love even movies and odd users love odd
// movies. Every user leaves a few movies unrated.
func newTestRatings(numUsers, numMovies int) []dataset.Rating {
	var ratings []dataset.Rating
	for u := 1; u <= numUsers; u++ {
		for i := 1; i <= numMovies-4; i++ {
			value := float32(1.5)
			if u%2 == i%2 {
				value = 4.5
			}
			ratings = append(ratings, dataset.Rating{
				UserId:    int32(u),
				MovieId:   int32((u+i)%numMovies + 1),
				Rating:    value,
				Timestamp: int64(u*numMovies + i),
			})
		}
	}
	return ratings
}

func newTestConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Model.NFactors = 4
	cfg.Model.NEpochs = 10
	cfg.Model.Lr = 0.05
	cfg.Model.Verbose = 0
	cfg.Recommend.TopK = 3
	cfg.Evaluation.NumUsers = 10
	return cfg
}

type EngineTestSuite struct {
	suite.Suite
	engine *Engine
	result *TrainResult
}

func (suite *EngineTestSuite) SetupSuite() {
	ratings := newTestRatings(20, 16)
	// invalid ratings are skipped
	ratings = append(ratings,
		dataset.Rating{UserId: 1, MovieId: 1, Rating: 7},
		dataset.Rating{UserId: 0, MovieId: 1, Rating: 3})
	var err error
	suite.engine, suite.result, err = Train(context.Background(), ratings, newTestMovies(16), newTestConfig())
	suite.Require().NoError(err)
}

func (suite *EngineTestSuite) TestTrain() {
	suite.Equal(2, suite.result.NumSkipped)
	suite.Equal(20*12, suite.result.NumRatings)
	suite.Equal(suite.result.NumRatings, suite.result.NumTrain+suite.result.NumTest)
	suite.Equal(16, suite.result.NumMovies)
	suite.Equal(20, suite.result.NumUsers)
	suite.Positive(suite.result.Vocabulary)
	suite.Equal(suite.result.NumTrain, suite.engine.Dataset.CountRatings())
	suite.Len(suite.engine.TestSet, suite.result.NumTest)
	suite.NoError(suite.engine.Ready())

	stats, err := suite.engine.Stats()
	suite.NoError(err)
	suite.Equal(16, stats.NumMovies)
	suite.Equal("svd", stats.Model)
	suite.Equal(7, stats.NumGenres)
}

func (suite *EngineTestSuite) TestTrain_Errors() {
	_, _, err := Train(context.Background(), newTestRatings(2, 8), nil, newTestConfig())
	suite.True(errors.Is(err, errors.NotValid))
	_, _, err = Train(context.Background(), []dataset.Rating{{UserId: 1, MovieId: 1, Rating: 9}}, newTestMovies(4), newTestConfig())
	suite.True(errors.Is(err, errors.NotValid))
}

func (suite *EngineTestSuite) TestPredict() {
	rating, err := suite.engine.Predict(1, 2)
	suite.NoError(err)
	suite.GreaterOrEqual(rating, dataset.MinRating)
	suite.LessOrEqual(rating, dataset.MaxRating)
	// unknown user and movie fall back to the global mean
	rating, err = suite.engine.Predict(1000, 1000)
	suite.NoError(err)
	suite.InDelta(suite.engine.CF.Predict(1000, 1000), rating, 1e-6)
}

func (suite *EngineTestSuite) TestRecommend() {
	options := DefaultRecommendOptions(newTestConfig())
	recommendations, err := suite.engine.Recommend(1, options)
	suite.NoError(err)
	suite.Len(recommendations, 3)
	for i, r := range recommendations {
		suite.False(suite.engine.Dataset.IsRated(1, r.MovieId))
		suite.Equal(r.MovieId, r.Movie.MovieId)
		suite.Nil(r.Explanation)
		if i > 0 {
			suite.GreaterOrEqual(recommendations[i-1].Score, r.Score)
		}
	}

	// zero results
	options.N = 0
	recommendations, err = suite.engine.Recommend(1, options)
	suite.NoError(err)
	suite.Empty(recommendations)

	// cold start users are ranked by collaborative filtering alone
	options.N = 5
	recommendations, err = suite.engine.Recommend(1000, options)
	suite.NoError(err)
	suite.Len(recommendations, 5)
	for _, r := range recommendations {
		suite.Zero(r.ContentScore)
	}
}

func (suite *EngineTestSuite) TestRecommend_Context() {
	options := DefaultRecommendOptions(newTestConfig())
	options.Context = logics.Weekend
	options.Device = logics.Desktop
	recommendations, err := suite.engine.Recommend(2, options)
	suite.NoError(err)
	suite.Len(recommendations, 3)
	for i := 1; i < len(recommendations); i++ {
		suite.GreaterOrEqual(recommendations[i-1].Score, recommendations[i].Score)
	}
}

func (suite *EngineTestSuite) TestRecommend_Diversify() {
	options := DefaultRecommendOptions(newTestConfig())
	options.N = 6
	options.Diversify = true
	recommendations, err := suite.engine.Recommend(3, options)
	suite.NoError(err)
	suite.Len(recommendations, 6)
	ids := lo.Map(recommendations, func(r Recommendation, _ int) int32 { return r.MovieId })
	suite.Len(lo.Uniq(ids), 6)

	diversity := logics.DefaultDiversityOptions()
	options.Diversity = &diversity
	recommendations, err = suite.engine.Recommend(3, options)
	suite.NoError(err)
	suite.Len(recommendations, 6)
	for _, r := range recommendations {
		suite.False(suite.engine.Dataset.IsRated(3, r.MovieId))
	}
}

func (suite *EngineTestSuite) TestRecommend_Explain() {
	options := DefaultRecommendOptions(newTestConfig())
	options.Explain = true
	recommendations, err := suite.engine.Recommend(4, options)
	suite.NoError(err)
	suite.NotEmpty(recommendations)
	for _, r := range recommendations {
		if suite.NotNil(r.Explanation) {
			suite.Equal(r.MovieId, r.Explanation.MovieId)
			suite.NotEmpty(r.Explanation.Simple)
		}
	}

	explanation, err := suite.engine.Explain(4, recommendations[0].MovieId, logics.DefaultCFWeight)
	suite.NoError(err)
	suite.Equal(int32(4), explanation.UserId)
	_, err = suite.engine.Explain(4, recommendations[0].MovieId, 1.5)
	suite.True(errors.Is(err, errors.NotValid))
}

func (suite *EngineTestSuite) TestRecommend_InvalidOptions() {
	options := DefaultRecommendOptions(newTestConfig())
	options.CFWeight = 1.5
	_, err := suite.engine.Recommend(1, options)
	suite.True(errors.Is(err, errors.NotValid))

	options = DefaultRecommendOptions(newTestConfig())
	options.Context = "midnight"
	_, err = suite.engine.Recommend(1, options)
	suite.True(errors.Is(err, errors.NotValid))

	options = DefaultRecommendOptions(newTestConfig())
	options.Lambda = -1
	_, err = suite.engine.Recommend(1, options)
	suite.True(errors.Is(err, errors.NotValid))
}

func (suite *EngineTestSuite) TestSimilarItems() {
	neighbors, err := suite.engine.SimilarItems(1, 3)
	suite.NoError(err)
	suite.Len(neighbors, 3)
	for _, n := range neighbors {
		suite.NotEqual(int32(1), n.MovieId)
	}
	neighbors, err = suite.engine.SimilarItems(1000, 3)
	suite.NoError(err)
	suite.Empty(neighbors)
}

func (suite *EngineTestSuite) TestPopular() {
	popular, err := suite.engine.Popular(4)
	suite.NoError(err)
	suite.Len(popular, 4)
	suite.GreaterOrEqual(popular[0].NumRatings, popular[3].NumRatings)
	topRated, err := suite.engine.TopRated(4, 1)
	suite.NoError(err)
	suite.Len(topRated, 4)
	suite.GreaterOrEqual(topRated[0].AvgRating, topRated[3].AvgRating)
}

func (suite *EngineTestSuite) TestProfile() {
	profile, err := suite.engine.Profile(1)
	suite.NoError(err)
	suite.Equal(int32(1), profile.UserId)
	suite.Equal(len(suite.engine.Dataset.GetUserRatings(1)), profile.RatingCount)
}

func (suite *EngineTestSuite) TestSaveLoad() {
	buf := bytes.NewBuffer(nil)
	suite.Require().NoError(suite.engine.Save(buf))
	loaded, err := Load(buf, logics.DefaultProfileSize)
	suite.Require().NoError(err)
	suite.Equal(suite.engine.Score, loaded.Score)
	suite.True(suite.engine.TrainedAt.Equal(loaded.TrainedAt))
	suite.Equal(suite.engine.TestSet, loaded.TestSet)
	suite.Equal(suite.engine.Dataset.CountRatings(), loaded.Dataset.CountRatings())

	options := DefaultRecommendOptions(newTestConfig())
	for _, userId := range []int32{1, 2, 1000} {
		expected, err := suite.engine.RecommendIds(userId, options)
		suite.NoError(err)
		actual, err := loaded.RecommendIds(userId, options)
		suite.NoError(err)
		suite.Equal(expected, actual)
	}
}

func (suite *EngineTestSuite) TestBlob() {
	store, err := blob.Open(suite.T().TempDir(), config.BlobConfig{})
	suite.Require().NoError(err)
	_, err = LoadFromBlob(context.Background(), store, logics.DefaultProfileSize)
	suite.True(errors.Is(err, errors.NotFound))

	name, err := suite.engine.SaveToBlob(store, DefaultKeepSnapshots)
	suite.Require().NoError(err)
	suite.True(blob.IsModelName(name))
	loaded, err := LoadFromBlob(context.Background(), store, logics.DefaultProfileSize)
	suite.Require().NoError(err)
	suite.Equal(suite.engine.Score, loaded.Score)
}

func (suite *EngineTestSuite) TestBlob_FailedSave() {
	store, err := blob.Open(suite.T().TempDir(), config.BlobConfig{})
	suite.Require().NoError(err)
	good, err := suite.engine.SaveToBlob(store, DefaultKeepSnapshots)
	suite.Require().NoError(err)

	// an unfitted content model fails halfway through the snapshot
	broken := New(suite.engine.Dataset, suite.engine.CF, content.NewModel(nil), logics.DefaultProfileSize)
	broken.TrainedAt = suite.engine.TrainedAt.Add(time.Hour)
	_, err = broken.SaveToBlob(store, DefaultKeepSnapshots)
	suite.Error(err)

	latest, err := blob.Latest(store)
	suite.Require().NoError(err)
	suite.Equal(good, latest)
	models, err := blob.Models(store)
	suite.Require().NoError(err)
	suite.Equal([]string{good}, models)
	loaded, err := LoadFromBlob(context.Background(), store, logics.DefaultProfileSize)
	suite.Require().NoError(err)
	suite.True(suite.engine.TrainedAt.Equal(loaded.TrainedAt))
}

func (suite *EngineTestSuite) TestEvaluate() {
	report, err := suite.engine.Evaluate(context.Background(), newTestConfig())
	suite.Require().NoError(err)
	suite.Equal(3, report.TopK)
	suite.Len(report.Results, 3)
	suite.Equal(HybridName, report.Results[0].Name)
	suite.Equal(HybridMMRName, report.Results[1].Name)
	suite.Equal(PopularName, report.Results[2].Name)
	if suite.NotNil(report.Accuracy) {
		suite.Positive(report.Accuracy.RMSE)
	}
	for _, result := range report.Results {
		suite.Positive(result.Evaluated)
	}
}

func (suite *EngineTestSuite) TestEvaluate_Jobs() {
	cfg := newTestConfig()
	cfg.Model.Jobs = 1
	sequential, err := suite.engine.Evaluate(context.Background(), cfg)
	suite.Require().NoError(err)
	cfg.Model.Jobs = 8
	concurrent, err := suite.engine.Evaluate(context.Background(), cfg)
	suite.Require().NoError(err)
	suite.Require().Len(concurrent.Results, len(sequential.Results))
	for i, result := range concurrent.Results {
		expected := sequential.Results[i]
		suite.Equal(expected.Name, result.Name)
		suite.Equal(expected.Evaluated, result.Evaluated)
		suite.Equal(expected.Skipped, result.Skipped)
		suite.InDelta(expected.Coverage, result.Coverage, 1e-6)
		for name, summary := range expected.Metrics {
			suite.InDelta(summary.Mean, result.Metrics[name].Mean, 1e-5, name)
		}
	}
}

func TestEngine(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func TestEngine_NotReady(t *testing.T) {
	var e *Engine
	assert.ErrorIs(t, e.Ready(), ErrModelNotReady)
	_, err := e.Predict(1, 1)
	assert.ErrorIs(t, err, ErrModelNotReady)
	_, err = e.Recommend(1, DefaultRecommendOptions(nil))
	assert.ErrorIs(t, err, ErrModelNotReady)
	_, err = e.SimilarItems(1, 10)
	assert.ErrorIs(t, err, ErrModelNotReady)
	_, err = e.Explain(1, 1, logics.DefaultCFWeight)
	assert.ErrorIs(t, err, ErrModelNotReady)
	_, err = e.Profile(1)
	assert.ErrorIs(t, err, ErrModelNotReady)
	_, err = e.Stats()
	assert.ErrorIs(t, err, ErrModelNotReady)
	_, err = e.Evaluate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrModelNotReady)
	assert.ErrorIs(t, e.Save(bytes.NewBuffer(nil)), ErrModelNotReady)
	assert.ErrorIs(t, new(Engine).Ready(), ErrModelNotReady)
}

func TestImport(t *testing.T) {
	database, err := data.Open("sqlite://"+filepath.Join(t.TempDir(), "reelsense.db"), "")
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, database.Init())

	ml := &dataset.MovieLens{Movies: newTestMovies(16), Ratings: newTestRatings(20, 16)}
	require.NoError(t, Import(context.Background(), database, ml, 50))
	count, err := database.CountRatings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(ml.Ratings), count)

	e, result, err := TrainFromDatabase(context.Background(), database, newTestConfig())
	require.NoError(t, err)
	assert.Equal(t, len(ml.Ratings), result.NumRatings)
	assert.Equal(t, 16, e.Dataset.CountMovies())
}
