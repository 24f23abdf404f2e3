// Copyright 2021 gorse Project Authors
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

package cf

import (
	"bytes"
	"context"
	"runtime"
	"testing"

	"github.com/chewxy/math32"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBlockRatings makes two user groups that love their own half of the
// catalog and dislike the other half.
func newBlockRatings(numUsers, numItems int) []dataset.Rating {
	var ratings []dataset.Rating
	for u := 1; u <= numUsers; u++ {
		for i := 1; i <= numItems; i++ {
			value := float32(1)
			if u%2 == i%2 {
				value = 5
			}
			ratings = append(ratings, dataset.Rating{
				UserId:    int32(u),
				MovieId:   int32(i),
				Rating:    value,
				Timestamp: int64(u*numItems + i),
			})
		}
	}
	return ratings
}

func newTestParams() model.Params {
	return model.Params{
		model.NFactors: 4,
		model.NEpochs:  50,
		model.Lr:       0.05,
		model.Reg:      0.02,
	}
}

func newFitConfig() *FitConfig {
	return NewFitConfig().SetVerbose(10).SetJobs(runtime.NumCPU())
}

func testModel(t *testing.T, m Model) {
	ratings := newBlockRatings(40, 30)
	score, err := m.Fit(context.Background(), ratings, ratings, newFitConfig())
	require.NoError(t, err)
	// predicting the global mean gives RMSE 2
	assert.Less(t, score.RMSE, float32(1.6))
	assert.Equal(t, score, m.Evaluate(ratings))
	assert.Equal(t, int32(40), m.GetUserIndex().Count())
	assert.Equal(t, int32(30), m.GetItemIndex().Count())
	assert.InDelta(t, 3, m.GetGlobalMean(), 1e-5)
	assert.Greater(t, m.Predict(1, 1), m.Predict(1, 2))
	assert.Greater(t, m.Predict(2, 2), m.Predict(2, 1))

	// predictions are always clamped
	for _, r := range ratings {
		pred := m.Predict(r.UserId, r.MovieId)
		assert.GreaterOrEqual(t, pred, dataset.MinRating)
		assert.LessOrEqual(t, pred, dataset.MaxRating)
	}

	// encode and decode
	buf := bytes.NewBuffer(nil)
	require.NoError(t, MarshalModel(buf, m))
	tmp, err := UnmarshalModel(buf)
	require.NoError(t, err)
	assert.Equal(t, GetModelName(m), GetModelName(tmp))
	assert.Equal(t, m.GetParams(), tmp.GetParams())
	for _, r := range ratings[:50] {
		assert.Equal(t, m.Predict(r.UserId, r.MovieId), tmp.Predict(r.UserId, r.MovieId))
	}
	assert.Equal(t, m.Predict(999, 1), tmp.Predict(999, 1))

	// clear
	m.Clear()
	assert.True(t, m.Invalid())
}

func TestSVD(t *testing.T) {
	testModel(t, NewSVD(newTestParams()))
}

func TestSVDpp(t *testing.T) {
	params := newTestParams()
	params[model.NEpochs] = 30
	testModel(t, NewSVDpp(params))
}

func TestSVD_ColdStart(t *testing.T) {
	m := NewSVD(newTestParams())
	_, err := m.Fit(context.Background(), newBlockRatings(10, 10), nil, newFitConfig())
	require.NoError(t, err)
	mu := m.GlobalMean
	userIndex := m.UserIndex.Index(3)
	itemIndex := m.ItemIndex.Index(4)
	// unknown user and known item
	assert.Equal(t, clamp(mu+m.ItemBias[itemIndex]), m.Predict(999, 4))
	// known user and unknown item
	assert.Equal(t, clamp(mu+m.UserBias[userIndex]), m.Predict(3, 999))
	// both unknown
	assert.Equal(t, clamp(mu), m.Predict(999, 888))
	// unfitted model falls back to the global mean
	assert.Equal(t, dataset.MinRating, NewSVD(nil).Predict(1, 1))
}

func TestSVD_Deterministic(t *testing.T) {
	ratings := newBlockRatings(10, 10)
	a := NewSVD(newTestParams())
	_, err := a.Fit(context.Background(), ratings, nil, newFitConfig())
	require.NoError(t, err)
	b := NewSVD(newTestParams())
	_, err = b.Fit(context.Background(), ratings, nil, NewFitConfig())
	require.NoError(t, err)
	assert.Equal(t, a.UserFactor, b.UserFactor)
	assert.Equal(t, a.ItemBias, b.ItemBias)

	// a different seed gives different factors
	params := newTestParams()
	params[model.RandomState] = 7
	c := NewSVD(params)
	_, err = c.Fit(context.Background(), ratings, nil, newFitConfig())
	require.NoError(t, err)
	assert.NotEqual(t, a.UserFactor, c.UserFactor)

	// refitting the same model reproduces the first fit
	_, err = a.Fit(context.Background(), ratings, nil, newFitConfig())
	require.NoError(t, err)
	assert.Equal(t, b.UserFactor, a.UserFactor)
}

func TestSVD_Errors(t *testing.T) {
	_, err := NewSVD(nil).Fit(context.Background(), nil, nil, nil)
	assert.Error(t, err)
	_, err = NewSVDpp(nil).Fit(context.Background(), []dataset.Rating{}, nil, nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewSVD(newTestParams()).Fit(ctx, newBlockRatings(4, 4), nil, nil)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = UnmarshalModel(bytes.NewReader(nil))
	assert.Error(t, err)
	_, err = NewModel("knn", nil)
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	m := NewSVD(model.Params{model.NEpochs: 0})
	_, err := m.Fit(context.Background(), []dataset.Rating{
		{UserId: 1, MovieId: 1, Rating: 4},
		{UserId: 2, MovieId: 2, Rating: 2},
	}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Score{}, m.Evaluate(nil))
	// without training every prediction is close to the global mean 3
	score := m.Evaluate([]dataset.Rating{
		{UserId: 9, MovieId: 9, Rating: 5},
		{UserId: 9, MovieId: 8, Rating: 1},
	})
	assert.InDelta(t, 2, score.RMSE, 1e-5)
	assert.InDelta(t, 2, score.MAE, 1e-5)
	assert.Equal(t, math32.Sqrt(4), score.RMSE)
}

func TestSearch(t *testing.T) {
	ratings := newBlockRatings(20, 20)
	train, test := dataset.SplitByTime(ratings, 0.2)
	result, err := Search(context.Background(), train, test, 2, model.Params{model.NEpochs: 5}, newFitConfig())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Contains(t, []string{"svd", "svdpp"}, result.Type)
	assert.Positive(t, result.Score.RMSE)

	_, err = Search(context.Background(), train, nil, 2, nil, nil)
	assert.Error(t, err)
}
