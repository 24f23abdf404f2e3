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
	"context"
	"io"
	"time"

	"github.com/c-bata/goptuna"
	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"github.com/reelsense/reelsense/base/log"
	"github.com/reelsense/reelsense/base/progress"
	"github.com/reelsense/reelsense/common/floats"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/model"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// SVD is the Funk-SVD model with biases. The rating of user u for item i is
// estimated by:
//
//	\hat{r}_{ui} = \mu + b_u + b_i + q_i^T p_u
//
// Parameters are learned by SGD over the train set, reshuffled every epoch.
//
// Hyper-parameters:
//
//	 Reg 		- The regularization parameter of the cost function that is
//				  optimized. Default is 0.02.
//	 Lr 		- The learning rate of SGD. Default is 0.005.
//	 NFactors	- The number of latent factors. Default is 50.
//	 NEpochs	- The number of iteration of the SGD procedure. Default is 20.
//	 InitMean	- The mean of initial random latent factors. Default is 0.
//	 InitStdDev	- The standard deviation of initial random latent factors. Default is 0.1.
//	 RandomState	- The seed of the random generator. Default is 42.
type SVD struct {
	BaseMatrixFactorization
	// Hyper parameters
	nFactors   int
	nEpochs    int
	lr         float32
	reg        float32
	initMean   float32
	initStdDev float32
}

// NewSVD creates a SVD model.
func NewSVD(params model.Params) *SVD {
	svd := new(SVD)
	svd.SetParams(params)
	return svd
}

// SetParams sets hyper-parameters of the SVD model.
func (svd *SVD) SetParams(params model.Params) {
	svd.BaseMatrixFactorization.SetParams(params)
	svd.nFactors = svd.Params.GetInt(model.NFactors, 50)
	svd.nEpochs = svd.Params.GetInt(model.NEpochs, 20)
	svd.lr = svd.Params.GetFloat32(model.Lr, 0.005)
	svd.reg = svd.Params.GetFloat32(model.Reg, 0.02)
	svd.initMean = svd.Params.GetFloat32(model.InitMean, 0)
	svd.initStdDev = svd.Params.GetFloat32(model.InitStdDev, 0.1)
}

// SuggestParams samples hyper-parameters for a search trial.
func (svd *SVD) SuggestParams(trial goptuna.Trial) model.Params {
	return model.Params{
		model.NFactors: lo.Must(trial.SuggestInt(string(model.NFactors), 10, 100)),
		model.NEpochs:  lo.Must(trial.SuggestInt(string(model.NEpochs), 10, 40)),
		model.Lr:       lo.Must(trial.SuggestLogFloat(string(model.Lr), 0.001, 0.05)),
		model.Reg:      lo.Must(trial.SuggestLogFloat(string(model.Reg), 0.001, 0.1)),
	}
}

// Predict the rating given by a user to a movie.
func (svd *SVD) Predict(userId, movieId int32) float32 {
	return svd.predict(userId, movieId, func(userIndex, itemIndex int32) float32 {
		return floats.Dot(svd.UserFactor[userIndex], svd.ItemFactor[itemIndex])
	})
}

func (svd *SVD) Evaluate(ratings []dataset.Rating) Score {
	return evaluate(svd, ratings, 1)
}

func (svd *SVD) Fit(ctx context.Context, trainSet, testSet []dataset.Rating, config *FitConfig) (Score, error) {
	if len(trainSet) == 0 {
		return Score{}, errors.New("fit svd: empty train set")
	}
	if config == nil {
		config = NewFitConfig()
	}
	log.Logger().Info("fit svd",
		zap.Int("train_set_size", len(trainSet)),
		zap.Int("test_set_size", len(testSet)),
		zap.Any("params", svd.GetParams()),
		zap.Any("config", config))
	svd.Init(trainSet)
	svd.ResetRandomGenerator()
	rng := svd.GetRandomGenerator()
	svd.UserFactor = rng.NormalMatrix(int(svd.UserIndex.Count()), svd.nFactors, svd.initMean, svd.initStdDev)
	svd.ItemFactor = rng.NormalMatrix(int(svd.ItemIndex.Count()), svd.nFactors, svd.initMean, svd.initStdDev)
	userIndices, itemIndices := indexRatings(&svd.BaseMatrixFactorization, trainSet)

	buffer := make([]float32, svd.nFactors)
	_, span := progress.Start(ctx, "SVD.Fit", svd.nEpochs)
	start := time.Now()
	for epoch := 1; epoch <= svd.nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			span.Fail(err)
			return Score{}, errors.Trace(err)
		}
		var cost float32
		for _, j := range rng.Perm(len(trainSet)) {
			userIndex, itemIndex := userIndices[j], itemIndices[j]
			userFactor := svd.UserFactor[userIndex]
			itemFactor := svd.ItemFactor[itemIndex]
			pred := svd.GlobalMean + svd.UserBias[userIndex] + svd.ItemBias[itemIndex] + floats.Dot(userFactor, itemFactor)
			diff := trainSet[j].Rating - pred
			cost += diff * diff
			// update biases
			svd.UserBias[userIndex] += svd.lr * (diff - svd.reg*svd.UserBias[userIndex])
			svd.ItemBias[itemIndex] += svd.lr * (diff - svd.reg*svd.ItemBias[itemIndex])
			// update latent factors with the old user factor
			copy(buffer, userFactor)
			for f := range userFactor {
				userFactor[f] += svd.lr * (diff*itemFactor[f] - svd.reg*userFactor[f])
				itemFactor[f] += svd.lr * (diff*buffer[f] - svd.reg*itemFactor[f])
			}
		}
		if config.Verbose > 0 && epoch%config.Verbose == 0 || epoch == svd.nEpochs {
			fields := []zap.Field{
				zap.Int("epoch", epoch),
				zap.Float32("train_rmse", math32.Sqrt(cost/float32(len(trainSet)))),
			}
			if len(testSet) > 0 {
				score := evaluate(svd, testSet, config.Jobs)
				fields = append(fields, zap.Float32("test_rmse", score.RMSE), zap.Float32("test_mae", score.MAE))
			}
			log.Logger().Debug("fit svd", fields...)
		}
		span.Add(1)
	}
	span.End()
	score := evaluate(svd, testSet, config.Jobs)
	log.Logger().Info("fit svd complete",
		zap.Float32("test_rmse", score.RMSE),
		zap.Float32("test_mae", score.MAE),
		zap.Duration("fit_time", time.Since(start)))
	return score, nil
}

// Unmarshal model from byte stream.
func (svd *SVD) Unmarshal(r io.Reader) error {
	if err := svd.BaseMatrixFactorization.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	svd.SetParams(svd.Params)
	return nil
}

// indexRatings converts rating ids to dense indices of a fitted model.
func indexRatings(baseModel *BaseMatrixFactorization, ratings []dataset.Rating) (userIndices, itemIndices []int32) {
	userIndices = make([]int32, len(ratings))
	itemIndices = make([]int32, len(ratings))
	for i, r := range ratings {
		userIndices[i] = baseModel.UserIndex.Index(r.UserId)
		itemIndices[i] = baseModel.ItemIndex.Index(r.MovieId)
	}
	return
}
