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
	"github.com/reelsense/reelsense/base/encoding"
	"github.com/reelsense/reelsense/base/log"
	"github.com/reelsense/reelsense/base/progress"
	"github.com/reelsense/reelsense/common/floats"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/model"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// SVDpp extends SVD with implicit feedback: the set of movies N(u) a user has
// rated contributes to the user representation.
//
//	\hat{r}_{ui} = \mu + b_u + b_i + q_i^T (p_u + |N(u)|^{-1/2} \sum_{j \in N(u)} y_j)
//
// Hyper-parameters are the same as SVD.
type SVDpp struct {
	BaseMatrixFactorization
	// |N(u)|^{-1/2} \sum y_j of every user, cached after fitting.
	UserImplicit [][]float32
	// Hyper parameters
	nFactors   int
	nEpochs    int
	lr         float32
	reg        float32
	initMean   float32
	initStdDev float32
}

// NewSVDpp creates a SVD++ model.
func NewSVDpp(params model.Params) *SVDpp {
	svd := new(SVDpp)
	svd.SetParams(params)
	return svd
}

// SetParams sets hyper-parameters of the SVD++ model.
func (svd *SVDpp) SetParams(params model.Params) {
	svd.BaseMatrixFactorization.SetParams(params)
	svd.nFactors = svd.Params.GetInt(model.NFactors, 50)
	svd.nEpochs = svd.Params.GetInt(model.NEpochs, 20)
	svd.lr = svd.Params.GetFloat32(model.Lr, 0.005)
	svd.reg = svd.Params.GetFloat32(model.Reg, 0.02)
	svd.initMean = svd.Params.GetFloat32(model.InitMean, 0)
	svd.initStdDev = svd.Params.GetFloat32(model.InitStdDev, 0.1)
}

// SuggestParams samples hyper-parameters for a search trial.
func (svd *SVDpp) SuggestParams(trial goptuna.Trial) model.Params {
	return model.Params{
		model.NFactors: lo.Must(trial.SuggestInt(string(model.NFactors), 10, 50)),
		model.NEpochs:  lo.Must(trial.SuggestInt(string(model.NEpochs), 10, 30)),
		model.Lr:       lo.Must(trial.SuggestLogFloat(string(model.Lr), 0.001, 0.05)),
		model.Reg:      lo.Must(trial.SuggestLogFloat(string(model.Reg), 0.001, 0.1)),
	}
}

// Predict the rating given by a user to a movie.
func (svd *SVDpp) Predict(userId, movieId int32) float32 {
	return svd.predict(userId, movieId, func(userIndex, itemIndex int32) float32 {
		return floats.Dot(svd.UserFactor[userIndex], svd.ItemFactor[itemIndex]) +
			floats.Dot(svd.UserImplicit[userIndex], svd.ItemFactor[itemIndex])
	})
}

func (svd *SVDpp) Evaluate(ratings []dataset.Rating) Score {
	return evaluate(svd, ratings, 1)
}

func (svd *SVDpp) Fit(ctx context.Context, trainSet, testSet []dataset.Rating, config *FitConfig) (Score, error) {
	if len(trainSet) == 0 {
		return Score{}, errors.New("fit svd++: empty train set")
	}
	if config == nil {
		config = NewFitConfig()
	}
	log.Logger().Info("fit svd++",
		zap.Int("train_set_size", len(trainSet)),
		zap.Int("test_set_size", len(testSet)),
		zap.Any("params", svd.GetParams()),
		zap.Any("config", config))
	svd.Init(trainSet)
	svd.ResetRandomGenerator()
	rng := svd.GetRandomGenerator()
	nUsers, nItems := int(svd.UserIndex.Count()), int(svd.ItemIndex.Count())
	svd.UserFactor = rng.NormalMatrix(nUsers, svd.nFactors, svd.initMean, svd.initStdDev)
	svd.ItemFactor = rng.NormalMatrix(nItems, svd.nFactors, svd.initMean, svd.initStdDev)
	implicitFactor := rng.NormalMatrix(nItems, svd.nFactors, svd.initMean, svd.initStdDev)
	userIndices, itemIndices := indexRatings(&svd.BaseMatrixFactorization, trainSet)
	userFeedback := make([][]int32, nUsers)
	for i := range trainSet {
		userFeedback[userIndices[i]] = append(userFeedback[userIndices[i]], itemIndices[i])
	}
	svd.UserImplicit = make([][]float32, nUsers)
	for userIndex := range svd.UserImplicit {
		svd.UserImplicit[userIndex] = make([]float32, svd.nFactors)
	}

	buffer := make([]float32, svd.nFactors)
	_, span := progress.Start(ctx, "SVDpp.Fit", svd.nEpochs)
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
			implicit := svd.UserImplicit[userIndex]
			feedback := userFeedback[userIndex]
			norm := 1 / math32.Sqrt(float32(len(feedback)))
			floats.Zero(implicit)
			for _, k := range feedback {
				floats.MulConstAdd(implicitFactor[k], norm, implicit)
			}
			pred := svd.GlobalMean + svd.UserBias[userIndex] + svd.ItemBias[itemIndex] +
				floats.Dot(userFactor, itemFactor) + floats.Dot(implicit, itemFactor)
			diff := trainSet[j].Rating - pred
			cost += diff * diff
			// update biases
			svd.UserBias[userIndex] += svd.lr * (diff - svd.reg*svd.UserBias[userIndex])
			svd.ItemBias[itemIndex] += svd.lr * (diff - svd.reg*svd.ItemBias[itemIndex])
			// update implicit factors with the old item factor
			copy(buffer, itemFactor)
			for _, k := range feedback {
				y := implicitFactor[k]
				for f := range y {
					y[f] += svd.lr * (diff*norm*buffer[f] - svd.reg*y[f])
				}
			}
			for f := range userFactor {
				itemFactor[f] += svd.lr * (diff*(userFactor[f]+implicit[f]) - svd.reg*itemFactor[f])
				userFactor[f] += svd.lr * (diff*buffer[f] - svd.reg*userFactor[f])
			}
		}
		svd.refreshImplicit(userFeedback, implicitFactor)
		if config.Verbose > 0 && epoch%config.Verbose == 0 || epoch == svd.nEpochs {
			fields := []zap.Field{
				zap.Int("epoch", epoch),
				zap.Float32("train_rmse", math32.Sqrt(cost/float32(len(trainSet)))),
			}
			if len(testSet) > 0 {
				score := evaluate(svd, testSet, config.Jobs)
				fields = append(fields, zap.Float32("test_rmse", score.RMSE), zap.Float32("test_mae", score.MAE))
			}
			log.Logger().Debug("fit svd++", fields...)
		}
		span.Add(1)
	}
	span.End()
	score := evaluate(svd, testSet, config.Jobs)
	log.Logger().Info("fit svd++ complete",
		zap.Float32("test_rmse", score.RMSE),
		zap.Float32("test_mae", score.MAE),
		zap.Duration("fit_time", time.Since(start)))
	return score, nil
}

// refreshImplicit recomputes the cached implicit term of every user.
func (svd *SVDpp) refreshImplicit(userFeedback [][]int32, implicitFactor [][]float32) {
	for userIndex, feedback := range userFeedback {
		implicit := svd.UserImplicit[userIndex]
		floats.Zero(implicit)
		if len(feedback) == 0 {
			continue
		}
		norm := 1 / math32.Sqrt(float32(len(feedback)))
		for _, k := range feedback {
			floats.MulConstAdd(implicitFactor[k], norm, implicit)
		}
	}
}

// Marshal model into byte stream.
func (svd *SVDpp) Marshal(w io.Writer) error {
	if err := svd.BaseMatrixFactorization.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(encoding.WriteMatrix(w, svd.UserImplicit))
}

// Unmarshal model from byte stream.
func (svd *SVDpp) Unmarshal(r io.Reader) error {
	if err := svd.BaseMatrixFactorization.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	var err error
	if svd.UserImplicit, err = encoding.ReadMatrix(r); err != nil {
		return errors.Trace(err)
	}
	if len(svd.UserImplicit) != int(svd.UserIndex.Count()) {
		return errors.New("corrupted implicit factors")
	}
	svd.SetParams(svd.Params)
	return nil
}

func (svd *SVDpp) Clear() {
	svd.BaseMatrixFactorization.Clear()
	svd.UserImplicit = nil
}
