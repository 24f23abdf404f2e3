// Copyright 2020 gorse Project Authors
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
	"sort"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/juju/errors"
	"github.com/reelsense/reelsense/base/log"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/model"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Searchable models can sample their hyper-parameters from a trial.
type Searchable interface {
	Model
	SuggestParams(trial goptuna.Trial) model.Params
}

type ModelCreator func() Searchable

// SearchResult is the best model found by a search.
type SearchResult struct {
	Type   string       `json:"type"`
	Params model.Params `json:"params"`
	Score  Score        `json:"score"`
}

// ModelSearch is the objective of a hyper-parameter study minimizing test RMSE.
type ModelSearch struct {
	ctx           context.Context
	modelCreators map[string]ModelCreator
	modelTypes    []string
	trainSet      []dataset.Rating
	testSet       []dataset.Rating
	config        *FitConfig
	result        *SearchResult
}

func NewModelSearch(ctx context.Context, models map[string]ModelCreator, trainSet, testSet []dataset.Rating, config *FitConfig) *ModelSearch {
	modelTypes := lo.Keys(models)
	sort.Strings(modelTypes)
	return &ModelSearch{
		ctx:           ctx,
		modelCreators: models,
		modelTypes:    modelTypes,
		trainSet:      trainSet,
		testSet:       testSet,
		config:        config,
	}
}

func (ms *ModelSearch) Objective(trial goptuna.Trial) (float64, error) {
	if len(ms.modelCreators) == 0 {
		return 0, errors.New("no model to search")
	}
	modelType, err := trial.SuggestCategorical("Model", ms.modelTypes)
	if err != nil {
		return 0, errors.Trace(err)
	}
	m := ms.modelCreators[modelType]()
	m.SetParams(m.GetParams().Overwrite(m.SuggestParams(trial)))
	score, err := m.Fit(ms.ctx, ms.trainSet, ms.testSet, ms.config)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if ms.result == nil || score.RMSE < ms.result.Score.RMSE {
		ms.result = &SearchResult{
			Type:   modelType,
			Params: m.GetParams(),
			Score:  score,
		}
	}
	return float64(score.RMSE), nil
}

// Result returns the best model found so far or nil before any trial.
func (ms *ModelSearch) Result() *SearchResult {
	return ms.result
}

// Search runs a TPE study of numTrials trials over SVD and SVD++.
func Search(ctx context.Context, trainSet, testSet []dataset.Rating, numTrials int, base model.Params, config *FitConfig) (*SearchResult, error) {
	if len(testSet) == 0 {
		return nil, errors.New("search requires a test set")
	}
	search := NewModelSearch(ctx, map[string]ModelCreator{
		"svd":   func() Searchable { return NewSVD(base.Copy()) },
		"svdpp": func() Searchable { return NewSVDpp(base.Copy()) },
	}, trainSet, testSet, config)
	study, err := goptuna.CreateStudy("reelsense",
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
		goptuna.StudyOptionSampler(tpe.NewSampler()))
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = study.Optimize(search.Objective, numTrials); err != nil {
		return nil, errors.Trace(err)
	}
	result := search.Result()
	if result != nil {
		log.Logger().Info("complete model search",
			zap.String("model", result.Type),
			zap.Any("params", result.Params),
			zap.Float32("rmse", result.Score.RMSE))
	}
	return result, nil
}
