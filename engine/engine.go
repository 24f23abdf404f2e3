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
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/reelsense/reelsense/base/log"
	"github.com/reelsense/reelsense/base/progress"
	"github.com/reelsense/reelsense/config"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/logics"
	"github.com/reelsense/reelsense/model/cf"
	"github.com/reelsense/reelsense/model/content"
	"go.uber.org/zap"
)

var ErrModelNotReady = logics.ErrModelNotReady

// Engine bundles the trained state of ReelSense. It is immutable once built:
// retraining builds a new engine.
type Engine struct {
	Dataset   *dataset.Dataset
	CF        cf.Model
	Content   *content.Model
	TestSet   []dataset.Rating
	Score     cf.Score
	TrainedAt time.Time

	recommender *logics.Recommender
}

// New assembles an engine from trained models.
func New(d *dataset.Dataset, cfModel cf.Model, contentModel *content.Model, profileSize int) *Engine {
	e := &Engine{
		Dataset:   d,
		CF:        cfModel,
		Content:   contentModel,
		TrainedAt: time.Now().UTC(),
	}
	e.recommender = logics.NewRecommender(d, cfModel, contentModel)
	if profileSize > 0 {
		e.recommender.ProfileSize = profileSize
	}
	return e
}

// TrainResult summarizes a training run.
type TrainResult struct {
	NumRatings   int           `json:"n_ratings"`
	NumTrain     int           `json:"n_train"`
	NumTest      int           `json:"n_test"`
	NumSkipped   int           `json:"n_skipped"`
	NumMovies    int           `json:"n_movies"`
	NumUsers     int           `json:"n_users"`
	Vocabulary   int           `json:"vocabulary"`
	Score        cf.Score      `json:"score"`
	TrainingTime time.Duration `json:"training_time"`
}

// Train fits both models on a chronological split of ratings. Invalid
// ratings are skipped and duplicate (user, movie) ratings are reduced to the
// latest one. The served catalog holds the train ratings only and the held
// out ratings are kept for evaluation.
func Train(ctx context.Context, ratings []dataset.Rating, movies []dataset.Movie, cfg *config.Config) (*Engine, *TrainResult, error) {
	if cfg == nil {
		cfg = config.GetDefaultConfig()
	}
	if len(movies) == 0 {
		return nil, nil, errors.NotValidf("empty catalog")
	}
	start := time.Now()
	ctx, span := progress.Start(ctx, "Train", 3)
	defer span.End()

	result := &TrainResult{NumMovies: len(movies)}
	valid := make([]dataset.Rating, 0, len(ratings))
	for _, r := range ratings {
		if err := dataset.ValidateRating(r); err != nil {
			result.NumSkipped++
			continue
		}
		valid = append(valid, r)
	}
	valid = dataset.Deduplicate(valid)
	if len(valid) == 0 {
		err := errors.NotValidf("no valid rating")
		span.Fail(err)
		return nil, nil, err
	}
	train, test := dataset.SplitByTime(valid, float64(cfg.Model.TestRatio))
	result.NumRatings, result.NumTrain, result.NumTest = len(valid), len(train), len(test)
	span.Add(1)

	// collaborative filtering
	cfModel, err := cf.NewModel(cfg.Model.Type, cfg.Model.GetParams())
	if err != nil {
		span.Fail(err)
		return nil, nil, errors.Trace(err)
	}
	fitConfig := cf.NewFitConfig().SetJobs(cfg.Model.Jobs).SetVerbose(cfg.Model.Verbose)
	if result.Score, err = cfModel.Fit(ctx, train, test, fitConfig); err != nil {
		span.Fail(err)
		return nil, nil, errors.Trace(err)
	}
	span.Add(1)

	// content similarity
	contentModel := content.NewModel(cfg.Model.GetContentParams())
	if err = contentModel.Fit(ctx, movies); err != nil {
		span.Fail(err)
		return nil, nil, errors.Trace(err)
	}
	span.Add(1)

	e := New(dataset.NewDataset(train, movies), cfModel, contentModel, cfg.Recommend.ProfileSize)
	e.TestSet = test
	e.Score = result.Score
	result.NumUsers = e.Dataset.CountUsers()
	result.Vocabulary = contentModel.Vectorizer.VocabularySize()
	result.TrainingTime = time.Since(start)
	log.Logger().Info("complete training",
		zap.String("model", cfg.Model.Type),
		zap.Int("n_train", result.NumTrain),
		zap.Int("n_test", result.NumTest),
		zap.Int("n_skipped", result.NumSkipped),
		zap.Int("n_movies", result.NumMovies),
		zap.Int("vocabulary", result.Vocabulary),
		zap.Float32("rmse", result.Score.RMSE),
		zap.Float32("mae", result.Score.MAE),
		zap.Duration("training_time", result.TrainingTime))
	return e, result, nil
}

// Ready returns ErrModelNotReady unless the engine can serve requests.
func (e *Engine) Ready() error {
	if e == nil {
		return ErrModelNotReady
	}
	return e.recommender.Ready()
}

// Predict returns the predicted rating of a user for a movie. Unknown ids
// fall back to biases.
func (e *Engine) Predict(userId, movieId int32) (float32, error) {
	if err := e.Ready(); err != nil {
		return 0, err
	}
	return e.CF.Predict(userId, movieId), nil
}

// SimilarItems returns the n movies closest in content to a movie. Unknown
// movies have no neighbors.
func (e *Engine) SimilarItems(movieId int32, n int) ([]content.Neighbor, error) {
	if err := e.Ready(); err != nil {
		return nil, err
	}
	neighbors := e.Content.TopKSimilar(movieId, n)
	if neighbors == nil {
		neighbors = []content.Neighbor{}
	}
	return neighbors, nil
}

// Explain tells a user why a movie is recommended.
func (e *Engine) Explain(userId, movieId int32, cfWeight float32) (logics.Explanation, error) {
	if err := e.Ready(); err != nil {
		return logics.Explanation{}, err
	}
	if cfWeight < 0 || cfWeight > 1 {
		return logics.Explanation{}, errors.NotValidf("cf weight %v", cfWeight)
	}
	return e.recommender.Explain(userId, movieId, cfWeight)
}

// Profile summarizes the taste of a user.
func (e *Engine) Profile(userId int32) (logics.UserProfile, error) {
	if err := e.Ready(); err != nil {
		return logics.UserProfile{}, err
	}
	return logics.BuildProfile(e.Dataset, userId), nil
}

// Stats describes the served catalog.
type Stats struct {
	NumMovies  int       `json:"n_movies"`
	NumUsers   int       `json:"n_users"`
	NumRatings int       `json:"n_ratings"`
	MeanRating float32   `json:"mean_rating"`
	Sparsity   float64   `json:"sparsity"`
	NumGenres  int       `json:"n_genres"`
	Model      string    `json:"model"`
	Score      cf.Score  `json:"score"`
	TrainedAt  time.Time `json:"trained_at"`
}

func (e *Engine) Stats() (Stats, error) {
	if err := e.Ready(); err != nil {
		return Stats{}, err
	}
	return Stats{
		NumMovies:  e.Dataset.CountMovies(),
		NumUsers:   e.Dataset.CountUsers(),
		NumRatings: e.Dataset.CountRatings(),
		MeanRating: e.Dataset.GlobalMean(),
		Sparsity:   e.Dataset.Sparsity(),
		NumGenres:  len(e.Dataset.Genres()),
		Model:      cf.GetModelName(e.CF),
		Score:      e.Score,
		TrainedAt:  e.TrainedAt,
	}, nil
}
