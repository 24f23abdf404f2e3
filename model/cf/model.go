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
	"reflect"

	"github.com/bits-and-blooms/bitset"
	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"github.com/reelsense/reelsense/base/encoding"
	"github.com/reelsense/reelsense/common/parallel"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/model"
)

// Score is the rating accuracy of a model on a rating set.
type Score struct {
	RMSE float32 `json:"rmse"`
	MAE  float32 `json:"mae"`
}

type FitConfig struct {
	Jobs    int
	Verbose int
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 10,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

type Model interface {
	model.Model
	// Fit a model with a train set and parameters. The test set is optional.
	Fit(ctx context.Context, trainSet, testSet []dataset.Rating, config *FitConfig) (Score, error)
	// Predict the rating given by a user to a movie. Unknown ids fall back to biases.
	Predict(userId, movieId int32) float32
	// Evaluate rating accuracy without mutating the model.
	Evaluate(ratings []dataset.Rating) Score
	// GetUserIndex returns user index.
	GetUserIndex() *dataset.FreqDict
	// GetItemIndex returns item index.
	GetItemIndex() *dataset.FreqDict
	// GetGlobalMean returns the mean rating of the train set.
	GetGlobalMean() float32
	// Marshal model into byte stream.
	Marshal(w io.Writer) error
	// Unmarshal model from byte stream.
	Unmarshal(r io.Reader) error
}

// BaseMatrixFactorization holds the state shared by biased matrix factorization models.
type BaseMatrixFactorization struct {
	model.BaseModel
	UserIndex       *dataset.FreqDict
	ItemIndex       *dataset.FreqDict
	UserPredictable *bitset.BitSet
	ItemPredictable *bitset.BitSet
	// Model parameters
	GlobalMean float32     // mu
	UserBias   []float32   // b_u
	ItemBias   []float32   // b_i
	UserFactor [][]float32 // p_u
	ItemFactor [][]float32 // q_i
}

// Init builds indices from the train set, computes the global mean and zeroes biases.
func (baseModel *BaseMatrixFactorization) Init(trainSet []dataset.Rating) {
	baseModel.UserIndex = dataset.NewFreqDict()
	baseModel.ItemIndex = dataset.NewFreqDict()
	var sum float64
	for _, r := range trainSet {
		baseModel.UserIndex.Add(r.UserId)
		baseModel.ItemIndex.Add(r.MovieId)
		sum += float64(r.Rating)
	}
	baseModel.GlobalMean = float32(sum / float64(len(trainSet)))
	baseModel.UserBias = make([]float32, baseModel.UserIndex.Count())
	baseModel.ItemBias = make([]float32, baseModel.ItemIndex.Count())
	baseModel.initPredictable()
}

func (baseModel *BaseMatrixFactorization) initPredictable() {
	baseModel.UserPredictable = bitset.New(uint(baseModel.UserIndex.Count()))
	for userIndex := int32(0); userIndex < baseModel.UserIndex.Count(); userIndex++ {
		if baseModel.UserIndex.Freq(userIndex) > 0 {
			baseModel.UserPredictable.Set(uint(userIndex))
		}
	}
	baseModel.ItemPredictable = bitset.New(uint(baseModel.ItemIndex.Count()))
	for itemIndex := int32(0); itemIndex < baseModel.ItemIndex.Count(); itemIndex++ {
		if baseModel.ItemIndex.Freq(itemIndex) > 0 {
			baseModel.ItemPredictable.Set(uint(itemIndex))
		}
	}
}

func (baseModel *BaseMatrixFactorization) GetUserIndex() *dataset.FreqDict {
	return baseModel.UserIndex
}

func (baseModel *BaseMatrixFactorization) GetItemIndex() *dataset.FreqDict {
	return baseModel.ItemIndex
}

func (baseModel *BaseMatrixFactorization) GetGlobalMean() float32 {
	return baseModel.GlobalMean
}

// IsUserPredictable returns false if user has no feedback and its embedding vector never be trained.
func (baseModel *BaseMatrixFactorization) IsUserPredictable(userIndex int32) bool {
	if userIndex >= baseModel.UserIndex.Count() || userIndex < 0 {
		return false
	}
	return baseModel.UserPredictable.Test(uint(userIndex))
}

// IsItemPredictable returns false if item has no feedback and its embedding vector never be trained.
func (baseModel *BaseMatrixFactorization) IsItemPredictable(itemIndex int32) bool {
	if itemIndex >= baseModel.ItemIndex.Count() || itemIndex < 0 {
		return false
	}
	return baseModel.ItemPredictable.Test(uint(itemIndex))
}

// GetUserFactor returns the latent factor of a user.
func (baseModel *BaseMatrixFactorization) GetUserFactor(userIndex int32) []float32 {
	return baseModel.UserFactor[userIndex]
}

// GetItemFactor returns the latent factor of an item.
func (baseModel *BaseMatrixFactorization) GetItemFactor(itemIndex int32) []float32 {
	return baseModel.ItemFactor[itemIndex]
}

// predict applies the cold-start policy: the interaction term needs both ids
// known, each bias needs its own id known.
func (baseModel *BaseMatrixFactorization) predict(userId, movieId int32, interaction func(userIndex, itemIndex int32) float32) float32 {
	if baseModel.Invalid() {
		return clamp(baseModel.GlobalMean)
	}
	userIndex := baseModel.UserIndex.Index(userId)
	itemIndex := baseModel.ItemIndex.Index(movieId)
	userKnown := baseModel.IsUserPredictable(userIndex)
	itemKnown := baseModel.IsItemPredictable(itemIndex)
	ret := baseModel.GlobalMean
	if userKnown {
		ret += baseModel.UserBias[userIndex]
	}
	if itemKnown {
		ret += baseModel.ItemBias[itemIndex]
	}
	if userKnown && itemKnown {
		ret += interaction(userIndex, itemIndex)
	}
	return clamp(ret)
}

// Marshal model into byte stream.
func (baseModel *BaseMatrixFactorization) Marshal(w io.Writer) error {
	// write params
	if err := encoding.WriteGob(w, baseModel.Params); err != nil {
		return errors.Trace(err)
	}
	// write indices
	if err := baseModel.UserIndex.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := baseModel.ItemIndex.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	// write biases
	if err := encoding.WriteSlice(w, []float32{baseModel.GlobalMean}); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteSlice(w, baseModel.UserBias); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteSlice(w, baseModel.ItemBias); err != nil {
		return errors.Trace(err)
	}
	// write latent factors
	if err := encoding.WriteMatrix(w, baseModel.UserFactor); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(encoding.WriteMatrix(w, baseModel.ItemFactor))
}

// Unmarshal model from byte stream.
func (baseModel *BaseMatrixFactorization) Unmarshal(r io.Reader) error {
	// read params
	var params model.Params
	if err := encoding.ReadGob(r, &params); err != nil {
		return errors.Trace(err)
	}
	baseModel.BaseModel.SetParams(params)
	// read indices
	baseModel.UserIndex = dataset.NewFreqDict()
	if err := baseModel.UserIndex.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	baseModel.ItemIndex = dataset.NewFreqDict()
	if err := baseModel.ItemIndex.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	// read biases
	mean, err := encoding.ReadSlice[float32](r)
	if err != nil {
		return errors.Trace(err)
	}
	if len(mean) != 1 {
		return errors.New("corrupted global mean")
	}
	baseModel.GlobalMean = mean[0]
	if baseModel.UserBias, err = encoding.ReadSlice[float32](r); err != nil {
		return errors.Trace(err)
	}
	if baseModel.ItemBias, err = encoding.ReadSlice[float32](r); err != nil {
		return errors.Trace(err)
	}
	// read latent factors
	if baseModel.UserFactor, err = encoding.ReadMatrix(r); err != nil {
		return errors.Trace(err)
	}
	if baseModel.ItemFactor, err = encoding.ReadMatrix(r); err != nil {
		return errors.Trace(err)
	}
	if len(baseModel.UserBias) != int(baseModel.UserIndex.Count()) || len(baseModel.UserFactor) != int(baseModel.UserIndex.Count()) {
		return errors.New("corrupted user parameters")
	}
	if len(baseModel.ItemBias) != int(baseModel.ItemIndex.Count()) || len(baseModel.ItemFactor) != int(baseModel.ItemIndex.Count()) {
		return errors.New("corrupted item parameters")
	}
	baseModel.initPredictable()
	return nil
}

func (baseModel *BaseMatrixFactorization) Clear() {
	baseModel.UserIndex = nil
	baseModel.ItemIndex = nil
	baseModel.UserBias = nil
	baseModel.ItemBias = nil
	baseModel.ItemFactor = nil
	baseModel.UserFactor = nil
}

func (baseModel *BaseMatrixFactorization) Invalid() bool {
	return baseModel == nil ||
		baseModel.UserIndex == nil ||
		baseModel.ItemIndex == nil ||
		baseModel.ItemFactor == nil ||
		baseModel.UserFactor == nil
}

func clamp(x float32) float32 {
	return math32.Max(dataset.MinRating, math32.Min(dataset.MaxRating, x))
}

// evaluate computes RMSE and MAE over ratings. Partial sums are reduced in job
// order so the result does not depend on the number of workers.
func evaluate(m Model, ratings []dataset.Rating, jobs int) Score {
	if len(ratings) == 0 {
		return Score{}
	}
	const chunkSize = 4096
	numChunks := (len(ratings) + chunkSize - 1) / chunkSize
	squared := make([]float64, numChunks)
	absolute := make([]float64, numChunks)
	_ = parallel.Parallel(context.Background(), numChunks, jobs, func(_, jobId int) error {
		end := min((jobId+1)*chunkSize, len(ratings))
		for _, r := range ratings[jobId*chunkSize : end] {
			diff := float64(r.Rating - m.Predict(r.UserId, r.MovieId))
			squared[jobId] += diff * diff
			if diff < 0 {
				diff = -diff
			}
			absolute[jobId] += diff
		}
		return nil
	})
	var sumSquared, sumAbsolute float64
	for i := range squared {
		sumSquared += squared[i]
		sumAbsolute += absolute[i]
	}
	n := float64(len(ratings))
	return Score{
		RMSE: math32.Sqrt(float32(sumSquared / n)),
		MAE:  float32(sumAbsolute / n),
	}
}

func GetModelName(m Model) string {
	switch m.(type) {
	case *SVD:
		return "svd"
	case *SVDpp:
		return "svdpp"
	default:
		return reflect.TypeOf(m).String()
	}
}

// NewModel creates an untrained model by name.
func NewModel(name string, params model.Params) (Model, error) {
	switch name {
	case "svd":
		return NewSVD(params), nil
	case "svdpp":
		return NewSVDpp(params), nil
	}
	return nil, errors.NotSupportedf("model %v", name)
}

func MarshalModel(w io.Writer, m Model) error {
	if err := encoding.WriteString(w, GetModelName(m)); err != nil {
		return errors.Trace(err)
	}
	if err := m.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func UnmarshalModel(r io.Reader) (Model, error) {
	name, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	m, err := NewModel(name, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = m.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	return m, nil
}
