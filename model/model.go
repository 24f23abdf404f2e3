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

package model

import (
	"github.com/reelsense/reelsense/base"
)

// DefaultRandomState seeds every model that does not set RandomState.
const DefaultRandomState = 42

// Model is implemented by the rating and content models of ReelSense.
type Model interface {
	SetParams(params Params)
	GetParams() Params
	// Clear drops learned weights.
	Clear()
	// Invalid reports whether the model has not been fitted.
	Invalid() bool
}

// BaseModel keeps the hyper-parameters of a model and a generator seeded by
// RandomState, so that fitting twice with the same parameters gives the same
// weights.
type BaseModel struct {
	Params Params
	seed   int64
	rng    base.RandomGenerator
}

func (model *BaseModel) SetParams(params Params) {
	if params == nil {
		params = Params{}
	}
	model.Params = params
	model.seed = params.GetInt64(RandomState, DefaultRandomState)
	model.ResetRandomGenerator()
}

func (model *BaseModel) GetParams() Params {
	return model.Params
}

// Seed returns the seed of the random generator.
func (model *BaseModel) Seed() int64 {
	return model.seed
}

func (model *BaseModel) GetRandomGenerator() base.RandomGenerator {
	return model.rng
}

// ResetRandomGenerator restarts the random stream from the seed.
func (model *BaseModel) ResetRandomGenerator() {
	model.rng = base.NewRandomGenerator(model.seed)
}
