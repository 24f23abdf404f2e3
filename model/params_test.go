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

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams_Copy(t *testing.T) {
	a := Params{NFactors: 50, Lr: 0.005, RandomState: int64(42)}
	b := a.Copy()
	b[NFactors] = 10
	b[Lr] = 0.05
	assert.Equal(t, 50, a.GetInt(NFactors, -1))
	assert.Equal(t, float32(0.005), a.GetFloat32(Lr, -1))
	assert.Equal(t, 10, b.GetInt(NFactors, -1))
	assert.Equal(t, float32(0.05), b.GetFloat32(Lr, -1))
	assert.Equal(t, int64(42), b.GetInt64(RandomState, -1))
}

func TestParams_Getters(t *testing.T) {
	p := Params{
		NFactors:    int64(8),
		NEpochs:     "twenty",
		Lr:          0.01,
		Reg:         1,
		InitStdDev:  float32(0.1),
		RandomState: 7,
		MaxFeatures: true,
	}
	// conversions between integer and float types
	assert.Equal(t, 8, p.GetInt(NFactors, -1))
	assert.Equal(t, int64(7), p.GetInt64(RandomState, -1))
	assert.Equal(t, float32(0.01), p.GetFloat32(Lr, -1))
	assert.Equal(t, float32(1), p.GetFloat32(Reg, -1))
	assert.Equal(t, float32(0.1), p.GetFloat32(InitStdDev, -1))
	// mismatched types fall back to defaults
	assert.Equal(t, 20, p.GetInt(NEpochs, 20))
	assert.Equal(t, 5000, p.GetInt(MaxFeatures, 5000))
	// missing names fall back to defaults
	assert.Equal(t, float32(0), p.GetFloat32(InitMean, 0))
}

func TestParams_Overwrite(t *testing.T) {
	a := Params{NFactors: 10, Lr: 0.1}
	b := a.Overwrite(Params{Lr: 0.5, Reg: 0.01})
	assert.Equal(t, Params{NFactors: 10, Lr: 0.5, Reg: 0.01}, b)
	assert.Equal(t, Params{NFactors: 10, Lr: 0.1}, a)
}

func TestBaseModel(t *testing.T) {
	var m BaseModel
	m.SetParams(nil)
	assert.Equal(t, int64(DefaultRandomState), m.Seed())
	first := m.GetRandomGenerator().NormalVector(4, 0, 1)
	m.ResetRandomGenerator()
	assert.Equal(t, first, m.GetRandomGenerator().NormalVector(4, 0, 1))

	m.SetParams(Params{RandomState: 1})
	assert.Equal(t, int64(1), m.Seed())
	assert.Equal(t, Params{RandomState: 1}, m.GetParams())
}
