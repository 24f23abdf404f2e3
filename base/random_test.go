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

package base

import (
	"testing"

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

const randomEpsilon = 0.1

func TestRandomGenerator_NormalMatrix(t *testing.T) {
	rng := NewRandomGenerator(0)
	vec := rng.NormalMatrix(1, 1000, 1, 2)[0]
	mean := lo.Sum(vec) / float32(len(vec))
	var variance float32
	for _, v := range vec {
		variance += (v - mean) * (v - mean)
	}
	stdDev := math32.Sqrt(variance / float32(len(vec)))
	assert.False(t, math32.Abs(mean-1) > randomEpsilon)
	assert.False(t, math32.Abs(stdDev-2) > randomEpsilon)
}

func TestRandomGenerator_Deterministic(t *testing.T) {
	a := NewRandomGenerator(42).NormalMatrix(3, 4, 0, 0.1)
	b := NewRandomGenerator(42).NormalMatrix(3, 4, 0, 0.1)
	assert.Equal(t, a, b)
}

func TestRandomGenerator_Sample(t *testing.T) {
	excludeSet := mapset.NewSet(0, 1, 2, 3, 4)
	rng := NewRandomGenerator(0)
	for i := 1; i <= 10; i++ {
		sampled := rng.Sample(0, 10, i, excludeSet)
		assert.LessOrEqual(t, len(sampled), 5)
		for j := range sampled {
			assert.False(t, excludeSet.Contains(sampled[j]))
		}
	}
}

func TestChoose(t *testing.T) {
	values := []int32{10, 20, 30, 40, 50}
	chosen := Choose(NewRandomGenerator(42), values, 3)
	assert.Len(t, chosen, 3)
	assert.Len(t, lo.Uniq(chosen), 3)
	assert.Subset(t, values, chosen)
	assert.Equal(t, chosen, Choose(NewRandomGenerator(42), values, 3))
	assert.ElementsMatch(t, values, Choose(NewRandomGenerator(1), values, 10))
}
