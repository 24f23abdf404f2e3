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

package logics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTemporalContext(t *testing.T) {
	assert.Equal(t, Weekend, TemporalContext(time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)))
	assert.Equal(t, WeekdayMorning, TemporalContext(time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, WeekdayEvening, TemporalContext(time.Date(2024, 6, 3, 20, 0, 0, 0, time.UTC)))
}

func TestAdjustByContext(t *testing.T) {
	assert.InDelta(t, 1.1, AdjustByContext(1, []string{"Action"}, Weekend, ""), 1e-6)
	assert.InDelta(t, 1, AdjustByContext(1, []string{"Comedy"}, Weekend, ""), 1e-6)
	assert.InDelta(t, 1.05, AdjustByContext(1, []string{"Romance"}, WeekdayEvening, ""), 1e-6)
	assert.InDelta(t, 1, AdjustByContext(1, []string{"Action"}, WeekdayMorning, ""), 1e-6)
	assert.InDelta(t, 1.15, AdjustByContext(1, nil, "", Desktop), 1e-6)
	assert.InDelta(t, 1.1*1.15, AdjustByContext(1, []string{"Adventure"}, Weekend, Desktop), 1e-6)
	assert.InDelta(t, 1, AdjustByContext(1, []string{"Action"}, "", Mobile), 1e-6)
}

func TestValidContext(t *testing.T) {
	assert.True(t, ValidContext("", ""))
	assert.True(t, ValidContext(Weekend, TV))
	assert.False(t, ValidContext("holiday", ""))
	assert.False(t, ValidContext("", "watch"))
}
