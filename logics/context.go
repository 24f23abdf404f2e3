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
	"time"

	"github.com/samber/lo"
)

const (
	WeekdayMorning = "weekday_morning"
	WeekdayEvening = "weekday_evening"
	Weekend        = "weekend"

	Desktop = "desktop"
	Mobile  = "mobile"
	TV      = "tv"
)

// TemporalContext maps a time to a viewing context.
func TemporalContext(t time.Time) string {
	switch {
	case t.Weekday() == time.Saturday || t.Weekday() == time.Sunday:
		return Weekend
	case t.Hour() < 12:
		return WeekdayMorning
	default:
		return WeekdayEvening
	}
}

// ValidContext reports whether a context or device name is known. Empty
// names are valid and mean no adjustment.
func ValidContext(context, device string) bool {
	return lo.Contains([]string{"", WeekdayMorning, WeekdayEvening, Weekend}, context) &&
		lo.Contains([]string{"", Desktop, Mobile, TV}, device)
}

// AdjustByContext scales a score by the viewing context and device.
func AdjustByContext(score float32, genres []string, context, device string) float32 {
	switch context {
	case Weekend:
		if lo.Contains(genres, "Action") || lo.Contains(genres, "Adventure") {
			score *= 1.1
		}
	case WeekdayEvening:
		if lo.Contains(genres, "Comedy") || lo.Contains(genres, "Romance") {
			score *= 1.05
		}
	}
	if device == Desktop {
		score *= 1.15
	}
	return score
}
