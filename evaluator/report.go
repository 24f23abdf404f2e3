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

package evaluator

import (
	"fmt"
	"io"

	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/reelsense/reelsense/model/cf"
)

// Summary of a metric over users.
type Summary struct {
	Mean float32 `json:"mean"`
	Std  float32 `json:"std"`
}

// Result of a recommender.
type Result struct {
	Name      string             `json:"name"`
	Metrics   map[string]Summary `json:"metrics"`
	Coverage  float32            `json:"coverage"`
	Evaluated int                `json:"evaluated"`
	Skipped   int                `json:"skipped"`
}

// Report of an evaluation run.
type Report struct {
	TopK     int       `json:"top_k"`
	NumUsers int       `json:"num_users"`
	Accuracy *cf.Score `json:"accuracy,omitempty"`
	Results  []Result  `json:"results"`
}

// Get returns the result of a recommender.
func (r *Report) Get(name string) (Result, bool) {
	for _, result := range r.Results {
		if result.Name == name {
			return result, true
		}
	}
	return Result{}, false
}

// Print renders the report as tables.
func (r *Report) Print(w io.Writer) error {
	if r.Accuracy != nil {
		table := tablewriter.NewWriter(w)
		table.Header("RMSE", "MAE")
		if err := table.Append([]string{
			fmt.Sprintf("%.4f", r.Accuracy.RMSE),
			fmt.Sprintf("%.4f", r.Accuracy.MAE),
		}); err != nil {
			return errors.Trace(err)
		}
		if err := table.Render(); err != nil {
			return errors.Trace(err)
		}
	}
	table := tablewriter.NewWriter(w)
	header := []any{"Metric"}
	for _, result := range r.Results {
		header = append(header, result.Name)
	}
	table.Header(header...)
	for _, metric := range metricNames {
		row := []string{fmt.Sprintf("%s@%d", metric, r.TopK)}
		for _, result := range r.Results {
			summary := result.Metrics[metric]
			row = append(row, fmt.Sprintf("%.4f ± %.4f", summary.Mean, summary.Std))
		}
		if err := table.Append(row); err != nil {
			return errors.Trace(err)
		}
	}
	rows := [][]string{{"Coverage"}, {"Evaluated"}, {"Skipped"}}
	for _, result := range r.Results {
		rows[0] = append(rows[0], fmt.Sprintf("%.4f", result.Coverage))
		rows[1] = append(rows[1], fmt.Sprint(result.Evaluated))
		rows[2] = append(rows[2], fmt.Sprint(result.Skipped))
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}
