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

package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/reelsense/reelsense/base/log"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/model/cf"
	"github.com/reelsense/reelsense/storage/data"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var tuneCommand = &cobra.Command{
	Use:   "tune",
	Short: "Search hyper-parameters of collaborative filtering.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		ctx := context.Background()
		var ratings []dataset.Rating
		if dir, _ := cmd.Flags().GetString("movielens"); dir != "" {
			ml, err := dataset.LoadMovieLens(dir)
			if err != nil {
				log.Logger().Fatal("failed to load movielens", zap.Error(err))
			}
			ratings = ml.Ratings
		} else {
			database, err := openDatabase(cfg)
			if err != nil {
				log.Logger().Fatal("failed to open data store", zap.Error(err))
			}
			defer database.Close()
			if ratings, err = data.GetRatings(ctx, database, data.DefaultBatchSize); err != nil {
				log.Logger().Fatal("failed to load ratings", zap.Error(err))
			}
		}
		train, test := dataset.SplitByTime(dataset.Deduplicate(ratings), float64(cfg.Model.TestRatio))
		trials, _ := cmd.Flags().GetInt("trials")
		if trials <= 0 {
			trials = cfg.Model.SearchTrials
		}
		fitConfig := cf.NewFitConfig().SetJobs(cfg.Model.Jobs).SetVerbose(cfg.Model.Verbose)
		result, err := cf.Search(ctx, train, test, trials, cfg.Model.GetParams(), fitConfig)
		if err != nil {
			log.Logger().Fatal("failed to search", zap.Error(err))
		}
		summary, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(summary))
	},
}

func init() {
	tuneCommand.Flags().String("movielens", "", "tune on a MovieLens directory instead of the data store")
	tuneCommand.Flags().Int("trials", 0, "number of trials")
}
