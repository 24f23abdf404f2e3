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
	"github.com/reelsense/reelsense/config"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/engine"
	"github.com/reelsense/reelsense/storage/blob"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Train models and save a snapshot.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		if modelType, _ := cmd.Flags().GetString("model"); modelType != "" {
			cfg.Model.Type = modelType
		}
		if err := cfg.Validate(); err != nil {
			log.Logger().Fatal("invalid config", zap.Error(err))
		}
		ctx := context.Background()
		e, result, err := train(ctx, cmd, cfg)
		if err != nil {
			log.Logger().Fatal("failed to train", zap.Error(err))
		}
		store, err := blob.Open(cfg.Blob.URI, cfg.Blob)
		if err != nil {
			log.Logger().Fatal("failed to open blob store", zap.Error(err))
		}
		keep, _ := cmd.Flags().GetInt("keep")
		name, err := e.SaveToBlob(store, keep)
		if err != nil {
			log.Logger().Fatal("failed to save snapshot", zap.Error(err))
		}
		summary, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(summary))
		fmt.Println("Snapshot:", name)
	},
}

// train from a MovieLens directory if given, otherwise from the data store.
func train(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*engine.Engine, *engine.TrainResult, error) {
	if dir, _ := cmd.Flags().GetString("movielens"); dir != "" {
		ml, err := dataset.LoadMovieLens(dir)
		if err != nil {
			return nil, nil, err
		}
		return engine.Train(ctx, ml.Ratings, ml.Movies, cfg)
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	defer database.Close()
	return engine.TrainFromDatabase(ctx, database, cfg)
}

func init() {
	trainCommand.Flags().String("movielens", "", "train from a MovieLens directory instead of the data store")
	trainCommand.Flags().String("model", "", "collaborative filtering model (svd or svdpp)")
	trainCommand.Flags().Int("keep", engine.DefaultKeepSnapshots, "number of snapshots to keep")
}
