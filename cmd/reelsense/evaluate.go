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
	"os"

	"github.com/reelsense/reelsense/base/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var evaluateCommand = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate the latest snapshot on its held out ratings.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		if n, _ := cmd.Flags().GetInt("users"); n > 0 {
			cfg.Evaluation.NumUsers = n
		}
		if k, _ := cmd.Flags().GetInt("top-k"); k > 0 {
			cfg.Recommend.TopK = k
		}
		ctx := context.Background()
		e, err := loadEngine(ctx, cfg)
		if err != nil {
			log.Logger().Fatal("failed to load model", zap.Error(err))
		}
		report, err := e.Evaluate(ctx, cfg)
		if err != nil {
			log.Logger().Fatal("failed to evaluate", zap.Error(err))
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err = encoder.Encode(report); err != nil {
				log.Logger().Fatal("failed to write report", zap.Error(err))
			}
			return
		}
		fmt.Printf("Evaluated top %d recommendations of %d users\n", report.TopK, report.NumUsers)
		if err = report.Print(os.Stdout); err != nil {
			log.Logger().Fatal("failed to write report", zap.Error(err))
		}
	},
}

func init() {
	evaluateCommand.Flags().Int("users", 0, "number of sampled users")
	evaluateCommand.Flags().Int("top-k", 0, "length of recommendation lists")
	evaluateCommand.Flags().Bool("json", false, "print the report as JSON")
}
