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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/errors"
	"github.com/reelsense/reelsense/base/log"
	"github.com/reelsense/reelsense/cmd/version"
	"github.com/reelsense/reelsense/config"
	"github.com/reelsense/reelsense/engine"
	"github.com/reelsense/reelsense/server"
	"github.com/reelsense/reelsense/storage/blob"
	"github.com/reelsense/reelsense/storage/cache"
	"github.com/reelsense/reelsense/storage/data"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "reelsense",
	Short: "Hybrid movie recommender system.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		_ = cmd.Help()
	},
}

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Serve recommendations over HTTP.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		app := server.NewApp(cfg)
		var err error
		if app.DataClient, err = openDatabase(cfg); err != nil {
			log.Logger().Fatal("failed to open data store", zap.Error(err))
		}
		defer app.DataClient.Close()
		if app.CacheClient, err = cache.Open(cfg.Cache.Store, cfg.Database.TablePrefix, cfg.Cache.TTL, cfg.Cache.Capacity); err != nil {
			log.Logger().Fatal("failed to open cache", zap.Error(err))
		}
		defer app.CacheClient.Close()
		if app.BlobStore, err = blob.Open(cfg.Blob.URI, cfg.Blob); err != nil {
			log.Logger().Fatal("failed to open blob store", zap.Error(err))
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		// serve the latest snapshot, or train one if asked
		if err = app.Reload(ctx); err != nil {
			log.Logger().Warn("no model snapshot loaded", zap.Error(err))
			if trainOnStart, _ := cmd.Flags().GetBool("train"); trainOnStart {
				go func() {
					if _, err := app.Retrain(ctx); err != nil {
						log.Logger().Error("failed to train model", zap.Error(err))
					}
				}()
			}
		}
		if err = server.NewRestServer(app).StartHttpServer(ctx); err != nil {
			log.Logger().Fatal("failed to start http server", zap.Error(err))
		}
		log.Logger().Info("stop reelsense successfully")
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.Flags().BoolP("version", "v", false, "reelsense version")
	serveCommand.Flags().Bool("train", false, "train a model if no snapshot exists")
	rootCommand.AddCommand(serveCommand, trainCommand, evaluateCommand, importCommand, downloadCommand, tuneCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}

func loadConfig(cmd *cobra.Command) *config.Config {
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Logger().Fatal("failed to load config", zap.Error(err))
	}
	return cfg
}

func openDatabase(cfg *config.Config) (data.Database, error) {
	database, err := data.Open(cfg.Database.DataStore, cfg.Database.TablePrefix)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = database.Init(); err != nil {
		return nil, errors.Trace(err)
	}
	return database, nil
}

// loadEngine reads the latest snapshot of the configured blob store.
func loadEngine(ctx context.Context, cfg *config.Config) (*engine.Engine, error) {
	store, err := blob.Open(cfg.Blob.URI, cfg.Blob)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return engine.LoadFromBlob(ctx, store, cfg.Recommend.ProfileSize)
}
