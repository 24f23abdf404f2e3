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
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/reelsense/reelsense/base/log"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/engine"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const movieLensURL = "https://files.grouplens.org/datasets/movielens/ml-latest-small.zip"

var importCommand = &cobra.Command{
	Use:   "import <dir>",
	Short: "Import a MovieLens directory into the data store.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		ml, err := dataset.LoadMovieLens(args[0])
		if err != nil {
			log.Logger().Fatal("failed to load movielens", zap.Error(err))
		}
		database, err := openDatabase(cfg)
		if err != nil {
			log.Logger().Fatal("failed to open data store", zap.Error(err))
		}
		defer database.Close()
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		if err = engine.Import(context.Background(), database, ml, batchSize); err != nil {
			log.Logger().Fatal("failed to import", zap.Error(err))
		}
		fmt.Printf("Imported %d movies and %d ratings (%d skipped)\n", len(ml.Movies), len(ml.Ratings), ml.Skipped)
	},
}

var downloadCommand = &cobra.Command{
	Use:   "download",
	Short: "Download the MovieLens latest small dataset.",
	Run: func(cmd *cobra.Command, args []string) {
		url, _ := cmd.Flags().GetString("url")
		output, _ := cmd.Flags().GetString("output")
		dir, err := download(url, output)
		if err != nil {
			log.Logger().Fatal("failed to download movielens", zap.Error(err))
		}
		fmt.Println("Downloaded to", dir)
	},
}

func init() {
	importCommand.Flags().Int("batch-size", 0, "number of records per insert")
	downloadCommand.Flags().String("url", movieLensURL, "dataset URL")
	downloadCommand.Flags().StringP("output", "o", ".", "output directory")
}

// download fetches a zipped MovieLens dataset and extracts it into a
// directory. It returns the directory holding the CSV files.
func download(url, output string) (string, error) {
	resp, err := http.Get(url)
	if err != nil {
		return "", errors.Trace(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("download %s: %s", url, resp.Status)
	}
	temp, err := os.CreateTemp("", "movielens-*.zip")
	if err != nil {
		return "", errors.Trace(err)
	}
	defer os.Remove(temp.Name())
	defer temp.Close()
	bar := progressbar.DefaultBytes(resp.ContentLength, "Downloading MovieLens")
	if _, err = io.Copy(io.MultiWriter(temp, bar), resp.Body); err != nil {
		return "", errors.Trace(err)
	}
	return unzip(temp.Name(), output)
}

func unzip(path, output string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", errors.Trace(err)
	}
	defer reader.Close()
	root := output
	for _, file := range reader.File {
		target := filepath.Join(output, file.Name)
		if !strings.HasPrefix(target, filepath.Clean(output)+string(os.PathSeparator)) {
			return "", errors.NotValidf("zip entry %s", file.Name)
		}
		if file.FileInfo().IsDir() {
			if err = os.MkdirAll(target, os.ModePerm); err != nil {
				return "", errors.Trace(err)
			}
			continue
		}
		if filepath.Base(target) == "ratings.csv" {
			root = filepath.Dir(target)
		}
		if err = extract(file, target); err != nil {
			return "", errors.Trace(err)
		}
	}
	return root, nil
}

func extract(file *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), os.ModePerm); err != nil {
		return errors.Trace(err)
	}
	src, err := file.Open()
	if err != nil {
		return errors.Trace(err)
	}
	defer src.Close()
	dst, err := os.Create(target)
	if err != nil {
		return errors.Trace(err)
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return errors.Trace(err)
}
