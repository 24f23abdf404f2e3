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

package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/reelsense/reelsense/base/log"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const noGenres = "(no genres listed)"

var yearPattern = regexp.MustCompile(`\((\d{4})\)`)

// ParseYear extracts the release year from a title such as "Toy Story (1995)". It returns 0 if absent.
func ParseYear(title string) int {
	matches := yearPattern.FindAllStringSubmatch(title, -1)
	if len(matches) == 0 {
		return 0
	}
	year, _ := strconv.Atoi(matches[len(matches)-1][1])
	return year
}

// ParseGenres splits a pipe separated genre list.
func ParseGenres(genres string) []string {
	if strings.TrimSpace(genres) == noGenres {
		return []string{}
	}
	return lo.Uniq(lo.FilterMap(strings.Split(genres, "|"), func(genre string, _ int) (string, bool) {
		genre = strings.TrimSpace(genre)
		return genre, genre != "" && genre != noGenres
	}))
}

// NormalizeTag lowercases and trims a user tag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// MovieLens holds records loaded from a MovieLens directory.
type MovieLens struct {
	Ratings []Rating
	Movies  []Movie
	Skipped int
}

// LoadMovieLens reads movies.csv, ratings.csv and the optional tags.csv from a
// MovieLens directory. Malformed ratings are skipped and counted. Duplicate
// (user, movie) ratings are reduced to the latest one.
func LoadMovieLens(dir string) (*MovieLens, error) {
	movies, err := readMovies(filepath.Join(dir, "movies.csv"))
	if err != nil {
		return nil, errors.Trace(err)
	}
	tags, err := readTags(filepath.Join(dir, "tags.csv"))
	if err != nil && !errors.Is(err, errors.NotFound) {
		return nil, errors.Trace(err)
	}
	for i := range movies {
		movies[i].Tags = tags[movies[i].MovieId]
	}
	ratings, skipped, err := readRatings(filepath.Join(dir, "ratings.csv"))
	if err != nil {
		return nil, errors.Trace(err)
	}
	ratings = Deduplicate(ratings)
	log.Logger().Info("load movielens",
		zap.String("dir", dir),
		zap.Int("n_movies", len(movies)),
		zap.Int("n_ratings", len(ratings)),
		zap.Int("n_tagged_movies", len(tags)),
		zap.Int("n_skipped", skipped))
	return &MovieLens{Ratings: ratings, Movies: movies, Skipped: skipped}, nil
}

// ReadMovies parses movies in MovieLens format (movieId,title,genres).
func ReadMovies(r io.Reader) ([]Movie, error) {
	var movies []Movie
	err := readCSV(r, func(record []string) error {
		if len(record) < 3 {
			return errors.NotValidf("movie record %v", record)
		}
		movieId, err := strconv.ParseInt(record[0], 10, 32)
		if err != nil {
			return errors.NotValidf("movie id %q", record[0])
		}
		movies = append(movies, Movie{
			MovieId: int32(movieId),
			Title:   strings.TrimSpace(record[1]),
			Year:    ParseYear(record[1]),
			Genres:  ParseGenres(record[2]),
		})
		return nil
	})
	return movies, errors.Trace(err)
}

// ReadRatings parses ratings in MovieLens format (userId,movieId,rating,timestamp).
// Rows that fail validation are skipped.
func ReadRatings(r io.Reader) ([]Rating, int, error) {
	var (
		ratings []Rating
		skipped int
	)
	err := readCSV(r, func(record []string) error {
		rating, err := parseRating(record)
		if err != nil {
			skipped++
			return nil
		}
		ratings = append(ratings, rating)
		return nil
	})
	return ratings, skipped, errors.Trace(err)
}

// ReadTags parses tags in MovieLens format (userId,movieId,tag,timestamp) and
// groups normalized tags by movie.
func ReadTags(r io.Reader) (map[int32][]string, error) {
	tags := make(map[int32][]string)
	err := readCSV(r, func(record []string) error {
		if len(record) < 3 {
			return nil
		}
		movieId, err := strconv.ParseInt(record[1], 10, 32)
		if err != nil {
			return nil
		}
		if tag := NormalizeTag(record[2]); tag != "" {
			tags[int32(movieId)] = append(tags[int32(movieId)], tag)
		}
		return nil
	})
	return tags, errors.Trace(err)
}

func parseRating(record []string) (Rating, error) {
	if len(record) < 3 {
		return Rating{}, errors.NotValidf("rating record %v", record)
	}
	userId, err := strconv.ParseInt(record[0], 10, 32)
	if err != nil {
		return Rating{}, errors.Trace(err)
	}
	movieId, err := strconv.ParseInt(record[1], 10, 32)
	if err != nil {
		return Rating{}, errors.Trace(err)
	}
	value, err := strconv.ParseFloat(record[2], 32)
	if err != nil {
		return Rating{}, errors.Trace(err)
	}
	var timestamp int64
	if len(record) > 3 {
		if timestamp, err = strconv.ParseInt(record[3], 10, 64); err != nil {
			return Rating{}, errors.Trace(err)
		}
	}
	rating := Rating{UserId: int32(userId), MovieId: int32(movieId), Rating: float32(value), Timestamp: timestamp}
	return rating, ValidateRating(rating)
}

func readMovies(path string) ([]Movie, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	return ReadMovies(file)
}

func readRatings(path string) ([]Rating, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	defer file.Close()
	return ReadRatings(file)
}

func readTags(path string) (map[int32][]string, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return map[int32][]string{}, errors.NotFoundf("tags file %s", path)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	return ReadTags(file)
}

// readCSV calls handle on every record after the header line.
func readCSV(r io.Reader, handle func(record []string) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true
	header := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Trace(err)
		}
		if header {
			header = false
			continue
		}
		if err = handle(record); err != nil {
			return err
		}
	}
}
