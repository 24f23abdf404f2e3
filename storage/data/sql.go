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

package data

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/storage"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	_ "modernc.org/sqlite"
)

const bufSize = 1

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
)

func (driver SQLDriver) String() string {
	switch driver {
	case MySQL:
		return "mysql"
	case Postgres:
		return "postgres"
	default:
		return "sqlite"
	}
}

// SQLMovie is the row of the movies table.
type SQLMovie struct {
	MovieId int32    `gorm:"column:movie_id;primaryKey;autoIncrement:false"`
	Title   string   `gorm:"column:title;type:varchar(512);not null"`
	Year    int      `gorm:"column:year;not null;default:0"`
	Genres  []string `gorm:"column:genres;serializer:json"`
	Tags    []string `gorm:"column:tags;serializer:json"`
}

// SQLRating is the row of the ratings table.
type SQLRating struct {
	UserId    int32   `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	MovieId   int32   `gorm:"column:movie_id;primaryKey;autoIncrement:false;index:movie_id_index"`
	Rating    float32 `gorm:"column:rating;not null"`
	Timestamp int64   `gorm:"column:time_stamp;not null"`
}

func newSQLMovie(movie dataset.Movie) SQLMovie {
	return SQLMovie{
		MovieId: movie.MovieId,
		Title:   movie.Title,
		Year:    movie.Year,
		Genres:  lo.Ternary(movie.Genres == nil, []string{}, movie.Genres),
		Tags:    lo.Ternary(movie.Tags == nil, []string{}, movie.Tags),
	}
}

func (m SQLMovie) toMovie() dataset.Movie {
	return dataset.Movie{
		MovieId: m.MovieId,
		Title:   m.Title,
		Year:    m.Year,
		Genres:  m.Genres,
		Tags:    lo.Ternary(len(m.Tags) == 0, nil, m.Tags),
	}
}

// SQLDatabase stores movies and ratings in MySQL, Postgres or SQLite.
type SQLDatabase struct {
	storage.TablePrefix
	gormDB *gorm.DB
	client *sql.DB
	driver SQLDriver
}

// Init tables and indices.
func (d *SQLDatabase) Init() error {
	tx := d.gormDB
	if d.driver == MySQL {
		tx = tx.Set("gorm:table_options", "ENGINE=InnoDB")
	}
	if err := tx.AutoMigrate(&SQLMovie{}, &SQLRating{}); err != nil {
		return errors.Trace(err)
	}
	logInit(d.driver.String(), d.TablePrefix)
	return nil
}

func (d *SQLDatabase) Ping() error {
	return d.client.Ping()
}

func (d *SQLDatabase) Close() error {
	return d.client.Close()
}

// Purge deletes all movies and ratings.
func (d *SQLDatabase) Purge() error {
	for _, model := range []any{&SQLRating{}, &SQLMovie{}} {
		if err := d.gormDB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// BatchInsertMovies inserts movies. Existing movies are overwritten.
func (d *SQLDatabase) BatchInsertMovies(ctx context.Context, movies []dataset.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	rows := lo.UniqBy(lo.Map(movies, func(movie dataset.Movie, _ int) SQLMovie {
		return newSQLMovie(movie)
	}), func(row SQLMovie) int32 {
		return row.MovieId
	})
	err := d.gormDB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "movie_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "year", "genres", "tags"}),
	}).Create(&rows).Error
	return errors.Trace(err)
}

// BatchInsertRatings inserts ratings. Within a batch the latest rating of a
// (user, movie) pair wins.
func (d *SQLDatabase) BatchInsertRatings(ctx context.Context, ratings []dataset.Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	for _, r := range ratings {
		if err := dataset.ValidateRating(r); err != nil {
			return errors.Trace(err)
		}
	}
	rows := lo.Map(dataset.Deduplicate(ratings), func(r dataset.Rating, _ int) SQLRating {
		return SQLRating{UserId: r.UserId, MovieId: r.MovieId, Rating: r.Rating, Timestamp: r.Timestamp}
	})
	err := d.gormDB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "movie_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "time_stamp"}),
	}).Create(&rows).Error
	return errors.Trace(err)
}

func (d *SQLDatabase) GetMovie(ctx context.Context, movieId int32) (dataset.Movie, error) {
	var rows []SQLMovie
	if err := d.gormDB.WithContext(ctx).Where("movie_id = ?", movieId).Limit(1).Find(&rows).Error; err != nil {
		return dataset.Movie{}, errors.Trace(err)
	}
	if len(rows) == 0 {
		return dataset.Movie{}, errors.Annotatef(ErrMovieNotExist, "movie %d", movieId)
	}
	return rows[0].toMovie(), nil
}

// GetMovies returns all movies ordered by id.
func (d *SQLDatabase) GetMovies(ctx context.Context) ([]dataset.Movie, error) {
	var rows []SQLMovie
	if err := d.gormDB.WithContext(ctx).Order("movie_id").Find(&rows).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return lo.Map(rows, func(row SQLMovie, _ int) dataset.Movie {
		return row.toMovie()
	}), nil
}

func (d *SQLDatabase) CountRatings(ctx context.Context) (int, error) {
	var count int64
	if err := d.gormDB.WithContext(ctx).Model(&SQLRating{}).Count(&count).Error; err != nil {
		return 0, errors.Trace(err)
	}
	return int(count), nil
}

// GetRatingStream reads ratings in batches ordered by (user, movie).
func (d *SQLDatabase) GetRatingStream(ctx context.Context, batchSize int) (chan []dataset.Rating, chan error) {
	ratingChan := make(chan []dataset.Rating, bufSize)
	errChan := make(chan error, 1)
	go func() {
		defer close(ratingChan)
		defer close(errChan)
		result, err := d.gormDB.WithContext(ctx).Model(&SQLRating{}).
			Select("user_id, movie_id, rating, time_stamp").
			Order("user_id, movie_id").Rows()
		if err != nil {
			errChan <- errors.Trace(err)
			return
		}
		defer result.Close()
		ratings := make([]dataset.Rating, 0, batchSize)
		for result.Next() {
			var r dataset.Rating
			if err = result.Scan(&r.UserId, &r.MovieId, &r.Rating, &r.Timestamp); err != nil {
				errChan <- errors.Trace(err)
				return
			}
			ratings = append(ratings, r)
			if len(ratings) == batchSize {
				ratingChan <- ratings
				ratings = make([]dataset.Rating, 0, batchSize)
			}
		}
		if err = result.Err(); err != nil {
			errChan <- errors.Trace(err)
			return
		}
		if len(ratings) > 0 {
			ratingChan <- ratings
		}
		errChan <- nil
	}()
	return ratingChan, errChan
}
