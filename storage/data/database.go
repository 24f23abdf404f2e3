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
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/juju/errors"
	"github.com/reelsense/reelsense/base/log"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/storage"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const DefaultBatchSize = 10000

var (
	ErrMovieNotExist = errors.NotFoundf("movie")
	ErrNoDatabase    = errors.NotAssignedf("database")
)

// Database stores the movie catalog and ratings used to (re)train models.
type Database interface {
	Init() error
	Ping() error
	Close() error
	Purge() error
	BatchInsertMovies(ctx context.Context, movies []dataset.Movie) error
	// BatchInsertRatings inserts ratings. A rating of the same user and movie
	// replaces the stored one.
	BatchInsertRatings(ctx context.Context, ratings []dataset.Rating) error
	GetMovie(ctx context.Context, movieId int32) (dataset.Movie, error)
	GetMovies(ctx context.Context) ([]dataset.Movie, error)
	CountRatings(ctx context.Context) (int, error)
	GetRatingStream(ctx context.Context, batchSize int) (chan []dataset.Rating, chan error)
}

// GetRatings drains the rating stream of a database.
func GetRatings(ctx context.Context, database Database, batchSize int) ([]dataset.Rating, error) {
	ratingChan, errChan := database.GetRatingStream(ctx, batchSize)
	var ratings []dataset.Rating
	for batch := range ratingChan {
		ratings = append(ratings, batch...)
	}
	if err := <-errChan; err != nil {
		return nil, errors.Trace(err)
	}
	return ratings, nil
}

// Open a connection to a database.
func Open(path, tablePrefix string) (Database, error) {
	var err error
	if strings.HasPrefix(path, storage.MySQLPrefix) {
		name := path[len(storage.MySQLPrefix):]
		if name, err = storage.AppendMySQLParams(name, map[string]string{
			"sql_mode":  "'ONLY_FULL_GROUP_BY,STRICT_TRANS_TABLES,ERROR_FOR_DIVISION_BY_ZERO,NO_ENGINE_SUBSTITUTION'",
			"parseTime": "true",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		database := new(SQLDatabase)
		database.driver = MySQL
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = otelsql.Open("mysql", name,
			otelsql.WithAttributes(attribute.String("db.system", "mysql")),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return newInstrumented(database), nil
	} else if strings.HasPrefix(path, storage.PostgresPrefix) || strings.HasPrefix(path, storage.PostgreSQLPrefix) {
		database := new(SQLDatabase)
		database.driver = Postgres
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = otelsql.Open("postgres", path,
			otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return newInstrumented(database), nil
	} else if strings.HasPrefix(path, storage.MongoPrefix) || strings.HasPrefix(path, storage.MongoSrvPrefix) {
		database := new(MongoDB)
		opts := options.Client()
		opts.Monitor = otelmongo.NewMonitor()
		opts.ApplyURI(path)
		if database.client, err = mongo.Connect(context.Background(), opts); err != nil {
			return nil, errors.Trace(err)
		}
		cs, err := connstring.ParseAndValidate(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		database.dbName = cs.Database
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		return newInstrumented(database), nil
	} else if strings.HasPrefix(path, storage.SQLitePrefix) {
		if path, err = storage.AppendURLParams(path, []lo.Tuple2[string, string]{
			{A: "_pragma", B: "busy_timeout(10000)"},
			{A: "_pragma", B: "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		name := path[len(storage.SQLitePrefix):]
		database := new(SQLDatabase)
		database.driver = SQLite
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = otelsql.Open("sqlite", name,
			otelsql.WithAttributes(attribute.String("db.system", "sqlite")),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		// SQLite allows a single writer.
		database.client.SetMaxOpenConns(1)
		database.gormDB, err = gorm.Open(sqlite.Dialector{Conn: database.client}, storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return newInstrumented(database), nil
	}
	return nil, errors.NotSupportedf("database %s", log.RedactDBURL(path))
}

// instrumented records latency and call counts of a database.
type instrumented struct {
	Database
}

func newInstrumented(database Database) Database {
	return &instrumented{Database: database}
}

func observe(name string, start time.Time) {
	OperationSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func (d *instrumented) BatchInsertMovies(ctx context.Context, movies []dataset.Movie) error {
	defer observe("batch_insert_movies", time.Now())
	return d.Database.BatchInsertMovies(ctx, movies)
}

func (d *instrumented) BatchInsertRatings(ctx context.Context, ratings []dataset.Rating) error {
	defer observe("batch_insert_ratings", time.Now())
	err := d.Database.BatchInsertRatings(ctx, ratings)
	if err == nil {
		InsertedRatings.Add(float64(len(ratings)))
	}
	return err
}

func (d *instrumented) GetMovie(ctx context.Context, movieId int32) (dataset.Movie, error) {
	defer observe("get_movie", time.Now())
	return d.Database.GetMovie(ctx, movieId)
}

func (d *instrumented) GetMovies(ctx context.Context) ([]dataset.Movie, error) {
	defer observe("get_movies", time.Now())
	return d.Database.GetMovies(ctx)
}

func (d *instrumented) CountRatings(ctx context.Context) (int, error) {
	defer observe("count_ratings", time.Now())
	return d.Database.CountRatings(ctx)
}

// Unwrap returns the underlying database.
func (d *instrumented) Unwrap() Database {
	return d.Database
}

func logInit(driver string, tablePrefix storage.TablePrefix) {
	log.Logger().Info("initialize data store",
		zap.String("driver", driver),
		zap.String("movies", tablePrefix.MoviesTable()),
		zap.String("ratings", tablePrefix.RatingsTable()))
}
