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

	"github.com/juju/errors"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/storage"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoMovie struct {
	MovieId int32    `bson:"_id"`
	Title   string   `bson:"title"`
	Year    int      `bson:"year"`
	Genres  []string `bson:"genres"`
	Tags    []string `bson:"tags"`
}

type mongoRating struct {
	UserId    int32   `bson:"user_id"`
	MovieId   int32   `bson:"movie_id"`
	Rating    float32 `bson:"rating"`
	Timestamp int64   `bson:"time_stamp"`
}

// MongoDB is the data storage based on MongoDB.
type MongoDB struct {
	storage.TablePrefix
	client *mongo.Client
	dbName string
}

func (db *MongoDB) movies() *mongo.Collection {
	return db.client.Database(db.dbName).Collection(db.MoviesTable())
}

func (db *MongoDB) ratings() *mongo.Collection {
	return db.client.Database(db.dbName).Collection(db.RatingsTable())
}

// Init collections and indices in MongoDB.
func (db *MongoDB) Init() error {
	ctx := context.Background()
	d := db.client.Database(db.dbName)
	collections, err := d.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return errors.Trace(err)
	}
	for _, name := range []string{db.MoviesTable(), db.RatingsTable()} {
		if !lo.Contains(collections, name) {
			if err = d.CreateCollection(ctx, name); err != nil {
				return errors.Trace(err)
			}
		}
	}
	_, err = db.ratings().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "movie_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.M{"movie_id": 1},
		},
	})
	if err != nil {
		return errors.Trace(err)
	}
	logInit("mongodb", db.TablePrefix)
	return nil
}

func (db *MongoDB) Ping() error {
	return db.client.Ping(context.Background(), nil)
}

// Close connection to MongoDB.
func (db *MongoDB) Close() error {
	return db.client.Disconnect(context.Background())
}

func (db *MongoDB) Purge() error {
	ctx := context.Background()
	for _, c := range []*mongo.Collection{db.movies(), db.ratings()} {
		if _, err := c.DeleteMany(ctx, bson.M{}); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (db *MongoDB) BatchInsertMovies(ctx context.Context, movies []dataset.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	var models []mongo.WriteModel
	for _, movie := range movies {
		models = append(models, mongo.NewUpdateOneModel().
			SetUpsert(true).
			SetFilter(bson.M{"_id": movie.MovieId}).
			SetUpdate(bson.M{"$set": mongoMovie{
				MovieId: movie.MovieId,
				Title:   movie.Title,
				Year:    movie.Year,
				Genres:  movie.Genres,
				Tags:    movie.Tags,
			}}))
	}
	_, err := db.movies().BulkWrite(ctx, models)
	return errors.Trace(err)
}

func (db *MongoDB) BatchInsertRatings(ctx context.Context, ratings []dataset.Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	var models []mongo.WriteModel
	for _, r := range dataset.Deduplicate(ratings) {
		if err := dataset.ValidateRating(r); err != nil {
			return errors.Trace(err)
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetUpsert(true).
			SetFilter(bson.M{"user_id": r.UserId, "movie_id": r.MovieId}).
			SetUpdate(bson.M{"$set": mongoRating{
				UserId:    r.UserId,
				MovieId:   r.MovieId,
				Rating:    r.Rating,
				Timestamp: r.Timestamp,
			}}))
	}
	_, err := db.ratings().BulkWrite(ctx, models)
	return errors.Trace(err)
}

func (m mongoMovie) toMovie() dataset.Movie {
	return dataset.Movie{
		MovieId: m.MovieId,
		Title:   m.Title,
		Year:    m.Year,
		Genres:  m.Genres,
		Tags:    m.Tags,
	}
}

func (db *MongoDB) GetMovie(ctx context.Context, movieId int32) (dataset.Movie, error) {
	var movie mongoMovie
	err := db.movies().FindOne(ctx, bson.M{"_id": movieId}).Decode(&movie)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return dataset.Movie{}, errors.Annotatef(ErrMovieNotExist, "movie %d", movieId)
	} else if err != nil {
		return dataset.Movie{}, errors.Trace(err)
	}
	return movie.toMovie(), nil
}

func (db *MongoDB) GetMovies(ctx context.Context) ([]dataset.Movie, error) {
	cursor, err := db.movies().Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer cursor.Close(ctx)
	var movies []dataset.Movie
	for cursor.Next(ctx) {
		var movie mongoMovie
		if err = cursor.Decode(&movie); err != nil {
			return nil, errors.Trace(err)
		}
		movies = append(movies, movie.toMovie())
	}
	return movies, errors.Trace(cursor.Err())
}

func (db *MongoDB) CountRatings(ctx context.Context) (int, error) {
	n, err := db.ratings().CountDocuments(ctx, bson.M{})
	return int(n), errors.Trace(err)
}

func (db *MongoDB) GetRatingStream(ctx context.Context, batchSize int) (chan []dataset.Rating, chan error) {
	ratingChan := make(chan []dataset.Rating, bufSize)
	errChan := make(chan error, 1)
	go func() {
		defer close(ratingChan)
		defer close(errChan)
		opts := options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}, {Key: "movie_id", Value: 1}}).SetBatchSize(int32(batchSize))
		cursor, err := db.ratings().Find(ctx, bson.M{}, opts)
		if err != nil {
			errChan <- errors.Trace(err)
			return
		}
		defer cursor.Close(ctx)
		ratings := make([]dataset.Rating, 0, batchSize)
		for cursor.Next(ctx) {
			var r mongoRating
			if err = cursor.Decode(&r); err != nil {
				errChan <- errors.Trace(err)
				return
			}
			ratings = append(ratings, dataset.Rating{UserId: r.UserId, MovieId: r.MovieId, Rating: r.Rating, Timestamp: r.Timestamp})
			if len(ratings) == batchSize {
				ratingChan <- ratings
				ratings = make([]dataset.Rating, 0, batchSize)
			}
		}
		if err = cursor.Err(); err != nil {
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
