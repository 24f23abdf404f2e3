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

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/juju/ratelimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/reelsense/reelsense/base/log"
	"github.com/reelsense/reelsense/base/progress"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/engine"
	"github.com/reelsense/reelsense/logics"
	"github.com/reelsense/reelsense/storage/cache"
	"github.com/swaggest/swgui/v5emb"
	"go.opentelemetry.io/contrib/instrumentation/github.com/emicklei/go-restful/otelrestful"
	"go.uber.org/zap"
)

const (
	apiDocsPath      = "/apidocs/"
	apiSpecPath      = "/apidocs.json"
	numSimilarMovies = 5
	autoContext      = "auto"
)

// RestServer implements the REST-ful API of ReelSense.
type RestServer struct {
	*App
	HttpHost   string
	HttpPort   int
	WebService *restful.WebService
	bucket     *ratelimit.Bucket
}

func NewRestServer(app *App) *RestServer {
	s := &RestServer{
		App:        app,
		HttpHost:   app.Config.Server.Host,
		HttpPort:   app.Config.Server.Port,
		WebService: new(restful.WebService),
	}
	if rate := app.Config.Server.RateLimit; rate > 0 {
		s.bucket = ratelimit.NewBucketWithRate(rate, int64(max(rate, 1)))
	}
	return s
}

// Handler builds the HTTP handler serving the API, its documentation and
// metrics.
func (s *RestServer) Handler() http.Handler {
	s.CreateWebService()
	container := restful.NewContainer()
	container.Add(s.WebService)
	specConfig := restfulspec.Config{
		WebServices: container.RegisteredWebServices(),
		APIPath:     apiSpecPath,
	}
	container.Add(restfulspec.NewOpenAPIService(specConfig))
	container.Handle(apiDocsPath, v5emb.New("ReelSense", apiSpecPath, apiDocsPath))
	container.Handle("/metrics", promhttp.Handler())
	return container
}

// StartHttpServer serves until the context is canceled.
func (s *RestServer) StartHttpServer(ctx context.Context) error {
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.HttpHost, s.HttpPort),
		Handler: s.Handler(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Logger().Error("failed to shutdown http server", zap.Error(err))
		}
	}()
	log.Logger().Info("start http server",
		zap.String("url", fmt.Sprintf("http://%s:%d", s.HttpHost, s.HttpPort)))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Trace(err)
	}
	return nil
}

// RequestIDFilter propagates or creates the request id of a request.
func RequestIDFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	requestId := req.HeaderParameter(log.RequestIDHeader)
	if requestId == "" {
		requestId = uuid.New().String()
	}
	resp.Header().Set(log.RequestIDHeader, requestId)
	chain.ProcessFilter(req, resp)
}

func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	chain.ProcessFilter(req, resp)
	duration := time.Since(start)
	RestAPIRequestSecondsVec.WithLabelValues(req.SelectedRoutePath(), strconv.Itoa(resp.StatusCode())).
		Observe(duration.Seconds())
	log.ResponseLogger(resp).Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("duration", duration))
}

func (s *RestServer) rateLimitFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	if s.bucket != nil && s.bucket.TakeAvailable(1) == 0 {
		writeError(resp, http.StatusTooManyRequests, "too many requests")
		return
	}
	chain.ProcessFilter(req, resp)
}

// CreateWebService registers routes.
func (s *RestServer) CreateWebService() {
	ws := s.WebService
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/api/")
	ws.Filter(otelrestful.OTelFilter("reelsense"))
	ws.Filter(RequestIDFilter)
	ws.Filter(LogFilter)
	ws.Filter(s.rateLimitFilter)

	ws.Route(ws.GET("/health").To(s.getHealth).
		Doc("Get health status.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Writes(HealthStatus{}))

	// Recommendation
	ws.Route(ws.GET("/recommendations/{user-id}").To(s.getRecommendations).
		Doc("Get recommendations for a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.QueryParameter("n", "number of returned movies").DataType("integer")).
		Param(ws.QueryParameter("cf-weight", "weight of collaborative filtering in [0, 1]").DataType("number")).
		Param(ws.QueryParameter("diversify", "re-rank for diversity").DataType("boolean")).
		Param(ws.QueryParameter("lambda", "relevance weight of diversity re-ranking in [0, 1]").DataType("number")).
		Param(ws.QueryParameter("context", "one of `weekday_morning`, `weekday_evening`, `weekend` and `auto`").DataType("string")).
		Param(ws.QueryParameter("device", "one of `desktop`, `mobile` and `tv`").DataType("string")).
		Param(ws.QueryParameter("explain", "attach explanations").DataType("boolean")).
		Writes([]engine.Recommendation{}))
	ws.Route(ws.GET("/explanations/{user-id}/{movie-id}").To(s.getExplanation).
		Doc("Explain a recommendation.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.PathParameter("movie-id", "identifier of the movie").DataType("integer")).
		Param(ws.QueryParameter("cf-weight", "weight of collaborative filtering in [0, 1]").DataType("number")).
		Writes(logics.Explanation{}))
	ws.Route(ws.GET("/predict/{user-id}/{movie-id}").To(s.getPrediction).
		Doc("Predict the rating of a user for a movie.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Param(ws.PathParameter("movie-id", "identifier of the movie").DataType("integer")).
		Writes(Prediction{}))

	// Movies
	ws.Route(ws.GET("/movies/search").To(s.searchMovies).
		Doc("Search movies by title.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"movie"}).
		Param(ws.QueryParameter("q", "query").DataType("string")).
		Param(ws.QueryParameter("n", "number of returned movies").DataType("integer")).
		Writes([]dataset.Movie{}))
	ws.Route(ws.GET("/movies/popular").To(s.getPopular).
		Doc("Get the most rated movies.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"movie"}).
		Param(ws.QueryParameter("n", "number of returned movies").DataType("integer")).
		Writes([]dataset.Movie{}))
	ws.Route(ws.GET("/movies/top-rated").To(s.getTopRated).
		Doc("Get the best rated movies.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"movie"}).
		Param(ws.QueryParameter("n", "number of returned movies").DataType("integer")).
		Param(ws.QueryParameter("min-ratings", "minimum number of ratings").DataType("integer")).
		Writes([]dataset.Movie{}))
	ws.Route(ws.GET("/movies/{movie-id}").To(s.getMovie).
		Doc("Get a movie and its similar movies.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"movie"}).
		Param(ws.PathParameter("movie-id", "identifier of the movie").DataType("integer")).
		Writes(MovieDetail{}))
	ws.Route(ws.GET("/movies/{movie-id}/similar").To(s.getSimilarMovies).
		Doc("Get movies similar in content.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"movie"}).
		Param(ws.PathParameter("movie-id", "identifier of the movie").DataType("integer")).
		Param(ws.QueryParameter("n", "number of returned movies").DataType("integer")).
		Writes([]SimilarMovie{}))
	ws.Route(ws.GET("/genres").To(s.getGenres).
		Doc("Count movies per genre.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"movie"}).
		Writes(map[string]int{}))

	// Users
	ws.Route(ws.GET("/users/{user-id}").To(s.getUser).
		Doc("Get the profile of a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"user"}).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("integer")).
		Writes(logics.UserProfile{}))
	ws.Route(ws.POST("/ratings").To(s.insertRatings).
		Doc("Insert ratings. They are used by the next training.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"user"}).
		Reads([]Rating{}).
		Writes(Success{}))

	// Model
	ws.Route(ws.GET("/stats").To(s.getStats).
		Doc("Get statistics of the served catalog.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"model"}).
		Writes(engine.Stats{}))
	ws.Route(ws.POST("/model/retrain").To(s.retrain).
		Doc("Train a new model from the data store and serve it.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"model"}).
		Param(ws.QueryParameter("wait", "wait for training to complete").DataType("boolean")).
		Writes(engine.TrainResult{}))
	ws.Route(ws.POST("/model/reload").To(s.reload).
		Doc("Serve the latest model snapshot.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"model"}).
		Writes(engine.Stats{}))
	ws.Route(ws.GET("/model/progress").To(s.getProgress).
		Doc("Get progress of training jobs.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"model"}).
		Writes([]progress.Progress{}))
}

type HealthStatus struct {
	Status     string `json:"status"`
	ModelReady bool   `json:"model_ready"`
	Movies     int    `json:"movies"`
	Users      int    `json:"users"`
}

type Prediction struct {
	UserId  int32   `json:"user_id"`
	MovieId int32   `json:"movie_id"`
	Rating  float32 `json:"rating"`
}

type SimilarMovie struct {
	dataset.Movie
	Similarity float32 `json:"similarity"`
}

type MovieDetail struct {
	dataset.Movie
	Similar []SimilarMovie `json:"similar"`
}

// Rating is a rating submitted through the API. The timestamp accepts any
// format understood by dateparse and defaults to now.
type Rating struct {
	UserId    int32   `json:"user_id"`
	MovieId   int32   `json:"movie_id"`
	Rating    float32 `json:"rating"`
	Timestamp string  `json:"timestamp"`
}

type Success struct {
	RowAffected int `json:"row_affected"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *RestServer) getHealth(_ *restful.Request, response *restful.Response) {
	status := HealthStatus{Status: "ok"}
	if e, err := s.Engine(); err == nil {
		status.ModelReady = true
		status.Movies = e.Dataset.CountMovies()
		status.Users = e.Dataset.CountUsers()
	}
	Ok(response, status)
}

func (s *RestServer) getRecommendations(request *restful.Request, response *restful.Response) {
	e, err := s.Engine()
	if err != nil {
		Error(response, err)
		return
	}
	userId, err := ParseId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	options := engine.DefaultRecommendOptions(s.Config)
	options.Explain = true
	if options.N, err = ParseInt(request, "n", options.N); err != nil {
		BadRequest(response, err)
		return
	}
	if options.CFWeight, err = ParseFloat32(request, "cf-weight", options.CFWeight); err != nil {
		BadRequest(response, err)
		return
	}
	if options.Diversify, err = ParseBool(request, "diversify", options.Diversify); err != nil {
		BadRequest(response, err)
		return
	}
	if options.Lambda, err = ParseFloat32(request, "lambda", options.Lambda); err != nil {
		BadRequest(response, err)
		return
	}
	if options.Explain, err = ParseBool(request, "explain", options.Explain); err != nil {
		BadRequest(response, err)
		return
	}
	options.Context = request.QueryParameter("context")
	if options.Context == autoContext {
		options.Context = logics.TemporalContext(time.Now())
	}
	options.Device = request.QueryParameter("device")
	key := cache.Key(cache.Recommendations, strconv.Itoa(int(userId)), request.Request.URL.RawQuery)
	s.cached(request.Request.Context(), response, cache.Recommendations, key, func() (any, error) {
		return e.Recommend(userId, options)
	})
}

func (s *RestServer) getExplanation(request *restful.Request, response *restful.Response) {
	e, err := s.Engine()
	if err != nil {
		Error(response, err)
		return
	}
	userId, err := ParseId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	movieId, err := ParseId(request, "movie-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	cfWeight, err := ParseFloat32(request, "cf-weight", s.Config.Recommend.CFWeight)
	if err != nil {
		BadRequest(response, err)
		return
	}
	key := cache.Key(cache.Explanations, strconv.Itoa(int(userId)), strconv.Itoa(int(movieId)), request.Request.URL.RawQuery)
	s.cached(request.Request.Context(), response, cache.Explanations, key, func() (any, error) {
		return e.Explain(userId, movieId, cfWeight)
	})
}

func (s *RestServer) getPrediction(request *restful.Request, response *restful.Response) {
	e, err := s.Engine()
	if err != nil {
		Error(response, err)
		return
	}
	userId, err := ParseId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	movieId, err := ParseId(request, "movie-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	rating, err := e.Predict(userId, movieId)
	if err != nil {
		Error(response, err)
		return
	}
	Ok(response, Prediction{UserId: userId, MovieId: movieId, Rating: rating})
}

func (s *RestServer) searchMovies(request *restful.Request, response *restful.Response) {
	e, err := s.Engine()
	if err != nil {
		Error(response, err)
		return
	}
	n, err := ParseInt(request, "n", s.Config.Recommend.TopK)
	if err != nil {
		BadRequest(response, err)
		return
	}
	query := request.QueryParameter("q")
	if strings.TrimSpace(query) == "" {
		BadRequest(response, errors.NotValidf("empty query"))
		return
	}
	movies := e.Dataset.SearchMovies(query, n)
	if movies == nil {
		movies = []dataset.Movie{}
	}
	Ok(response, movies)
}

func (s *RestServer) getPopular(request *restful.Request, response *restful.Response) {
	e, err := s.Engine()
	if err != nil {
		Error(response, err)
		return
	}
	n, err := ParseInt(request, "n", s.Config.Recommend.TopK)
	if err != nil {
		BadRequest(response, err)
		return
	}
	movies, err := e.Popular(n)
	if err != nil {
		Error(response, err)
		return
	}
	Ok(response, movies)
}

func (s *RestServer) getTopRated(request *restful.Request, response *restful.Response) {
	e, err := s.Engine()
	if err != nil {
		Error(response, err)
		return
	}
	n, err := ParseInt(request, "n", s.Config.Recommend.TopK)
	if err != nil {
		BadRequest(response, err)
		return
	}
	minRatings, err := ParseInt(request, "min-ratings", s.Config.Recommend.MinRatings)
	if err != nil {
		BadRequest(response, err)
		return
	}
	movies, err := e.TopRated(n, minRatings)
	if err != nil {
		Error(response, err)
		return
	}
	Ok(response, movies)
}

func (s *RestServer) similarMovies(e *engine.Engine, movieId int32, n int) ([]SimilarMovie, error) {
	neighbors, err := e.SimilarItems(movieId, n)
	if err != nil {
		return nil, err
	}
	similar := make([]SimilarMovie, 0, len(neighbors))
	for _, neighbor := range neighbors {
		if movie, ok := e.Dataset.GetMovie(neighbor.MovieId); ok {
			similar = append(similar, SimilarMovie{Movie: movie, Similarity: neighbor.Similarity})
		}
	}
	return similar, nil
}

func (s *RestServer) getMovie(request *restful.Request, response *restful.Response) {
	e, err := s.Engine()
	if err != nil {
		Error(response, err)
		return
	}
	movieId, err := ParseId(request, "movie-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	movie, ok := e.Dataset.GetMovie(movieId)
	if !ok {
		PageNotFound(response, errors.NotFoundf("movie %d", movieId))
		return
	}
	similar, err := s.similarMovies(e, movieId, numSimilarMovies)
	if err != nil {
		Error(response, err)
		return
	}
	Ok(response, MovieDetail{Movie: movie, Similar: similar})
}

func (s *RestServer) getSimilarMovies(request *restful.Request, response *restful.Response) {
	e, err := s.Engine()
	if err != nil {
		Error(response, err)
		return
	}
	movieId, err := ParseId(request, "movie-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	n, err := ParseInt(request, "n", s.Config.Recommend.TopK)
	if err != nil {
		BadRequest(response, err)
		return
	}
	key := cache.Key(cache.SimilarMovies, strconv.Itoa(int(movieId)), strconv.Itoa(n))
	s.cached(request.Request.Context(), response, cache.SimilarMovies, key, func() (any, error) {
		return s.similarMovies(e, movieId, n)
	})
}

func (s *RestServer) getGenres(_ *restful.Request, response *restful.Response) {
	e, err := s.Engine()
	if err != nil {
		Error(response, err)
		return
	}
	Ok(response, e.Dataset.Genres())
}

func (s *RestServer) getUser(request *restful.Request, response *restful.Response) {
	e, err := s.Engine()
	if err != nil {
		Error(response, err)
		return
	}
	userId, err := ParseId(request, "user-id")
	if err != nil {
		BadRequest(response, err)
		return
	}
	profile, err := e.Profile(userId)
	if err != nil {
		Error(response, err)
		return
	}
	if profile.RatingCount == 0 {
		PageNotFound(response, errors.NotFoundf("user %d", userId))
		return
	}
	Ok(response, profile)
}

func (s *RestServer) insertRatings(request *restful.Request, response *restful.Response) {
	var temp []Rating
	if err := request.ReadEntity(&temp); err != nil {
		BadRequest(response, err)
		return
	}
	now := time.Now()
	ratings := make([]dataset.Rating, len(temp))
	for i, r := range temp {
		timestamp := now
		if r.Timestamp != "" {
			var err error
			if timestamp, err = dateparse.ParseAny(r.Timestamp); err != nil {
				BadRequest(response, errors.NotValidf("timestamp %q", r.Timestamp))
				return
			}
		}
		ratings[i] = dataset.Rating{
			UserId:    r.UserId,
			MovieId:   r.MovieId,
			Rating:    r.Rating,
			Timestamp: timestamp.Unix(),
		}
		if err := dataset.ValidateRating(ratings[i]); err != nil {
			BadRequest(response, err)
			return
		}
	}
	if err := s.DataClient.BatchInsertRatings(request.Request.Context(), ratings); err != nil {
		Error(response, err)
		return
	}
	Ok(response, Success{RowAffected: len(ratings)})
}

func (s *RestServer) getStats(_ *restful.Request, response *restful.Response) {
	e, err := s.Engine()
	if err != nil {
		Error(response, err)
		return
	}
	stats, err := e.Stats()
	if err != nil {
		Error(response, err)
		return
	}
	Ok(response, stats)
}

func (s *RestServer) retrain(request *restful.Request, response *restful.Response) {
	wait, err := ParseBool(request, "wait", false)
	if err != nil {
		BadRequest(response, err)
		return
	}
	if !wait {
		go func() {
			if _, err := s.Retrain(context.Background()); err != nil {
				log.Logger().Error("failed to retrain", zap.Error(err))
			}
		}()
		response.WriteHeader(http.StatusAccepted)
		return
	}
	result, err := s.Retrain(request.Request.Context())
	if err != nil {
		Error(response, err)
		return
	}
	Ok(response, result)
}

func (s *RestServer) reload(request *restful.Request, response *restful.Response) {
	if err := s.Reload(request.Request.Context()); err != nil {
		Error(response, err)
		return
	}
	s.getStats(request, response)
}

func (s *RestServer) getProgress(_ *restful.Request, response *restful.Response) {
	p := s.Tracer.List()
	if p == nil {
		p = []progress.Progress{}
	}
	Ok(response, p)
}

// cached writes the cached JSON of a key, or computes, caches and writes it.
func (s *RestServer) cached(ctx context.Context, response *restful.Response, namespace, key string, compute func() (any, error)) {
	// the generation is read before compute loads the engine
	key = cache.Key(key, strconv.FormatInt(s.Generation(), 10))
	if s.CacheClient != nil {
		if body, err := s.CacheClient.Get(ctx, key); err == nil {
			CacheHitsTotal.WithLabelValues(namespace).Inc()
			response.Header().Set("Content-Type", restful.MIME_JSON)
			Text(response, string(body))
			return
		} else if !errors.Is(err, errors.NotFound) {
			log.ResponseLogger(response).Warn("failed to read cache", zap.String("key", key), zap.Error(err))
		}
	}
	v, err := compute()
	if err != nil {
		Error(response, err)
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		InternalServerError(response, err)
		return
	}
	if s.CacheClient != nil {
		if err = s.CacheClient.Set(ctx, key, body, 0); err != nil {
			log.ResponseLogger(response).Warn("failed to write cache", zap.String("key", key), zap.Error(err))
		}
	}
	response.Header().Set("Content-Type", restful.MIME_JSON)
	Text(response, string(body))
}

// ParseInt parses an integer query parameter.
func ParseInt(request *restful.Request, name string, fallback int) (int, error) {
	valueString := request.QueryParameter(name)
	if valueString == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(valueString)
	if err != nil {
		return 0, errors.NotValidf("%s %q", name, valueString)
	}
	return value, nil
}

// ParseFloat32 parses a float query parameter.
func ParseFloat32(request *restful.Request, name string, fallback float32) (float32, error) {
	valueString := request.QueryParameter(name)
	if valueString == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(valueString, 32)
	if err != nil {
		return 0, errors.NotValidf("%s %q", name, valueString)
	}
	return float32(value), nil
}

// ParseBool parses a boolean query parameter.
func ParseBool(request *restful.Request, name string, fallback bool) (bool, error) {
	valueString := request.QueryParameter(name)
	if valueString == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(valueString)
	if err != nil {
		return false, errors.NotValidf("%s %q", name, valueString)
	}
	return value, nil
}

// ParseId parses a positive identifier path parameter.
func ParseId(request *restful.Request, name string) (int32, error) {
	valueString := request.PathParameter(name)
	value, err := strconv.ParseInt(valueString, 10, 32)
	if err != nil || value <= 0 {
		return 0, errors.NotValidf("%s %q", name, valueString)
	}
	return int32(value), nil
}

func writeError(response *restful.Response, status int, message string) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteHeaderAndJson(status, ErrorResponse{Error: message}, restful.MIME_JSON); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// Error maps an error to its HTTP status.
func Error(response *restful.Response, err error) {
	switch {
	case errors.Is(err, engine.ErrModelNotReady):
		writeError(response, http.StatusServiceUnavailable, engine.ErrModelNotReady.Error())
	case errors.Is(err, errors.NotValid):
		BadRequest(response, err)
	case errors.Is(err, errors.NotFound):
		PageNotFound(response, err)
	case errors.Is(err, errors.AlreadyExists):
		writeError(response, http.StatusConflict, err.Error())
	default:
		InternalServerError(response, err)
	}
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	log.ResponseLogger(response).Warn("bad request", zap.Error(err))
	writeError(response, http.StatusBadRequest, err.Error())
}

// InternalServerError returns a internal server error.
func InternalServerError(response *restful.Response, err error) {
	log.ResponseLogger(response).Error("internal server error", zap.Error(err))
	writeError(response, http.StatusInternalServerError, err.Error())
}

// PageNotFound returns a not found error.
func PageNotFound(response *restful.Response, err error) {
	writeError(response, http.StatusNotFound, err.Error())
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content interface{}) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteAsJson(content); err != nil {
		log.ResponseLogger(response).Error("failed to write json", zap.Error(err))
	}
}

// Text returns a plain text.
func Text(response *restful.Response, content string) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if _, err := response.Write([]byte(content)); err != nil {
		log.ResponseLogger(response).Error("failed to write text", zap.Error(err))
	}
}
