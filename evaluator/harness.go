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

package evaluator

import (
	"context"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/reelsense/reelsense/base"
	"github.com/reelsense/reelsense/base/log"
	"github.com/reelsense/reelsense/common/parallel"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/logics"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	DefaultNumUsers    = 50
	DefaultRandomState = 42
	DefaultTopK        = 10
)

// Names of the metrics in a report, in display order.
const (
	PrecisionName      = "Precision"
	RecallName         = "Recall"
	NDCGName           = "NDCG"
	MAPName            = "MAP"
	DiversityName      = "Diversity"
	GenreEntropyName   = "GenreEntropy"
	PopularityRankName = "PopularityRank"
	LongTailName       = "LongTail"
	DiscoveryJoyName   = "DiscoveryJoy"
)

var metricNames = []string{
	PrecisionName, RecallName, NDCGName, MAPName, DiversityName,
	GenreEntropyName, PopularityRankName, LongTailName, DiscoveryJoyName,
}

// RecommendFunc generates the recommendation list of a user.
type RecommendFunc func(ctx context.Context, userId int32, k int) ([]int32, error)

// Recommender is a named candidate generator under evaluation.
type Recommender struct {
	Name      string
	Recommend RecommendFunc
}

// Harness evaluates recommenders on a sample of held-out users.
type Harness struct {
	TopK              int
	NumUsers          int
	RandomState       int64
	Jobs              int
	LongTailThreshold int
	catalog           *dataset.Dataset
	similarity        logics.Similarity
	popularityRanks   map[int32]int
}

// NewHarness creates a harness. The catalog holds the movies and the train
// ratings, which define popularity and the genres each user has explored.
func NewHarness(catalog *dataset.Dataset, similarity logics.Similarity) *Harness {
	return &Harness{
		TopK:              DefaultTopK,
		NumUsers:          DefaultNumUsers,
		RandomState:       DefaultRandomState,
		Jobs:              1,
		LongTailThreshold: logics.DefaultDiversityOptions().LongTailThreshold,
		catalog:           catalog,
		similarity:        similarity,
		popularityRanks:   logics.PopularityRanks(catalog),
	}
}

// SampleUsers draws at most NumUsers distinct test users with the seeded generator.
func (h *Harness) SampleUsers(testSet []dataset.Rating) []int32 {
	users := lo.Uniq(lo.Map(testSet, func(r dataset.Rating, _ int) int32 { return r.UserId }))
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	rng := base.NewRandomGenerator(h.RandomState)
	return base.Choose(rng, users, h.NumUsers)
}

type userResult struct {
	ok       bool
	metrics  []float32
	rankList []int32
}

// Evaluate runs every recommender once per sampled user. Users whose
// recommendation fails are skipped and counted.
func (h *Harness) Evaluate(ctx context.Context, testSet []dataset.Rating, recommenders ...Recommender) (*Report, error) {
	if len(testSet) == 0 {
		return nil, errors.New("evaluate: empty test set")
	}
	if len(recommenders) == 0 {
		return nil, errors.New("evaluate: no recommender")
	}
	start := time.Now()
	users := h.SampleUsers(testSet)
	actual := make(map[int32]mapset.Set[int32])
	for _, r := range testSet {
		if _, exist := actual[r.UserId]; !exist {
			actual[r.UserId] = mapset.NewThreadUnsafeSet[int32]()
		}
		actual[r.UserId].Add(r.MovieId)
	}
	report := &Report{TopK: h.TopK, NumUsers: len(users)}
	for _, recommender := range recommenders {
		results := make([]userResult, len(users))
		err := parallel.Parallel(ctx, len(users), h.Jobs, func(_, jobId int) error {
			userId := users[jobId]
			rankList, err := recommend(ctx, recommender, userId, h.TopK)
			if err != nil {
				log.Logger().Warn("skip user in evaluation",
					zap.String("recommender", recommender.Name),
					zap.Int32("user_id", userId),
					zap.Error(err))
				return nil
			}
			results[jobId] = userResult{
				ok:       true,
				metrics:  h.score(userId, actual[userId], rankList),
				rankList: rankList,
			}
			return nil
		})
		if err != nil {
			return nil, errors.Trace(err)
		}
		report.Results = append(report.Results, h.aggregate(recommender.Name, results))
	}
	log.Logger().Info("complete evaluation",
		zap.Int("n_users", len(users)),
		zap.Int("n_recommenders", len(recommenders)),
		zap.Duration("eval_time", time.Since(start)))
	return report, nil
}

// recommend calls the recommender and turns a panic into an error so that a
// single bad user never aborts the run.
func recommend(ctx context.Context, recommender Recommender, userId int32, k int) (rankList []int32, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return recommender.Recommend(ctx, userId, k)
}

func (h *Harness) score(userId int32, targetSet mapset.Set[int32], rankList []int32) []float32 {
	explored := mapset.NewThreadUnsafeSet[string]()
	for _, r := range h.catalog.GetUserRatings(userId) {
		if movie, ok := h.catalog.GetMovie(r.MovieId); ok {
			explored.Append(movie.Genres...)
		}
	}
	return []float32{
		Precision(h.TopK)(targetSet, rankList),
		Recall(h.TopK)(targetSet, rankList),
		NDCG(h.TopK)(targetSet, rankList),
		MAP(h.TopK)(targetSet, rankList),
		IntraListDiversity(rankList, h.similarity),
		GenreEntropy(rankList, h.catalog),
		AveragePopularityRank(rankList, h.popularityRanks),
		LongTailPercentage(rankList, h.catalog, h.LongTailThreshold),
		DiscoveryJoy(rankList, h.catalog, explored),
	}
}

func (h *Harness) aggregate(name string, results []userResult) Result {
	result := Result{Name: name, Metrics: make(map[string]Summary, len(metricNames))}
	recommended := mapset.NewThreadUnsafeSet[int32]()
	values := make([][]float32, len(metricNames))
	for _, r := range results {
		if !r.ok {
			result.Skipped++
			continue
		}
		result.Evaluated++
		recommended.Append(r.rankList...)
		for i, v := range r.metrics {
			values[i] = append(values[i], v)
		}
	}
	for i, metric := range metricNames {
		mean, std := MeanStd(values[i])
		result.Metrics[metric] = Summary{Mean: mean, Std: std}
	}
	result.Coverage = CatalogCoverage(recommended, h.catalog.CountMovies())
	return result
}
