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
	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/reelsense/reelsense/dataset"
	"golang.org/x/exp/constraints"
)

// Metric scores a recommendation list against the held-out movies of a user.
type Metric func(targetSet mapset.Set[int32], rankList []int32) float32

// Precision is the fraction of the top k that are relevant. The denominator
// is k even when fewer movies are recommended.
//
//	\frac{|relevant \cap retrieved_k|}{k}
func Precision(k int) Metric {
	return func(targetSet mapset.Set[int32], rankList []int32) float32 {
		if k <= 0 || len(rankList) == 0 {
			return 0
		}
		return float32(hits(targetSet, top(rankList, k))) / float32(k)
	}
}

// Recall is the fraction of relevant movies found in the top k, or zero
// without relevant movies.
func Recall(k int) Metric {
	return func(targetSet mapset.Set[int32], rankList []int32) float32 {
		if targetSet.Cardinality() == 0 {
			return 0
		}
		return float32(hits(targetSet, top(rankList, k))) / float32(targetSet.Cardinality())
	}
}

// NDCG means Normalized Discounted Cumulative Gain with binary relevance.
func NDCG(k int) Metric {
	return func(targetSet mapset.Set[int32], rankList []int32) float32 {
		// IDCG = \sum^{min(|REL|, k)}_{i=1} \frac {1} {\log_2(i+1)}
		var idcg float32
		for i := 0; i < targetSet.Cardinality() && i < k; i++ {
			idcg += 1 / math32.Log2(float32(i)+2)
		}
		if idcg == 0 {
			return 0
		}
		var dcg float32
		for i, movieId := range top(rankList, k) {
			if targetSet.Contains(movieId) {
				dcg += 1 / math32.Log2(float32(i)+2)
			}
		}
		return dcg / idcg
	}
}

// MAP means Mean Average Precision truncated at k.
func MAP(k int) Metric {
	return func(targetSet mapset.Set[int32], rankList []int32) float32 {
		n := min(targetSet.Cardinality(), k)
		if n == 0 {
			return 0
		}
		var sumPrecision float32
		hit := 0
		for i, movieId := range top(rankList, k) {
			if targetSet.Contains(movieId) {
				hit++
				sumPrecision += float32(hit) / float32(i+1)
			}
		}
		return sumPrecision / float32(n)
	}
}

func top(rankList []int32, k int) []int32 {
	if k < 0 {
		return nil
	}
	return rankList[:min(k, len(rankList))]
}

func hits(targetSet mapset.Set[int32], rankList []int32) int {
	hit := 0
	for _, movieId := range rankList {
		if targetSet.Contains(movieId) {
			hit++
		}
	}
	return hit
}

// CatalogCoverage is the fraction of the catalog recommended to at least one user.
func CatalogCoverage(recommended mapset.Set[int32], catalogSize int) float32 {
	if catalogSize == 0 {
		return 0
	}
	return float32(recommended.Cardinality()) / float32(catalogSize)
}

// IntraListDiversity is one minus the mean pairwise similarity of a list.
// Lists shorter than two have zero diversity.
func IntraListDiversity(rankList []int32, similarity func(a, b int32) float32) float32 {
	if len(rankList) < 2 {
		return 0
	}
	var sum float32
	var count int
	for i := range rankList {
		for j := i + 1; j < len(rankList); j++ {
			sum += similarity(rankList[i], rankList[j])
			count++
		}
	}
	return 1 - sum/float32(count)
}

// GenreEntropy is the Shannon entropy in bits of the genres of a list.
func GenreEntropy(rankList []int32, catalog *dataset.Dataset) float32 {
	counts := make(map[string]int)
	var total int
	for _, movieId := range rankList {
		movie, _ := catalog.GetMovie(movieId)
		for _, genre := range movie.Genres {
			counts[genre]++
			total++
		}
	}
	var entropy float32
	for _, count := range counts {
		p := float32(count) / float32(total)
		entropy -= p * math32.Log2(p)
	}
	return entropy
}

// AveragePopularityRank is the mean popularity rank of a list. Movies
// without a rank count as the least popular.
func AveragePopularityRank(rankList []int32, ranks map[int32]int) float32 {
	if len(rankList) == 0 {
		return 0
	}
	var sum int
	for _, movieId := range rankList {
		if rank, exist := ranks[movieId]; exist {
			sum += rank
		} else {
			sum += len(ranks)
		}
	}
	return float32(sum) / float32(len(rankList))
}

// LongTailPercentage is the fraction of a list rated fewer than threshold times.
func LongTailPercentage(rankList []int32, catalog *dataset.Dataset, threshold int) float32 {
	if len(rankList) == 0 {
		return 0
	}
	var count int
	for _, movieId := range rankList {
		if movie, _ := catalog.GetMovie(movieId); movie.NumRatings < threshold {
			count++
		}
	}
	return float32(count) / float32(len(rankList))
}

// DiscoveryJoy is the fraction of a list having a genre the user has never rated.
func DiscoveryJoy(rankList []int32, catalog *dataset.Dataset, explored mapset.Set[string]) float32 {
	if len(rankList) == 0 {
		return 0
	}
	var count int
	for _, movieId := range rankList {
		movie, _ := catalog.GetMovie(movieId)
		for _, genre := range movie.Genres {
			if !explored.Contains(genre) {
				count++
				break
			}
		}
	}
	return float32(count) / float32(len(rankList))
}

// MeanStd returns the mean and the population standard deviation.
func MeanStd[T constraints.Float](values []T) (mean, std T) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= T(len(values))
	for _, v := range values {
		std += (v - mean) * (v - mean)
	}
	std = T(math32.Sqrt(float32(std / T(len(values)))))
	return
}
