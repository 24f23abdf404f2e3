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

package content

import (
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/reelsense/reelsense/base/encoding"
	"github.com/reelsense/reelsense/base/log"
	"github.com/reelsense/reelsense/base/progress"
	"github.com/reelsense/reelsense/dataset"
	"github.com/reelsense/reelsense/model"
	"go.uber.org/zap"
)

// DefaultTopK is the number of top rated movies forming a user content profile.
const DefaultTopK = 10

// Neighbor is a movie with its similarity to a query movie.
type Neighbor struct {
	MovieId    int32   `json:"movie_id"`
	Similarity float32 `json:"similarity"`
}

type posting struct {
	itemIndex int32
	weight    float32
}

// Model represents every movie by the TF-IDF vector of its genres and tags.
// Similarity between two movies is the cosine of their vectors.
type Model struct {
	model.BaseModel
	Vectorizer *Vectorizer
	ItemIndex  *dataset.FreqDict
	rows       []SparseVector
	postings   [][]posting
}

func NewModel(params model.Params) *Model {
	m := new(Model)
	m.SetParams(params)
	return m
}

func (m *Model) SetParams(params model.Params) {
	m.BaseModel.SetParams(params)
}

// Document builds the text vectorized for a movie.
func Document(movie dataset.Movie) string {
	return strings.Join(movie.Genres, " ") + " " + strings.Join(movie.Tags, " ")
}

// Fit vectorizes the catalog.
func (m *Model) Fit(ctx context.Context, movies []dataset.Movie) error {
	if len(movies) == 0 {
		return errors.New("fit content model: empty catalog")
	}
	start := time.Now()
	_, span := progress.Start(ctx, "Content.Fit", len(movies))
	defer span.End()
	docs := make([]string, len(movies))
	for i, movie := range movies {
		docs[i] = Document(movie)
	}
	vectorizer := NewVectorizer(m.Params.GetInt(model.MaxFeatures, DefaultMaxFeatures))
	vectorizer.Fit(docs)
	itemIndex := dataset.NewFreqDict()
	rows := make([]SparseVector, 0, len(movies))
	for i, movie := range movies {
		if err := ctx.Err(); err != nil {
			span.Fail(err)
			return errors.Trace(err)
		}
		if itemIndex.Index(movie.MovieId) >= 0 {
			continue
		}
		itemIndex.Add(movie.MovieId)
		rows = append(rows, vectorizer.Transform(docs[i]))
		span.Add(1)
	}
	m.Vectorizer, m.ItemIndex, m.rows = vectorizer, itemIndex, rows
	m.buildPostings()
	log.Logger().Info("fit content model complete",
		zap.Int("n_movies", len(rows)),
		zap.Int("n_terms", vectorizer.VocabularySize()),
		zap.Duration("fit_time", time.Since(start)))
	return nil
}

func (m *Model) buildPostings() {
	m.postings = make([][]posting, m.Vectorizer.VocabularySize())
	for itemIndex, row := range m.rows {
		for i, term := range row.Indices {
			m.postings[term] = append(m.postings[term], posting{itemIndex: int32(itemIndex), weight: row.Values[i]})
		}
	}
}

// Vector returns the TF-IDF vector of a movie.
func (m *Model) Vector(movieId int32) (SparseVector, bool) {
	if m.Invalid() {
		return SparseVector{}, false
	}
	index := m.ItemIndex.Index(movieId)
	if index < 0 {
		return SparseVector{}, false
	}
	return m.rows[index], true
}

// Similarity returns the cosine similarity of two movies or zero if any of
// them is unknown.
func (m *Model) Similarity(a, b int32) float32 {
	va, ok := m.Vector(a)
	if !ok {
		return 0
	}
	vb, ok := m.Vector(b)
	if !ok {
		return 0
	}
	return va.Dot(vb)
}

// TopKSimilar returns the k movies most similar to a movie, excluding itself,
// in descending similarity with ties broken by ascending movie id.
func (m *Model) TopKSimilar(movieId int32, k int) []Neighbor {
	query, ok := m.Vector(movieId)
	if !ok || k <= 0 {
		return nil
	}
	self := m.ItemIndex.Index(movieId)
	scores := make([]float32, len(m.rows))
	for i, term := range query.Indices {
		for _, p := range m.postings[term] {
			scores[p.itemIndex] += query.Values[i] * p.weight
		}
	}
	neighbors := make([]Neighbor, 0, len(m.rows)-1)
	for index, score := range scores {
		if int32(index) == self {
			continue
		}
		id, _ := m.ItemIndex.Id(int32(index))
		neighbors = append(neighbors, Neighbor{MovieId: id, Similarity: score})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Similarity != neighbors[j].Similarity {
			return neighbors[i].Similarity > neighbors[j].Similarity
		}
		return neighbors[i].MovieId < neighbors[j].MovieId
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors
}

// TopRated returns ids of the topK highest rated movies. Ties go to the
// earlier rating, then to the smaller movie id.
func TopRated(ratings []dataset.Rating, topK int) []int32 {
	sorted := make([]dataset.Rating, len(ratings))
	copy(sorted, ratings)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Rating != sorted[j].Rating {
			return sorted[i].Rating > sorted[j].Rating
		}
		if sorted[i].Timestamp != sorted[j].Timestamp {
			return sorted[i].Timestamp < sorted[j].Timestamp
		}
		return sorted[i].MovieId < sorted[j].MovieId
	})
	if topK >= 0 && len(sorted) > topK {
		sorted = sorted[:topK]
	}
	ids := make([]int32, len(sorted))
	for i, r := range sorted {
		ids[i] = r.MovieId
	}
	return ids
}

// MeanSimilarity returns the mean similarity between a movie and a profile.
func (m *Model) MeanSimilarity(profile []int32, movieId int32) float32 {
	if len(profile) == 0 {
		return 0
	}
	if _, ok := m.Vector(movieId); !ok {
		return 0
	}
	var sum float32
	for _, id := range profile {
		sum += m.Similarity(id, movieId)
	}
	return sum / float32(len(profile))
}

// UserContentAffinity returns the mean similarity between a movie and the
// topK highest rated movies of a user.
func (m *Model) UserContentAffinity(ratings []dataset.Rating, movieId int32, topK int) float32 {
	return m.MeanSimilarity(TopRated(ratings, topK), movieId)
}

func (m *Model) Invalid() bool {
	return m == nil || m.Vectorizer == nil || m.ItemIndex == nil || len(m.rows) == 0
}

func (m *Model) Clear() {
	m.Vectorizer = nil
	m.ItemIndex = nil
	m.rows = nil
	m.postings = nil
}

// Marshal writes the vocabulary and the TF-IDF matrix in CSR layout.
func (m *Model) Marshal(w io.Writer) error {
	if m.Invalid() {
		return errors.New("marshal content model: not fitted")
	}
	if err := encoding.WriteGob(w, m.Params); err != nil {
		return errors.Trace(err)
	}
	if err := m.Vectorizer.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := m.ItemIndex.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	indptr := make([]int32, 0, len(m.rows)+1)
	var indices []int32
	var values []float32
	indptr = append(indptr, 0)
	for _, row := range m.rows {
		indices = append(indices, row.Indices...)
		values = append(values, row.Values...)
		indptr = append(indptr, int32(len(indices)))
	}
	if err := encoding.WriteSlice(w, indptr); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteSlice(w, indices); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(encoding.WriteSlice(w, values))
}

// Unmarshal reads a model written by Marshal.
func (m *Model) Unmarshal(r io.Reader) error {
	var params model.Params
	if err := encoding.ReadGob(r, &params); err != nil {
		return errors.Trace(err)
	}
	m.SetParams(params)
	m.Vectorizer = NewVectorizer(0)
	if err := m.Vectorizer.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	m.ItemIndex = dataset.NewFreqDict()
	if err := m.ItemIndex.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	indptr, err := encoding.ReadSlice[int32](r)
	if err != nil {
		return errors.Trace(err)
	}
	indices, err := encoding.ReadSlice[int32](r)
	if err != nil {
		return errors.Trace(err)
	}
	values, err := encoding.ReadSlice[float32](r)
	if err != nil {
		return errors.Trace(err)
	}
	if len(indptr) != int(m.ItemIndex.Count())+1 || len(indices) != len(values) || int(indptr[len(indptr)-1]) != len(indices) {
		return errors.New("corrupted content matrix")
	}
	m.rows = make([]SparseVector, m.ItemIndex.Count())
	for i := range m.rows {
		begin, end := indptr[i], indptr[i+1]
		if begin > end {
			return errors.New("corrupted content matrix")
		}
		for _, term := range indices[begin:end] {
			if term < 0 || int(term) >= m.Vectorizer.VocabularySize() {
				return errors.Errorf("term %d out of vocabulary", term)
			}
		}
		m.rows[i] = SparseVector{Indices: indices[begin:end], Values: values[begin:end]}
	}
	m.buildPostings()
	return nil
}
