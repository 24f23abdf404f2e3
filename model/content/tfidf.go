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
	"io"
	"sort"
	"strings"
	"unicode"

	"github.com/chewxy/math32"
	"github.com/juju/errors"
	"github.com/reelsense/reelsense/base/encoding"
	"github.com/samber/lo"
)

// DefaultMaxFeatures caps the vocabulary of a Vectorizer.
const DefaultMaxFeatures = 5000

// SparseVector is a row of the TF-IDF matrix with indices in ascending order.
type SparseVector struct {
	Indices []int32
	Values  []float32
}

// Dot returns the inner product of two sparse vectors.
func (v SparseVector) Dot(u SparseVector) float32 {
	var sum float32
	i, j := 0, 0
	for i < len(v.Indices) && j < len(u.Indices) {
		switch {
		case v.Indices[i] == u.Indices[j]:
			sum += v.Values[i] * u.Values[j]
			i++
			j++
		case v.Indices[i] < u.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Len returns the number of non-zero entries.
func (v SparseVector) Len() int {
	return len(v.Indices)
}

// Tokenize lowercases a document and splits it into words of at least two
// letters, digits or underscores. Stop words are dropped.
func Tokenize(doc string) []string {
	words := strings.FieldsFunc(strings.ToLower(doc), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	return lo.Filter(words, func(word string, _ int) bool {
		return len([]rune(word)) >= 2 && !stopWords.Contains(word)
	})
}

// Vectorizer converts documents to L2-normalized TF-IDF vectors. Term
// frequencies are raw counts and the inverse document frequency is smoothed:
//
//	idf(t) = ln((1 + n) / (1 + df(t))) + 1
type Vectorizer struct {
	MaxFeatures int
	Terms       []string
	Idf         []float32
	vocabulary  map[string]int32
}

func NewVectorizer(maxFeatures int) *Vectorizer {
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}
	return &Vectorizer{MaxFeatures: maxFeatures, vocabulary: make(map[string]int32)}
}

// Fit learns the vocabulary and idf weights from documents. When the corpus
// has more terms than MaxFeatures, the most frequent terms are kept with ties
// broken in lexical order.
func (v *Vectorizer) Fit(docs []string) {
	termFreq := make(map[string]int)
	docFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, token := range Tokenize(doc) {
			termFreq[token]++
			if _, exist := seen[token]; !exist {
				seen[token] = struct{}{}
				docFreq[token]++
			}
		}
	}
	terms := lo.Keys(termFreq)
	sort.Strings(terms)
	if len(terms) > v.MaxFeatures {
		sort.SliceStable(terms, func(i, j int) bool {
			return termFreq[terms[i]] > termFreq[terms[j]]
		})
		terms = terms[:v.MaxFeatures]
		sort.Strings(terms)
	}
	n := float32(len(docs))
	v.Terms = terms
	v.Idf = make([]float32, len(terms))
	v.vocabulary = make(map[string]int32, len(terms))
	for i, term := range terms {
		v.vocabulary[term] = int32(i)
		v.Idf[i] = math32.Log((1+n)/(1+float32(docFreq[term]))) + 1
	}
}

// Transform converts a document to a TF-IDF vector. Unknown terms are ignored
// and documents without known terms produce an empty vector.
func (v *Vectorizer) Transform(doc string) SparseVector {
	counts := make(map[int32]float32)
	for _, token := range Tokenize(doc) {
		if index, exist := v.vocabulary[token]; exist {
			counts[index]++
		}
	}
	vec := SparseVector{Indices: lo.Keys(counts)}
	sort.Slice(vec.Indices, func(i, j int) bool { return vec.Indices[i] < vec.Indices[j] })
	vec.Values = make([]float32, len(vec.Indices))
	var norm float32
	for i, index := range vec.Indices {
		vec.Values[i] = counts[index] * v.Idf[index]
		norm += vec.Values[i] * vec.Values[i]
	}
	if norm > 0 {
		norm = math32.Sqrt(norm)
		for i := range vec.Values {
			vec.Values[i] /= norm
		}
	}
	return vec
}

// VocabularySize returns the number of terms.
func (v *Vectorizer) VocabularySize() int {
	return len(v.Terms)
}

type savedVocabulary struct {
	MaxFeatures int
	Terms       []string
}

// Marshal writes the vocabulary and idf weights to byte stream.
func (v *Vectorizer) Marshal(w io.Writer) error {
	if err := encoding.WriteGob(w, savedVocabulary{MaxFeatures: v.MaxFeatures, Terms: v.Terms}); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(encoding.WriteSlice(w, v.Idf))
}

// Unmarshal reads a vectorizer written by Marshal.
func (v *Vectorizer) Unmarshal(r io.Reader) error {
	var vocab savedVocabulary
	if err := encoding.ReadGob(r, &vocab); err != nil {
		return errors.Trace(err)
	}
	v.MaxFeatures, v.Terms = vocab.MaxFeatures, vocab.Terms
	var err error
	if v.Idf, err = encoding.ReadSlice[float32](r); err != nil {
		return errors.Trace(err)
	}
	if len(v.Idf) != len(v.Terms) {
		return errors.Errorf("corrupted vocabulary: %d terms but %d weights", len(v.Terms), len(v.Idf))
	}
	v.vocabulary = make(map[string]int32, len(v.Terms))
	for i, term := range v.Terms {
		v.vocabulary[term] = int32(i)
	}
	return nil
}
