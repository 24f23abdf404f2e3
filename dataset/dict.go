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
	"io"

	"github.com/juju/errors"
	"github.com/reelsense/reelsense/base/encoding"
)

// FreqDict maps sparse external ids to dense indices and counts how many
// times each id has been added.
type FreqDict struct {
	si  map[int32]int32
	is  []int32
	cnt []int32
}

func NewFreqDict() (d *FreqDict) {
	d = &FreqDict{map[int32]int32{}, []int32{}, []int32{}}
	return
}

// Count returns the number of distinct ids.
func (d *FreqDict) Count() int32 {
	return int32(len(d.is))
}

// Add returns the dense index of id, creating it if absent, and increases its frequency.
func (d *FreqDict) Add(id int32) (y int32) {
	if y, ok := d.si[id]; ok {
		d.cnt[y]++
		return y
	}
	y = int32(len(d.is))
	d.si[id] = y
	d.is = append(d.is, id)
	d.cnt = append(d.cnt, 1)
	return
}

// NotCount returns the dense index of id, creating it if absent, without touching its frequency.
func (d *FreqDict) NotCount(id int32) (y int32) {
	if y, ok := d.si[id]; ok {
		return y
	}
	y = int32(len(d.is))
	d.si[id] = y
	d.is = append(d.is, id)
	d.cnt = append(d.cnt, 0)
	return
}

// Index returns the dense index of id or -1 if it is unknown.
func (d *FreqDict) Index(id int32) int32 {
	if y, ok := d.si[id]; ok {
		return y
	}
	return -1
}

// Id returns the external id at a dense index.
func (d *FreqDict) Id(index int32) (id int32, ok bool) {
	if index < 0 || int(index) >= len(d.is) {
		return 0, false
	}
	return d.is[index], true
}

// Freq returns how many times the id at a dense index has been added.
func (d *FreqDict) Freq(index int32) int32 {
	if index < 0 || int(index) >= len(d.cnt) {
		return 0
	}
	return d.cnt[index]
}

// Ids returns external ids in dense index order.
func (d *FreqDict) Ids() []int32 {
	return d.is
}

// Marshal writes ids and frequencies to byte stream.
func (d *FreqDict) Marshal(w io.Writer) error {
	if err := encoding.WriteSlice(w, d.is); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(encoding.WriteSlice(w, d.cnt))
}

// Unmarshal reads a dictionary written by Marshal.
func (d *FreqDict) Unmarshal(r io.Reader) error {
	ids, err := encoding.ReadSlice[int32](r)
	if err != nil {
		return errors.Trace(err)
	}
	cnt, err := encoding.ReadSlice[int32](r)
	if err != nil {
		return errors.Trace(err)
	}
	if len(ids) != len(cnt) {
		return errors.Errorf("corrupted dictionary: %d ids but %d counts", len(ids), len(cnt))
	}
	d.si = make(map[int32]int32, len(ids))
	for i, id := range ids {
		d.si[id] = int32(i)
	}
	d.is, d.cnt = ids, cnt
	return nil
}
