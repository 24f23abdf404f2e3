// Copyright 2023 gorse Project Authors
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

package progress

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type spanKeyType string

var spanKeyName = spanKeyType(uuid.New().String())

type Status string

const (
	StatusPending  Status = "Pending"
	StatusComplete Status = "Complete"
	StatusRunning  Status = "Running"
	StatusFailed   Status = "Failed"
)

// Tracer keeps the root spans of long-running jobs such as model training.
type Tracer struct {
	name  string
	spans sync.Map
}

func NewTracer(name string) *Tracer {
	return &Tracer{name: name}
}

// Start creates a root span. A root span with the same name is replaced.
func (t *Tracer) Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	span := newSpan(name, total)
	t.spans.Store(name, span)
	return context.WithValue(ctx, spanKeyName, span), span
}

// List returns the progress of all root spans ordered by start time.
func (t *Tracer) List() []Progress {
	var progress []Progress
	t.spans.Range(func(key, value interface{}) bool {
		p := value.(*Span).Progress()
		p.Tracer = t.name
		progress = append(progress, p)
		return true
	})
	sort.SliceStable(progress, func(i, j int) bool {
		return progress[i].StartTime.Before(progress[j].StartTime)
	})
	return progress
}

type Span struct {
	mu       sync.Mutex
	name     string
	status   Status
	total    int
	count    int
	err      string
	start    time.Time
	finish   time.Time
	children []*Span
}

func newSpan(name string, total int) *Span {
	return &Span{
		name:   name,
		status: StatusRunning,
		total:  total,
		start:  time.Now(),
	}
}

func (s *Span) Add(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count += n
}

func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusRunning {
		s.status = StatusComplete
		s.count = s.total
		s.finish = time.Now()
	}
}

func (s *Span) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusFailed
	s.err = err.Error()
	s.finish = time.Now()
}

func (s *Span) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Progress takes a snapshot of the span and its children.
func (s *Span) Progress() Progress {
	s.mu.Lock()
	p := Progress{
		Name:       s.name,
		Status:     s.status,
		Error:      s.err,
		Count:      s.count,
		Total:      s.total,
		StartTime:  s.start,
		FinishTime: s.finish,
	}
	children := make([]*Span, len(s.children))
	copy(children, s.children)
	s.mu.Unlock()
	for _, child := range children {
		p.Children = append(p.Children, child.Progress())
	}
	return p
}

func (s *Span) addChild(child *Span) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children = append(s.children, child)
}

// Start creates a child span of the span carried by ctx. If ctx carries no span, the new span is detached.
func Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	childSpan := newSpan(name, total)
	if ctx == nil {
		ctx = context.Background()
	}
	if span, ok := ctx.Value(spanKeyName).(*Span); ok {
		span.addChild(childSpan)
	}
	return context.WithValue(ctx, spanKeyName, childSpan), childSpan
}

// Fail marks the span carried by ctx as failed.
func Fail(ctx context.Context, err error) {
	if span, ok := ctx.Value(spanKeyName).(*Span); ok {
		span.Fail(err)
	}
}

type Progress struct {
	Tracer     string     `json:"tracer,omitempty"`
	Name       string     `json:"name"`
	Status     Status     `json:"status"`
	Error      string     `json:"error,omitempty"`
	Count      int        `json:"count"`
	Total      int        `json:"total"`
	StartTime  time.Time  `json:"start_time"`
	FinishTime time.Time  `json:"finish_time"`
	Children   []Progress `json:"children,omitempty"`
}
