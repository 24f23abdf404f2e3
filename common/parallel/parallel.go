// Copyright 2020 gorse Project Authors
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

package parallel

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/juju/errors"
	"github.com/reelsense/reelsense/base/log"
	"go.uber.org/zap"
)

const chanSize = 1024

/* Parallel Schedulers */

// Parallel schedules and runs jobs in parallel. nJobs is the number of jobs. nWorkers is
// the number of executors. worker is called with the id of the executor and the id of
// the job. The first error returned by a job (in job order) is returned. The ctx argument
// allows callers to cancel outstanding work.
func Parallel(ctx context.Context, nJobs, nWorkers int, worker func(workerId, jobId int) error) error {
	if nWorkers <= 1 {
		for i := 0; i < nJobs; i++ {
			if err := ctx.Err(); err != nil {
				return errors.Trace(err)
			}
			if err := worker(0, i); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	}
	c := make(chan int, chanSize)
	// producer
	go func() {
		defer close(c)
		for i := 0; i < nJobs; i++ {
			select {
			case <-ctx.Done():
				return
			case c <- i:
			}
		}
	}()
	// consumer
	var wg sync.WaitGroup
	errs := make([]error, nJobs)
	for j := 0; j < nWorkers; j++ {
		workerId := j
		wg.Add(1)
		go func() {
			defer wg.Done()
			for jobId := range c {
				if err := ctx.Err(); err != nil {
					errs[jobId] = err
					continue
				}
				errs[jobId] = safeRun(func() error {
					return worker(workerId, jobId)
				})
			}
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	for _, err := range errs {
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// safeRun converts a panic in a job into an error so that one bad job does not crash the process.
func safeRun(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Logger().Error("panic recovered", zap.Any("panic", r), zap.String("stack", string(debug.Stack())))
			err = errors.New(fmt.Sprint(r))
		}
	}()
	return f()
}
