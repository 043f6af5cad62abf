package sim

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Job is one independent run. Simulators carry metric state, so every job
// needs its own.
type Job struct {
	Name      string
	Simulator *Simulator
	Config    Config
}

// RunAll runs jobs concurrently and returns their results in order. The
// first failure is returned after every job has finished.
func RunAll(ctx context.Context, jobs []Job) ([]*Result, error) {
	results := make([]*Result, len(jobs))
	errs := make([]error, len(jobs))

	var wg sync.WaitGroup
	for i := range jobs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			job := jobs[idx]
			results[idx], errs[idx] = job.Simulator.Run(ctx, job.Config)
		}(i)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return results, errors.Wrapf(err, "run %q", jobs[i].Name)
		}
	}

	return results, nil
}
