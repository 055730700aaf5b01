package sim

import (
	"context"
	"runtime"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Ensemble runs independent instances concurrently with a shared
// Simulator. One failing instance does not stop the others.
type Ensemble struct {
	base    *Simulator
	workers int
}

// NewEnsemble limits concurrency to workers; 0 means GOMAXPROCS.
func NewEnsemble(s *Simulator, workers int) *Ensemble {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Ensemble{base: s, workers: workers}
}

// Run runs every instance and returns the failures combined. Each
// instance records its own status and error.
func (e *Ensemble) Run(ctx context.Context, insts []*Instance, cfg Config) error {
	errs := make([]error, len(insts))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, inst := range insts {
		g.Go(func() error {
			_, errs[i] = e.base.Run(ctx, inst, cfg)
			return nil
		})
	}
	_ = g.Wait()

	var merr *multierror.Error
	for _, err := range errs {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

// SplitParallel partitions n parallel points into at most chunks
// contiguous [start, end) ranges of near-equal size.
func SplitParallel(n, chunks int) [][2]int {
	if chunks < 1 {
		chunks = 1
	}
	if chunks > n {
		chunks = n
	}
	out := make([][2]int, 0, chunks)
	size := (n + chunks - 1) / max(chunks, 1)
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}
