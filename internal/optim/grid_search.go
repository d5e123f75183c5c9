// Package optim searches controller gains for the lowest scenario score.
package optim

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

var ErrNoCandidate = errors.New("optim: every candidate failed")

// Objective scores one parameter set; lower is better.
type Objective func(ctx context.Context, params map[string]float64) (float64, error)

type Candidate struct {
	Params map[string]float64
	Score  float64
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
}

func NewGridSearch(params []string, ranges [][]float64, workers int) *GridSearch {
	if workers <= 0 {
		workers = 1
	}
	return &GridSearch{paramNames: params, ranges: ranges, workers: workers}
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	if len(g.ranges) == 0 {
		return 0
	}
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search evaluates every grid point and returns the scored candidates, best
// first. Candidates whose objective fails are left out; if all of them fail
// the joined errors are returned with ErrNoCandidate.
func (g *GridSearch) Search(ctx context.Context, objective Objective) ([]Candidate, error) {
	var points []map[string]float64
	g.enumerate(0, map[string]float64{}, &points)

	var (
		mu         sync.Mutex
		candidates []Candidate
		errs       error
	)
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for _, params := range points {
		params := params
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			score, err := objective(egctx, params)
			mu.Lock()
			defer mu.Unlock()
			if err != nil || math.IsNaN(score) {
				if err == nil {
					err = errors.New("score is NaN")
				}
				errs = multierr.Append(errs, err)
				return nil
			}
			candidates = append(candidates, Candidate{Params: params, Score: score})
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, multierr.Append(ErrNoCandidate, errs)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score < candidates[j].Score
	})
	return candidates, nil
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		if depth > 0 {
			*out = append(*out, current)
		}
		return
	}
	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		next := make(map[string]float64, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[name] = val
		g.enumerate(depth+1, next, out)
	}
}

// Range returns n evenly spaced values from lo to hi inclusive.
func Range(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + step*float64(i)
	}
	out[n-1] = hi
	return out
}
