package scenario

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/motionlab/internal/config"
)

// Ensemble runs one config under consecutive seeds.
type Ensemble struct {
	base      *config.Config
	numRuns   int
	seedStart int64
	workers   int
	logger    *zap.Logger
}

func NewEnsemble(cfg *config.Config, numRuns int, seedStart int64, workers int, logger *zap.Logger) *Ensemble {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ensemble{base: cfg, numRuns: numRuns, seedStart: seedStart, workers: workers, logger: logger}
}

func (e *Ensemble) Run(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, e.numRuns)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := 0; i < e.numRuns; i++ {
		idx := i
		g.Go(func() error {
			cfg := *e.base
			cfg.Plant.Seed = e.seedStart + int64(idx)
			robot, err := Build(&cfg, e.logger)
			if err != nil {
				return err
			}
			results[idx], err = robot.Run(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// DriftStats returns the mean and standard deviation of the final tracking
// drift across results.
func DriftStats(results []*Result) (mean, std float64) {
	drifts := make([]float64, len(results))
	for i, r := range results {
		drifts[i] = r.Drift()
	}
	if len(drifts) < 2 {
		return stat.Mean(drifts, nil), 0
	}
	return stat.MeanStdDev(drifts, nil)
}
