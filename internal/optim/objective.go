package optim

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/san-kum/motionlab/internal/config"
	"github.com/san-kum/motionlab/internal/motion"
	"github.com/san-kum/motionlab/internal/scenario"
)

// TimeoutPenalty is added to the score for every motion that ran out of time.
const TimeoutPenalty = 1000.0

// ScenarioObjective runs base with the candidate gains applied and scores it
// as the sum of the named metric over all motions.
func ScenarioObjective(base *config.Config, metric string, logger *zap.Logger) Objective {
	return func(ctx context.Context, params map[string]float64) (float64, error) {
		cfg := *base
		for name, v := range params {
			if err := cfg.SetGain(name, v); err != nil {
				return 0, err
			}
		}
		robot, err := scenario.Build(&cfg, logger)
		if err != nil {
			return 0, err
		}
		result, err := robot.Run(ctx)
		if err != nil {
			return 0, err
		}
		return Score(result, metric)
	}
}

// Score sums metric over the motions of a result.
func Score(result *scenario.Result, metric string) (float64, error) {
	if len(result.Motions) == 0 {
		return 0, errors.New("optim: run had no motions")
	}
	score := 0.0
	for _, m := range result.Motions {
		v, ok := m.Values[metric]
		if !ok {
			return 0, errors.Errorf("optim: unknown metric %q", metric)
		}
		score += v
		if m.Reason == motion.ExitTimeout.String() {
			score += TimeoutPenalty
		}
	}
	return score, nil
}
