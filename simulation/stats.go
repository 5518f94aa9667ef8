package simulation

import (
	"math"

	"github.com/cyberrange/simnet-backend/model"
)

// distribution accumulates samples for the aggregate statistics step.
type distribution struct {
	values []float64
}

func (d *distribution) add(v float64) {
	d.values = append(d.values, v)
}

func (d *distribution) summary() (mean, min, max, stddev float64) {
	if len(d.values) == 0 {
		return 0, 0, 0, 0
	}
	min = d.values[0]
	max = d.values[0]
	sum := 0.0
	for _, v := range d.values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean = sum / float64(len(d.values))

	variance := 0.0
	for _, v := range d.values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(d.values))
	stddev = math.Sqrt(variance)
	return mean, min, max, stddev
}

// runTally collects per-run observations as the loop streams them out, then
// folds them into model.RunStatistics at completion.
type runTally struct {
	impactScores  distribution
	financialLoss distribution
	outcomeCounts map[string]int
	successes     int
	total         int
	iterations    int
}

func newRunTally(iterations int) *runTally {
	if iterations < 1 {
		iterations = 1
	}
	return &runTally{
		outcomeCounts: make(map[string]int),
		iterations:    iterations,
	}
}

func (t *runTally) observe(o model.Outcome) {
	t.total++
	t.impactScores.add(o.ImpactScore)
	if o.Success {
		t.successes++
	}
}

// observeTrial counts each outcome type at most once per trial, so the
// per-type probability is the fraction of trials the type occurred in.
func (t *runTally) observeTrial(types map[model.OutcomeType]bool) {
	for outcomeType := range types {
		t.outcomeCounts[string(outcomeType)]++
	}
}

func (t *runTally) observeLoss(lossUSD float64) {
	t.financialLoss.add(lossUSD)
}

func (t *runTally) statistics() *model.RunStatistics {
	stats := &model.RunStatistics{
		TotalOutcomes: t.total,
		Iterations:    t.iterations,
	}
	stats.MeanImpactScore, stats.MinImpactScore, stats.MaxImpactScore, stats.StdDevImpactScore =
		t.impactScores.summary()
	stats.MeanFinancialLoss, stats.MinFinancialLoss, stats.MaxFinancialLoss, stats.StdDevFinancialLoss =
		t.financialLoss.summary()

	if t.total > 0 {
		stats.SuccessRate = float64(t.successes) / float64(t.total)
	}

	// Outcome-type frequency over N trials becomes a per-type probability.
	// Single runs have no ensemble to average over, so the field stays nil.
	if t.iterations > 1 {
		stats.OutcomeProbabilities = make(map[string]float64, len(t.outcomeCounts))
		for outcomeType, count := range t.outcomeCounts {
			stats.OutcomeProbabilities[outcomeType] = float64(count) / float64(t.iterations)
		}
	}
	return stats
}
