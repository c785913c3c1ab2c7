package bandit

import (
	"context"
	"math"
	"math/rand/v2"
)

// GetWeightsThompson samples each arm's weight from a Beta posterior built
// from its average reward and pull count, scaled into the arm's bounds.
func (o *Optimizer) GetWeightsThompson(ctx context.Context, userID string) Weights {
	o.mu.Lock()
	defer o.mu.Unlock()

	state, err := o.load(ctx, userID)
	if err != nil {
		o.logger.Warn().Err(err).Str("user_id", userID).Msg("bandit state unavailable, using default weights")
		return o.defaultWeights()
	}

	var w Weights
	for _, d := range Dimensions {
		b := o.config.Bounds(d)
		arm := state.Arms[d]

		p := 0.0
		if b.Max > 0 {
			p = clamp(arm.AverageReward/b.Max, 0, 1)
		}
		n := float64(arm.Pulls)
		theta := sampleBeta(o.rng, 1+p*n, 1+(1-p)*n)
		w.Set(d, b.Min+theta*(b.Max-b.Min))
	}
	w = w.Normalize()

	o.remember(ctx, userID, state, w)
	return w
}

// sampleBeta draws from Beta(a, b) as X/(X+Y) with X~Gamma(a), Y~Gamma(b)
func sampleBeta(rng *rand.Rand, a, b float64) float64 {
	x := sampleGamma(rng, a)
	y := sampleGamma(rng, b)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// sampleGamma draws from Gamma(shape, 1) using Marsaglia and Tsang
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		// Boost: Gamma(a) = Gamma(a+1) * U^(1/a)
		u := rng.Float64()
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3
	c := 1 / math.Sqrt(9*d)
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
