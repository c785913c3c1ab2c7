package bandit

import "github.com/example/lingofeed/pkg/models"

// CalculateReward converts interaction feedback into a reward in [0,1]
func CalculateReward(in models.InteractionInput) float64 {
	r := 0.0
	if in.Completed {
		r += 0.4
	}
	if in.Liked {
		r += 0.3
	}
	if in.Saved {
		r += 0.2
	}
	if in.Shared {
		r += 0.15
	}
	if in.Duration > 0 {
		r += min(in.TimeSpent/in.Duration, 1) * 0.2
	}

	if in.Skipped {
		r -= 0.5
	}
	if in.TooHard {
		r -= 0.3
	}
	if in.TooEasy {
		r -= 0.2
	}
	return clamp(r, 0, 1)
}
