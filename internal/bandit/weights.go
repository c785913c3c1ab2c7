package bandit

// Dimension is a scoring dimension controlled by one bandit arm
type Dimension string

const (
	LevelMatch      Dimension = "levelMatch"
	InterestMatch   Dimension = "interestMatch"
	VocabularyMatch Dimension = "vocabularyMatch"
	Novelty         Dimension = "novelty"
	Engagement      Dimension = "engagement"
)

// Dimensions lists all arms in a fixed order
var Dimensions = []Dimension{LevelMatch, InterestMatch, VocabularyMatch, Novelty, Engagement}

// Weights is a weight per scoring dimension.
// Its field layout matches scoring.Weights so the two convert directly.
type Weights struct {
	LevelMatch      float64 `json:"levelMatch"`
	InterestMatch   float64 `json:"interestMatch"`
	VocabularyMatch float64 `json:"vocabularyMatch"`
	Novelty         float64 `json:"novelty"`
	Engagement      float64 `json:"engagement"`
}

// Get returns the weight of dimension d
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (w Weights) Get(d Dimension) float64 {
	switch d {
	case LevelMatch:
		return w.LevelMatch
	case InterestMatch:
		return w.InterestMatch
	case VocabularyMatch:
		return w.VocabularyMatch
	case Novelty:
		return w.Novelty
	case Engagement:
		return w.Engagement
	}
	return 0
}

// Set assigns the weight of dimension d
func (w *Weights) Set(d Dimension, v float64) {
	switch d {
	case LevelMatch:
		w.LevelMatch = v
	case InterestMatch:
		w.InterestMatch = v
	case VocabularyMatch:
		w.VocabularyMatch = v
	case Novelty:
		w.Novelty = v
	case Engagement:
		w.Engagement = v
	}
}

// Sum returns the total weight
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (w Weights) Sum() float64 {
	return w.LevelMatch + w.InterestMatch + w.VocabularyMatch + w.Novelty + w.Engagement
}

// Normalize returns a copy with weights summing to 1.
// All-zero (or negative) input yields equal weights.
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (w Weights) Normalize() Weights {
	sum := 0.0
	for _, d := range Dimensions {
		if v := w.Get(d); v > 0 {
			sum += v
		}
	}
	var out Weights
	if sum <= 0 {
		equal := 1.0 / float64(len(Dimensions))
		for _, d := range Dimensions {
			out.Set(d, equal)
		}
		return out
	}
	for _, d := range Dimensions {
		v := w.Get(d)
		if v < 0 {
			v = 0
		}
		out.Set(d, v/sum)
	}
	return out
}

// ToMap returns the weights keyed by dimension name
//
//nolint:gocritic // value receiver is intentional for immutable semantics
func (w Weights) ToMap() map[string]float64 {
	m := make(map[string]float64, len(Dimensions))
	for _, d := range Dimensions {
		m[string(d)] = w.Get(d)
	}
	return m
}
