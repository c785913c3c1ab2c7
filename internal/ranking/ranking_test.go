package ranking

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lingofeed/pkg/models"
)

func itemsOfTypes(types ...models.ContentType) []models.FeedItem {
	items := make([]models.FeedItem, len(types))
	for i, t := range types {
		items[i] = models.FeedItem{
			ContentItem: models.ContentItem{ID: fmt.Sprintf("c%d", i), Type: t},
			Score:       float64(100 - i),
		}
	}
	return items
}

func TestEnforceDiversityMixedSequence(t *testing.T) {
	V, A, P, M, S, Y := models.ContentVideo, models.ContentArticle, models.ContentPodcast,
		models.ContentMusic, models.ContentStory, models.ContentYouTube
	in := itemsOfTypes(V, V, V, A, V, P, M, S, V, Y)

	out := EnforceDiversity(in, 2, 0)

	assert.LessOrEqual(t, LongestRun(out), 2)
	ids := make([]string, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}
	// Only the third video is dropped
	assert.Equal(t, []string{"c0", "c1", "c3", "c4", "c5", "c6", "c7", "c8", "c9"}, ids)
}

func TestEnforceDiversityKeepsScanningAfterSkip(t *testing.T) {
	V, A := models.ContentVideo, models.ContentArticle
	in := itemsOfTypes(V, V, V, V, V, A, A)

	out := EnforceDiversity(in, 2, 3)

	require.Len(t, out, 3)
	assert.Equal(t, "c5", out[2].ID)
}

func TestEnforceDiversityStopsAtLimit(t *testing.T) {
	in := itemsOfTypes(models.ContentVideo, models.ContentArticle, models.ContentVideo, models.ContentArticle)
	assert.Len(t, EnforceDiversity(in, 2, 2), 2)
	assert.Empty(t, EnforceDiversity(nil, 2, 10))
}

func TestEnforceDiversityRunBoundHoldsForAnyK(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	types := models.FeedContentTypes

	for trial := 0; trial < 300; trial++ {
		n := rng.IntN(40)
		seq := make([]models.ContentType, n)
		for i := range seq {
			// Skew toward one type so long runs are common
			if rng.IntN(2) == 0 {
				seq[i] = models.ContentVideo
			} else {
				seq[i] = types[rng.IntN(len(types))]
			}
		}
		k := 1 + rng.IntN(4)
		out := EnforceDiversity(itemsOfTypes(seq...), k, 0)
		assert.LessOrEqual(t, LongestRun(out), k, "k=%d seq=%v", k, seq)
	}
}

func TestPhaseAt(t *testing.T) {
	cfg := DefaultPacingConfig()
	assert.Equal(t, PhaseEarly, cfg.PhaseAt(0))
	assert.Equal(t, PhaseEarly, cfg.PhaseAt(9))
	assert.Equal(t, PhaseMiddle, cfg.PhaseAt(10))
	assert.Equal(t, PhaseMiddle, cfg.PhaseAt(20))
	assert.Equal(t, PhaseLate, cfg.PhaseAt(21))
}

func leveled(id string, l models.Level, score float64) models.FeedItem {
	return models.FeedItem{ContentItem: models.ContentItem{ID: id, Type: models.ContentArticle, Level: l}, Score: score}
}

func TestPaceEarlyFavorsEasyContent(t *testing.T) {
	in := []models.FeedItem{leveled("hard", models.LevelB2, 80), leveled("easy", models.LevelA2, 75)}

	out := Pace(in, 0, DefaultPacingConfig())

	assert.Equal(t, "easy", out[0].ID)
	assert.Equal(t, 85.0, out[0].Score)
	// Input is not modified
	assert.Equal(t, 75.0, in[1].Score)
}

func TestPaceLateFavorsHarderContent(t *testing.T) {
	in := []models.FeedItem{leveled("easy", models.LevelA1, 80), leveled("hard", models.LevelC1, 75)}

	out := Pace(in, 25, DefaultPacingConfig())

	assert.Equal(t, "hard", out[0].ID)
}

func TestPaceMiddleHalfBoostAndCap(t *testing.T) {
	in := []models.FeedItem{
		leveled("a", models.LevelC2, 90),
		leveled("b", models.LevelB1, 86),
		leveled("c", models.LevelA2, 98),
	}

	out := Pace(in, 15, DefaultPacingConfig())

	assert.Equal(t, "c", out[0].ID)
	assert.Equal(t, 100.0, out[0].Score)
	assert.Equal(t, "b", out[1].ID)
	assert.Equal(t, 91.0, out[1].Score)
}

func TestPaceIsStableForEqualScores(t *testing.T) {
	in := []models.FeedItem{
		leveled("first", models.LevelC1, 50),
		leveled("second", models.LevelC2, 50),
		leveled("third", models.LevelB2, 50),
	}
	out := Pace(in, 0, DefaultPacingConfig())
	assert.Equal(t, "first", out[0].ID)
	assert.Equal(t, "second", out[1].ID)
	assert.Equal(t, "third", out[2].ID)
}
