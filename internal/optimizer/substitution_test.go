package optimizer

import (
	"fmt"
	"math"
	"testing"

	"github.com/iwvelando/portion-planner/internal/config"
	"github.com/iwvelando/portion-planner/pkg/nutrition"
	"github.com/iwvelando/portion-planner/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newScorer() *SubstitutionScorer {
	return NewSubstitutionScorer(zap.NewNop(), config.DefaultPolicy(), config.DefaultSolver())
}

func TestScoreHalfPortionCandidateDoubles(t *testing.T) {
	s := newScorer()
	old := testutil.Dish("Com ga", "lunch", 400, 30, 10, 50)
	cand := testutil.Dish("Xoi ga", "lunch", 200, 15, 5, 25)

	res := s.Score(old, []nutrition.Dish{cand})
	require.Len(t, res.Ranked, 1)

	best := res.Ranked[0]
	assert.True(t, best.Scored)
	assert.InDelta(t, 2.0, best.PortionScale, 1e-9)
	assert.Less(t, best.Loss, 1e-3)
	assert.InDelta(t, 400, best.Final[nutrition.Energy], 1)
	assert.Equal(t, nutrition.Bounds{Min: 0.5, Max: 2.0}, res.Bounds)
}

func TestScoreRanksByLoss(t *testing.T) {
	s := newScorer()
	old := testutil.Dish("Pho bo", "lunch", 450, 25, 8, 60)
	candidates := []nutrition.Dish{
		testutil.Dish("Mi xao", "lunch", 600, 12, 30, 70),
		testutil.Dish("Pho ga", "lunch", 430, 26, 7, 58),
		testutil.Dish("Hu tieu", "lunch", 420, 20, 9, 62),
	}

	res := s.Score(old, candidates)
	assert.Equal(t, []string{"Pho ga", "Hu tieu", "Mi xao"}, testutil.Names(res.Ranked))
	for i := 1; i < len(res.Ranked); i++ {
		assert.LessOrEqual(t, res.Ranked[i-1].Loss, res.Ranked[i].Loss)
	}
}

func TestScoreDegenerateCandidates(t *testing.T) {
	s := newScorer()
	old := testutil.Dish("Bun bo", "lunch", 500, 28, 14, 62)
	malformed := nutrition.ParseDish(`{"name":"Broken","kcal":"n/a","protein":10}`)
	require.Error(t, malformed.Problem)

	candidates := []nutrition.Dish{
		testutil.Dish("Water", "lunch", 0, 0, 0, 0),
		malformed,
		testutil.Dish("Bun rieu", "lunch", 480, 24, 15, 60),
		testutil.Dish("Negative", "lunch", -10, 5, 5, 5),
	}

	res := s.Score(old, candidates)
	require.Len(t, res.Ranked, 4)
	assert.Equal(t, []string{"Bun rieu", "Water", "Broken", "Negative"}, testutil.Names(res.Ranked))

	assert.False(t, math.IsInf(res.Ranked[0].Loss, 0))
	for _, cand := range res.Ranked[1:] {
		assert.True(t, math.IsInf(cand.Loss, 1), cand.Name)
		assert.Equal(t, 1.0, cand.PortionScale, cand.Name)
		assert.True(t, cand.Scored)
	}
}

func TestScoreStableForEqualLoss(t *testing.T) {
	s := newScorer()
	old := testutil.Dish("Ca kho", "dinner", 300, 25, 15, 10)
	var candidates []nutrition.Dish
	for i := 0; i < 4; i++ {
		candidates = append(candidates, testutil.Dish(fmt.Sprintf("twin-%d", i), "dinner", 150, 12.5, 7.5, 5))
	}

	res := s.Score(old, candidates)
	assert.Equal(t, []string{"twin-0", "twin-1", "twin-2", "twin-3"}, testutil.Names(res.Ranked))
}

func TestScoreUsesOldDishBoundsAndScale(t *testing.T) {
	s := newScorer()

	bounded := testutil.WithBounds(testutil.Dish("Rice", "lunch", 400, 8, 2, 88), 0.5, 1.0)
	res := s.Score(bounded, []nutrition.Dish{testutil.Dish("Half rice", "lunch", 200, 4, 1, 44)})
	assert.Equal(t, nutrition.Bounds{Min: 0.5, Max: 1.0}, res.Bounds)
	assert.InDelta(t, 1.0, res.Ranked[0].PortionScale, 1e-9)

	scaled := testutil.Dish("Noodles", "lunch", 400, 12, 6, 70)
	scaled.PortionScale = 1.5
	res = s.Score(scaled, []nutrition.Dish{testutil.Dish("Same noodles", "lunch", 400, 12, 6, 70)})
	assert.Equal(t, nutrition.Vector{600, 18, 9, 105}, res.Benchmark)
	assert.InDelta(t, 1.5, res.Ranked[0].PortionScale, 1e-9)
	assert.Less(t, res.Ranked[0].Loss, 1e-3)
}

func TestScoreKeepsRoundedScaleInsideFineBounds(t *testing.T) {
	s := newScorer()

	old := testutil.WithBounds(testutil.Dish("Rice", "lunch", 400, 8, 2, 88), 0.333, 0.5)
	res := s.Score(old, []nutrition.Dish{testutil.Dish("Big rice", "lunch", 1600, 32, 8, 352)})
	require.Len(t, res.Ranked, 1)

	scale := res.Ranked[0].PortionScale
	assert.True(t, res.Bounds.Contains(scale), "scale %v outside %v", scale, res.Bounds)
	assert.InDelta(t, 0.333, scale, 1e-6)
}

func TestScoreInvalidOldBounds(t *testing.T) {
	s := newScorer()
	old := testutil.WithBounds(testutil.Dish("Rice", "lunch", 400, 8, 2, 88), 2, 1)

	res := s.Score(old, []nutrition.Dish{testutil.Dish("Bread", "lunch", 300, 9, 4, 55)})
	require.Len(t, res.Ranked, 1)
	assert.True(t, math.IsInf(res.Ranked[0].Loss, 1))
	assert.Equal(t, 1.0, res.Ranked[0].PortionScale)
}

func TestScoreEmptyCandidates(t *testing.T) {
	s := newScorer()
	res := s.Score(testutil.Dish("Rice", "lunch", 400, 8, 2, 88), nil)
	assert.Empty(t, res.Ranked)
	assert.Empty(t, res.Top(10))
}

func TestScoreDoesNotMutateCandidates(t *testing.T) {
	s := newScorer()
	candidates := []nutrition.Dish{testutil.Dish("Bread", "breakfast", 300, 9, 4, 55)}

	_ = s.Score(testutil.Dish("Rice", "lunch", 400, 8, 2, 88), candidates)
	assert.False(t, candidates[0].Annotated)
	assert.False(t, candidates[0].Scored)
	assert.Equal(t, 0.0, candidates[0].PortionScale)
}

func TestSubstitutionResultTop(t *testing.T) {
	res := SubstitutionResult{Ranked: []nutrition.Dish{{Name: "a"}, {Name: "b"}, {Name: "c"}}}

	assert.Equal(t, []string{"a", "b"}, testutil.Names(res.Top(2)))
	assert.Equal(t, []string{"a", "b", "c"}, testutil.Names(res.Top(10)))
	assert.Equal(t, []string{"a", "b", "c"}, testutil.Names(res.Top(0)))

	top := res.Top(1)
	top[0].Name = "changed"
	assert.Equal(t, "a", res.Ranked[0].Name)
}

func TestCompare(t *testing.T) {
	old := testutil.Dish("Pho", "lunch", 400, 20, 10, 50).Annotate(1.5)
	replacement := testutil.Dish("Bun", "lunch", 500, 20, 4, 80).Annotate(1.2)

	lines := Compare(old, replacement, 0.2)
	require.Len(t, lines, nutrition.NumMacros)

	// old finals (600, 30, 15, 75), new finals (600, 24, 5, 96)
	assert.Equal(t, 600.0, lines[nutrition.Energy].Old)
	assert.Equal(t, 600.0, lines[nutrition.Energy].New)
	assert.False(t, lines[nutrition.Energy].Warning)

	assert.InDelta(t, -0.2, lines[nutrition.Protein].Deviation, 1e-9)
	assert.False(t, lines[nutrition.Protein].Warning, "exactly 20% is not flagged")

	assert.True(t, lines[nutrition.Fat].Warning)
	assert.True(t, lines[nutrition.Carb].Warning)
	assert.Equal(t, "g", lines[nutrition.Carb].Unit)
}

func TestCompareUnannotatedOldUsesRealizedMacros(t *testing.T) {
	old := testutil.Dish("Rice", "lunch", 200, 4, 0, 44)
	old.PortionScale = 2
	replacement := testutil.Dish("Bread", "lunch", 400, 8, 6, 88).Annotate(1)

	lines := Compare(old, replacement, 0.2)
	assert.Equal(t, 400.0, lines[nutrition.Energy].Old)
	assert.False(t, lines[nutrition.Energy].Warning)

	// zero old value is never flagged
	assert.Equal(t, 0.0, lines[nutrition.Fat].Old)
	assert.False(t, lines[nutrition.Fat].Warning)
	assert.Equal(t, 0.0, lines[nutrition.Fat].Deviation)
}
