package optimizer

import (
	"fmt"
	"math"
	"sort"

	"github.com/iwvelando/portion-planner/internal/config"
	"github.com/iwvelando/portion-planner/pkg/mathutil"
	"github.com/iwvelando/portion-planner/pkg/nutrition"
	"github.com/iwvelando/portion-planner/pkg/solver"
	"go.uber.org/zap"
)

// SubstitutionScorer ranks replacement candidates for one dish by how closely
// a rescaled serving of each reproduces the dish's realized macros.
type SubstitutionScorer struct {
	logger   *zap.Logger
	policy   config.PolicyConfig
	settings solver.ScalarSettings
}

// SubstitutionResult holds every candidate, annotated with its best scale and
// loss, sorted by ascending loss. Candidates with infinite loss come last in
// their input order.
type SubstitutionResult struct {
	Benchmark nutrition.Vector `json:"benchmark" yaml:"benchmark"`
	Bounds    nutrition.Bounds `json:"bounds" yaml:"bounds"`
	Ranked    []nutrition.Dish `json:"ranked" yaml:"ranked"`
}

// Top returns at most n of the best candidates. n <= 0 returns all of them.
func (r SubstitutionResult) Top(n int) []nutrition.Dish {
	if n <= 0 || n > len(r.Ranked) {
		n = len(r.Ranked)
	}
	out := make([]nutrition.Dish, n)
	copy(out, r.Ranked[:n])
	return out
}

// NewSubstitutionScorer constructs a SubstitutionScorer. A nil logger disables logging.
func NewSubstitutionScorer(logger *zap.Logger, policy config.PolicyConfig, solverCfg config.SolverConfig) *SubstitutionScorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy.Normalize()
	solverCfg.Normalize()
	return &SubstitutionScorer{logger: logger, policy: policy, settings: solverCfg.ScalarSettings()}
}

// Score rescales every candidate toward old's realized macros within old's
// bounds, or the policy's substitution bounds when old has none. A candidate
// that cannot be scored gets scale 1.0 and infinite loss; it never fails the
// batch.
func (s *SubstitutionScorer) Score(old nutrition.Dish, candidates []nutrition.Dish) SubstitutionResult {
	const op = "optimizer.SubstitutionScorer.Score"

	result := SubstitutionResult{
		Benchmark: old.Realized(),
		Bounds:    s.policy.SubstitutionBounds,
		Ranked:    make([]nutrition.Dish, len(candidates)),
	}
	if old.Bounds != nil {
		result.Bounds = *old.Bounds
	}
	model := lossModel{weights: s.policy.Weights(), epsilon: s.policy.Epsilon}

	losses := make([]float64, len(candidates))
	for i, cand := range candidates {
		loss, scale, err := s.scoreOne(model, result.Benchmark, result.Bounds, cand)
		if err != nil {
			s.logger.Debug("candidate not scored",
				zap.String("op", op),
				zap.String("candidate", cand.Name),
				zap.Error(err),
			)
		}
		losses[i] = loss
		if math.IsInf(loss, 1) {
			result.Ranked[i] = cand.Annotate(scale).WithLoss(loss)
		} else {
			result.Ranked[i] = cand.AnnotateWithin(scale, result.Bounds).WithLoss(loss)
		}
	}

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return losses[order[a]] < losses[order[b]]
	})
	ranked := make([]nutrition.Dish, len(order))
	for i, idx := range order {
		ranked[i] = result.Ranked[idx]
	}
	result.Ranked = ranked

	for _, cand := range ranked {
		s.logger.Debug("candidate",
			zap.String("op", op),
			zap.String("candidate", cand.Name),
			zap.Float64("scale", cand.PortionScale),
			zap.Float64("loss", cand.Loss),
		)
	}
	s.logger.Info("scored substitution candidates",
		zap.String("op", op),
		zap.String("old", old.Name),
		zap.Int("candidates", len(candidates)),
		zap.Float64s("benchmark", result.Benchmark[:]),
	)

	return result
}

// scoreOne returns the minimized loss and its scale for one candidate, or
// (+Inf, 1.0) with the reason when the candidate cannot be scored.
func (s *SubstitutionScorer) scoreOne(model lossModel, benchmark nutrition.Vector, bounds nutrition.Bounds, cand nutrition.Dish) (loss, scale float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			loss, scale, err = math.Inf(1), 1.0, fmt.Errorf("panic while scoring: %v", r)
		}
	}()

	if err := cand.Validate(); err != nil {
		return math.Inf(1), 1.0, err
	}
	if cand.Macros.IsZero() {
		return math.Inf(1), 1.0, fmt.Errorf("candidate has no macros")
	}
	if !bounds.Valid() {
		return math.Inf(1), 1.0, fmt.Errorf("invalid bounds [%g, %g]", bounds.Min, bounds.Max)
	}

	objective := func(x float64) float64 {
		return model.macroLoss(cand.Macros.Scale(x), benchmark)
	}
	res := solver.MinimizeScalar(objective, bounds.Min, bounds.Max, s.settings)
	if !res.Success || !mathutil.IsFinite(res.F) {
		return math.Inf(1), 1.0, fmt.Errorf("minimizer failed: %s", res.Message)
	}
	return res.F, res.X, nil
}
