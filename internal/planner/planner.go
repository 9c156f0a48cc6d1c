// Package planner runs the portion optimizers for a single request: it wires
// the configured policy into both solvers, keeps them off the caller's
// goroutine and assembles the results callers render.
package planner

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/iwvelando/portion-planner/internal/config"
	"github.com/iwvelando/portion-planner/internal/optimizer"
	"github.com/iwvelando/portion-planner/pkg/nutrition"
	"github.com/iwvelando/portion-planner/pkg/optimization"
	"github.com/iwvelando/portion-planner/pkg/validation"
	"go.uber.org/zap"
)

// Planner holds the solvers for one configuration. It keeps no per-request
// state and is safe for concurrent use.
type Planner struct {
	logger *zap.Logger
	policy config.PolicyConfig
	menu   *optimizer.MenuOptimizer
	scorer *optimizer.SubstitutionScorer
}

// MenuPlan is the outcome of PlanMenu.
type MenuPlan struct {
	Target   nutrition.Vector        `json:"target" yaml:"target"`
	Dishes   []nutrition.Dish        `json:"menu" yaml:"menu"`
	Report   optimization.MenuReport `json:"report" yaml:"report"`
	Warnings []string                `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// SubstitutionPlan is the outcome of Substitute. Best is nil when no
// candidate could be scored.
type SubstitutionPlan struct {
	Old        nutrition.Dish                  `json:"old" yaml:"old"`
	Candidates []nutrition.Dish                `json:"candidates" yaml:"candidates"`
	Best       *nutrition.Dish                 `json:"best,omitempty" yaml:"best,omitempty"`
	Report     optimization.SubstitutionReport `json:"report" yaml:"report"`
}

// New constructs a Planner for the provided configuration.
func New(logger *zap.Logger, conf *config.Configuration) (*Planner, error) {
	if conf == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return &Planner{
		logger: logger,
		policy: conf.Policy,
		menu:   optimizer.NewMenuOptimizer(logger, conf.Policy, conf.Solver),
		scorer: optimizer.NewSubstitutionScorer(logger, conf.Policy, conf.Solver),
	}, nil
}

// PlanMenu optimizes menu toward the daily target. The solve runs on its own
// goroutine; if ctx ends first PlanMenu returns ctx.Err() and the result is
// discarded when the solve completes.
func (p *Planner) PlanMenu(ctx context.Context, daily nutrition.Vector, menu []nutrition.Dish) (*MenuPlan, error) {
	warnings := validation.MenuWarnings(p.policy, menu)
	for _, w := range warnings {
		p.logger.Warn(w, zap.String("op", "planner.PlanMenu"))
	}

	res, err := offload(ctx, func() optimizer.MenuResult {
		return p.menu.Optimize(daily, menu)
	})
	if err != nil {
		return nil, err
	}

	return &MenuPlan{Target: daily, Dishes: res.Dishes, Report: res.Report, Warnings: warnings}, nil
}

// PlanMenuFor fetches the daily target from source and plans menu against it.
func (p *Planner) PlanMenuFor(ctx context.Context, source TargetSource, menu []nutrition.Dish) (*MenuPlan, error) {
	daily, err := source.Target(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching target: %w", err)
	}
	return p.PlanMenu(ctx, daily, menu)
}

// Substitute ranks replacements for old. Candidates sharing old's name are
// dropped before scoring, candidates at or above the policy's loss ceiling are
// dropped after, and at most top candidates are kept (the policy default when
// top <= 0). The best candidate is compared macro by macro with old.
func (p *Planner) Substitute(ctx context.Context, old nutrition.Dish, source CandidateSource, top int) (*SubstitutionPlan, error) {
	const op = "planner.Substitute"

	fetched, err := source.Candidates(ctx, old)
	if err != nil {
		return nil, fmt.Errorf("fetching candidates: %w", err)
	}

	plan := &SubstitutionPlan{
		Old:        old,
		Candidates: []nutrition.Dish{},
		Report:     optimization.SubstitutionReport{Old: old.Name, Retrieved: len(fetched)},
	}

	candidates := make([]nutrition.Dish, 0, len(fetched))
	for _, cand := range fetched {
		if sameDish(cand, old) {
			plan.Report.Excluded++
			continue
		}
		candidates = append(candidates, cand)
	}
	p.logger.Info("candidates retrieved",
		zap.String("op", op),
		zap.String("old", old.Name),
		zap.Int("retrieved", len(fetched)),
		zap.Int("excluded", plan.Report.Excluded),
	)
	if len(candidates) == 0 {
		plan.Report.Notes = append(plan.Report.Notes, "no candidates to score")
		return plan, nil
	}

	res, err := offload(ctx, func() optimizer.SubstitutionResult {
		return p.scorer.Score(old, candidates)
	})
	if err != nil {
		return nil, err
	}
	plan.Report.Scored = len(res.Ranked)

	ranked := res.Ranked
	if ceiling := p.policy.MaxCandidateLoss; ceiling > 0 {
		kept := make([]nutrition.Dish, 0, len(ranked))
		for _, cand := range ranked {
			if cand.Loss < ceiling {
				kept = append(kept, cand)
			}
		}
		plan.Report.Rejected = len(ranked) - len(kept)
		ranked = kept
	}

	if top <= 0 {
		top = p.policy.TopCandidates
	}
	plan.Candidates = optimizer.SubstitutionResult{Ranked: ranked}.Top(top)
	plan.Report.Kept = len(plan.Candidates)

	for _, cand := range plan.Candidates {
		p.logger.Info("candidate",
			zap.String("op", op),
			zap.String("candidate", cand.Name),
			zap.Float64("scale", cand.PortionScale),
			zap.Float64("loss", cand.Loss),
		)
	}

	if len(plan.Candidates) == 0 || math.IsInf(plan.Candidates[0].Loss, 1) {
		plan.Report.Notes = append(plan.Report.Notes, "no candidate could be scored")
		return plan, nil
	}

	best := plan.Candidates[0]
	plan.Best = &best
	plan.Report.Best = best.Name
	plan.Report.BestScale = best.PortionScale
	plan.Report.Comparison = optimizer.Compare(old, best, p.policy.SwapDeviationWarning)

	for _, line := range plan.Report.Comparison {
		p.logger.Info("substitution comparison",
			zap.String("op", op),
			zap.String("nutrient", line.Nutrient),
			zap.Float64("old", line.Old),
			zap.Float64("new", line.New),
			zap.String("unit", line.Unit),
			zap.Bool("warning", line.Warning),
		)
	}

	return plan, nil
}

func sameDish(a, b nutrition.Dish) bool {
	return strings.EqualFold(strings.TrimSpace(a.Name), strings.TrimSpace(b.Name))
}

// offload runs fn on a new goroutine and waits for it or for ctx, whichever
// comes first. fn is not interrupted when ctx ends.
func offload[T any](ctx context.Context, fn func() T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	done := make(chan T, 1)
	go func() {
		done <- fn()
	}()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case v := <-done:
		return v, nil
	}
}
