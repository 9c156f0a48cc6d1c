package planner

import (
	"context"

	"github.com/iwvelando/portion-planner/pkg/nutrition"
)

// CandidateSource retrieves replacement candidates for a dish.
type CandidateSource interface {
	Candidates(ctx context.Context, old nutrition.Dish) ([]nutrition.Dish, error)
}

// TargetSource supplies a user's daily macro target.
type TargetSource interface {
	Target(ctx context.Context) (nutrition.Vector, error)
}

// StaticCandidates serves a fixed candidate list, e.g. one decoded from a request file.
type StaticCandidates []nutrition.Dish

// Candidates returns a copy of the list.
func (s StaticCandidates) Candidates(ctx context.Context, _ nutrition.Dish) ([]nutrition.Dish, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]nutrition.Dish, len(s))
	copy(out, s)
	return out, nil
}

// StaticTarget serves a fixed daily target.
type StaticTarget nutrition.Vector

// Target returns the target.
func (s StaticTarget) Target(ctx context.Context) (nutrition.Vector, error) {
	if err := ctx.Err(); err != nil {
		return nutrition.Vector{}, err
	}
	return nutrition.Vector(s), nil
}

var (
	_ CandidateSource = StaticCandidates(nil)
	_ TargetSource    = StaticTarget{}
)
