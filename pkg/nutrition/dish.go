package nutrition

import (
	"errors"
	"fmt"
	"maps"

	"github.com/iwvelando/portion-planner/pkg/mathutil"
)

// ErrMalformedRecord marks a dish or target record whose fields could not be coerced.
var ErrMalformedRecord = errors.New("malformed nutrition record")

// Dish is one per-serving nutrient record. Dishes are treated as immutable;
// the optimizers return annotated copies.
type Dish struct {
	Name   string
	Meal   string
	Macros Vector

	// Bounds is nil when the record did not carry solver_bounds.
	Bounds *Bounds

	// PortionScale is the realized serving multiplier. Zero means unset (one serving).
	PortionScale float64

	// Final holds macros * scale rounded to integers, set by Annotate.
	Final     [NumMacros]int
	Annotated bool

	// Loss is the substitution objective at the chosen scale, set by WithLoss.
	Loss   float64
	Scored bool

	// Extra keeps record fields this package does not interpret, e.g. meal_id.
	Extra map[string][]byte

	// Problem is set when decoding could not coerce one of the record's fields.
	Problem error
}

// Scale returns the realized portion scale, defaulting to one serving.
func (d Dish) Scale() float64 {
	if d.PortionScale == 0 {
		return 1.0
	}
	return d.PortionScale
}

// Realized returns the macros actually served at the dish's portion scale.
func (d Dish) Realized() Vector {
	return d.Macros.Scale(d.Scale())
}

// Annotate returns a copy scaled by scale, with the rounded scale and the
// integer final macros filled in.
func (d Dish) Annotate(scale float64) Dish {
	out := d.clone()
	out.PortionScale = mathutil.RoundScale(scale)
	for i, v := range d.Macros {
		out.Final[i] = mathutil.RoundInt(v * scale)
	}
	out.Annotated = true
	return out
}

// AnnotateWithin is Annotate for a scale chosen inside b. Rounding the
// scale never moves it outside b; invalid bounds are ignored.
func (d Dish) AnnotateWithin(scale float64, b Bounds) Dish {
	out := d.Annotate(scale)
	if b.Valid() {
		out.PortionScale = b.Clamp(out.PortionScale)
	}
	return out
}

// WithLoss returns a copy carrying the substitution loss rounded to four decimals.
func (d Dish) WithLoss(loss float64) Dish {
	out := d.clone()
	out.Loss = mathutil.RoundLoss(loss)
	out.Scored = true
	return out
}

// FinalVector returns the integer final macros as a Vector.
func (d Dish) FinalVector() Vector {
	var v Vector
	for i, x := range d.Final {
		v[i] = float64(x)
	}
	return v
}

// Validate reports decoding problems and macros that no solver can use.
// Bounds are not checked here; see Bounds.Valid.
func (d Dish) Validate() error {
	if d.Problem != nil {
		return d.Problem
	}
	if !d.Macros.Finite() {
		return fmt.Errorf("%w: dish %q has non-finite macros", ErrMalformedRecord, d.Name)
	}
	if d.Macros.Negative() {
		return fmt.Errorf("%w: dish %q has negative macros", ErrMalformedRecord, d.Name)
	}
	return nil
}

func (d Dish) clone() Dish {
	out := d
	if d.Bounds != nil {
		b := *d.Bounds
		out.Bounds = &b
	}
	out.Extra = maps.Clone(d.Extra)
	return out
}
